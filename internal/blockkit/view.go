package blockkit

// View is a composite form document handed to the transport for rendering.
// PrivateMetadata is an opaque blob echoed back on every interaction with the
// view; it is the only state that survives a round-trip.
type View struct {
	Type            string   `json:"type"`
	CallbackID      string   `json:"callback_id,omitempty"`
	Title           *Text    `json:"title,omitempty"`
	Submit          *Text    `json:"submit,omitempty"`
	Close           *Text    `json:"close,omitempty"`
	PrivateMetadata string   `json:"private_metadata,omitempty"`
	Blocks          []*Block `json:"blocks"`
}

func Modal(callbackID, title string, blocks ...*Block) *View {
	return &View{
		Type:       "modal",
		CallbackID: callbackID,
		Title:      PlainText(title),
		Blocks:     blocks,
	}
}

func (v *View) WithSubmit(label string) *View {
	v.Submit = PlainText(label)
	return v
}

func (v *View) WithClose(label string) *View {
	v.Close = PlainText(label)
	return v
}

// Index returns the position of the block with the given id, or -1.
func (v *View) Index(blockID string) int {
	for i, b := range v.Blocks {
		if b.BlockID == blockID {
			return i
		}
	}
	return -1
}

// Find returns the block with the given id, or nil.
func (v *View) Find(blockID string) *Block {
	if i := v.Index(blockID); i >= 0 {
		return v.Blocks[i]
	}
	return nil
}

// Replace swaps the block with the given id for a new one in place. It is a
// no-op when no block with that id exists.
func (v *View) Replace(blockID string, block *Block) {
	if i := v.Index(blockID); i >= 0 {
		v.Blocks[i] = block
	}
}

// InsertAfter splices blocks in directly after the block with the given id.
// The anchor block owns the inserted group; use RemoveAll with the group's ids
// to splice it back out.
func (v *View) InsertAfter(blockID string, blocks ...*Block) {
	i := v.Index(blockID)
	if i < 0 {
		return
	}
	rest := make([]*Block, len(v.Blocks[i+1:]))
	copy(rest, v.Blocks[i+1:])
	v.Blocks = append(v.Blocks[:i+1], append(blocks, rest...)...)
}

// RemoveAll splices out every block whose id is in the given set.
func (v *View) RemoveAll(blockIDs ...string) {
	drop := make(map[string]struct{}, len(blockIDs))
	for _, id := range blockIDs {
		drop[id] = struct{}{}
	}
	kept := v.Blocks[:0]
	for _, b := range v.Blocks {
		if _, ok := drop[b.BlockID]; ok {
			continue
		}
		kept = append(kept, b)
	}
	v.Blocks = kept
}

// BlockIDs returns the ordered ids of all blocks in the view.
func (v *View) BlockIDs() []string {
	ids := make([]string, 0, len(v.Blocks))
	for _, b := range v.Blocks {
		ids = append(ids, b.BlockID)
	}
	return ids
}
