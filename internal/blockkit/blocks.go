package blockkit

// Block is one node of a rendered view. Identity for later lookup is the
// BlockID, which must be unique within a view's current block list.
type Block struct {
	Type      string   `json:"type"`
	BlockID   string   `json:"block_id,omitempty"`
	Text      *Text    `json:"text,omitempty"`
	Fields    []*Text  `json:"fields,omitempty"`
	Accessory *Element `json:"accessory,omitempty"`

	// actions
	Elements []*Element `json:"elements,omitempty"`

	// input
	Label    *Text    `json:"label,omitempty"`
	Element  *Element `json:"element,omitempty"`
	Optional bool     `json:"optional,omitempty"`
}

func Section(blockID string, text *Text) *Block {
	return &Block{Type: "section", BlockID: blockID, Text: text}
}

func (b *Block) WithAccessory(e *Element) *Block {
	b.Accessory = e
	return b
}

func (b *Block) WithFields(fields ...*Text) *Block {
	b.Fields = fields
	return b
}

func Divider() *Block {
	return &Block{Type: "divider"}
}

func Header(blockID, text string) *Block {
	return &Block{Type: "header", BlockID: blockID, Text: PlainText(text)}
}

func Actions(blockID string, elements ...*Element) *Block {
	return &Block{Type: "actions", BlockID: blockID, Elements: elements}
}

func Input(blockID, label string, element *Element) *Block {
	return &Block{Type: "input", BlockID: blockID, Label: PlainText(label), Element: element, Optional: true}
}
