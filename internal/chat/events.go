package chat

import "npkchat/internal/blockkit"

// Message identifies where an interaction originated: the channel, the acting
// user, and the thread (empty for top-level messages). Captured once and
// carried so results land back in the right place.
type Message struct {
	Channel string `json:"channel"`
	User    string `json:"user"`
	Thread  string `json:"thread,omitempty"`
}

// DotCommandEvent is a chat message of the form ".command payload".
type DotCommandEvent struct {
	Command   string  `json:"command"`
	Payload   string  `json:"payload"`
	TriggerID string  `json:"trigger_id,omitempty"`
	Message   Message `json:"message"`
}

// FileSharedEvent is delivered when a user shares a file into a channel the
// bot can see.
type FileSharedEvent struct {
	FileID  string  `json:"file_id"`
	Name    string  `json:"name"`
	Message Message `json:"message"`
}

// Action is one interactive control the user activated.
type Action struct {
	ActionID        string             `json:"action_id"`
	BlockID         string             `json:"block_id"`
	Value           string             `json:"value,omitempty"`
	SelectedOption  *blockkit.Option   `json:"selected_option,omitempty"`
	SelectedOptions []*blockkit.Option `json:"selected_options,omitempty"`
}

// ActionPayload is an interaction callback for one or more block actions,
// either inside an open form or attached to a posted message.
type ActionPayload struct {
	FormID    string   `json:"form_id,omitempty"`
	Metadata  string   `json:"metadata,omitempty"`
	MessageTS string   `json:"message_ts,omitempty"`
	TriggerID string   `json:"trigger_id,omitempty"`
	Message   Message  `json:"message"`
	Actions   []Action `json:"actions"`
}

// First returns the first action of the payload, or a zero Action.
func (p *ActionPayload) First() Action {
	if len(p.Actions) == 0 {
		return Action{}
	}
	return p.Actions[0]
}

// OptionsPayload is an autocomplete request for an external select: the
// transport asks for the option set matching the typed query.
type OptionsPayload struct {
	ActionID string  `json:"action_id"`
	BlockID  string  `json:"block_id"`
	Query    string  `json:"query"`
	FormID   string  `json:"form_id,omitempty"`
	Metadata string  `json:"metadata,omitempty"`
	Message  Message `json:"message"`
}

// InputValue is the submitted state of one input-block element.
type InputValue struct {
	Value           string             `json:"value,omitempty"`
	SelectedOption  *blockkit.Option   `json:"selected_option,omitempty"`
	SelectedOptions []*blockkit.Option `json:"selected_options,omitempty"`
}

// ViewSubmission is delivered when the user submits an open form. Values is
// keyed by block id, then action id; only input-style controls appear here,
// which is why action-backed selections must be persisted into Metadata
// before submission can be validated.
type ViewSubmission struct {
	FormID   string                           `json:"form_id"`
	Metadata string                           `json:"metadata,omitempty"`
	Message  Message                          `json:"message"`
	Values   map[string]map[string]InputValue `json:"values,omitempty"`
}
