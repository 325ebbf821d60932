package blockkit

// Option is one selectable choice. An Option whose Value is empty is a valid
// sentinel (used for "Any region") and is distinct from a nil *Option, which
// means no option at all.
type Option struct {
	Text  *Text  `json:"text"`
	Value string `json:"value,omitempty"`
}

func NewOption(label, value string) *Option {
	return &Option{Text: PlainText(label), Value: value}
}

// Element is an interactive control attached to a block, either as a section
// accessory, an actions-block element, or an input-block element. Exactly the
// fields relevant to its Type are populated.
type Element struct {
	Type     string `json:"type"`
	ActionID string `json:"action_id,omitempty"`

	// button
	Text  *Text  `json:"text,omitempty"`
	Value string `json:"value,omitempty"`
	Style string `json:"style,omitempty"`

	// selects
	Placeholder    *Text     `json:"placeholder,omitempty"`
	Options        []*Option `json:"options,omitempty"`
	InitialOption  *Option   `json:"initial_option,omitempty"`
	InitialOptions []*Option `json:"initial_options,omitempty"`
	MinQueryLength *int      `json:"min_query_length,omitempty"`

	// plain-text input
	InitialValue string `json:"initial_value,omitempty"`
	Multiline    bool   `json:"multiline,omitempty"`
}

const (
	StylePrimary = "primary"
	StyleDanger  = "danger"
)

func Button(actionID, label string) *Element {
	return &Element{Type: "button", ActionID: actionID, Text: PlainText(label)}
}

func (e *Element) WithValue(value string) *Element {
	e.Value = value
	return e
}

func (e *Element) WithStyle(style string) *Element {
	e.Style = style
	return e
}

func StaticSelect(actionID, placeholder string, options []*Option) *Element {
	return &Element{
		Type:        "static_select",
		ActionID:    actionID,
		Placeholder: PlainText(placeholder),
		Options:     options,
	}
}

func ExternalSelect(actionID, placeholder string) *Element {
	zero := 0
	return &Element{
		Type:           "external_select",
		ActionID:       actionID,
		Placeholder:    PlainText(placeholder),
		MinQueryLength: &zero,
	}
}

func MultiExternalSelect(actionID, placeholder string) *Element {
	zero := 0
	return &Element{
		Type:           "multi_external_select",
		ActionID:       actionID,
		Placeholder:    PlainText(placeholder),
		MinQueryLength: &zero,
	}
}

func PlainTextInput(actionID, placeholder string) *Element {
	return &Element{
		Type:        "plain_text_input",
		ActionID:    actionID,
		Placeholder: PlainText(placeholder),
	}
}
