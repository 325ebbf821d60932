package blockkit

// Text is a renderable text object, either plain or markdown.
type Text struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

const (
	textPlain    = "plain_text"
	textMarkdown = "mrkdwn"
)

func PlainText(s string) *Text {
	return &Text{Type: textPlain, Text: s, Emoji: true}
}

func Markdown(s string) *Text {
	return &Text{Type: textMarkdown, Text: s}
}
