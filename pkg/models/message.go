package models

// AuthorKind distinguishes who produced a message.
type AuthorKind string

const (
	AuthorUser AuthorKind = "user"
	AuthorBot  AuthorKind = "bot"
)

type Message struct {
	ID     string     `json:"id"`
	Thread string     `json:"thread"`
	Author AuthorKind `json:"author"`
	// TS is the creation timestamp (ns).
	TS   int64  `json:"ts"`
	Text string `json:"text,omitempty"`
	// Image is an optional attached image reference (base64 payload or
	// data URL); set only on user messages.
	Image string `json:"image,omitempty"`
	// Processing marks a bot placeholder whose final content is still
	// outstanding. Cleared (or the message replaced) once the reply is
	// finalized.
	Processing bool `json:"processing,omitempty"`
}
