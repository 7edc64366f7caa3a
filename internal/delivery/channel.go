package delivery

import "context"

// Message is one e-mail carrying an e-book.
type Message struct {
	From           string
	To             string
	Subject        string
	Body           string
	AttachmentPath string
	AttachmentName string
}

// Conn is an open, authenticated mail connection.
type Conn interface {
	Send(ctx context.Context, msg Message) error
	Close() error
}

// Channel opens mail connections.
type Channel interface {
	Dial(ctx context.Context) (Conn, error)
}
