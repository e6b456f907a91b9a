package channel

import "context"

// Update kinds recognized by the orchestrator
const (
	KindText     = "text"
	KindVoice    = "voice"
	KindPhoto    = "photo"
	KindDocument = "document"
	KindCallback = "callback"
	KindOther    = "other"
)

// Message is an inbound update normalized for the orchestrator
type Message struct {
	UpdateID  int
	MessageID int
	UserID    int64
	ChatID    int64
	Text      string
	Caption   string
	Kind      string
	Edited    bool
}

// Adapter is the inbound transport front-end: it feeds normalized updates
// into the orchestrator.
type Adapter interface {
	// Start begins receiving updates
	Start(ctx context.Context) error

	// Stop stops receiving and closes the incoming channel
	Stop() error

	// Incoming returns the stream of normalized updates
	Incoming() <-chan *Message

	// Name returns the transport name
	Name() string
}

// Sender is the outbound delivery channel
type Sender interface {
	Send(ctx context.Context, chatID int64, text string, replyTo int) error
}
