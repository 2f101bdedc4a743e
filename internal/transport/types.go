// Package transport defines the chat-transport boundary: neutral update and
// send types plus the Adapter interface the Telegram implementation satisfies.
package transport

import "context"

type UpdateKind string

const (
	UpdateMessage  UpdateKind = "message"
	UpdateCallback UpdateKind = "callback"
)

type Update struct {
	Kind     UpdateKind
	Message  *Message
	Callback *Callback
}

type Message struct {
	ID           int
	ChatID       int64
	FromID       int64
	FromUsername string
	Text         string
}

type Callback struct {
	ID        string
	FromID    int64
	ChatID    int64
	MessageID int
	Data      string
}

type ChatTarget struct {
	ChatID int64
}

type MessageRef struct {
	ChatID    int64
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
	ReplyMarkup    any // adapter-specific markup (Telegram: *telebot.ReplyMarkup)
}

// Photo is a rich payload: an image by URL with a caption.
// Adapters that cannot deliver it may degrade to Caption as plain text.
type Photo struct {
	URL     string
	Caption string
}

type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	SendPhoto(ctx context.Context, to ChatTarget, p Photo, opt *SendOptions) (MessageRef, error)
	EditMarkup(ctx context.Context, ref MessageRef, opt *SendOptions) error
	AnswerCallback(ctx context.Context, callbackID string, text string) error
}
