// Package notifications delivers notification messages to users. Delivery choices are
// made by services; this package only knows how to hand a message to a transport.
package notifications

import (
	"context"
	"errors"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Message is the transport independent content of a notification.
type Message struct {
	RecipientUserID string         `json:"recipient_user_id"`
	Type            string         `json:"type"`
	Title           string         `json:"title"`
	Body            string         `json:"body"`
	Image           string         `json:"image,omitempty"`
	ContractID      string         `json:"contract_id,omitempty"`
	Data            map[string]any `json:"data,omitempty"`
}

// Tokens are the push destinations registered by the recipient.
type Tokens struct {
	Web    string `json:"web,omitempty"`
	Mobile string `json:"mobile,omitempty"`
}

// Empty reports whether no push destination is registered.
func (t Tokens) Empty() bool {
	return t.Web == "" && t.Mobile == ""
}

// Dispatcher hands a message to a delivery transport.
type Dispatcher interface {
	Send(ctx context.Context, msg Message, tokens Tokens) error
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, msg Message, tokens Tokens) error

// Send implements Dispatcher.
func (f DispatcherFunc) Send(ctx context.Context, msg Message, tokens Tokens) error {
	return f(ctx, msg, tokens)
}

// Multi sends through every dispatcher and combines their errors.
type Multi []Dispatcher

// Send implements Dispatcher.
func (m Multi) Send(ctx context.Context, msg Message, tokens Tokens) error {
	var err error
	for _, d := range m {
		if d == nil {
			continue
		}
		err = multierr.Append(err, d.Send(ctx, msg, tokens))
	}
	return err
}

// LogDispatcher writes messages to the log instead of delivering them.
type LogDispatcher struct {
	Logger *zap.Logger
}

// Send implements Dispatcher.
func (d LogDispatcher) Send(_ context.Context, msg Message, tokens Tokens) error {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log.Info("notification",
		zap.String("type", msg.Type),
		zap.String("user_id", msg.RecipientUserID),
		zap.String("title", msg.Title),
		zap.Bool("web_push", tokens.Web != ""),
		zap.Bool("mobile_push", tokens.Mobile != ""),
	)
	return nil
}

// ErrNoRecipient is returned when a message has no recipient.
var ErrNoRecipient = errors.New("notifications: recipient is required")
