// Package notify tells chat channels when background imports finish.
package notify

import (
	"context"
	"fmt"
	"log/slog"
)

// Colors used for event sidebars.
const (
	ColorSuccess = "#36a64f"
	ColorError   = "#d00000"
)

// Message is a platform-neutral notification.
type Message struct {
	Text   string
	Events []Event
}

// Event is a structured attachment rendered natively by each platform.
type Event struct {
	Title  string
	Body   string
	Color  string
	Fields []Field
}

// Field is a key-value pair displayed in an event.
type Field struct {
	Name  string
	Value string
	Short bool
}

// Sender delivers a message to one chat platform.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Import describes a finished import.
type Import struct {
	Kind      string // repository, results
	Project   string
	Version   string
	StatusKey string
	Summary   string
	Err       error
}

// Notifier fans a notification out to every configured sender. A Notifier
// with no senders does nothing.
type Notifier struct {
	senders []Sender
	logger  *slog.Logger
}

// New returns a Notifier over senders.
func New(logger *slog.Logger, senders ...Sender) *Notifier {
	return &Notifier{senders: senders, logger: logger}
}

// Enabled reports whether any sender is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && len(n.senders) > 0
}

// ImportFinished announces the outcome of an import. Delivery failures are
// logged and never returned.
func (n *Notifier) ImportFinished(ctx context.Context, imp Import) {
	if !n.Enabled() {
		return
	}
	msg := FormatImport(imp)
	for _, s := range n.senders {
		if err := s.Send(ctx, msg); err != nil {
			n.logger.Warn("notification failed", "sender", s.Name(), "status_key", imp.StatusKey, "error", err)
		}
	}
}

// FormatImport renders an import outcome as a Message.
func FormatImport(imp Import) Message {
	evt := Event{
		Title: fmt.Sprintf("%s import into %s finished", imp.Kind, imp.Project),
		Body:  imp.Summary,
		Color: ColorSuccess,
		Fields: []Field{
			{Name: "Project", Value: imp.Project, Short: true},
		},
	}
	if imp.Version != "" {
		evt.Fields = append(evt.Fields, Field{Name: "Version", Value: imp.Version, Short: true})
	}
	if imp.Err != nil {
		evt.Title = fmt.Sprintf("%s import into %s failed", imp.Kind, imp.Project)
		evt.Body = imp.Err.Error()
		evt.Color = ColorError
	}
	evt.Fields = append(evt.Fields, Field{Name: "Status key", Value: imp.StatusKey})
	return Message{Text: evt.Title, Events: []Event{evt}}
}
