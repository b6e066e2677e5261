package notifications

import (
	"context"
	"errors"
	"strings"
)

// Message is one outbound email. To may list several recipients.
type Message struct {
	Subject string
	Body    string
	From    string
	To      []string
}

type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

var ErrNoRecipients = errors.New("message has no recipients")

func (m Message) validate() error {
	for _, to := range m.To {
		if strings.TrimSpace(to) != "" {
			return nil
		}
	}
	return ErrNoRecipients
}
