package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mailersend/mailersend-go"
)

type MailerSendNotifier struct {
	client   *mailersend.Mailersend
	fromName string
}

func NewMailerSendNotifier(apiKey, fromName string) (*MailerSendNotifier, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("mailersend: missing api key")
	}
	return &MailerSendNotifier{
		client:   mailersend.NewMailersend(apiKey),
		fromName: fromName,
	}, nil
}

func (n *MailerSendNotifier) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}

	recipients := make([]mailersend.Recipient, 0, len(msg.To))
	for _, to := range msg.To {
		recipients = append(recipients, mailersend.Recipient{Email: to})
	}

	m := n.client.Email.NewMessage()
	m.SetFrom(mailersend.From{Name: n.fromName, Email: msg.From})
	m.SetRecipients(recipients)
	m.SetSubject(msg.Subject)
	m.SetText(msg.Body)

	// non-2xx statuses come back as err together with a response
	res, err := n.client.Email.Send(ctx, m)
	if res != nil && res.Response != nil && res.Body != nil {
		defer res.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("mailersend send: %w", err)
	}
	return nil
}
