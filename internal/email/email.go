package email

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/Domenick1991/railbooking/internal/notify"
	"go.uber.org/zap"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer hands a rendered message to a mail transport.
type Mailer interface {
	Deliver(ctx context.Context, msg Message) error
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct {
	Log *zap.Logger
}

func (m LogMailer) Deliver(_ context.Context, msg Message) error {
	m.Log.Info("email", zap.String("to", msg.To), zap.String("subject", msg.Subject), zap.String("body", msg.Body))
	return nil
}

var (
	confirmedTmpl = template.Must(template.New("confirmed").Parse(
		`Your booking {{.PNR}} is confirmed.
Train run: {{.TrainRunID}}
Journey date: {{.JourneyDate.Format "02 Jan 2006"}}
Passengers: {{.PassengerCount}}
Total fare: Rs. {{.TotalFare}}
`))

	cancelledTmpl = template.Must(template.New("cancelled").Parse(
		`Your booking {{.PNR}} has been cancelled.
Reason: {{.Reason}}
Journey date: {{.JourneyDate.Format "02 Jan 2006"}}
Refund amount: Rs. {{.RefundAmount}} (Pending)
`))
)

type Sender struct {
	mailer Mailer
	domain string
}

// NewSender addresses mail to <user id>@domain.
func NewSender(mailer Mailer, domain string) *Sender {
	return &Sender{mailer: mailer, domain: domain}
}

func (s *Sender) Send(ctx context.Context, event notify.Event) error {
	msg, err := Render(event)
	if err != nil {
		return err
	}
	msg.To = event.UserID
	if s.domain != "" {
		msg.To = event.UserID + "@" + s.domain
	}
	if err := s.mailer.Deliver(ctx, msg); err != nil {
		return fmt.Errorf("deliver %s mail for %s: %w", event.Type, event.PNR, err)
	}
	return nil
}

// Render builds the subject and body for an event.
func Render(event notify.Event) (Message, error) {
	var (
		tmpl    *template.Template
		subject string
	)
	switch event.Type {
	case notify.EventBookingConfirmed:
		tmpl, subject = confirmedTmpl, "Booking confirmed - PNR "+event.PNR
	case notify.EventCancelled:
		tmpl, subject = cancelledTmpl, "Booking cancelled - PNR "+event.PNR
	default:
		return Message{}, fmt.Errorf("unknown event type %q", event.Type)
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, event); err != nil {
		return Message{}, fmt.Errorf("render %s: %w", event.Type, err)
	}
	return Message{Subject: subject, Body: body.String()}, nil
}
