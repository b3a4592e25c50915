package notifications

import (
	"context"
	"fmt"
	"strings"

	"github.com/resend/resend-go/v2"
	"github.com/sirupsen/logrus"
)

type Message struct {
	To      string
	ToName  string
	Subject string
	HTML    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

type ResendSender struct {
	client *resend.Client
	from   string
}

func NewResendSender(apiKey, from string) *ResendSender {
	return &ResendSender{client: resend.NewClient(apiKey), from: from}
}

func (s *ResendSender) Send(ctx context.Context, msg Message) (string, error) {
	if msg.To == "" || !strings.Contains(msg.To, "@") {
		return "", fmt.Errorf("invalid recipient email: %q", msg.To)
	}
	to := msg.To
	if msg.ToName != "" {
		to = fmt.Sprintf("%s <%s>", msg.ToName, msg.To)
	}
	sent, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{to},
		Subject: msg.Subject,
		Html:    msg.HTML,
	})
	if err != nil {
		return "", fmt.Errorf("resend send failed: %w", err)
	}
	return sent.Id, nil
}

// NoopSender is used when no email provider is configured.
type NoopSender struct {
	Log *logrus.Logger
}

func (n NoopSender) Send(_ context.Context, msg Message) (string, error) {
	if n.Log != nil {
		n.Log.WithFields(logrus.Fields{"to": msg.To, "subject": msg.Subject}).Info("email provider not configured, skipping send")
	}
	return "", nil
}

// Mailer renders the transactional templates and sends them best-effort:
// failures are logged and never returned to the caller.
type Mailer struct {
	sender Sender
	log    *logrus.Logger
}

func NewMailer(sender Sender, log *logrus.Logger) *Mailer {
	return &Mailer{sender: sender, log: log}
}

func (m *Mailer) deliver(ctx context.Context, kind string, msg Message) {
	id, err := m.sender.Send(ctx, msg)
	entry := m.log.WithFields(logrus.Fields{"email": kind, "to": msg.To})
	if err != nil {
		entry.WithError(err).Error("failed to send email")
		return
	}
	entry.WithField("messageId", id).Info("email sent")
}

func (m *Mailer) ReservationConfirmation(ctx context.Context, v ReservationEmail) {
	html, err := render(reservationTemplate, v)
	if err != nil {
		m.log.WithError(err).Error("render reservation email")
		return
	}
	m.deliver(ctx, "reservation_confirmation", Message{
		To: v.Email, ToName: v.Name, Subject: "Your helmet reservation for " + v.CourseName, HTML: html,
	})
}

func (m *Mailer) ReservationReminder(ctx context.Context, v ReservationEmail) {
	html, err := render(reminderTemplate, v)
	if err != nil {
		m.log.WithError(err).Error("render reminder email")
		return
	}
	m.deliver(ctx, "reservation_reminder", Message{
		To: v.Email, ToName: v.Name, Subject: "Reminder: " + v.CourseName + " starts soon", HTML: html,
	})
}

func (m *Mailer) BookingConfirmation(ctx context.Context, v BookingEmail) {
	html, err := render(bookingTemplate, v)
	if err != nil {
		m.log.WithError(err).Error("render booking email")
		return
	}
	m.deliver(ctx, "booking_confirmation", Message{
		To: v.Email, ToName: v.Name, Subject: "Booking confirmed: " + v.CourseName, HTML: html,
	})
}

func (m *Mailer) OfferConfirmation(ctx context.Context, v OfferEmail) {
	html, err := render(offerTemplate, v)
	if err != nil {
		m.log.WithError(err).Error("render offer email")
		return
	}
	m.deliver(ctx, "offer_confirmation", Message{
		To: v.Email, ToName: v.Name, Subject: "Your purchase: " + v.OfferTitle, HTML: html,
	})
}

func (m *Mailer) GiftCardDelivery(ctx context.Context, v GiftCardEmail) {
	html, err := render(giftCardTemplate, v)
	if err != nil {
		m.log.WithError(err).Error("render gift card email")
		return
	}
	m.deliver(ctx, "gift_card", Message{
		To: v.Email, Subject: "You received a gift card from " + v.From, HTML: html,
	})
}
