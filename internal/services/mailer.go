package services

import (
	"fmt"
	"time"

	"gopkg.in/gomail.v2"
)

// Mailer delivers invitation notifications. Delivery failures never roll
// back the invitation record; the record is the source of truth and the
// mail can be resent.
type Mailer interface {
	SendInvitation(email, organizationName, token string, expiresAt time.Time) error
}

// SMTPMailer sends invitation mail through an SMTP relay.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPMailer creates a new SMTPMailer.
func NewSMTPMailer(host string, port int, username, password, from string) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

// SendInvitation emails the invitation link to the invitee.
func (m *SMTPMailer) SendInvitation(email, organizationName, token string, expiresAt time.Time) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", email)
	msg.SetHeader("Subject", fmt.Sprintf("You've been invited to join %s", organizationName))
	msg.SetBody("text/plain", fmt.Sprintf(
		"You have been invited to join %s.\n\nInvitation token: %s\n\nThis invitation expires at %s.\n",
		organizationName,
		token,
		expiresAt.Format(time.RFC1123),
	))

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send invitation mail: %w", err)
	}
	return nil
}
