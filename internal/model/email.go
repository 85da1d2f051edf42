package model

import (
	"net/mail"
	"strings"
)

// Email constraints
const (
	MaxEmailRecipients    = 50
	MaxEmailSubjectLength = 250
	MaxEmailBodyLength    = 200_000
)

// EmailMessage is a transactional email handed to the provider
type EmailMessage struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    *string  `json:"html,omitempty"`
	Text    *string  `json:"text,omitempty"`
	ReplyTo *string  `json:"reply_to,omitempty"`
}

// Validate checks if the message can be sent
func (m *EmailMessage) Validate() []FieldError {
	var errors []FieldError

	if len(m.To) == 0 {
		errors = append(errors, FieldError{Field: "to", Message: "at least one recipient is required"})
	} else if len(m.To) > MaxEmailRecipients {
		errors = append(errors, FieldError{Field: "to", Message: "at most 50 recipients are allowed"})
	}
	for _, addr := range m.To {
		if _, err := mail.ParseAddress(addr); err != nil {
			errors = append(errors, FieldError{Field: "to", Message: "invalid recipient '" + addr + "'"})
			break
		}
	}
	if strings.TrimSpace(m.Subject) == "" {
		errors = append(errors, FieldError{Field: "subject", Message: "subject is required"})
	} else if len(m.Subject) > MaxEmailSubjectLength {
		errors = append(errors, FieldError{Field: "subject", Message: "subject must be 250 characters or less"})
	}
	if (m.HTML == nil || *m.HTML == "") && (m.Text == nil || *m.Text == "") {
		errors = append(errors, FieldError{Field: "html", Message: "html or text body is required"})
	}
	if (m.HTML != nil && len(*m.HTML) > MaxEmailBodyLength) || (m.Text != nil && len(*m.Text) > MaxEmailBodyLength) {
		errors = append(errors, FieldError{Field: "html", Message: "body is too large"})
	}
	if m.ReplyTo != nil && *m.ReplyTo != "" {
		if _, err := mail.ParseAddress(*m.ReplyTo); err != nil {
			errors = append(errors, FieldError{Field: "reply_to", Message: "reply_to must be a valid email address"})
		}
	}

	return errors
}

// EmailReceipt is the provider's acknowledgement of a sent message
type EmailReceipt struct {
	MessageID string `json:"message_id"`
}
