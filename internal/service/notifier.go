package service

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"log/slog"
	"strings"
	"time"

	"github.com/forgo/atelier/internal/model"
)

// EmailSender delivers a single message
type EmailSender interface {
	Send(ctx context.Context, msg *model.EmailMessage) (*model.EmailReceipt, error)
}

// Recipient is a person a notification is addressed to
type Recipient struct {
	Email string
	Name  string
}

// RecipientFromUser builds a recipient from a user account
func RecipientFromUser(u *model.User) Recipient {
	return Recipient{Email: u.Email, Name: u.DisplayName()}
}

// RecipientFromParticipation builds a recipient from the joined user fields.
// ok is false when the join did not carry an email.
func RecipientFromParticipation(p *model.Participation) (Recipient, bool) {
	if p.UserEmail == nil || *p.UserEmail == "" {
		return Recipient{}, false
	}
	name := ""
	if p.UserName != nil {
		name = *p.UserName
	}
	return Recipient{Email: *p.UserEmail, Name: name}, true
}

const layoutTemplate = `{{define "layout"}}<!doctype html>
<html><body style="font-family:sans-serif">
<p>Hello {{.Name}},</p>
{{template "body" .}}
<p><a href="{{.Link}}">{{.Workshop.Title}}</a><br>
{{.Starts}}{{with .Workshop.Location}}<br>{{.}}{{end}}</p>
</body></html>{{end}}`

var notificationTemplates = map[string]string{
	"registered": `{{define "body"}}<p>Your seat is confirmed.</p>{{end}}`,
	"promoted":   `{{define "body"}}<p>A seat opened up and you have been moved from the waiting list to the participants.</p>{{end}}`,
	"cancelled": `{{define "body"}}<p>This workshop has been cancelled.</p>
{{with .Reason}}<p>Reason: {{.}}</p>{{end}}{{end}}`,
	"reminder": `{{define "body"}}<p>Reminder: your workshop starts soon.</p>{{end}}`,
}

var notificationSubjects = map[string]string{
	"registered": "Registration confirmed: ",
	"promoted":   "You got a seat: ",
	"cancelled":  "Workshop cancelled: ",
	"reminder":   "Reminder: ",
}

type notificationData struct {
	Name     string
	Workshop *model.Workshop
	Starts   string
	Link     string
	Reason   string
}

// Notifier renders and sends the transactional workshop emails.
// Delivery errors are logged and never returned.
type Notifier struct {
	sender    EmailSender
	baseURL   string
	templates map[string]*template.Template
	logger    *slog.Logger
}

// NotifierConfig holds configuration for the notifier
type NotifierConfig struct {
	Sender        EmailSender
	PublicBaseURL string
	Logger        *slog.Logger
}

// NewNotifier parses the templates and creates a notifier
func NewNotifier(cfg NotifierConfig) *Notifier {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	layout := template.Must(template.New("layout").Parse(layoutTemplate))
	tmpls := make(map[string]*template.Template, len(notificationTemplates))
	for name, body := range notificationTemplates {
		tmpls[name] = template.Must(template.Must(layout.Clone()).Parse(body))
	}

	return &Notifier{
		sender:    cfg.Sender,
		baseURL:   strings.TrimRight(cfg.PublicBaseURL, "/"),
		templates: tmpls,
		logger:    logger,
	}
}

// RegistrationConfirmed tells a user their seat is confirmed
func (n *Notifier) RegistrationConfirmed(ctx context.Context, to Recipient, w *model.Workshop) {
	n.send(ctx, "registered", to, w, "")
}

// PromotedFromWaitlist tells a user they moved from the waiting list to a seat
func (n *Notifier) PromotedFromWaitlist(ctx context.Context, to Recipient, w *model.Workshop) {
	n.send(ctx, "promoted", to, w, "")
}

// WorkshopCancelled tells every recipient the workshop will not happen
func (n *Notifier) WorkshopCancelled(ctx context.Context, to []Recipient, w *model.Workshop, reason string) {
	for _, r := range to {
		n.send(ctx, "cancelled", r, w, reason)
	}
}

// Reminder tells a recipient the workshop starts soon
func (n *Notifier) Reminder(ctx context.Context, to Recipient, w *model.Workshop) {
	n.send(ctx, "reminder", to, w, "")
}

// Render builds the message for a template without sending it
func (n *Notifier) Render(name string, to Recipient, w *model.Workshop, reason string) (*model.EmailMessage, error) {
	tmpl, ok := n.templates[name]
	if !ok {
		return nil, errors.New("unknown notification template: " + name)
	}

	data := notificationData{
		Name:     to.Name,
		Workshop: w,
		Starts:   w.StartsAt.UTC().Format("Monday 2 January 2006, 15:04 MST"),
		Link:     n.baseURL + "/workshops/" + w.ID,
		Reason:   reason,
	}
	if data.Name == "" {
		data.Name = "there"
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return nil, err
	}
	html := buf.String()

	return &model.EmailMessage{
		To:      []string{to.Email},
		Subject: notificationSubjects[name] + w.Title,
		HTML:    &html,
	}, nil
}

func (n *Notifier) send(ctx context.Context, name string, to Recipient, w *model.Workshop, reason string) {
	if n == nil || n.sender == nil || to.Email == "" {
		return
	}

	msg, err := n.Render(name, to, w, reason)
	if err != nil {
		n.logger.Error("failed to render notification", "template", name, "error", err)
		return
	}

	// Detached from the request so a client disconnect does not drop the email
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()

	if _, err := n.sender.Send(sendCtx, msg); err != nil && !errors.Is(err, ErrEmailDisabled) {
		n.logger.Warn("notification not delivered",
			"template", name,
			"workshop_id", w.ID,
			"to", maskRecipients(msg.To),
			"error", err,
		)
	}
}
