package handler

import (
	"context"
	"net/http"

	"github.com/forgo/atelier/internal/model"
)

// EmailSender delivers a message through the provider
type EmailSender interface {
	Send(ctx context.Context, msg *model.EmailMessage) (*model.EmailReceipt, error)
}

// EmailHandler proxies transactional email for staff
type EmailHandler struct {
	email EmailSender
}

// NewEmailHandler creates a new email handler
func NewEmailHandler(email EmailSender) *EmailHandler {
	return &EmailHandler{email: email}
}

// Send handles POST /v1/email/send
func (h *EmailHandler) Send(w http.ResponseWriter, r *http.Request) {
	var msg model.EmailMessage
	if !decodeValid(w, r, &msg) {
		return
	}

	receipt, err := h.email.Send(r.Context(), &msg)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteData(w, http.StatusOK, receipt, nil)
}
