package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/forgo/atelier/internal/metrics"
	"github.com/forgo/atelier/internal/model"
	"github.com/google/uuid"
)

// maxProviderErrorBody caps how much of a provider error body is kept
const maxProviderErrorBody = 512

// EmailService is a thin proxy to a transactional email HTTP API
type EmailService struct {
	enabled    bool
	apiURL     string
	apiKey     string
	from       string
	httpClient *http.Client
	logger     *slog.Logger
}

// EmailServiceConfig holds configuration for the email service
type EmailServiceConfig struct {
	Enabled bool
	APIURL  string
	APIKey  string
	From    string
	Timeout time.Duration
	// HTTPClient overrides the default client (tests)
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewEmailService creates a new email service
func NewEmailService(cfg EmailServiceConfig) *EmailService {
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &EmailService{
		enabled:    cfg.Enabled,
		apiURL:     cfg.APIURL,
		apiKey:     cfg.APIKey,
		from:       cfg.From,
		httpClient: client,
		logger:     logger,
	}
}

// Enabled reports whether messages are actually delivered
func (s *EmailService) Enabled() bool {
	return s.enabled
}

type emailPayload struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    *string  `json:"html,omitempty"`
	Text    *string  `json:"text,omitempty"`
	ReplyTo *string  `json:"reply_to,omitempty"`
}

type emailProviderResponse struct {
	ID string `json:"id"`
}

// Send posts the message to the provider and returns its message id.
// There is no retry; every request carries a fresh Idempotency-Key.
func (s *EmailService) Send(ctx context.Context, msg *model.EmailMessage) (*model.EmailReceipt, error) {
	if !s.enabled {
		s.logger.Info("email disabled, dropping message",
			"to", maskRecipients(msg.To),
			"subject", msg.Subject,
		)
		metrics.EmailsSentTotal.WithLabelValues(metrics.EmailDisabled).Inc()
		return nil, ErrEmailDisabled
	}

	body, err := json.Marshal(emailPayload{
		From:    s.from,
		To:      msg.To,
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
		ReplyTo: msg.ReplyTo,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Idempotency-Key", uuid.NewString())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, s.fail(msg, fmt.Errorf("%w: %v", ErrEmailProvider, err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, s.fail(msg, fmt.Errorf("%w: read response: %v", ErrEmailProvider, err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := strings.TrimSpace(string(respBody))
		if len(detail) > maxProviderErrorBody {
			detail = detail[:maxProviderErrorBody]
		}
		return nil, s.fail(msg, fmt.Errorf("%w: status %d: %s", ErrEmailProvider, resp.StatusCode, detail))
	}

	var parsed emailProviderResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, s.fail(msg, fmt.Errorf("%w: decode response: %v", ErrEmailProvider, err))
	}

	metrics.EmailsSentTotal.WithLabelValues(metrics.EmailSent).Inc()
	return &model.EmailReceipt{MessageID: parsed.ID}, nil
}

func (s *EmailService) fail(msg *model.EmailMessage, err error) error {
	metrics.EmailsSentTotal.WithLabelValues(metrics.EmailFailed).Inc()
	s.logger.Error("email delivery failed",
		"to", maskRecipients(msg.To),
		"subject", msg.Subject,
		"error", err,
	)
	return err
}

// maskRecipients keeps the first character of each local part:
// "ada@example.com" becomes "a***@example.com"
func maskRecipients(to []string) string {
	masked := make([]string, len(to))
	for i, addr := range to {
		at := strings.LastIndex(addr, "@")
		if at <= 0 {
			masked[i] = "***"
			continue
		}
		masked[i] = addr[:1] + "***" + addr[at:]
	}
	return strings.Join(masked, ",")
}
