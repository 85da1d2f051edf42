package helpers

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/forgo/atelier/internal/database"
	"github.com/forgo/atelier/internal/model"
	"github.com/forgo/atelier/pkg/jwt"
)

// TokenHelper signs access tokens with a throwaway key
type TokenHelper struct {
	Service *jwt.Service
}

// NewTokenHelper creates a token helper backed by a fresh RSA key
func NewTokenHelper(t testing.TB) *TokenHelper {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("helpers: generate RSA key: %v", err)
	}
	return &TokenHelper{Service: jwt.NewTestService(key, "atelier-test", 15*time.Minute)}
}

// TokenFor signs a token carrying the user's id, email and role
func (h *TokenHelper) TokenFor(t testing.TB, user *model.User) string {
	t.Helper()

	claims := jwt.Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   string(user.Role),
	}
	if user.Username != nil {
		claims.Username = *user.Username
	}
	token, err := h.Service.Sign(claims)
	if err != nil {
		t.Fatalf("helpers: sign token: %v", err)
	}
	return token
}

// RequestBuilder assembles JSON requests for handler tests
type RequestBuilder struct {
	t       testing.TB
	method  string
	path    string
	body    any
	headers map[string]string
	tokens  *TokenHelper
	user    *model.User
}

// NewRequest starts a request builder
func NewRequest(t testing.TB, method, path string) *RequestBuilder {
	t.Helper()
	return &RequestBuilder{
		t:       t,
		method:  method,
		path:    path,
		headers: make(map[string]string),
	}
}

// WithBody sets a body that is JSON encoded on Build
func (rb *RequestBuilder) WithBody(body any) *RequestBuilder {
	rb.body = body
	return rb
}

// WithHeader adds a request header
func (rb *RequestBuilder) WithHeader(key, value string) *RequestBuilder {
	rb.headers[key] = value
	return rb
}

// WithAuth sends a bearer token for user
func (rb *RequestBuilder) WithAuth(tokens *TokenHelper, user *model.User) *RequestBuilder {
	rb.tokens = tokens
	rb.user = user
	return rb
}

// Build creates the request
func (rb *RequestBuilder) Build() *http.Request {
	rb.t.Helper()

	var body io.Reader
	if rb.body != nil {
		raw, err := json.Marshal(rb.body)
		if err != nil {
			rb.t.Fatalf("helpers: marshal body: %v", err)
		}
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(rb.method, rb.path, body)
	if rb.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range rb.headers {
		req.Header.Set(k, v)
	}
	if rb.tokens != nil && rb.user != nil {
		req.Header.Set("Authorization", "Bearer "+rb.tokens.TokenFor(rb.t, rb.user))
	}
	return req
}

// AssertStatus checks the response status code
func AssertStatus(t testing.TB, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Errorf("status = %d, want %d. Body: %s", rr.Code, want, rr.Body.String())
	}
}

// AssertProblem checks for a problem+json body with the given status and
// type slug (the last segment of the type URI)
func AssertProblem(t testing.TB, rr *httptest.ResponseRecorder, status int, slug string) *model.ProblemDetails {
	t.Helper()

	AssertStatus(t, rr, status)

	var problem model.ProblemDetails
	if err := json.Unmarshal(rr.Body.Bytes(), &problem); err != nil {
		t.Fatalf("decode problem details: %v. Body: %s", err, rr.Body.String())
	}
	if got := problem.Type[strings.LastIndex(problem.Type, "/")+1:]; got != slug {
		t.Errorf("problem type = %q, want %q", got, slug)
	}
	return &problem
}

// AssertValidationError checks for a 422 carrying an error on field
func AssertValidationError(t testing.TB, rr *httptest.ResponseRecorder, field string) {
	t.Helper()

	AssertStatus(t, rr, http.StatusUnprocessableEntity)

	var problem model.ProblemDetails
	if err := json.Unmarshal(rr.Body.Bytes(), &problem); err != nil {
		t.Fatalf("decode problem details: %v", err)
	}
	for _, fe := range problem.Errors {
		if fe.Field == field {
			return
		}
	}
	t.Errorf("no validation error on %q. Errors: %+v", field, problem.Errors)
}

// DecodeData unmarshals the "data" member of a success envelope
func DecodeData[T any](t testing.TB, rr *httptest.ResponseRecorder) T {
	t.Helper()

	var envelope struct {
		Data T `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v. Body: %s", err, rr.Body.String())
	}
	return envelope.Data
}

// AssertRecordExists checks that id (with or without its table prefix)
// exists in table
func AssertRecordExists(t testing.TB, db database.Database, table, id string) {
	t.Helper()
	if !recordExists(t, db, table, id) {
		t.Errorf("expected record %s:%s to exist", table, bareID(id))
	}
}

// AssertRecordNotExists is the inverse of AssertRecordExists
func AssertRecordNotExists(t testing.TB, db database.Database, table, id string) {
	t.Helper()
	if recordExists(t, db, table, id) {
		t.Errorf("expected record %s:%s to be gone", table, bareID(id))
	}
}

func recordExists(t testing.TB, db database.Database, table, id string) bool {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := db.QueryOne(ctx, "SELECT * FROM type::record($table, $id)", map[string]interface{}{
		"table": table,
		"id":    bareID(id),
	})
	switch {
	case err == nil:
		return true
	case errors.Is(err, database.ErrNotFound):
		return false
	default:
		t.Fatalf("helpers: query %s: %v", table, err)
		return false
	}
}

func bareID(id string) string {
	if _, after, ok := strings.Cut(id, ":"); ok {
		return after
	}
	return id
}

// Ptr returns a pointer to v
func Ptr[T any](v T) *T {
	return &v
}
