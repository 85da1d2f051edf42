package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/forgo/atelier/internal/middleware"
	"github.com/forgo/atelier/internal/model"
)

// newJSONRequest builds a request with an optional JSON body and path values
func newJSONRequest(t *testing.T, method, target string, body any, pathValues map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range pathValues {
		req.SetPathValue(k, v)
	}
	return req
}

// asUser attaches an authenticated caller to the request
func asUser(req *http.Request, userID string, role model.UserRole) *http.Request {
	ctx := context.WithValue(req.Context(), middleware.UserIDKey, userID)
	ctx = context.WithValue(ctx, middleware.UserRoleKey, string(role))
	return req.WithContext(ctx)
}

// problemType returns the last path segment of the problem type in the body
func problemType(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var p model.ProblemDetails
	if err := json.Unmarshal(rr.Body.Bytes(), &p); err != nil {
		t.Fatalf("expected problem body, got %q", rr.Body.String())
	}
	return p.Type[strings.LastIndex(p.Type, "/")+1:]
}

// decodeData unmarshals the data envelope of a success response
func decodeData(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	envelope := struct {
		Data json.RawMessage `json:"data"`
	}{}
	if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, rr.Body.String())
	}
	if err := json.Unmarshal(envelope.Data, v); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}
