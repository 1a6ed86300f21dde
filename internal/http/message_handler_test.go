package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"messenger/internal/config"
	"messenger/internal/domain"
	"messenger/internal/repository"
	"messenger/internal/service"
)

type failingRepo struct {
	err error
}

func (f failingRepo) Create(context.Context, domain.Message) (domain.Message, error) {
	return domain.Message{}, f.err
}

func (f failingRepo) List(context.Context, domain.MessageFilter) ([]domain.Message, error) {
	return nil, f.err
}

func (f failingRepo) MarkRead(context.Context, int64) (domain.Message, error) {
	return domain.Message{}, f.err
}

func (f failingRepo) Ping(context.Context) error {
	return f.err
}

func newTestRouter(repo repository.MessageRepository, limiter service.SendRateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	svc := service.NewMessageService(logger, repo, limiter)
	return NewRouter(logger, NewMessageHandler(logger, svc))
}

func postJSON(t *testing.T, r http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func getMessages(t *testing.T, r http.Handler, query url.Values) (*httptest.ResponseRecorder, []domain.Message) {
	t.Helper()
	path := "/messages/"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var out []domain.Message
	if rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode list: %v (body=%s)", err, rec.Body.String())
		}
	}
	return rec, out
}

func seed(t *testing.T, r http.Handler, sender, recipient string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		rec := postJSON(t, r, "/messages/send/", map[string]string{
			"sender":          sender,
			"recipient":       recipient,
			"message_content": fmt.Sprintf("text %d", i),
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("seed: expected 201, got %d (%s)", rec.Code, rec.Body.String())
		}
	}
}

func TestSendMessage_Created(t *testing.T) {
	repo := repository.NewMemoryMessageRepository()
	r := newTestRouter(repo, nil)

	rec := postJSON(t, r, "/messages/send/", map[string]string{
		"sender":          "austin",
		"recipient":       "claire",
		"message_content": "hello there",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{"id", "sender", "recipient", "message_content", "sent_datetime", "is_read"} {
		if _, ok := body[key]; !ok {
			t.Fatalf("expected field %q in response %v", key, body)
		}
	}
	if body["is_read"] != false {
		t.Fatalf("expected is_read=false, got %v", body["is_read"])
	}

	austin := "austin"
	claire := "claire"
	stored, _ := repo.List(context.Background(), domain.MessageFilter{Sender: &austin, Recipient: &claire})
	if len(stored) != 1 {
		t.Fatalf("expected 1 stored message, got %d", len(stored))
	}
}

func TestSendMessage_IgnoresClientControlledFields(t *testing.T) {
	r := newTestRouter(repository.NewMemoryMessageRepository(), nil)

	rec := postJSON(t, r, "/messages/send/", map[string]any{
		"id":              42,
		"sender":          "austin",
		"recipient":       "claire",
		"message_content": "hi",
		"is_read":         true,
		"sent_datetime":   "2001-01-01T00:00:00Z",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var msg domain.Message
	if err := json.Unmarshal(rec.Body.Bytes(), &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.ID != 1 || msg.IsRead || msg.SentDatetime.Year() == 2001 {
		t.Fatalf("expected store-assigned fields, got %+v", msg)
	}
}

func TestSendMessage_BadRequest(t *testing.T) {
	cases := []struct {
		name string
		body map[string]string
	}{
		{"missing sender", map[string]string{"sender": "", "recipient": "claire", "message_content": "hi"}},
		{"missing recipient", map[string]string{"sender": "claire", "recipient": "", "message_content": "hi"}},
		{"missing text", map[string]string{"sender": "claire", "recipient": "claire", "message_content": ""}},
		{"absent fields", map[string]string{}},
		{"null byte in text", map[string]string{"sender": "claire", "recipient": "ben", "message_content": "hi\x00there"}},
		{"null byte in sender", map[string]string{"sender": "cla\x00ire", "recipient": "ben", "message_content": "hi"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			repo := repository.NewMemoryMessageRepository()
			r := newTestRouter(repo, nil)

			rec := postJSON(t, r, "/messages/send/", c.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			all, _ := repo.List(context.Background(), domain.MessageFilter{})
			if len(all) != 0 {
				t.Fatalf("expected no message created, got %d", len(all))
			}
		})
	}
}

func TestSendMessage_MalformedJSON(t *testing.T) {
	r := newTestRouter(repository.NewMemoryMessageRepository(), nil)

	req := httptest.NewRequest(http.MethodPost, "/messages/send/", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

type denyAll struct{}

func (denyAll) Allow(context.Context, string) (bool, error) { return false, nil }

func TestSendMessage_RateLimited(t *testing.T) {
	r := newTestRouter(repository.NewMemoryMessageRepository(), denyAll{})

	rec := postJSON(t, r, "/messages/send/", map[string]string{
		"sender": "austin", "recipient": "claire", "message_content": "hi",
	})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
}

func TestSendMessage_DefaultConfigAcceptsBurst(t *testing.T) {
	for _, key := range []string{"SEND_RATE_MAX", "SEND_RATE_WINDOW"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	repo := repository.NewMemoryMessageRepository()
	r := newTestRouter(repo, service.NewSendRateLimiter(cfg.SendRateWindow, cfg.SendRateMax))

	seed(t, r, "alice", "ben", 150)

	alice := "alice"
	stored, _ := repo.List(context.Background(), domain.MessageFilter{Sender: &alice})
	if len(stored) != 150 {
		t.Fatalf("expected 150 stored messages, got %d", len(stored))
	}
}

func TestSendMessage_StoreFailure(t *testing.T) {
	r := newTestRouter(failingRepo{err: errors.New("db down")}, nil)

	rec := postJSON(t, r, "/messages/send/", map[string]string{
		"sender": "austin", "recipient": "claire", "message_content": "hi",
	})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("db down")) {
		t.Fatalf("store error details must not leak to clients")
	}
}

func TestListMessages_LimitAndFilters(t *testing.T) {
	r := newTestRouter(repository.NewMemoryMessageRepository(), nil)
	seed(t, r, "molly", "ben", 50)
	seed(t, r, "alice", "molly", 50)
	seed(t, r, "alice", "ben", 50)

	rec, all := getMessages(t, r, nil)
	if rec.Code != http.StatusOK || len(all) != 100 {
		t.Fatalf("expected 200 with 100 messages, got %d with %d", rec.Code, len(all))
	}

	cases := []struct {
		name  string
		query url.Values
		want  int
	}{
		{"recipient", url.Values{"recipient": {"molly"}}, 50},
		{"sender capped", url.Values{"sender": {"alice"}}, 100},
		{"sender and recipient", url.Values{"sender": {"alice"}, "recipient": {"molly"}}, 50},
		{"unread for recipient", url.Values{"recipient": {"ben"}, "is_read": {"false"}}, 100},
		{"read", url.Values{"is_read": {"true"}}, 0},
		{"unknown sender", url.Values{"sender": {"nobody"}}, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec, out := getMessages(t, r, c.query)
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rec.Code)
			}
			if len(out) != c.want {
				t.Fatalf("expected %d messages, got %d", c.want, len(out))
			}
		})
	}
}

func TestListMessages_EmptyIsJSONArray(t *testing.T) {
	r := newTestRouter(repository.NewMemoryMessageRepository(), nil)

	req := httptest.NewRequest(http.MethodGet, "/messages/", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || string(bytes.TrimSpace(rec.Body.Bytes())) != "[]" {
		t.Fatalf("expected 200 with [], got %d %q", rec.Code, rec.Body.String())
	}
}

func TestListMessages_InvalidIsRead(t *testing.T) {
	r := newTestRouter(repository.NewMemoryMessageRepository(), nil)

	rec, _ := getMessages(t, r, url.Values{"is_read": {"maybe"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestListMessages_StoreFailure(t *testing.T) {
	r := newTestRouter(failingRepo{err: errors.New("db down")}, nil)

	rec, _ := getMessages(t, r, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestMarkRead(t *testing.T) {
	r := newTestRouter(repository.NewMemoryMessageRepository(), nil)
	seed(t, r, "molly", "ben", 2)

	rec := postJSON(t, r, "/messages/1/read/", map[string]string{})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	_, unread := getMessages(t, r, url.Values{"recipient": {"ben"}, "is_read": {"false"}})
	if len(unread) != 1 || unread[0].ID != 2 {
		t.Fatalf("expected only message 2 unread, got %+v", unread)
	}

	if rec := postJSON(t, r, "/messages/99/read/", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := postJSON(t, r, "/messages/abc/read/", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	r := newTestRouter(repository.NewMemoryMessageRepository(), nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	r = newTestRouter(failingRepo{err: errors.New("db down")}, nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	r := newTestRouter(repository.NewMemoryMessageRepository(), nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if got := rec.Header().Get(requestIDHeader); got != "req-123" {
		t.Fatalf("expected propagated request id, got %q", got)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected generated request id")
	}
}
