package email

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/mailrelay/internal/domain"
)

type capturedRequest struct {
	Method      string
	Path        string
	Auth        string
	ContentType string
	Body        graphSendMail
}

func newGraphServer(t *testing.T, status int, respBody string) (*httptest.Server, *[]capturedRequest) {
	t.Helper()
	var (
		mu       sync.Mutex
		captured []capturedRequest
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var payload graphSendMail
		_ = json.Unmarshal(raw, &payload)

		mu.Lock()
		captured = append(captured, capturedRequest{
			Method:      r.Method,
			Path:        r.URL.Path,
			Auth:        r.Header.Get("Authorization"),
			ContentType: r.Header.Get("Content-Type"),
			Body:        payload,
		})
		mu.Unlock()

		w.WriteHeader(status)
		io.WriteString(w, respBody)
	}))
	t.Cleanup(srv.Close)

	return srv, &captured
}

func TestGraphSender_Send_Accepted(t *testing.T) {
	srv, captured := newGraphServer(t, http.StatusAccepted, "")
	sender := NewGraphSender(srv.URL+"/v1.0/", srv.Client())

	msg, err := Compose(janeDoe(), "contact@example.com")
	require.NoError(t, err)

	err = sender.Send(context.Background(), "token-123", msg)
	require.NoError(t, err)

	require.Len(t, *captured, 1)
	req := (*captured)[0]

	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/v1.0/users/contact@example.com/sendMail", req.Path)
	assert.Equal(t, "Bearer token-123", req.Auth)
	assert.Equal(t, "application/json", req.ContentType)

	assert.True(t, req.Body.SaveToSentItems)
	assert.Equal(t, "HTML", req.Body.Message.Body.ContentType)
	require.Len(t, req.Body.Message.ToRecipients, 1)
	assert.Equal(t, "contact@example.com", req.Body.Message.ToRecipients[0].EmailAddress.Address)
	require.Len(t, req.Body.Message.ReplyTo, 1)
	assert.Equal(t, "jane@example.com", req.Body.Message.ReplyTo[0].EmailAddress.Address)
	assert.Equal(t, "Jane Doe", req.Body.Message.ReplyTo[0].EmailAddress.Name)
}

func TestGraphSender_Send_EscapesMailboxInPath(t *testing.T) {
	srv, captured := newGraphServer(t, http.StatusAccepted, "")
	sender := NewGraphSender(srv.URL, srv.Client())

	msg := &Message{From: Address{Address: "team/contact?x@example.com"}, To: []Address{{Address: "a@example.com"}}}
	require.NoError(t, sender.Send(context.Background(), "tok", msg))

	require.Len(t, *captured, 1)
	assert.Equal(t, "/users/team/contact?x@example.com/sendMail", (*captured)[0].Path,
		"the decoded path keeps the mailbox as one segment")
}

func TestGraphSender_Send_Rejected(t *testing.T) {
	body := `{"error":{"code":"ErrorAccessDenied","message":"Access is denied. Check credentials and try again."}}`
	srv, _ := newGraphServer(t, http.StatusForbidden, body)
	sender := NewGraphSender(srv.URL, srv.Client())

	msg, err := Compose(janeDoe(), "contact@example.com")
	require.NoError(t, err)

	err = sender.Send(context.Background(), "token-123", msg)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.EDELIVERY))

	var derr *DeliveryError
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, http.StatusForbidden, derr.StatusCode)
	assert.Equal(t, "ErrorAccessDenied", derr.Code)
	assert.Contains(t, derr.Body, "Access is denied")
}

func TestGraphSender_Send_TruncatesLongErrorBody(t *testing.T) {
	srv, _ := newGraphServer(t, http.StatusInternalServerError, strings.Repeat("x", 5000))
	sender := NewGraphSender(srv.URL, srv.Client())

	err := sender.Send(context.Background(), "tok", &Message{From: Address{Address: "a@example.com"}})

	var derr *DeliveryError
	require.True(t, errors.As(err, &derr))
	assert.LessOrEqual(t, len(derr.Body), maxErrorBody+3)
	assert.Empty(t, derr.Code)
}

func TestGraphSender_Send_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(srv.Close)
	sender := NewGraphSender(srv.URL, srv.Client())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := sender.Send(ctx, "tok", &Message{From: Address{Address: "a@example.com"}})
	assert.True(t, domain.IsCode(err, domain.EDELIVERY))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGraphSender_Send_NoToken(t *testing.T) {
	sender := NewGraphSender("http://127.0.0.1:0", nil)

	err := sender.Send(context.Background(), "", &Message{From: Address{Address: "a@example.com"}})
	assert.True(t, domain.IsCode(err, domain.EINTERNAL))
}

func TestNewGraphSendMail_TextFallback(t *testing.T) {
	payload := newGraphSendMail(&Message{Subject: "s", TextBody: "plain"})

	assert.Equal(t, "Text", payload.Message.Body.ContentType)
	assert.Equal(t, "plain", payload.Message.Body.Content)
	assert.Nil(t, payload.Message.ReplyTo)
}
