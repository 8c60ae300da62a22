package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dukerupert/mailrelay/internal/domain"
)

// DefaultGraphAPIRoot is the Microsoft Graph v1.0 endpoint.
const DefaultGraphAPIRoot = "https://graph.microsoft.com/v1.0"

// GraphSender implements the Sender interface using the Graph sendMail API.
type GraphSender struct {
	apiRoot string
	client  *http.Client
}

type graphSendMail struct {
	Message         graphMessage `json:"message"`
	SaveToSentItems bool         `json:"saveToSentItems"`
}

type graphMessage struct {
	Subject      string           `json:"subject"`
	Body         graphBody        `json:"body"`
	ToRecipients []graphRecipient `json:"toRecipients"`
	ReplyTo      []graphRecipient `json:"replyTo,omitempty"`
}

type graphBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type graphRecipient struct {
	EmailAddress graphAddress `json:"emailAddress"`
}

type graphAddress struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

// NewGraphSender creates a sender for apiRoot. A nil client gets a 30s timeout;
// callers are expected to bound each send with a context deadline as well.
func NewGraphSender(apiRoot string, client *http.Client) *GraphSender {
	if apiRoot == "" {
		apiRoot = DefaultGraphAPIRoot
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &GraphSender{
		apiRoot: strings.TrimSuffix(apiRoot, "/"),
		client:  client,
	}
}

// Send posts msg to /users/{mailbox}/sendMail. A 2xx answer means the API
// accepted the message; it says nothing about delivery to the inbox.
func (g *GraphSender) Send(ctx context.Context, token string, msg *Message) error {
	const op = "graph.send"

	if token == "" {
		return domain.Internal(nil, op, "no bearer token for graph transport")
	}

	jsonData, err := json.Marshal(newGraphSendMail(msg))
	if err != nil {
		return domain.Internal(err, op, "failed to marshal sendMail payload")
	}

	endpoint := g.apiRoot + "/users/" + url.PathEscape(msg.From.Address) + "/sendMail"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return domain.Internal(err, op, "failed to create request")
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.Delivery(err, op, "sendMail request timed out")
		}
		return domain.Delivery(err, op, "sendMail request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return nil
	}

	// Best effort: a failed read must not hide the status.
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*maxErrorBody))
	return domain.Delivery(newDeliveryError(resp.StatusCode, body), op,
		fmt.Sprintf("mail API returned status %d", resp.StatusCode))
}

func newGraphSendMail(msg *Message) graphSendMail {
	contentType := "HTML"
	content := msg.HTMLBody
	if content == "" {
		contentType = "Text"
		content = msg.TextBody
	}

	return graphSendMail{
		Message: graphMessage{
			Subject:      msg.Subject,
			Body:         graphBody{ContentType: contentType, Content: content},
			ToRecipients: graphRecipients(msg.To),
			ReplyTo:      graphRecipients(msg.ReplyTo),
		},
		SaveToSentItems: msg.SaveToSentItems,
	}
}

func graphRecipients(addrs []Address) []graphRecipient {
	if len(addrs) == 0 {
		return nil
	}
	out := make([]graphRecipient, len(addrs))
	for i, a := range addrs {
		out[i] = graphRecipient{EmailAddress: graphAddress{Address: a.Address, Name: a.Name}}
	}
	return out
}
