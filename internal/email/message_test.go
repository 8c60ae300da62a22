package email

import (
	"html"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/mailrelay/internal/domain"
)

func janeDoe() domain.Submission {
	return domain.Submission{
		Name:    "Jane Doe",
		Email:   "jane@example.com",
		Message: "Hello",
	}
}

func TestCompose_Addressing(t *testing.T) {
	msg, err := Compose(janeDoe(), "contact@example.com")
	require.NoError(t, err)

	assert.Equal(t, "contact@example.com", msg.From.Address)
	assert.Equal(t, []Address{{Address: "contact@example.com"}}, msg.To)
	assert.Equal(t, []Address{{Name: "Jane Doe", Address: "jane@example.com"}}, msg.ReplyTo)
	assert.True(t, msg.SaveToSentItems)
	assert.Contains(t, msg.Subject, "Jane Doe")
	assert.Contains(t, msg.Subject, "jane@example.com")
}

func TestCompose_EscapesUserInput(t *testing.T) {
	sub := janeDoe()
	sub.Message = `<script>&"</script>`
	sub.Name = `<b>Jane</b>`

	msg, err := Compose(sub, "contact@example.com")
	require.NoError(t, err)

	assert.NotContains(t, msg.HTMLBody, "<script>")
	assert.NotContains(t, msg.HTMLBody, "</script>")
	assert.NotContains(t, msg.HTMLBody, "<b>Jane</b>")
	assert.Contains(t, msg.HTMLBody, "&lt;script&gt;&amp;&#34;&lt;/script&gt;")
	assert.Contains(t, msg.HTMLBody, "&lt;b&gt;Jane&lt;/b&gt;")
}

func TestCompose_MessageLineBreaks(t *testing.T) {
	sub := janeDoe()
	sub.Message = "first line\r\nsecond line\nthird\rfourth"

	msg, err := Compose(sub, "contact@example.com")
	require.NoError(t, err)

	assert.Contains(t, msg.HTMLBody, "first line<br>")
	assert.Contains(t, msg.HTMLBody, "second line<br>")
	assert.Contains(t, msg.HTMLBody, "third<br>")
	assert.Contains(t, msg.TextBody, "first line\nsecond line\nthird\nfourth")
	assert.NotContains(t, msg.TextBody, "\r")
}

func TestCompose_PhoneIsOptional(t *testing.T) {
	msg, err := Compose(janeDoe(), "contact@example.com")
	require.NoError(t, err)
	assert.NotContains(t, msg.HTMLBody, "Phone")
	assert.NotContains(t, msg.TextBody, "Phone")

	sub := janeDoe()
	sub.Phone = "+1 555 0100"
	msg, err = Compose(sub, "contact@example.com")
	require.NoError(t, err)
	// html/template escapes the plus sign
	assert.Contains(t, msg.HTMLBody, "&#43;1 555 0100")
	assert.Contains(t, html.UnescapeString(msg.HTMLBody), "<td>+1 555 0100</td>")
	assert.Contains(t, msg.TextBody, "Phone: +1 555 0100")
}

func TestCompose_SubjectHasNoLineBreaks(t *testing.T) {
	sub := janeDoe()
	sub.Name = "Jane\r\nBcc: victim@example.com"

	msg, err := Compose(sub, "contact@example.com")
	require.NoError(t, err)

	assert.False(t, strings.ContainsAny(msg.Subject, "\r\n"))
	assert.False(t, strings.ContainsAny(msg.ReplyTo[0].Name, "\r\n"))
	assert.Equal(t, "Jane Bcc: victim@example.com", msg.ReplyTo[0].Name)
}
