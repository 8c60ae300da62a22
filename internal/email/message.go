package email

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/dukerupert/mailrelay/internal/domain"
)

// html/template escapes every interpolated value for the HTML context,
// including & < > and ".
var htmlBody = htmltemplate.Must(htmltemplate.New("contact_html").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; font-size: 14px;">
<h2>New contact form submission</h2>
<table cellpadding="4">
<tr><td><strong>Name</strong></td><td>{{.Name}}</td></tr>
<tr><td><strong>Email</strong></td><td>{{.Email}}</td></tr>
{{- if .Phone}}
<tr><td><strong>Phone</strong></td><td>{{.Phone}}</td></tr>
{{- end}}
</table>
<h3>Message</h3>
<p>{{range $i, $line := .Lines}}{{if $i}}<br>
{{end}}{{$line}}{{end}}</p>
</body>
</html>
`))

var textBody = texttemplate.Must(texttemplate.New("contact_text").Parse(`New contact form submission

Name:  {{.Name}}
Email: {{.Email}}
{{- if .Phone}}
Phone: {{.Phone}}
{{- end}}

Message:
{{.Text}}
`))

type bodyData struct {
	domain.Submission
	Lines []string
	Text  string
}

// Compose builds the relay message for a validated submission. The mailbox
// is both the sender and the only recipient; replies go to the submitter.
func Compose(sub domain.Submission, mailbox string) (*Message, error) {
	lines := strings.Split(strings.NewReplacer("\r\n", "\n", "\r", "\n").Replace(sub.Message), "\n")
	data := bodyData{
		Submission: sub,
		Lines:      lines,
		Text:       strings.Join(lines, "\n"),
	}

	var html bytes.Buffer
	if err := htmlBody.Execute(&html, data); err != nil {
		return nil, fmt.Errorf("failed to render html body: %w", err)
	}

	var text bytes.Buffer
	if err := textBody.Execute(&text, data); err != nil {
		return nil, fmt.Errorf("failed to render text body: %w", err)
	}

	name := headerSafe(sub.Name)
	addr := headerSafe(sub.Email)

	return &Message{
		From:            Address{Address: mailbox},
		To:              []Address{{Address: mailbox}},
		ReplyTo:         []Address{{Name: name, Address: addr}},
		Subject:         fmt.Sprintf("Website contact: %s <%s>", name, addr),
		HTMLBody:        html.String(),
		TextBody:        text.String(),
		SaveToSentItems: true,
	}, nil
}

// headerSafe strips line breaks so values cannot start new header lines.
func headerSafe(s string) string {
	return strings.Join(strings.Fields(strings.NewReplacer("\r", " ", "\n", " ").Replace(s)), " ")
}
