package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	mail "gopkg.in/mail.v2"

	"wisenews_scraper/internal/domain"
	"wisenews_scraper/internal/logger"
)

// Config is the SMTP account and the identities used on the digest.
type Config struct {
	Host       string
	Port       int
	Username   string
	Password   string
	SenderName string
	From       string
	To         string
}

// Sender is satisfied by *mail.Dialer.
type Sender interface {
	DialAndSend(m ...*mail.Message) error
}

// Mailer emails a keyword digest through SMTP.
type Mailer struct {
	cfg    Config
	sender Sender
	log    logger.Logger
}

func New(cfg Config, log logger.Logger) (*Mailer, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("smtp host is required")
	}
	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.Timeout = 30 * time.Second
	return NewWithSender(cfg, d, log)
}

// NewWithSender uses sender instead of dialing the configured host.
func NewWithSender(cfg Config, sender Sender, log logger.Logger) (*Mailer, error) {
	if cfg.From == "" || cfg.To == "" {
		return nil, errors.New("FROM_EMAIL and TO_EMAIL are required for smtp delivery")
	}
	return &Mailer{cfg: cfg, sender: sender, log: logger.Ensure(log)}, nil
}

// Notify sends digest as a text message with an HTML alternative.
func (m *Mailer) Notify(ctx context.Context, digest domain.Digest) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := m.Message(digest)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- m.sender.DialAndSend(msg) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send digest for %s: %w", digest.Keyword, err)
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	m.log.InfoObj("digest emailed", "mailer_send", map[string]any{
		"keyword":  digest.Keyword,
		"articles": len(digest.Articles),
		"to":       m.cfg.To,
	})
	return nil
}

// Message builds the mail for digest without sending it.
func (m *Mailer) Message(digest domain.Digest) (*mail.Message, error) {
	text, err := RenderText(digest)
	if err != nil {
		return nil, err
	}
	html, err := RenderHTML(digest)
	if err != nil {
		return nil, err
	}

	msg := mail.NewMessage()
	msg.SetAddressHeader("From", m.cfg.From, m.cfg.SenderName)
	msg.SetHeader("To", m.cfg.To)
	msg.SetHeader("Subject", Subject(digest))
	msg.SetBody("text/plain", text)
	msg.AddAlternative("text/html", html)
	return msg, nil
}

// Subject is the mail title followed by the keyword.
func Subject(d domain.Digest) string {
	if d.Keyword == "" {
		return d.Title
	}
	return d.Title + " - " + d.Keyword
}

var funcs = map[string]any{
	"add": func(i int) int { return i + 1 },
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.In(domain.HongKong).Format(time.DateOnly)
	},
}

var textTmpl = texttemplate.Must(texttemplate.New("digest.txt").Funcs(funcs).Parse(
	`{{.Title}}: {{len .Articles}} article(s) for "{{.Keyword}}"
{{range $i, $a := .Articles}}
{{add $i}}. {{$a.Heading}}
   {{$a.MetaData.Source}} | {{date $a.MetaData.PubDate}} | {{$a.MetaData.Section}}{{with $a.MetaData.Page}} | {{.}}{{end}}
   Document ID: {{$a.DocumentID}}

{{$a.Content}}
{{end}}`))

var htmlTmpl = htmltemplate.Must(htmltemplate.New("digest.html").Funcs(funcs).Parse(
	`<!DOCTYPE html>
<html><body>
<h2>{{.Title}}</h2>
<p>{{len .Articles}} article(s) for &quot;{{.Keyword}}&quot;</p>
{{range .Articles}}<div class="article">
<h3>{{.Heading}}</h3>
<p><b>{{.MetaData.Source}}</b> | {{date .MetaData.PubDate}} | {{.MetaData.Section}}{{with .MetaData.Page}} | {{.}}{{end}}<br>
<small>Document ID: {{.DocumentID}}</small></p>
<p>{{.Content}}</p>
</div>
{{end}}</body></html>
`))

// RenderText renders the plain text body.
func RenderText(d domain.Digest) (string, error) {
	var buf bytes.Buffer
	if err := textTmpl.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("render text digest: %w", err)
	}
	return buf.String(), nil
}

// RenderHTML renders the HTML alternative with every field escaped.
func RenderHTML(d domain.Digest) (string, error) {
	var buf bytes.Buffer
	if err := htmlTmpl.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("render html digest: %w", err)
	}
	return buf.String(), nil
}
