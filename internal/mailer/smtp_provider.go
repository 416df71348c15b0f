package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/jmehdipour/topic-notifier/internal/model"
	"github.com/wneessen/go-mail"
)

type SMTPOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	TLS      bool
	Timeout  time.Duration
}

// SMTPProvider submits emails to an SMTP server. A new client is built per
// send, so the provider is safe for concurrent use.
type SMTPProvider struct {
	name string
	host string
	opts []mail.Option
	br   *Breaker
}

func NewSMTPProvider(name string, o SMTPOptions, br *Breaker) *SMTPProvider {
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}

	opts := []mail.Option{mail.WithPort(o.Port), mail.WithTimeout(o.Timeout)}
	if o.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}
	if o.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(o.Username),
			mail.WithPassword(o.Password),
		)
	}

	return &SMTPProvider{name: name, host: o.Host, opts: opts, br: br}
}

func (p *SMTPProvider) Name() string  { return p.name }
func (p *SMTPProvider) Ready() bool   { return p.br.Ready() }
func (p *SMTPProvider) Acquire() bool { return p.br.Acquire() }

func (p *SMTPProvider) Send(ctx context.Context, e model.Email) error {
	msg, err := buildMessage(e)
	if err != nil {
		p.br.Release()
		return err
	}

	if err := p.send(ctx, msg); err != nil {
		p.br.Failure()
		return err
	}
	p.br.Success()
	return nil
}

func (p *SMTPProvider) send(ctx context.Context, msg *mail.Msg) error {
	c, err := mail.NewClient(p.host, p.opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := c.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("provider=%s: %w", p.name, err)
	}
	return nil
}

func buildMessage(e model.Email) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(e.From); err != nil {
		return nil, fmt.Errorf("from %q: %w: %w", e.From, ErrInvalidAddress, err)
	}
	if err := m.To(e.To); err != nil {
		return nil, fmt.Errorf("to %q: %w: %w", e.To, ErrInvalidAddress, err)
	}
	m.Subject(e.Subject)
	m.SetBodyString(mail.TypeTextHTML, e.HTML)
	return m, nil
}
