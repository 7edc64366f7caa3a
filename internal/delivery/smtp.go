package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"quire/internal/config"
)

const epubContentType = "application/epub+zip"

// SMTPChannel delivers over SMTP with PLAIN authentication. Port 465 uses
// implicit TLS; any other port requires STARTTLS.
type SMTPChannel struct {
	host     string
	port     int
	username string
	password string
	timeout  time.Duration
}

// NewSMTPChannel configures a channel from the mail settings.
func NewSMTPChannel(cfg *config.Config) *SMTPChannel {
	return &SMTPChannel{
		host:     cfg.Mail.Host,
		port:     cfg.Mail.Port,
		username: cfg.Mail.Sender,
		password: cfg.Mail.Password,
		timeout:  cfg.MailTimeout(),
	}
}

// Dial connects and authenticates.
func (c *SMTPChannel) Dial(ctx context.Context) (Conn, error) {
	opts := []mail.Option{
		mail.WithPort(c.port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(c.username),
		mail.WithPassword(c.password),
	}
	if c.port == 465 {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	}
	if c.timeout > 0 {
		opts = append(opts, mail.WithTimeout(c.timeout))
	}
	client, err := mail.NewClient(c.host, opts...)
	if err != nil {
		return nil, fmt.Errorf("configure smtp client: %w", err)
	}
	if err := client.DialWithContext(ctx); err != nil {
		return nil, fmt.Errorf("smtp dial %s:%d: %w", c.host, c.port, err)
	}
	return &smtpConn{client: client}, nil
}

type smtpConn struct {
	client *mail.Client
}

func (c *smtpConn) Send(_ context.Context, msg Message) error {
	m := mail.NewMsg()
	if err := m.From(msg.From); err != nil {
		return fmt.Errorf("%w: sender %q: %v", errInvalidAddress, msg.From, err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("%w: recipient %q: %v", errInvalidAddress, msg.To, err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	m.AttachFile(msg.AttachmentPath,
		mail.WithFileName(msg.AttachmentName),
		mail.WithFileContentType(mail.ContentType(epubContentType)),
	)
	return c.client.Send(m)
}

func (c *smtpConn) Close() error {
	return c.client.Close()
}
