package alerting

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/jordan-wright/email"
	"github.com/rs/zerolog"

	"cruise-price-tracker/internal/config"
	"cruise-price-tracker/internal/logging"
)

// Message 为一封待发送的邮件。
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer 定义邮件投递接口。
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Sender 描述发件人。
type Sender struct {
	Email string
	Name  string
}

func (s Sender) address() string {
	if s.Name == "" {
		return s.Email
	}
	return fmt.Sprintf("%s <%s>", s.Name, s.Email)
}

// NewMailer 根据配置选择投递通道。缺少凭据时返回 nil, 表示未配置。
func NewMailer(cfg config.AlertingConfig, logger zerolog.Logger) (Mailer, error) {
	from := Sender{Email: cfg.FromEmail, Name: cfg.FromName}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "sendgrid":
		if cfg.SendGrid.APIKey == "" {
			return nil, nil
		}
		return NewSendGridMailer(cfg.SendGrid.APIKey, cfg.SendGrid.BaseURL, from, cfg.Timeout, logger), nil
	case "smtp":
		if cfg.SMTP.Host == "" {
			return nil, nil
		}
		return NewSMTPMailer(cfg.SMTP, from, logger), nil
	default:
		return nil, fmt.Errorf("unsupported alerting provider %q", cfg.Provider)
	}
}

// SendGridMailer 通过 SendGrid v3 API 发送邮件。
type SendGridMailer struct {
	from   Sender
	client *resty.Client
	logger zerolog.Logger
}

// NewSendGridMailer 构造 SendGrid 投递器。
func NewSendGridMailer(apiKey, baseURL string, from Sender, timeout time.Duration, logger zerolog.Logger) *SendGridMailer {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.sendgrid.com"
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json")

	return &SendGridMailer{
		from:   from,
		client: client,
		logger: logging.Component(logger, "mailer_sendgrid"),
	}
}

type sendGridAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendGridPersonalization struct {
	To      []sendGridAddress `json:"to"`
	Subject string            `json:"subject"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendGridPayload struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridAddress           `json:"from"`
	Content          []sendGridContent         `json:"content"`
}

// Send 调用 /v3/mail/send。状态码 >= 400 视为失败。
func (m *SendGridMailer) Send(ctx context.Context, msg Message) error {
	payload := sendGridPayload{
		Personalizations: []sendGridPersonalization{{
			To:      []sendGridAddress{{Email: msg.To}},
			Subject: msg.Subject,
		}},
		From:    sendGridAddress{Email: m.from.Email, Name: m.from.Name},
		Content: []sendGridContent{{Type: "text/plain", Value: msg.Text}},
	}
	if msg.HTML != "" {
		payload.Content = append(payload.Content, sendGridContent{Type: "text/html", Value: msg.HTML})
	}

	resp, err := m.client.R().
		SetContext(ctx).
		SetBody(payload).
		Post("/v3/mail/send")
	if err != nil {
		return fmt.Errorf("send sendgrid request: %w", err)
	}
	if resp.StatusCode() >= 400 {
		m.logger.Error().Int("status", resp.StatusCode()).Str("body", resp.String()).Msg("sendgrid api error")
		return fmt.Errorf("sendgrid api error (%d): %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	m.logger.Info().Str("to", msg.To).Str("subject", msg.Subject).Msg("email sent (SendGrid)")
	return nil
}

// SMTPMailer 通过 SMTP 服务器发送邮件。
type SMTPMailer struct {
	cfg    config.SMTPConfig
	from   Sender
	logger zerolog.Logger
	send   func(addr string, auth smtp.Auth, e *email.Email) error
}

// NewSMTPMailer 构造 SMTP 投递器。
func NewSMTPMailer(cfg config.SMTPConfig, from Sender, logger zerolog.Logger) *SMTPMailer {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPMailer{
		cfg:    cfg,
		from:   from,
		logger: logging.Component(logger, "mailer_smtp"),
		send: func(addr string, auth smtp.Auth, e *email.Email) error {
			return e.Send(addr, auth)
		},
	}
}

// Send 投递邮件。服务器不支持 AUTH 时退回匿名发送。
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e := email.NewEmail()
	e.From = m.from.address()
	e.To = []string{msg.To}
	e.Subject = msg.Subject
	e.Text = []byte(msg.Text)
	if msg.HTML != "" {
		e.HTML = []byte(msg.HTML)
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	err := m.send(addr, auth, e)
	if err != nil && auth != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = m.send(addr, nil, e)
	}
	if err != nil {
		return fmt.Errorf("send smtp email: %w", err)
	}

	m.logger.Info().Str("to", msg.To).Str("subject", msg.Subject).Msg("email sent (SMTP)")
	return nil
}

// ErrProviderNotConfigured 表示没有可用的邮件通道。
var ErrProviderNotConfigured = errors.New("alerting: email provider not configured")

var (
	_ Mailer = (*SendGridMailer)(nil)
	_ Mailer = (*SMTPMailer)(nil)
)
