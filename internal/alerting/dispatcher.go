package alerting

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"cruise-price-tracker/internal/logging"
	"cruise-price-tracker/internal/money"
	"cruise-price-tracker/internal/storage"
)

const (
	testSubject = "Cruise Price Tracker test alert"
	testBody    = "This is a test email confirming that price alerts are configured correctly."
)

// SubscriberSource 提供当前订阅邮箱。
type SubscriberSource interface {
	GetNotificationPreference(ctx context.Context) (*storage.NotificationPreference, error)
}

// Dispatcher 负责生成并投递价格变动邮件。mailer 为 nil 时视为未配置通道。
type Dispatcher struct {
	subscribers SubscriberSource
	mailer      Mailer
	logger      zerolog.Logger
}

// NewDispatcher 构造告警分发器。
func NewDispatcher(subscribers SubscriberSource, mailer Mailer, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		subscribers: subscribers,
		mailer:      mailer,
		logger:      logging.Component(logger, "alert_dispatcher"),
	}
}

// Configured 表示是否存在可用的邮件通道。
func (d *Dispatcher) Configured() bool {
	return d != nil && d.mailer != nil
}

// NotifyChange 在总价变化时通知订阅者。无订阅者或无通道时静默返回。
func (d *Dispatcher) NotifyChange(ctx context.Context, previous, current storage.Snapshot) error {
	pref, err := d.subscribers.GetNotificationPreference(ctx)
	if err != nil {
		return fmt.Errorf("load notification preference: %w", err)
	}
	if pref == nil || strings.TrimSpace(pref.Email) == "" {
		d.logger.Info().Msg("price changed but no notification email configured")
		return nil
	}
	if d.mailer == nil {
		d.logger.Warn().Msg("email provider not configured; skipping price change email")
		return nil
	}

	msg := BuildChangeMessage(previous, current)
	msg.To = pref.Email
	if err := d.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send price change email: %w", err)
	}

	d.logger.Info().
		Str("to", pref.Email).
		Str("subject", msg.Subject).
		Msg("price change email sent")
	return nil
}

// SendTest 发送固定的确认邮件。
func (d *Dispatcher) SendTest(ctx context.Context, recipient string) error {
	if d.mailer == nil {
		return ErrProviderNotConfigured
	}
	msg := Message{To: recipient, Subject: testSubject, Text: testBody}
	if err := d.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send test email: %w", err)
	}
	return nil
}

// Direction 返回总价变化方向与差额, 空值按零处理。
func Direction(previous, current storage.Snapshot) (string, string) {
	diff := money.OrZero(current.TotalPrice).Sub(money.OrZero(previous.TotalPrice))
	direction := "decreased"
	if diff.IsPositive() {
		direction = "increased"
	}
	return direction, money.Format(diff.Abs(), symbolFor(current))
}

func symbolFor(s storage.Snapshot) string {
	if s.CurrencyCode == nil {
		return money.DefaultSymbol
	}
	return money.Symbol(*s.CurrencyCode)
}
