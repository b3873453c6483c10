package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"cruise-price-tracker/internal/storage"
)

// Latest returns the newest snapshot, or nil when none exist.
func (s *Service) Latest(ctx context.Context) (*storage.Snapshot, error) {
	snapshot, err := s.snapshots.LatestSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("latest snapshot: %w", err)
	}
	return snapshot, nil
}

// List returns up to limit snapshots, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]storage.Snapshot, error) {
	if limit < 1 {
		return nil, fmt.Errorf("%w: limit must be positive", ErrValidation)
	}
	snapshots, err := s.snapshots.ListRecentSnapshots(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return snapshots, nil
}

// NotificationEmail returns the configured subscriber, or nil.
func (s *Service) NotificationEmail(ctx context.Context) (*string, error) {
	if s.prefs == nil {
		return nil, nil
	}
	pref, err := s.prefs.GetNotificationPreference(ctx)
	if err != nil {
		return nil, fmt.Errorf("get notification email: %w", err)
	}
	if pref == nil || pref.Email == "" {
		return nil, nil
	}
	email := pref.Email
	return &email, nil
}

// SetNotificationEmail validates and stores the subscriber, replacing any previous one.
func (s *Service) SetNotificationEmail(ctx context.Context, email string) (string, error) {
	addr, err := ValidateEmail(email)
	if err != nil {
		return "", err
	}
	if s.prefs == nil {
		return "", fmt.Errorf("preference store not configured")
	}

	pref, err := s.prefs.UpsertNotificationEmail(ctx, addr)
	if err != nil {
		return "", fmt.Errorf("set notification email: %w", err)
	}
	s.logger.Info().Str("email", pref.Email).Msg("notification email updated")
	return pref.Email, nil
}

// SendTestNotification emails the subscriber a fixed confirmation message.
func (s *Service) SendTestNotification(ctx context.Context) error {
	email, err := s.NotificationEmail(ctx)
	if err != nil {
		return err
	}
	if email == nil {
		return ErrNoSubscriber
	}
	if s.notifier == nil {
		return fmt.Errorf("notifier not configured")
	}
	return s.notifier.SendTest(ctx, *email)
}

// ValidateEmail accepts a bare address such as "me@example.com" and returns it trimmed.
func ValidateEmail(email string) (string, error) {
	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return "", fmt.Errorf("%w: email is required", ErrValidation)
	}
	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Name != "" || addr.Address != trimmed || !qualifiedDomain(addr.Address) {
		return "", fmt.Errorf("%w: %q is not a valid email address", ErrValidation, trimmed)
	}
	return addr.Address, nil
}

// qualifiedDomain requires a dotted domain such as example.com. Single-label hosts and
// address literals are rejected.
func qualifiedDomain(address string) bool {
	at := strings.LastIndexByte(address, '@')
	if at < 0 {
		return false
	}
	labels := strings.Split(address[at+1:], ".")
	if len(labels) < 2 {
		return false
	}
	for _, label := range labels {
		if label == "" || strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return false
		}
		for _, r := range label {
			if !(r == '-' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r > 127) {
				return false
			}
		}
	}
	return true
}
