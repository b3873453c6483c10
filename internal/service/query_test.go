package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetNotificationEmail(t *testing.T) {
	store := &memStore{}
	svc := newTestService(store, nil)
	ctx := context.Background()

	email, err := svc.NotificationEmail(ctx)
	require.NoError(t, err)
	assert.Nil(t, email)

	got, err := svc.SetNotificationEmail(ctx, "  first@example.com ")
	require.NoError(t, err)
	assert.Equal(t, "first@example.com", got)

	_, err = svc.SetNotificationEmail(ctx, "second@example.com")
	require.NoError(t, err)

	email, err = svc.NotificationEmail(ctx)
	require.NoError(t, err)
	require.NotNil(t, email)
	assert.Equal(t, "second@example.com", *email)
}

func TestSetNotificationEmailRejectsInvalid(t *testing.T) {
	store := &memStore{}
	svc := newTestService(store, nil)
	ctx := context.Background()

	_, err := svc.SetNotificationEmail(ctx, "keep@example.com")
	require.NoError(t, err)

	for _, bad := range []string{"not-an-email", "", "   ", "Someone <someone@example.com>", "a@b@c", "a@b", "user@localhost", "user@example.", "user@.example.com", "user@[127.0.0.1]"} {
		_, err := svc.SetNotificationEmail(ctx, bad)
		assert.ErrorIs(t, err, ErrValidation, bad)
	}
	assert.Equal(t, 1, store.upserts, "rejected input never reaches storage")

	email, err := svc.NotificationEmail(ctx)
	require.NoError(t, err)
	assert.Equal(t, "keep@example.com", *email)
}

func TestValidateEmailAcceptsQualifiedDomains(t *testing.T) {
	for _, good := range []string{"me@example.com", " me@mail.example.co.uk ", "first.last+tag@sub-domain.example.org"} {
		got, err := ValidateEmail(good)
		require.NoError(t, err, good)
		assert.Equal(t, strings.TrimSpace(good), got)
	}
}

func TestSendTestNotification(t *testing.T) {
	store := &memStore{}
	notifier := &fakeNotifier{}
	svc := newTestService(store, notifier)
	ctx := context.Background()

	assert.ErrorIs(t, svc.SendTestNotification(ctx), ErrNoSubscriber)
	assert.Empty(t, notifier.tests)

	_, err := svc.SetNotificationEmail(ctx, "me@example.com")
	require.NoError(t, err)
	require.NoError(t, svc.SendTestNotification(ctx))
	assert.Equal(t, []string{"me@example.com"}, notifier.tests)

	notifier.testErr = errProvider
	assert.ErrorIs(t, svc.SendTestNotification(ctx), errProvider)
}
