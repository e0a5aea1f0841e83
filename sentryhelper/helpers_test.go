package sentryhelper

import (
	"context"
	"testing"

	sentry "github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
)

func TestHubFromContextFallsBackToCurrentHub(t *testing.T) {
	assert.Same(t, sentry.CurrentHub(), HubFromContext(context.Background()))
}

func TestStartTransactionIsolatesHub(t *testing.T) {
	ctx, span := StartTransaction(context.Background(), "billy.start", "app.start", map[string]string{"port": "8080"})
	defer span.Finish()

	hub := HubFromContext(ctx)
	assert.NotSame(t, sentry.CurrentHub(), hub)
	assert.Equal(t, "8080", span.Tags["port"])

	detached := DetachFromTransaction(ctx)
	assert.Same(t, hub, HubFromContext(detached))
	assert.Nil(t, sentry.SpanFromContext(detached))
}

func TestHubFromGinStyleContext(t *testing.T) {
	hub := sentry.CurrentHub().Clone()
	ctx := sentry.SetHubOnContext(context.Background(), hub)
	assert.Same(t, hub, HubFromContext(ctx))
}
