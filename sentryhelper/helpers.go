// Package sentryhelper provides utilities for Sentry transaction and scope management.
// It keeps breadcrumbs and context isolated per operation (an HTTP request, the
// startup sync, one imported file).
package sentryhelper

import (
	"context"

	sentry "github.com/getsentry/sentry-go"
)

// contextKey is used to store the cloned hub in context
type contextKey string

const hubContextKey contextKey = "sentry_hub"

// StartTransaction creates a new transaction with a cloned hub. The cloned hub
// ensures breadcrumbs and scope are isolated to this operation only.
// Returns the context with the transaction and hub, plus the transaction span.
func StartTransaction(ctx context.Context, name, operation string, tags map[string]string) (context.Context, *sentry.Span) {
	// Clone the hub to isolate scope (breadcrumbs, tags, user context)
	hub := HubFromContext(ctx).Clone()

	ctx = context.WithValue(ctx, hubContextKey, hub)
	ctx = sentry.SetHubOnContext(ctx, hub)

	transaction := sentry.StartTransaction(ctx, name,
		sentry.WithOpName(operation),
		sentry.WithTransactionSource(sentry.SourceTask),
	)
	for k, v := range tags {
		transaction.SetTag(k, v)
	}

	// Bind the transaction to the cloned hub's scope
	hub.Scope().SetSpan(transaction)

	return transaction.Context(), transaction
}

// HubFromContext retrieves the cloned hub from context, then the hub the gin
// middleware attached, then CurrentHub.
func HubFromContext(ctx context.Context) *sentry.Hub {
	if ctx == nil {
		return sentry.CurrentHub()
	}
	if hub, ok := ctx.Value(hubContextKey).(*sentry.Hub); ok && hub != nil {
		return hub
	}
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		return hub
	}
	return sentry.CurrentHub()
}

// AddBreadcrumb adds a breadcrumb to the hub in context.
func AddBreadcrumb(ctx context.Context, category, message string) {
	HubFromContext(ctx).AddBreadcrumb(&sentry.Breadcrumb{
		Category: category,
		Message:  message,
		Level:    sentry.LevelInfo,
	}, nil)
}

// CaptureException captures an exception on the hub in context.
func CaptureException(ctx context.Context, err error) *sentry.EventID {
	return HubFromContext(ctx).CaptureException(err)
}

// CaptureMessage captures a message on the hub in context.
// Use this for warnings or informational events that aren't errors.
func CaptureMessage(ctx context.Context, message string) *sentry.EventID {
	return HubFromContext(ctx).CaptureMessage(message)
}

// DetachFromTransaction creates a new context that preserves the cloned hub
// but removes the transaction association. Use this for background work that
// outlives the request that started it.
func DetachFromTransaction(ctx context.Context) context.Context {
	hub := HubFromContext(ctx)
	detached := context.WithValue(context.Background(), hubContextKey, hub)
	return sentry.SetHubOnContext(detached, hub)
}
