package sentry

import (
	"os"
	"time"

	sentry "github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const flushTimeout = 2 * time.Second

// Init configures the global client. An empty SENTRY_DSN leaves reporting
// disabled.
func Init() {
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              os.Getenv("SENTRY_DSN"),
		Release:          os.Getenv("RELEASE"),
		TracesSampleRate: 1.0,
	}); err != nil {
		log.Fatalf("sentry.Init: %s", err)
	}
	SetContext("billy", map[string]interface{}{
		"api_base": os.Getenv("BILLY_API_BASE"),
		"port":     os.Getenv("PORT"),
	})
}

func GetSentryGin() gin.HandlerFunc {
	return sentrygin.New(sentrygin.Options{Repanic: true})
}

func ReportError(err error) {
	sentry.CaptureException(err)
}

func SetContext(name string, value map[string]interface{}) {
	sentry.CurrentHub().ConfigureScope(func(scope *sentry.Scope) {
		scope.SetContext(name, value)
		scope.SetTag("release", os.Getenv("RELEASE"))
	})
}

func ReportMessage(message string) {
	sentry.CaptureMessage(message)
}

// ReportFatal captures err and flushes before the process exits.
func ReportFatal(err error) {
	sentry.CaptureException(err)
	sentry.Flush(flushTimeout)
}
