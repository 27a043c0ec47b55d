package observability

import (
	"time"

	"github.com/getsentry/sentry-go"
)

// InitSentry initializes crash reporting. An empty DSN disables it.
func InitSentry(dsn, environment string) error {
	if dsn == "" {
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: true,
	})
}

// FlushSentry drains pending events; call it on shutdown.
func FlushSentry() {
	sentry.Flush(2 * time.Second)
}
