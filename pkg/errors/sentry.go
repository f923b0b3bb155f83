package errors

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/richxcame/driver-agent/pkg/config"
)

// InitSentry initializes the Sentry SDK. Reporting stays disabled when no
// DSN is configured, so local development runs without a Sentry project.
func InitSentry(cfg config.SentryConfig) (bool, error) {
	if cfg.DSN == "" {
		return false, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		AttachStacktrace: true,
		BeforeBreadcrumb: func(breadcrumb *sentry.Breadcrumb, hint *sentry.BreadcrumbHint) *sentry.Breadcrumb {
			// Filter sensitive data from breadcrumbs
			if breadcrumb.Category == "http" && breadcrumb.Data != nil {
				delete(breadcrumb.Data, "Authorization")
				delete(breadcrumb.Data, "Cookie")
			}
			return breadcrumb
		},
	})
	if err != nil {
		return false, fmt.Errorf("failed to initialize sentry: %w", err)
	}

	return true, nil
}

// Flush flushes the Sentry buffer
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

// CaptureError captures an error and sends it to Sentry
func CaptureError(err error) *sentry.EventID {
	if err == nil {
		return nil
	}
	return sentry.CaptureException(err)
}

// CaptureErrorWithRide captures an error tagged with the ride request ID
func CaptureErrorWithRide(err error, requestID string) *sentry.EventID {
	if err == nil {
		return nil
	}

	var eventID *sentry.EventID
	sentry.WithScope(func(scope *sentry.Scope) {
		if requestID != "" {
			scope.SetTag("ride_request_id", requestID)
		}
		eventID = sentry.CaptureException(err)
	})
	return eventID
}
