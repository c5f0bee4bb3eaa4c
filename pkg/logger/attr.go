package logger

import (
	"log/slog"
	"strconv"
	"time"
)

// Error returns an "error" attribute, or an empty one for a nil error.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Errors groups the non-nil errors under "errors" keyed by position.
func Errors(errs ...error) slog.Attr {
	attrs := make([]any, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			attrs = append(attrs, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(attrs) == 0 {
		return slog.Attr{}
	}
	return slog.Group("errors", attrs...)
}

func TenantID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("tenant_id", id)
}

func CorrelationID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("correlation_id", id)
}

// Action is the audited action.
func Action(action string) slog.Attr {
	return slog.String("action", action)
}

// Entity groups an audited entity type and id.
func Entity(entityType, entityID string) slog.Attr {
	return slog.Group("entity", slog.String("type", entityType), slog.String("id", entityID))
}

func Count(n int) slog.Attr {
	return slog.Int("count", n)
}

func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Component names the subsystem writing the record.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}
