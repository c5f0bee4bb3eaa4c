package audit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	HeaderTransactionID = "X-Transaction-ID"
	HeaderCorrelationID = "X-Correlation-ID"

	TransactionPrefix = "txn"
	CorrelationPrefix = "corr"
)

const maxCorrelationIDLength = 128

// NewCorrelationID returns an id of the form <prefix>_<unix millis>_<random>.
func NewCorrelationID(prefix string) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return prefix + "_" + strconv.FormatInt(time.Now().UnixMilli(), 10) + "_" + random
}

// CorrelationMiddleware propagates inbound transaction and correlation ids,
// generating them when absent or malformed. Both ids are stored in the
// request context and echoed on the response.
func CorrelationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		txn := r.Header.Get(HeaderTransactionID)
		if !validCorrelationID(txn) {
			txn = NewCorrelationID(TransactionPrefix)
		}
		corr := r.Header.Get(HeaderCorrelationID)
		if !validCorrelationID(corr) {
			corr = NewCorrelationID(CorrelationPrefix)
		}

		w.Header().Set(HeaderTransactionID, txn)
		w.Header().Set(HeaderCorrelationID, corr)

		ctx := WithCorrelationID(WithTransactionID(r.Context(), txn), corr)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// validCorrelationID rejects ids that could break log lines or headers.
func validCorrelationID(id string) bool {
	if id == "" || len(id) > maxCorrelationIDLength {
		return false
	}
	for _, c := range id {
		if c < 0x21 || c > 0x7e {
			return false
		}
	}
	return true
}

// LoggerExtractor adds the correlation id to log records.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		if id := CorrelationIDFromContext(ctx); id != "" {
			return slog.String("correlation_id", id), true
		}
		return slog.Attr{}, false
	}
}
