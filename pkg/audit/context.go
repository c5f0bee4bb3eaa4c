package audit

import "context"

// Actor identifies who performed an operation.
type Actor struct {
	ID        string `json:"id"`
	Email     string `json:"email,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

type (
	actorKey       struct{}
	transactionKey struct{}
	correlationKey struct{}
)

// WithActor stores the acting user in the context.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFromContext returns the acting user, if any.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok && (a.ID != "" || a.Email != "")
}

// WithTransactionID stores the transaction id correlating multi-step operations.
func WithTransactionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, transactionKey{}, id)
}

// TransactionIDFromContext returns the transaction id or an empty string.
func TransactionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(transactionKey{}).(string)
	return id
}

// WithCorrelationID stores the id correlating cross-service flows.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationIDFromContext returns the correlation id or an empty string.
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
