package signin

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/hashid/pkg/hashid"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventSigninSuccess  ActivityEventType = "signin.success"
	ActivityEventSigninFailure  ActivityEventType = "signin.failure"
	ActivityEventCachedSignin   ActivityEventType = "signin.cached"
	ActivityEventNavigation     ActivityEventType = "signin.navigation"
	ActivityEventOAuthFailure   ActivityEventType = "signin.oauth.failure"
	ActivityEventAccountCleared ActivityEventType = "signin.account.cleared"
)

// ActivityEvent captures audit friendly information about a sign in step.
type ActivityEvent struct {
	EventType  ActivityEventType
	UserID     string
	FromStage  Stage
	ToStage    Stage
	Metadata   map[string]any
	OccurredAt time.Time
}

// MetadataKeyEmailDigest holds a stable, non reversible digest of the
// submitted email so failed attempts can be correlated without the address.
const MetadataKeyEmailDigest = "email_digest"

// EmailDigest returns the digest stored under MetadataKeyEmailDigest.
func EmailDigest(email string) string {
	if strings.TrimSpace(email) == "" {
		return ""
	}
	digest, err := hashid.New(email, hashid.WithHashAlgorithm(hashid.SHA256))
	if err != nil {
		return ""
	}
	return digest
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

func recordActivity(ctx context.Context, sink ActivitySink, logger Logger, now func() time.Time, event ActivityEvent) {
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = now()
	}
	if err := normalizeActivitySink(sink).Record(ctx, event); err != nil && logger != nil {
		logger.Warn("activity sink record error", "event", event.EventType, "error", err)
	}
}
