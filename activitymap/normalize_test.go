package activitymap_test

import (
	"context"
	"testing"
	"time"

	signin "github.com/goliatone/go-signin"
	"github.com/goliatone/go-signin/activitymap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSigninEvent(t *testing.T) {
	occurredAt := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	event := signin.ActivityEvent{
		EventType:  signin.ActivityEventNavigation,
		UserID:     "uid-1",
		FromStage:  signin.StageVerifying,
		ToStage:    signin.StageNeedsTotp,
		Metadata:   map[string]any{"to": "/signin_totp_code"},
		OccurredAt: occurredAt,
	}

	got := activitymap.Normalize(event)
	assert.Equal(t, "uid-1", got.ActorID)
	assert.Equal(t, "signin.navigation", got.Verb)
	assert.Equal(t, "account", got.ObjectType)
	assert.Equal(t, "uid-1", got.ObjectID)
	assert.Equal(t, "signin", got.Channel)
	assert.Equal(t, occurredAt, got.OccurredAt)
	assert.Equal(t, "/signin_totp_code", got.Metadata["to"])
	assert.Equal(t, "verifying", got.Metadata[activitymap.MetadataKeyFromStage])
	assert.Equal(t, "needs_totp", got.Metadata[activitymap.MetadataKeyToStage])

	got.Metadata["to"] = "changed"
	assert.Equal(t, "/signin_totp_code", event.Metadata["to"])
}

func TestNormalizeAnonymousFailure(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	got := activitymap.Normalize(signin.ActivityEvent{EventType: signin.ActivityEventSigninFailure},
		activitymap.WithClock(func() time.Time { return now }),
	)

	assert.Equal(t, "anonymous", got.ActorID)
	assert.Empty(t, got.ObjectID)
	assert.Nil(t, got.Metadata)
	assert.Equal(t, now, got.OccurredAt)
}

func TestNormalizeOptions(t *testing.T) {
	got := activitymap.Normalize(signin.ActivityEvent{
		EventType: signin.ActivityEventAccountCleared,
		Metadata:  map[string]any{"uid": "uid-7"},
	},
		activitymap.WithDefaultChannel(" audit "),
		activitymap.WithDefaultObjectType("stored_account"),
		activitymap.WithActorFallback("system"),
		activitymap.WithObjectIDResolver(func(e signin.ActivityEvent) string {
			uid, _ := e.Metadata["uid"].(string)
			return uid
		}),
	)

	assert.Equal(t, "audit", got.Channel)
	assert.Equal(t, "stored_account", got.ObjectType)
	assert.Equal(t, "system", got.ActorID)
	assert.Equal(t, "uid-7", got.ObjectID)
}

func TestSink(t *testing.T) {
	var records []activitymap.Normalized
	sink := activitymap.Sink(func(_ context.Context, n activitymap.Normalized) error {
		records = append(records, n)
		return nil
	}, activitymap.WithDefaultChannel("web"))

	require.NoError(t, sink.Record(context.Background(), signin.ActivityEvent{
		EventType: signin.ActivityEventSigninSuccess,
		UserID:    "uid-1",
	}))
	require.Len(t, records, 1)
	assert.Equal(t, "web", records[0].Channel)
	assert.Equal(t, "signin.success", records[0].Verb)

	assert.NoError(t, activitymap.Sink(nil).Record(context.Background(), signin.ActivityEvent{}))
}
