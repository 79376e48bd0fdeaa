package chat_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	modelchat "github.com/zhouzirui/pulse-hr/backend/internal/model/chat"
	"github.com/zhouzirui/pulse-hr/backend/internal/model/companion"
	chat "github.com/zhouzirui/pulse-hr/backend/internal/service/chat"
	"github.com/zhouzirui/pulse-hr/backend/internal/simulator"
	"github.com/zhouzirui/pulse-hr/backend/internal/simulator/simtest"
)

func newService(t *testing.T) (*chat.Service, *simtest.ManualScheduler) {
	t.Helper()
	sched := simtest.NewManualScheduler()
	svc := chat.NewService(simulator.DefaultConfig(), companion.NewMemoryStore(companion.Seed()),
		chat.WithSeed(42),
		chat.WithSimulatorOptions(func(string) []simulator.Option {
			return []simulator.Option{simulator.WithScheduler(sched)}
		}))
	t.Cleanup(svc.Close)
	return svc, sched
}

func TestServiceGetSession(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, companion.DefaultID)
	require.NoError(t, err)

	got, err := svc.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)
	assert.Equal(t, companion.DefaultID, got.CompanionID)
}

func TestServiceGetSessionNotFound(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)
}

func TestServiceCreateSessionDefaultsCompanion(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, companion.DefaultID, session.CompanionID)

	transcript, err := svc.LoadTranscript(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, transcript, 1)
	assert.Equal(t, modelchat.RoleAssistant, transcript[0].Role)
	assert.Equal(t, companion.Seed()[0].Greeting, transcript[0].Content)
}

func TestServiceCreateSessionUnknownCompanion(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.CreateSession(context.Background(), "hal-9000")
	assert.ErrorIs(t, err, chat.ErrCompanionNotFound)
}

func TestServiceSubmitRoundTrip(t *testing.T) {
	svc, sched := newService(t)
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)

	msg, accepted, err := svc.Submit(ctx, session.ID, "I'm stressed")
	require.NoError(t, err)
	require.True(t, accepted)
	assert.Equal(t, session.ID, msg.SessionID)

	snap, err := svc.Snapshot(ctx, session.ID)
	require.NoError(t, err)
	assert.Len(t, snap.Transcript, 2)
	assert.True(t, snap.Pending)

	sched.Advance(simulator.DefaultReplyDelay)

	transcript, err := svc.LoadTranscript(ctx, session.ID)
	require.NoError(t, err)
	assert.Len(t, transcript, 3)

	metrics, err := svc.Metrics(ctx, session.ID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, metrics.Score, 60)
	assert.LessOrEqual(t, metrics.Score, 90)
}

func TestServiceSubmitBlankIsNotAccepted(t *testing.T) {
	svc, sched := newService(t)
	ctx := context.Background()
	session, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)

	_, accepted, err := svc.Submit(ctx, session.ID, "   ")
	require.NoError(t, err)
	assert.False(t, accepted)
	assert.Zero(t, sched.Pending())
}

func TestServiceCloseSessionCancelsPendingReply(t *testing.T) {
	svc, sched := newService(t)
	ctx := context.Background()
	session, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)

	_, _, err = svc.Submit(ctx, session.ID, "hello")
	require.NoError(t, err)
	require.NoError(t, svc.CloseSession(ctx, session.ID))

	assert.Zero(t, sched.Pending())
	assert.ErrorIs(t, svc.CloseSession(ctx, session.ID), chat.ErrSessionNotFound)
	_, _, err = svc.Submit(ctx, session.ID, "hello?")
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)
}

func TestServiceResetRestoresGreeting(t *testing.T) {
	svc, sched := newService(t)
	ctx := context.Background()
	session, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)

	_, _, _ = svc.Submit(ctx, session.ID, "hello")
	sched.Advance(simulator.DefaultReplyDelay)
	require.NoError(t, svc.Reset(ctx, session.ID))

	transcript, err := svc.LoadTranscript(ctx, session.ID)
	require.NoError(t, err)
	assert.Len(t, transcript, 1)

	metrics, err := svc.Metrics(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 75, metrics.Score)
}

func TestServiceCloseRejectsNewSessions(t *testing.T) {
	svc, _ := newService(t)
	svc.Close()

	_, err := svc.CreateSession(context.Background(), "")
	assert.ErrorIs(t, err, chat.ErrServiceClosed)
}

type personaResponder struct{ name string }

func (p personaResponder) Reply(context.Context, []modelchat.Message, modelchat.Message) (string, error) {
	return "reply from " + p.name, nil
}

func TestServiceResponderFollowsSessionCompanion(t *testing.T) {
	coach := companion.Companion{ID: "focus-coach", Name: "Focus Coach", Greeting: "Ready to plan your day?"}
	store := companion.NewMemoryStore(append(companion.Seed(), coach))
	sched := simtest.NewManualScheduler()

	var asked []string
	svc := chat.NewService(simulator.DefaultConfig(), store,
		chat.WithResponders(func(profile companion.Companion) simulator.Responder {
			asked = append(asked, profile.ID)
			if profile.ID == coach.ID {
				return personaResponder{name: profile.Name}
			}
			return nil
		}),
		chat.WithSimulatorOptions(func(string) []simulator.Option {
			return []simulator.Option{simulator.WithScheduler(sched)}
		}))
	t.Cleanup(svc.Close)
	ctx := context.Background()

	coached, err := svc.CreateSession(ctx, coach.ID)
	require.NoError(t, err)
	canned, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{coach.ID, companion.DefaultID}, asked)

	for _, id := range []string{coached.ID, canned.ID} {
		_, _, err := svc.Submit(ctx, id, "hello")
		require.NoError(t, err)
	}
	sched.Advance(simulator.DefaultReplyDelay)

	transcript, err := svc.LoadTranscript(ctx, coached.ID)
	require.NoError(t, err)
	require.Len(t, transcript, 3)
	assert.Equal(t, coach.Greeting, transcript[0].Content)
	assert.Equal(t, "reply from Focus Coach", transcript[2].Content)

	transcript, err = svc.LoadTranscript(ctx, canned.ID)
	require.NoError(t, err)
	require.Len(t, transcript, 3)
	assert.Contains(t, simulator.DefaultReplies, transcript[2].Content)
}
