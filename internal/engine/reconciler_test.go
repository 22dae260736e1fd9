package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tOgg1/scriptdeck/internal/events"
	"github.com/tOgg1/scriptdeck/internal/models"
	"github.com/tOgg1/scriptdeck/internal/store"
)

func newTestReconciler(t *testing.T, client *fakeClient) (*Reconciler, *store.Store, *events.InMemoryPublisher) {
	t.Helper()
	pub := events.NewInMemoryPublisher()
	st := store.New(store.WithPublisher(pub))
	fetcher := NewFetcher(DefaultFetcherConfig(), client, st, pub)
	require.NoError(t, fetcher.FetchNow(context.Background()))
	return NewReconciler(client, st, fetcher, pub, 0), st, pub
}

func TestToggleRunAlternates(t *testing.T) {
	client := newFakeClient(script(1, "a", nil))
	r, st, _ := newTestReconciler(t, client)
	ctx := context.Background()

	op, err := r.ToggleRun(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, ActionRun, op)
	got, _ := st.Get(1)
	require.True(t, got.IsRunning())

	op, err = r.ToggleRun(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, ActionStop, op)
	got, _ = st.Get(1)
	require.Equal(t, models.StatusStopped, *got.LastStatus)

	require.Equal(t, []string{"run", "stop"}, client.callLog())
}

func TestToggleRunUnknownIDIssuesRun(t *testing.T) {
	client := newFakeClient()
	r, _, _ := newTestReconciler(t, client)

	op, err := r.ToggleRun(context.Background(), 42)
	require.Error(t, err)
	require.Equal(t, ActionRun, op)
}

func TestRunWithoutBodyRefetches(t *testing.T) {
	client := newFakeClient(script(1, "a", nil))
	client.noBody = true
	r, st, _ := newTestReconciler(t, client)
	before := client.listCalls

	require.NoError(t, r.Run(context.Background(), 1))
	require.Equal(t, before+1, client.listCalls)

	got, _ := st.Get(1)
	require.True(t, got.IsRunning())
}

func TestRunWithForeignBodyRefetches(t *testing.T) {
	client := newFakeClient(script(7, "a", models.StatusPtr(models.StatusStopped)))
	client.ackBody = true
	r, st, _ := newTestReconciler(t, client)
	before := client.listCalls

	op, err := r.ToggleRun(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, ActionRun, op)
	require.Equal(t, before+1, client.listCalls)

	_, phantom := st.Get(0)
	require.False(t, phantom)
	require.Equal(t, 1, st.Len())
	got, _ := st.Get(7)
	require.True(t, got.IsRunning())
}

func TestRunFailureLeavesStoreAndReportsDetail(t *testing.T) {
	client := newFakeClient(script(1, "a", nil))
	client.failRun[1] = detailErr("script file missing")
	r, st, pub := newTestReconciler(t, client)
	gen := st.Generation()

	var failed []*models.Event
	require.NoError(t, pub.Subscribe("t", events.Filter{EventTypes: []models.EventType{models.EventTypeActionFailed}}, func(e *models.Event) {
		failed = append(failed, e)
	}))

	err := r.Run(context.Background(), 1)
	require.Error(t, err)

	var actionErr *ActionError
	require.True(t, errors.As(err, &actionErr))
	require.Equal(t, ActionRun, actionErr.Op)
	require.Equal(t, "script file missing", actionErr.Detail())
	require.Equal(t, "run failed: script file missing", Message(err))
	require.Equal(t, gen, st.Generation())
	require.Len(t, failed, 1)
	require.Equal(t, "1", failed[0].EntityID)
}

func TestTransportFailureUsesGenericMessage(t *testing.T) {
	client := newFakeClient(script(1, "a", running()))
	client.failStop[1] = errors.New("dial tcp: connection refused")
	r, _, _ := newTestReconciler(t, client)

	err := r.Stop(context.Background(), 1)
	require.Error(t, err)
	require.Equal(t, "stop failed: could not reach the server", Message(err))
}

func TestSaveForcesEnabledAndKeepsCallerFields(t *testing.T) {
	client := newFakeClient()
	r, st, _ := newTestReconciler(t, client)

	fields := models.ScriptFields{Name: "nightly", Path: "nightly.sh", Enabled: false}
	saved, err := r.Save(context.Background(), nil, fields)
	require.NoError(t, err)
	require.NotNil(t, saved)

	require.False(t, fields.Enabled, "caller's fields are not modified")
	require.Len(t, client.created, 1)
	require.True(t, client.created[0].Enabled)

	got, ok := st.Get(saved.ID)
	require.True(t, ok, "save re-fetches the collection")
	require.True(t, got.Enabled)
}

func TestSaveValidatesRequiredFields(t *testing.T) {
	client := newFakeClient()
	r, _, _ := newTestReconciler(t, client)

	_, err := r.Save(context.Background(), nil, models.ScriptFields{Name: "x"})
	require.Error(t, err)
	require.True(t, errors.Is(err, models.ErrScriptPathRequired))
	require.Empty(t, client.callLog())
}

func TestSaveUpdateFailureReturnsError(t *testing.T) {
	client := newFakeClient()
	r, _, _ := newTestReconciler(t, client)
	id := int64(77)

	_, err := r.Save(context.Background(), &id, models.ScriptFields{Name: "x", Path: "x.sh"})
	require.Error(t, err)
	require.Equal(t, "save failed: Script not found", Message(err))
}

func TestDeleteRefetches(t *testing.T) {
	client := newFakeClient(script(1, "a", nil), script(2, "b", nil))
	r, st, _ := newTestReconciler(t, client)

	require.NoError(t, r.Delete(context.Background(), 1))
	_, ok := st.Get(1)
	require.False(t, ok)
	require.Equal(t, 1, st.Len())
}

func TestSaveAndRestart(t *testing.T) {
	t.Run("running script is stopped then run", func(t *testing.T) {
		client := newFakeClient(script(1, "a", running()))
		r, _, _ := newTestReconciler(t, client)

		restarted, err := r.SaveAndRestart(context.Background(), 1, "echo new")
		require.NoError(t, err)
		require.True(t, restarted)
		require.Equal(t, []string{"save content", "stop", "run"}, client.callLog())
		require.Equal(t, "echo new", client.content[1])
	})

	t.Run("idle script is only run", func(t *testing.T) {
		client := newFakeClient(script(1, "a", nil))
		r, _, _ := newTestReconciler(t, client)

		restarted, err := r.SaveAndRestart(context.Background(), 1, "echo new")
		require.NoError(t, err)
		require.True(t, restarted)
		require.Equal(t, []string{"save content", "run"}, client.callLog())
	})

	t.Run("script missing locally only saves content", func(t *testing.T) {
		client := newFakeClient(script(1, "a", nil))
		r, _, _ := newTestReconciler(t, client)

		restarted, err := r.SaveAndRestart(context.Background(), 42, "echo new")
		require.NoError(t, err)
		require.False(t, restarted)
		require.Equal(t, []string{"save content"}, client.callLog())
		require.Equal(t, "echo new", client.content[42])
	})

	t.Run("failing step aborts the rest", func(t *testing.T) {
		client := newFakeClient(script(1, "a", running()))
		client.failStop[1] = detailErr("process not found")
		r, _, _ := newTestReconciler(t, client)

		_, err := r.SaveAndRestart(context.Background(), 1, "echo new")
		require.Error(t, err)
		require.Equal(t, []string{"save content", "stop"}, client.callLog())

		var actionErr *ActionError
		require.True(t, errors.As(err, &actionErr))
		require.Equal(t, StepStop, actionErr.Step)
		require.Equal(t, "restart failed at stop: process not found", actionErr.Message())
	})

	t.Run("content failure stops before any process call", func(t *testing.T) {
		client := newFakeClient(script(1, "a", nil))
		client.failPut = detailErr("read-only filesystem")
		r, _, _ := newTestReconciler(t, client)

		_, err := r.SaveAndRestart(context.Background(), 1, "x")
		require.Error(t, err)
		require.Equal(t, []string{"save content"}, client.callLog())
		require.Contains(t, err.Error(), StepSaveContent)
	})
}

func TestContentRoundTrip(t *testing.T) {
	client := newFakeClient(script(1, "a", nil))
	r, _, _ := newTestReconciler(t, client)
	ctx := context.Background()

	require.NoError(t, r.SaveContent(ctx, 1, "print('hi')"))
	got, err := r.LoadContent(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "print('hi')", got)
}
