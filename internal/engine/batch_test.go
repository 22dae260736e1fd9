package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tOgg1/scriptdeck/internal/events"
	"github.com/tOgg1/scriptdeck/internal/store"
)

func newTestBatch(t *testing.T, client *fakeClient) (*BatchCoordinator, *store.Store, *Selection) {
	t.Helper()
	pub := events.NewInMemoryPublisher()
	st := store.New(store.WithPublisher(pub))
	fetcher := NewFetcher(DefaultFetcherConfig(), client, st, pub)
	require.NoError(t, fetcher.FetchNow(context.Background()))
	selection := NewSelection()
	b := NewBatchCoordinator(client, st, fetcher, selection, pub, 0)
	b.newID = func() string { return "corr-1" }
	return b, st, selection
}

func TestBatchRunEmptySelection(t *testing.T) {
	b, _, _ := newTestBatch(t, newFakeClient())
	_, err := b.Run(context.Background(), nil)
	require.ErrorIs(t, err, ErrEmptySelection)

	_, err = b.PlanDelete([]int64{})
	require.ErrorIs(t, err, ErrEmptySelection)
}

func TestBatchRunAppliesSuccessesDespiteFailures(t *testing.T) {
	client := newFakeClient(script(1, "a", nil), script(2, "b", nil), script(3, "c", nil), script(4, "d", nil))
	client.failRun[2] = detailErr("boom")
	client.failRun[4] = errors.New("timeout")
	b, st, selection := newTestBatch(t, client)

	selection.Enter()
	selection.SelectAll([]int64{4, 3, 2, 1})

	result, err := b.Run(context.Background(), selection.IDs())
	require.Error(t, err)
	require.True(t, result.Partial())
	require.Equal(t, []int64{1, 2, 3, 4}, result.Attempted)
	require.Equal(t, []int64{1, 3}, result.Succeeded)
	require.Equal(t, []int64{2, 4}, result.FailedIDs())
	require.Equal(t, "corr-1", result.CorrelationID)

	for _, id := range []int64{1, 3} {
		got, _ := st.Get(id)
		require.True(t, got.IsRunning(), "script %d should be merged", id)
	}
	for _, id := range []int64{2, 4} {
		got, _ := st.Get(id)
		require.False(t, got.IsRunning(), "script %d failed and must stay unchanged", id)
	}

	require.False(t, selection.Active())
	require.Zero(t, selection.Len())

	require.Equal(t, []string{"run", "run", "run", "run"}, client.callLog())
	for _, rid := range client.requestIDs {
		require.Equal(t, "corr-1", rid)
	}
	require.Contains(t, err.Error(), "script 2: ")
	require.Contains(t, err.Error(), "script 4: ")
}

func TestBatchRunMergesOnceAfterAllIDs(t *testing.T) {
	client := newFakeClient(script(1, "a", nil), script(2, "b", nil), script(3, "c", nil))
	b, st, _ := newTestBatch(t, client)
	gen := st.Generation()

	result, err := b.Run(context.Background(), []int64{3, 1, 2, 2})
	require.NoError(t, err)
	require.False(t, result.Partial())
	require.Equal(t, []int64{1, 2, 3}, result.Attempted)
	require.Equal(t, gen+1, st.Generation(), "one merge pass for the whole batch")
}

func TestBatchStopClearsSelectionOnTotalFailure(t *testing.T) {
	client := newFakeClient(script(1, "a", running()))
	client.failStop[1] = detailErr("nope")
	b, _, selection := newTestBatch(t, client)
	selection.Enter()
	selection.Toggle(1)

	result, err := b.Stop(context.Background(), selection.IDs())
	require.Error(t, err)
	require.False(t, result.Partial())
	require.Equal(t, "stop: all 1 failed", result.Summary())
	require.False(t, selection.Active())
}

func TestBatchDeletePartialFailureRefetches(t *testing.T) {
	client := newFakeClient(script(3, "three", nil), script(5, "five", nil), script(8, "eight", nil))
	client.failDelete[5] = detailErr("file locked")
	b, st, selection := newTestBatch(t, client)
	selection.Enter()
	selection.Toggle(3)
	selection.Toggle(5)

	plan, err := b.PlanDelete(selection.IDs())
	require.NoError(t, err)
	require.Equal(t, "Delete 2 scripts: three (#3), five (#5)? This cannot be undone.", plan.Prompt())

	result, err := b.ConfirmDelete(context.Background(), plan)
	require.Error(t, err)
	require.True(t, result.Partial())
	require.Equal(t, []int64{3}, result.Succeeded)
	require.Equal(t, []int64{5}, result.FailedIDs())

	_, ok := st.Get(3)
	require.False(t, ok, "3 removed via re-fetch")
	_, ok = st.Get(5)
	require.True(t, ok)
	_, ok = st.Get(8)
	require.True(t, ok)

	require.False(t, selection.Active())
	require.Equal(t, "delete: 1 succeeded, 1 failed (#5)", result.Summary())
}

func TestPlanDeleteNamesUnknownIDs(t *testing.T) {
	b, _, _ := newTestBatch(t, newFakeClient(script(1, "only", nil)))
	plan, err := b.PlanDelete([]int64{9, 1})
	require.NoError(t, err)
	require.Equal(t, []int64{1, 9}, plan.IDs())
	require.Equal(t, "Delete 2 scripts: only (#1), #9? This cannot be undone.", plan.Prompt())
}

func TestBatchRunWithoutBodiesRefetches(t *testing.T) {
	client := newFakeClient(script(1, "a", nil), script(2, "b", nil))
	client.noBody = true
	b, st, _ := newTestBatch(t, client)

	_, err := b.Run(context.Background(), []int64{1, 2})
	require.NoError(t, err)
	for _, id := range []int64{1, 2} {
		got, _ := st.Get(id)
		require.True(t, got.IsRunning())
	}
}

func TestBatchRunIgnoresForeignBodies(t *testing.T) {
	client := newFakeClient(script(1, "a", nil), script(2, "b", nil))
	client.ackBody = true
	b, st, _ := newTestBatch(t, client)

	_, err := b.Run(context.Background(), []int64{1, 2})
	require.NoError(t, err)
	require.Equal(t, 2, st.Len())
	_, phantom := st.Get(0)
	require.False(t, phantom)
	for _, id := range []int64{1, 2} {
		got, _ := st.Get(id)
		require.True(t, got.IsRunning())
	}
}

func TestBatchResultErrNilOnSuccess(t *testing.T) {
	result := BatchResult{Op: BatchRun, Attempted: []int64{1}, Succeeded: []int64{1}, Failed: map[int64]error{}}
	require.NoError(t, result.Err())
	require.Equal(t, "run: 1 of 1 succeeded", result.Summary())
}
