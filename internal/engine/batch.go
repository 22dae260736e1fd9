package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tOgg1/scriptdeck/internal/api"
	"github.com/tOgg1/scriptdeck/internal/events"
	"github.com/tOgg1/scriptdeck/internal/logging"
	"github.com/tOgg1/scriptdeck/internal/models"
	"github.com/tOgg1/scriptdeck/internal/store"
)

// BatchOp is the operation applied across a selection.
type BatchOp string

const (
	BatchRun    BatchOp = "run"
	BatchStop   BatchOp = "stop"
	BatchDelete BatchOp = "delete"
)

// BatchResult is the per-id outcome of a batch.
type BatchResult struct {
	Op            BatchOp
	CorrelationID string
	Attempted     []int64
	Succeeded     []int64
	Failed        map[int64]error
}

// Partial reports whether some but not all ids failed.
func (r BatchResult) Partial() bool {
	return len(r.Failed) > 0 && len(r.Succeeded) > 0
}

// FailedIDs returns the failed ids in ascending order.
func (r BatchResult) FailedIDs() []int64 {
	ids := make([]int64, 0, len(r.Failed))
	for id := range r.Failed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Err joins every per-id failure, or returns nil when all succeeded.
func (r BatchResult) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failed))
	for _, id := range r.FailedIDs() {
		errs = append(errs, fmt.Errorf("script %d: %w", id, r.Failed[id]))
	}
	return errors.Join(errs...)
}

// Summary is a one-line operator-facing outcome.
func (r BatchResult) Summary() string {
	switch {
	case len(r.Failed) == 0:
		return fmt.Sprintf("%s: %d of %d succeeded", r.Op, len(r.Succeeded), len(r.Attempted))
	case len(r.Succeeded) == 0:
		return fmt.Sprintf("%s: all %d failed", r.Op, len(r.Attempted))
	default:
		return fmt.Sprintf("%s: %d succeeded, %d failed (%s)", r.Op, len(r.Succeeded), len(r.Failed), joinIDs(r.FailedIDs()))
	}
}

// DeletePlanItem names one script a delete will remove.
type DeletePlanItem struct {
	ID   int64
	Name string
	// Known is false when the id is not in the local collection.
	Known bool
}

// Label renders the item as "name (#id)" or "#id".
func (i DeletePlanItem) Label() string {
	if !i.Known || i.Name == "" {
		return "#" + strconv.FormatInt(i.ID, 10)
	}
	return fmt.Sprintf("%s (#%d)", i.Name, i.ID)
}

// DeletePlan is the confirmation step of a batch delete.
type DeletePlan struct {
	Items []DeletePlanItem
}

// IDs returns the ids to delete in ascending order.
func (p DeletePlan) IDs() []int64 {
	ids := make([]int64, len(p.Items))
	for i, item := range p.Items {
		ids[i] = item.ID
	}
	return ids
}

// Prompt is the confirmation question naming every affected script.
func (p DeletePlan) Prompt() string {
	labels := make([]string, len(p.Items))
	for i, item := range p.Items {
		labels[i] = item.Label()
	}
	noun := "scripts"
	if len(p.Items) == 1 {
		noun = "script"
	}
	return fmt.Sprintf("Delete %d %s: %s? This cannot be undone.", len(p.Items), noun, strings.Join(labels, ", "))
}

// BatchCoordinator applies one operation across a set of ids, one id at a
// time in ascending order. A failing id never stops the rest.
type BatchCoordinator struct {
	client    ScriptClient
	store     *store.Store
	refresher Refresher
	selection *Selection
	publisher events.Publisher
	timeout   time.Duration
	logger    zerolog.Logger
	newID     func() string
}

// NewBatchCoordinator creates a BatchCoordinator. timeout bounds each
// per-id call.
func NewBatchCoordinator(client ScriptClient, st *store.Store, refresher Refresher, selection *Selection, pub events.Publisher, timeout time.Duration) *BatchCoordinator {
	if pub == nil {
		pub = events.Nop{}
	}
	if selection == nil {
		selection = NewSelection()
	}
	return &BatchCoordinator{
		client:    client,
		store:     st,
		refresher: refresher,
		selection: selection,
		publisher: pub,
		timeout:   timeout,
		logger:    logging.Component("batch"),
		newID:     uuid.NewString,
	}
}

// Run starts every script in ids.
func (b *BatchCoordinator) Run(ctx context.Context, ids []int64) (BatchResult, error) {
	return b.runOrStop(ctx, BatchRun, ids)
}

// Stop stops every script in ids.
func (b *BatchCoordinator) Stop(ctx context.Context, ids []int64) (BatchResult, error) {
	return b.runOrStop(ctx, BatchStop, ids)
}

func (b *BatchCoordinator) runOrStop(ctx context.Context, op BatchOp, ids []int64) (BatchResult, error) {
	ordered := normalizeIDs(ids)
	if len(ordered) == 0 {
		return BatchResult{Op: op}, ErrEmptySelection
	}

	result, ctx, logger := b.begin(ctx, op, ordered)
	accumulator := make(map[int64]models.Script, len(ordered))
	needsRefresh := false

	for _, id := range ordered {
		callCtx, cancel := withTimeout(ctx, b.timeout)
		var (
			script *models.Script
			err    error
		)
		if op == BatchStop {
			script, err = b.client.StopScript(callCtx, id)
		} else {
			script, err = b.client.RunScript(callCtx, id)
		}
		cancel()

		if err != nil {
			scriptLogger := logging.WithScript(logger, id)
			scriptLogger.Warn().Err(err).Msg("batch step failed")
			result.Failed[id] = err
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
		if usable(script, id) {
			accumulator[id] = *script
		} else {
			needsRefresh = true
		}
	}

	// One merge pass after every id was attempted.
	if len(accumulator) > 0 {
		merged := make([]models.Script, 0, len(accumulator))
		for _, id := range ordered {
			if script, ok := accumulator[id]; ok {
				merged = append(merged, script)
			}
		}
		b.store.Merge(ctx, merged...)
	}
	if needsRefresh {
		b.refresh(ctx, logger)
	}

	return b.complete(ctx, result, logger)
}

// PlanDelete names every script a delete of ids would remove.
func (b *BatchCoordinator) PlanDelete(ids []int64) (DeletePlan, error) {
	ordered := normalizeIDs(ids)
	if len(ordered) == 0 {
		return DeletePlan{}, ErrEmptySelection
	}
	plan := DeletePlan{Items: make([]DeletePlanItem, 0, len(ordered))}
	for _, id := range ordered {
		item := DeletePlanItem{ID: id}
		if script, ok := b.store.Get(id); ok {
			item.Name = script.Name
			item.Known = true
		}
		plan.Items = append(plan.Items, item)
	}
	return plan, nil
}

// ConfirmDelete deletes every script in the plan and then re-fetches; the
// store is never patched optimistically.
func (b *BatchCoordinator) ConfirmDelete(ctx context.Context, plan DeletePlan) (BatchResult, error) {
	ordered := normalizeIDs(plan.IDs())
	if len(ordered) == 0 {
		return BatchResult{Op: BatchDelete}, ErrEmptySelection
	}

	result, ctx, logger := b.begin(ctx, BatchDelete, ordered)
	for _, id := range ordered {
		callCtx, cancel := withTimeout(ctx, b.timeout)
		err := b.client.DeleteScript(callCtx, id)
		cancel()
		if err != nil {
			scriptLogger := logging.WithScript(logger, id)
			scriptLogger.Warn().Err(err).Msg("batch step failed")
			result.Failed[id] = err
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
	}

	b.refresh(ctx, logger)
	return b.complete(ctx, result, logger)
}

func (b *BatchCoordinator) begin(ctx context.Context, op BatchOp, ids []int64) (BatchResult, context.Context, zerolog.Logger) {
	correlationID := b.newID()
	logger := logging.WithBatch(b.logger, string(op), correlationID)
	logger.Info().Int("count", len(ids)).Msg("batch starting")

	result := BatchResult{
		Op:            op,
		CorrelationID: correlationID,
		Attempted:     ids,
		Failed:        make(map[int64]error),
	}
	return result, api.WithRequestID(ctx, correlationID), logger
}

func (b *BatchCoordinator) complete(ctx context.Context, result BatchResult, logger zerolog.Logger) (BatchResult, error) {
	b.selection.Exit()

	logger.Info().
		Int("succeeded", len(result.Succeeded)).
		Int("failed", len(result.Failed)).
		Msg("batch completed")

	b.publisher.Publish(ctx, &models.Event{
		Type:       models.EventTypeBatchCompleted,
		EntityType: models.EntityTypeBatch,
		EntityID:   result.CorrelationID,
		Message:    result.Summary(),
		Metadata: map[string]string{
			"op":        string(result.Op),
			"succeeded": strconv.Itoa(len(result.Succeeded)),
			"failed":    strconv.Itoa(len(result.Failed)),
		},
	})
	return result, result.Err()
}

func (b *BatchCoordinator) refresh(ctx context.Context, logger zerolog.Logger) {
	if b.refresher == nil {
		return
	}
	if err := b.refresher.FetchNow(ctx); err != nil {
		logger.Debug().Err(err).Msg("re-fetch after batch failed")
	}
}

func normalizeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = "#" + strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ", ")
}
