package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tOgg1/scriptdeck/internal/events"
	"github.com/tOgg1/scriptdeck/internal/logging"
	"github.com/tOgg1/scriptdeck/internal/models"
	"github.com/tOgg1/scriptdeck/internal/store"
)

// Action names used in ActionError.Op and notifications.
const (
	ActionRun     = "run"
	ActionStop    = "stop"
	ActionSave    = "save"
	ActionDelete  = "delete"
	ActionRestart = "restart"
	ActionContent = "content"
)

// Steps of multi-call actions.
const (
	StepSaveContent = "save content"
	StepStop        = "stop"
	StepRun         = "run"
)

// Reconciler performs single-script actions and folds confirmed results
// back into the store. On failure the store is left untouched.
type Reconciler struct {
	client    ScriptClient
	store     *store.Store
	refresher Refresher
	publisher events.Publisher
	timeout   time.Duration
	logger    zerolog.Logger
}

// NewReconciler creates a Reconciler. timeout bounds each server call.
func NewReconciler(client ScriptClient, st *store.Store, refresher Refresher, pub events.Publisher, timeout time.Duration) *Reconciler {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Reconciler{
		client:    client,
		store:     st,
		refresher: refresher,
		publisher: pub,
		timeout:   timeout,
		logger:    logging.Component("reconciler"),
	}
}

// ToggleRun stops a running script and runs anything else. Scripts unknown
// to the store count as not running. It returns the action it issued.
func (r *Reconciler) ToggleRun(ctx context.Context, id int64) (string, error) {
	if r.isRunning(id) {
		return ActionStop, r.Stop(ctx, id)
	}
	return ActionRun, r.Run(ctx, id)
}

// Run starts a script.
func (r *Reconciler) Run(ctx context.Context, id int64) error {
	return r.runOrStop(ctx, ActionRun, id)
}

// Stop stops a script.
func (r *Reconciler) Stop(ctx context.Context, id int64) error {
	return r.runOrStop(ctx, ActionStop, id)
}

func (r *Reconciler) runOrStop(ctx context.Context, op string, id int64) error {
	script, err := r.call(ctx, op, id)
	if err != nil {
		return r.failed(ctx, &ActionError{Op: op, ScriptID: id, Err: err})
	}

	if usable(script, id) {
		r.store.Merge(ctx, *script)
	} else {
		r.refresh(ctx, op, id)
	}
	r.succeeded(ctx, op, id)
	return nil
}

// usable reports whether a run/stop response carries the script it was
// issued for. Anything else falls back to a re-fetch.
func usable(script *models.Script, id int64) bool {
	return script != nil && script.ID == id
}

func (r *Reconciler) call(ctx context.Context, op string, id int64) (*models.Script, error) {
	callCtx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	if op == ActionStop {
		return r.client.StopScript(callCtx, id)
	}
	return r.client.RunScript(callCtx, id)
}

// Save creates (id nil) or updates a script. Enabled is always forced on.
// The caller's fields are not modified, so a failed save keeps form input.
func (r *Reconciler) Save(ctx context.Context, id *int64, fields models.ScriptFields) (*models.Script, error) {
	var scriptID int64
	if id != nil {
		scriptID = *id
	}
	if err := fields.Validate(); err != nil {
		return nil, r.failed(ctx, &ActionError{Op: ActionSave, ScriptID: scriptID, Err: err})
	}

	payload := fields
	payload.Enabled = true

	callCtx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var (
		saved *models.Script
		err   error
	)
	if id == nil {
		saved, err = r.client.CreateScript(callCtx, payload)
	} else {
		saved, err = r.client.UpdateScript(callCtx, scriptID, payload)
	}
	if err != nil {
		return nil, r.failed(ctx, &ActionError{Op: ActionSave, ScriptID: scriptID, Err: err})
	}
	if saved != nil {
		scriptID = saved.ID
	}

	r.refresh(ctx, ActionSave, scriptID)
	r.succeeded(ctx, ActionSave, scriptID)
	return saved, nil
}

// Delete removes a script and re-fetches the collection.
func (r *Reconciler) Delete(ctx context.Context, id int64) error {
	callCtx, cancel := withTimeout(ctx, r.timeout)
	err := r.client.DeleteScript(callCtx, id)
	cancel()
	if err != nil {
		return r.failed(ctx, &ActionError{Op: ActionDelete, ScriptID: id, Err: err})
	}

	r.refresh(ctx, ActionDelete, id)
	r.succeeded(ctx, ActionDelete, id)
	return nil
}

// SaveAndRestart saves content, then stops the script if it was running and
// runs it. The first failing step aborts the rest. A script missing from the
// local collection only gets its content saved; restarted reports whether
// the stop/run steps were issued.
func (r *Reconciler) SaveAndRestart(ctx context.Context, id int64, content string) (restarted bool, err error) {
	current, known := r.store.Get(id)

	if err := r.putContent(ctx, id, content); err != nil {
		return false, r.failed(ctx, &ActionError{Op: ActionRestart, ScriptID: id, Step: StepSaveContent, Err: err})
	}
	if !known {
		r.refresh(ctx, ActionContent, id)
		r.succeeded(ctx, ActionContent, id)
		return false, nil
	}
	if current.IsRunning() {
		if _, err := r.call(ctx, ActionStop, id); err != nil {
			return false, r.failed(ctx, &ActionError{Op: ActionRestart, ScriptID: id, Step: StepStop, Err: err})
		}
	}
	if _, err := r.call(ctx, ActionRun, id); err != nil {
		return false, r.failed(ctx, &ActionError{Op: ActionRestart, ScriptID: id, Step: StepRun, Err: err})
	}

	r.refresh(ctx, ActionRestart, id)
	r.succeeded(ctx, ActionRestart, id)
	return true, nil
}

// LoadContent returns a script's source text.
func (r *Reconciler) LoadContent(ctx context.Context, id int64) (string, error) {
	callCtx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	content, err := r.client.GetContent(callCtx, id)
	if err != nil {
		return "", &ActionError{Op: ActionContent, ScriptID: id, Err: err}
	}
	return content, nil
}

// SaveContent overwrites a script's source text without restarting it.
func (r *Reconciler) SaveContent(ctx context.Context, id int64, content string) error {
	if err := r.putContent(ctx, id, content); err != nil {
		return r.failed(ctx, &ActionError{Op: ActionContent, ScriptID: id, Step: StepSaveContent, Err: err})
	}
	r.succeeded(ctx, ActionContent, id)
	return nil
}

func (r *Reconciler) putContent(ctx context.Context, id int64, content string) error {
	callCtx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	return r.client.PutContent(callCtx, id, content)
}

func (r *Reconciler) isRunning(id int64) bool {
	script, ok := r.store.Get(id)
	return ok && script.IsRunning()
}

// refresh re-fetches after a confirmed write. A failed re-fetch does not fail
// the action; the next poll catches up.
func (r *Reconciler) refresh(ctx context.Context, op string, id int64) {
	if r.refresher == nil {
		return
	}
	if err := r.refresher.FetchNow(ctx); err != nil {
		scriptLogger := logging.WithScript(r.logger, id)
		scriptLogger.Debug().Err(err).Str("action", op).Msg("re-fetch after action failed")
	}
}

func (r *Reconciler) succeeded(ctx context.Context, op string, id int64) {
	scriptLogger := logging.WithScript(r.logger, id)
	scriptLogger.Info().Str("action", op).Msg("action succeeded")
	r.publisher.Publish(ctx, &models.Event{
		Type:       models.EventTypeActionSucceeded,
		EntityType: models.EntityTypeScript,
		EntityID:   models.ScriptEntityID(id),
		Message:    op + " ok",
		Metadata:   map[string]string{"action": op},
	})
}

func (r *Reconciler) failed(ctx context.Context, err *ActionError) error {
	scriptLogger := logging.WithScript(r.logger, err.ScriptID)
	scriptLogger.Warn().Err(err.Err).Str("action", err.Op).Str("step", err.Step).Msg("action failed")
	r.publisher.Publish(ctx, &models.Event{
		Type:       models.EventTypeActionFailed,
		EntityType: models.EntityTypeScript,
		EntityID:   models.ScriptEntityID(err.ScriptID),
		Message:    err.Message(),
		Metadata:   map[string]string{"action": err.Op, "step": err.Step},
	})
	return err
}
