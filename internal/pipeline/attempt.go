package pipeline

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/forgebuild/internal/foundation/errors"
	"git.home.luguber.info/inful/forgebuild/internal/logfields"
	"git.home.luguber.info/inful/forgebuild/internal/metrics"
	"git.home.luguber.info/inful/forgebuild/internal/observability"
)

// attempt tracks the stage of one build and emits per-stage logs and metrics.
type attempt struct {
	ctx       context.Context
	stage     Stage
	enteredAt time.Time
	recorder  metrics.Recorder
	now       func() time.Time
	history   []Stage
}

func newAttempt(ctx context.Context, buildID string, recorder metrics.Recorder, now func() time.Time) *attempt {
	a := &attempt{
		ctx:       observability.WithStage(observability.WithBuildID(ctx, buildID), StageStarted.String()),
		stage:     StageStarted,
		enteredAt: now(),
		recorder:  recorder,
		now:       now,
		history:   []Stage{StageStarted},
	}
	observability.DebugContext(a.ctx, "Build attempt started")
	return a
}

// advance moves the attempt to the next stage, closing out the current one.
func (a *attempt) advance(to Stage) error {
	if !a.stage.CanTransition(to) {
		return errors.InternalError("invalid build stage transition").
			WithContext("from", a.stage.String()).
			WithContext("to", to.String()).
			Build()
	}
	a.leave(metrics.ResultSuccess)
	a.enter(to)
	return nil
}

// abort ends the attempt in StageAborted and returns err unchanged.
func (a *attempt) abort(err error) error {
	if a.stage.Terminal() {
		return err
	}
	from := a.stage
	a.leave(metrics.ResultFatal)
	a.enter(StageAborted)
	observability.ErrorContext(a.ctx, "Build attempt aborted",
		slog.String("from_stage", from.String()),
		logfields.Error(err))
	return err
}

func (a *attempt) leave(result metrics.ResultLabel) {
	elapsed := a.now().Sub(a.enteredAt)
	a.recorder.ObserveStageDuration(a.stage.String(), elapsed)
	a.recorder.IncStageResult(a.stage.String(), result)
}

func (a *attempt) enter(s Stage) {
	a.stage = s
	a.enteredAt = a.now()
	a.history = append(a.history, s)
	a.ctx = observability.WithStage(a.ctx, s.String())
	observability.DebugContext(a.ctx, "Build stage entered")
}
