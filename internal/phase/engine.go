package phase

import (
	"context"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/devflow/internal/record"
	"github.com/fyrsmithlabs/devflow/internal/session"
)

const instrumentationName = "github.com/fyrsmithlabs/devflow/internal/phase"

// RecordStore is the slice of the session store the engine needs.
type RecordStore interface {
	Load(ctx context.Context, id string) (*session.Session, error)
	WriteField(ctx context.Context, id, key, value string) error
	AppendHistory(ctx context.Context, id, phase, action, result string) error
}

// Engine applies phase transitions to session records. Each method is one
// turn's worth of work: load, validate, write the few fields that changed,
// append one history row.
type Engine struct {
	records RecordStore
	logger  *zap.Logger
	tracer  trace.Tracer
}

// NewEngine creates a phase engine on top of a session store.
func NewEngine(records RecordStore, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		records: records,
		logger:  logger,
		tracer:  otel.Tracer(instrumentationName),
	}
}

// Complete records a phase's success signal: it sets the phase's owning
// condition flag (monotonically), appends a history row, and advances
// current_phase along the happy path. It returns the phase the session is
// now in; completing finalize returns finalize itself and leaves the session
// eligible for archival.
func (e *Engine) Complete(ctx context.Context, sessionID string, p Phase) (Phase, error) {
	ctx, span := e.tracer.Start(ctx, "phase.complete")
	defer span.End()
	span.SetAttributes(attribute.String("session_id", sessionID), attribute.String("phase", string(p)))

	sess, err := e.records.Load(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if sess.Progress.CurrentPhase != string(p) {
		return "", fmt.Errorf("%w: session is in %s, not %s",
			ErrPhaseMismatch, sess.Progress.CurrentPhase, p)
	}

	if flag, ok := OwningFlag(p); ok {
		if err := e.records.WriteField(ctx, sessionID, flag, "true"); err != nil {
			return "", err
		}
	}

	if err := e.records.AppendHistory(ctx, sessionID, string(p), "completed", "gate passed"); err != nil {
		return "", err
	}

	next, ok := Next(p)
	if !ok {
		// finalize: terminal, nothing to enter.
		e.logger.Info("workflow complete", zap.String("session_id", sessionID))
		return p, nil
	}

	if err := e.enter(ctx, sessionID, next); err != nil {
		return "", err
	}

	e.logger.Info("phase completed",
		zap.String("session_id", sessionID),
		zap.String("phase", string(p)),
		zap.String("next", string(next)),
	)
	return next, nil
}

// Fail records a phase's failure signal and applies its rollback edge. The
// loop counter increments exactly when the rollback target is dev: that is
// the "apply recorded feedback delta" signal the next dev entry keys off.
//
// review-final failures require a category; an unmapped category surfaces
// *AmbiguousRollbackError without touching the record.
func (e *Engine) Fail(ctx context.Context, sessionID string, p Phase, category FailureCategory) (Phase, error) {
	ctx, span := e.tracer.Start(ctx, "phase.fail")
	defer span.End()
	span.SetAttributes(
		attribute.String("session_id", sessionID),
		attribute.String("phase", string(p)),
		attribute.String("category", string(category)),
	)

	sess, err := e.records.Load(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if sess.Progress.CurrentPhase != string(p) {
		return "", fmt.Errorf("%w: session is in %s, not %s",
			ErrPhaseMismatch, sess.Progress.CurrentPhase, p)
	}

	target, err := RollbackTarget(p, category)
	if err != nil {
		return "", err
	}

	if target == PhaseDev {
		loops := sess.Progress.LoopCount + 1
		if err := e.records.WriteField(ctx, sessionID, record.KeyLoopCount, strconv.Itoa(loops)); err != nil {
			return "", err
		}
	}

	result := "rolled back to " + string(target)
	if category != "" {
		result = string(category) + ": " + result
	}
	if err := e.records.AppendHistory(ctx, sessionID, string(p), "failed", result); err != nil {
		return "", err
	}

	if err := e.enter(ctx, sessionID, target); err != nil {
		return "", err
	}

	e.logger.Warn("phase failed",
		zap.String("session_id", sessionID),
		zap.String("phase", string(p)),
		zap.String("target", string(target)),
	)
	return target, nil
}

// Gate reports whether a session may advance past its current phase. It
// returns ErrGateNotPassed when the owning flag is still false.
func (e *Engine) Gate(ctx context.Context, sessionID string) error {
	sess, err := e.records.Load(ctx, sessionID)
	if err != nil {
		return err
	}

	p, err := Parse(sess.Progress.CurrentPhase)
	if err != nil {
		return err
	}

	flag, ok := OwningFlag(p)
	if !ok {
		return nil
	}
	if !sess.Condition[flag] {
		return fmt.Errorf("%w: %s requires %s", ErrGateNotPassed, p, flag)
	}
	return nil
}

// enter moves the session into a phase.
func (e *Engine) enter(ctx context.Context, sessionID string, p Phase) error {
	if err := e.records.WriteField(ctx, sessionID, record.KeyCurrentPhase, string(p)); err != nil {
		return err
	}
	return e.records.WriteField(ctx, sessionID, record.KeyCurrentStep, "entered "+string(p))
}
