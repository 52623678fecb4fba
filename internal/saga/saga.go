// Package saga runs a multi-step mutation as ordered (action, compensation)
// pairs. Completed steps are undone in reverse order when a later step fails.
package saga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

type Step struct {
	Name string
	Do   func(ctx context.Context) error
	// Undo may be nil for steps that need no compensation.
	Undo func(ctx context.Context) error
}

type Saga struct {
	name      string
	log       *slog.Logger
	done      []Step
	committed bool
}

func New(name string, log *slog.Logger) *Saga {
	return &Saga{name: name, log: log}
}

// Run executes one step immediately and remembers it for compensation.
func (s *Saga) Run(ctx context.Context, step Step) error {
	if s.committed {
		return fmt.Errorf("saga %s: step %s after commit", s.name, step.Name)
	}
	if err := step.Do(ctx); err != nil {
		return fmt.Errorf("%s: %w", step.Name, err)
	}
	s.done = append(s.done, step)
	return nil
}

// Execute runs steps in order and commits. On failure the completed steps are
// compensated and the step error is returned, joined with any compensation errors.
func (s *Saga) Execute(ctx context.Context, steps ...Step) error {
	for _, st := range steps {
		if err := s.Run(ctx, st); err != nil {
			return s.Abort(ctx, err)
		}
	}
	s.Commit()
	return nil
}

func (s *Saga) Commit() { s.committed = true }

// Abort compensates and returns cause, joined with compensation failures.
func (s *Saga) Abort(ctx context.Context, cause error) error {
	if cerr := s.Rollback(ctx); cerr != nil {
		return errors.Join(cause, cerr)
	}
	return cause
}

// Rollback undoes completed steps in reverse. It is a no-op after Commit, so it is
// safe to defer. Compensation runs even if ctx was cancelled.
func (s *Saga) Rollback(ctx context.Context) error {
	if s.committed || len(s.done) == 0 {
		return nil
	}
	ctx = context.WithoutCancel(ctx)
	var errs []error
	for i := len(s.done) - 1; i >= 0; i-- {
		st := s.done[i]
		if st.Undo == nil {
			continue
		}
		if err := st.Undo(ctx); err != nil {
			s.log.Error("compensation failed", "action", "saga_compensation_failed", "saga", s.name, "step", st.Name, "error", err)
			errs = append(errs, fmt.Errorf("compensate %s: %w", st.Name, err))
			continue
		}
		s.log.Debug("step compensated", "action", "saga_compensated", "saga", s.name, "step", st.Name)
	}
	s.done = nil
	s.committed = true
	return errors.Join(errs...)
}
