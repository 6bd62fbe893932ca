package pipeline

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/nao1215/deskmaster/internal/model"
)

// mockStep is a test helper that implements the Step interface.
type mockStep struct {
	name      string
	doFunc    func(ctx context.Context, run *model.PageRun) error
	callCount int
}

// Do implements Step.Do.
func (m *mockStep) Do(ctx context.Context, run *model.PageRun) error {
	m.callCount++
	if m.doFunc != nil {
		return m.doFunc(ctx, run)
	}
	return nil
}

// Name implements Step.Name.
func (m *mockStep) Name() string {
	return m.name
}

func newRun() *model.PageRun {
	s := model.NewSession(time.Now())
	s.StartKeyword("tent")
	return model.NewPageRun(s)
}

// TestPipelineNew tests the Pipeline constructor.
func TestPipelineNew(t *testing.T) {
	t.Parallel()

	t.Run("creates pipeline with default settings", func(t *testing.T) {
		t.Parallel()

		p := New()
		if p.StepCount() != 0 {
			t.Errorf("expected 0 steps, got %d", p.StepCount())
		}
		if p.logger == nil {
			t.Error("expected default logger")
		}
	})

	t.Run("applies WithContinueOnError option", func(t *testing.T) {
		t.Parallel()

		p := New(WithContinueOnError(true))
		if !p.continueOnError {
			t.Error("expected continueOnError to be true")
		}
	})
}

// TestPipelineAddStep tests adding steps to the pipeline.
func TestPipelineAddStep(t *testing.T) {
	t.Parallel()

	p := New()
	p.AddStep(&mockStep{name: "first"})
	p.AddSteps(&mockStep{name: "second"}, &mockStep{name: "third"})

	if p.StepCount() != 3 {
		t.Errorf("expected 3 steps, got %d", p.StepCount())
	}
	if want := []string{"first", "second", "third"}; !slices.Equal(p.StepNames(), want) {
		t.Errorf("StepNames() = %v, want %v", p.StepNames(), want)
	}
}

// TestPipelineExecute tests pipeline execution.
func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	t.Run("executes all steps in order", func(t *testing.T) {
		t.Parallel()

		var order []string
		p := New()
		for _, name := range []string{"scan", "open"} {
			p.AddStep(&mockStep{
				name: name,
				doFunc: func(_ context.Context, run *model.PageRun) error {
					order = append(order, name+":"+run.Keyword)
					return nil
				},
			})
		}

		run := newRun()
		if err := p.Execute(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !slices.Equal(order, []string{"scan:tent", "open:tent"}) {
			t.Errorf("wrong execution order: %v", order)
		}
		if !slices.Equal(run.Steps, []string{"scan", "open"}) {
			t.Errorf("run.Steps = %v", run.Steps)
		}
	})

	t.Run("stops on first error by default", func(t *testing.T) {
		t.Parallel()

		expectedErr := errors.New("step failed")
		next := &mockStep{name: "should-not-run"}
		p := New()
		p.AddSteps(&mockStep{
			name: "failing-step",
			doFunc: func(context.Context, *model.PageRun) error {
				return expectedErr
			},
		}, next)

		run := newRun()
		err := p.Execute(context.Background(), run)
		if !errors.Is(err, expectedErr) {
			t.Errorf("expected error %v, got %v", expectedErr, err)
		}
		if next.callCount != 0 {
			t.Error("second step should not have been called")
		}
		if run.Error != expectedErr.Error() {
			t.Errorf("run.Error = %q", run.Error)
		}
	})

	t.Run("continues on error when configured", func(t *testing.T) {
		t.Parallel()

		first := errors.New("step failed")
		second := errors.New("later step failed")
		next := &mockStep{name: "should-run"}
		p := New(WithContinueOnError(true))
		p.AddSteps(&mockStep{
			name: "failing-step",
			doFunc: func(context.Context, *model.PageRun) error {
				return first
			},
		}, next, &mockStep{
			name: "failing-again",
			doFunc: func(context.Context, *model.PageRun) error {
				return second
			},
		})

		run := newRun()
		err := p.Execute(context.Background(), run)
		if !errors.Is(err, first) || !errors.Is(err, second) {
			t.Errorf("expected both step errors, got %v", err)
		}
		if next.callCount != 1 {
			t.Error("second step should have been called")
		}
		if run.Error != "step failed" {
			t.Errorf("run.Error = %q, want the first failure", run.Error)
		}
		if !slices.Equal(run.Steps, []string{"failing-step", "should-run", "failing-again"}) {
			t.Errorf("run.Steps = %v", run.Steps)
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		step := &mockStep{name: "should-not-run"}
		p := New()
		p.AddStep(step)

		run := newRun()
		if err := p.Execute(ctx, run); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if step.callCount != 0 {
			t.Error("step should not have been called")
		}
		if len(run.Steps) != 0 {
			t.Errorf("run.Steps = %v", run.Steps)
		}
	})

	t.Run("cancellation inside a step stops even when continuing", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		next := &mockStep{name: "after"}
		p := New(WithContinueOnError(true))
		p.AddSteps(&mockStep{
			name: "cancels",
			doFunc: func(ctx context.Context, _ *model.PageRun) error {
				cancel()
				return ctx.Err()
			},
		}, next)

		if err := p.Execute(ctx, newRun()); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if next.callCount != 0 {
			t.Error("step after cancellation should not run")
		}
	})
}
