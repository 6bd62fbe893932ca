package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nao1215/deskmaster/internal/model"
)

// Step is one stage of the work on a result page.
type Step interface {
	// Do runs the step against run. A returned error stops the page.
	Do(ctx context.Context, run *model.PageRun) error

	// Name returns the step's name for logging.
	Name() string
}

// Pipeline executes steps in order.
type Pipeline struct {
	steps []Step

	logger *slog.Logger

	// continueOnError keeps executing steps after one fails.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to run the remaining steps
// after one fails. Execute then returns every step error joined.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps against run, checking for cancellation before
// each one. Unless continueOnError is set, it stops at and returns the
// first step error. Cancellation always stops it.
func (p *Pipeline) Execute(ctx context.Context, run *model.PageRun) error {
	var errs []error
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"keyword", run.Keyword,
				"page", run.Page,
				"reason", err,
			)
			return err
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"keyword", run.Keyword,
			"page", run.Page,
		)

		run.Steps = append(run.Steps, step.Name())
		if err := step.Do(ctx, run); err != nil {
			p.logger.Warn("step failed",
				"step", step.Name(),
				"keyword", run.Keyword,
				"page", run.Page,
				"error", err,
			)
			if run.Error == "" {
				run.Error = err.Error()
			}
			if !p.continueOnError || ctx.Err() != nil {
				return err
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
