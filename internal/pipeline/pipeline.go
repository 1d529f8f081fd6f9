package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nao1215/webclone/internal/model"
)

// Step is one stage of a clone job.
type Step interface {
	// Do runs the step against job. A returned error is recorded in the job
	// by the pipeline; steps that can degrade gracefully log and return nil.
	Do(ctx context.Context, job *model.CloneJob) error

	// Name returns the step's name for logging and the job's step list.
	Name() string
}

// Critical is implemented by steps whose failure leaves later steps nothing
// to work with. The pipeline always stops after a failed critical step.
type Critical interface {
	Critical() bool
}

// Pipeline runs steps in order over a job.
type Pipeline struct {
	steps []Step

	logger *slog.Logger

	// continueOnError keeps running non-critical steps after a failure.
	continueOnError bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError makes the pipeline run the remaining steps after a
// non-critical step fails. A clone uses this so that a failed asset folder
// does not stop index.html from being written.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates an empty Pipeline.
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

// Execute runs every step against job and then finishes it.
//
// Cancellation is checked between steps. Step errors and panics are
// recorded in the job; the returned error is the first one that stopped
// the pipeline, or nil when all steps ran. The job is always in a
// terminal state when Execute returns.
func (p *Pipeline) Execute(ctx context.Context, job *model.CloneJob) error {
	defer job.Finish()

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"url", job.SeedURL,
				"reason", err,
			)
			job.AddError(step.Name(), err)
			return err
		}

		p.logger.Info("executing step",
			"step", step.Name(),
			"url", job.SeedURL,
		)

		err := runStep(ctx, step, job)
		job.AddStep(step.Name())
		if err == nil {
			p.logger.Debug("step completed",
				"step", step.Name(),
				"url", job.SeedURL,
			)
			continue
		}

		p.logger.Error("step failed",
			"step", step.Name(),
			"url", job.SeedURL,
			"error", err,
		)
		job.AddError(step.Name(), err)

		if isCritical(step) || !p.continueOnError {
			return err
		}
	}
	return nil
}

// runStep converts a panic inside step into an error.
func runStep(ctx context.Context, step Step, job *model.CloneJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrStepPanicked, r)
		}
	}()
	return step.Do(ctx, job)
}

func isCritical(step Step) bool {
	c, ok := step.(Critical)
	return ok && c.Critical()
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
