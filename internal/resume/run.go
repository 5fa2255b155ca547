package resume

import (
	"context"
	"errors"
	"fmt"

	"github.com/flemzord/runstash/internal/checkpoint"
)

// Job is the business logic driven by Run. Step performs one bounded unit of
// work, reading and updating state; it must be short enough that the quota
// check between steps fires before the host's hard limit.
type Job interface {
	Step(ctx context.Context, state State) (done bool, err error)
}

// KeyedJob is a Job that declares the state keys it needs restored.
type KeyedJob interface {
	Job
	Keys() []string
}

// JobFunc adapts a function to Job.
type JobFunc func(ctx context.Context, state State) (bool, error)

// Step implements Job.
func (f JobFunc) Step(ctx context.Context, state State) (bool, error) { return f(ctx, state) }

// Run drives job through one invocation: resume, step until done or until
// the quota trips, then finish or suspend.
//
// Cancelling ctx is treated like a quota trip: the state is checkpointed and
// a resume scheduled. A superseded invocation returns OutcomeSuperseded with
// a nil error. A failing step checkpoints the state without scheduling a
// resume and returns OutcomeFailed with the step's error.
func (c *Controller) Run(ctx context.Context, job Job) (out Outcome, err error) {
	defer func() { c.metrics.Outcome(string(out)) }()

	sess, err := c.resume(ctx, c.keysFor(job))
	if err != nil {
		if errors.Is(err, checkpoint.ErrSuperseded) {
			return OutcomeSuperseded, nil
		}
		return OutcomeFailed, err
	}

	for {
		if ctx.Err() != nil || sess.Window.Exceeded() {
			return c.suspendRun(ctx, sess)
		}

		start := c.cfg.Clock()
		done, stepErr := job.Step(ctx, sess.State)
		c.metrics.ObserveStep(c.cfg.Clock().Sub(start).Seconds())

		if stepErr != nil {
			if ctx.Err() != nil && errors.Is(stepErr, ctx.Err()) {
				return c.suspendRun(ctx, sess)
			}
			c.logger.Error("resume: job step failed", "error", stepErr)
			if err := c.abandon(context.WithoutCancel(ctx), sess); err != nil {
				return OutcomeFailed, errors.Join(fmt.Errorf("resume: step: %w", stepErr), err)
			}
			return OutcomeFailed, fmt.Errorf("resume: step: %w", stepErr)
		}

		if done {
			if err := c.Finish(ctx, sess); err != nil {
				return OutcomeDone, err
			}
			return OutcomeDone, nil
		}
	}
}

func (c *Controller) suspendRun(ctx context.Context, sess *Session) (Outcome, error) {
	if ctx.Err() != nil {
		c.logger.Info("resume: invocation cancelled, checkpointing", "error", ctx.Err())
	} else {
		c.logger.Info("resume: quota reached, checkpointing", "elapsed", sess.Window.Elapsed())
	}

	ctx = context.WithoutCancel(ctx)
	if _, err := c.Suspend(ctx, sess); err != nil {
		if errors.Is(err, checkpoint.ErrSuperseded) {
			return OutcomeSuperseded, nil
		}
		if errors.Is(err, ErrCheckpointFailed) {
			// Run gives up here: free the lease so the next invocation can
			// restore the last good checkpoint.
			if relErr := c.store.ReleaseLease(ctx, sess.Lease); relErr != nil {
				err = errors.Join(err, relErr)
			}
			c.transition(sess, PhaseSuspended)
		}
		return OutcomeFailed, err
	}
	return OutcomeSuspended, nil
}
