package resume

// Phase is where one job invocation is in its lifecycle.
type Phase string

// Lifecycle phases.
//
//	Running → Checkpointing → Suspended     (quota tripped)
//	Suspended → Resumed → Running           (a timer fired)
//	Running → Done                          (work finished)
const (
	PhaseRunning       Phase = "running"
	PhaseCheckpointing Phase = "checkpointing"
	PhaseSuspended     Phase = "suspended"
	PhaseResumed       Phase = "resumed"
	PhaseDone          Phase = "done"
)

// Outcome is how Run ended.
type Outcome string

const (
	// OutcomeDone means the job completed and its checkpoint was torn down.
	OutcomeDone Outcome = "done"
	// OutcomeSuspended means progress was checkpointed and a resume scheduled.
	OutcomeSuspended Outcome = "suspended"
	// OutcomeSuperseded means another invocation holds the checkpoint; this
	// one exited without doing any work.
	OutcomeSuperseded Outcome = "superseded"
	// OutcomeFailed means the job or the checkpoint machinery failed.
	OutcomeFailed Outcome = "failed"
)
