package batch

import (
	"errors"
	"fmt"
)

// Repeat re-invokes a job's steps until an iteration reads nothing, Until
// reports true, or MaxIterations is reached.
type Repeat struct {
	Until         func(params Parameters, iteration int, reports []StepReport) bool
	MaxIterations int
}

// Job is a named, ordered sequence of steps.
type Job struct {
	Name   string
	Steps  []StepRunner
	Repeat *Repeat
}

// Validate checks the job definition.
func (j *Job) Validate() error {
	if j == nil {
		return errors.New("job is nil")
	}
	if j.Name == "" {
		return errors.New("job name is required")
	}
	if len(j.Steps) == 0 {
		return fmt.Errorf("job %s has no steps", j.Name)
	}
	seen := make(map[string]struct{}, len(j.Steps))
	for _, step := range j.Steps {
		if step == nil {
			return fmt.Errorf("job %s has a nil step", j.Name)
		}
		if _, ok := seen[step.StepName()]; ok {
			return fmt.Errorf("job %s has duplicate step %q", j.Name, step.StepName())
		}
		seen[step.StepName()] = struct{}{}
	}
	if j.Repeat != nil && j.Repeat.MaxIterations < 0 {
		return fmt.Errorf("job %s: max iterations must be non-negative", j.Name)
	}
	return nil
}

func (r *Repeat) again(params Parameters, iteration int, reports []StepReport) bool {
	if r == nil {
		return false
	}
	if r.MaxIterations > 0 && iteration >= r.MaxIterations {
		return false
	}
	read := 0
	for _, report := range reports {
		read += report.Read
	}
	if read == 0 {
		return false
	}
	if r.Until != nil && r.Until(params, iteration, reports) {
		return false
	}
	return true
}
