package scheduler

import "fmt"

// JobNotRegisteredError is returned when a job name has no Runnable
// registered with the Scheduler.
type JobNotRegisteredError struct {
	Name string
}

func (e *JobNotRegisteredError) Error() string {
	return fmt.Sprintf("job with name %s is not registered with this scheduler", e.Name)
}

// JobAlreadyQueuedError is returned by ExecuteJob when a job with the same
// name is already queued at an equal or higher priority.
type JobAlreadyQueuedError struct {
	Name string
}

func (e *JobAlreadyQueuedError) Error() string {
	return fmt.Sprintf("a job with name %s is already queued for execution", e.Name)
}

// JobAlreadyRunningError is returned by ExecuteJob when a concurrent
// caller won the race to run the job.
type JobAlreadyRunningError struct {
	Name string
}

func (e *JobAlreadyRunningError) Error() string {
	return fmt.Sprintf("a job with name %s is already running", e.Name)
}

// JobExecutionNotNecessaryError is returned when a job is already running
// at an equal or higher priority, so this call's request is redundant.
type JobExecutionNotNecessaryError struct {
	Name string
}

func (e *JobExecutionNotNecessaryError) Error() string {
	return fmt.Sprintf("execution of job %s was not necessary", e.Name)
}

// JobExecutionDisabledError is returned when the scheduler (globally) or
// the job definition (individually) has execution disabled.
type JobExecutionDisabledError struct {
	Name string
}

func (e *JobExecutionDisabledError) Error() string {
	if e.Name == "" {
		return "execution of jobs has been disabled"
	}
	return fmt.Sprintf("execution of job %s has been disabled", e.Name)
}

// JobNotFoundError is returned when a referenced JobRecord ID does not
// exist.
type JobNotFoundError struct {
	ID string
}

func (e *JobNotFoundError) Error() string {
	return fmt.Sprintf("no job record with id %s", e.ID)
}

// JobNotAbortableError is returned by AbortJob when the job definition
// does not allow aborting.
type JobNotAbortableError struct {
	Name string
}

func (e *JobNotAbortableError) Error() string {
	return fmt.Sprintf("job %s is not abortable", e.Name)
}
