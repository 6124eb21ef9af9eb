package forge

import "context"

// Job is a scheduled forward. It completes once the forward has been
// answered or has failed.
type Job struct {
	// ID is the message id being forwarded.
	ID       uint64
	Receiver string

	done chan struct{}
	err  error
}

func newJob(id uint64, receiver string) *Job {
	return &Job{ID: id, Receiver: receiver, done: make(chan struct{})}
}

// Done is closed when the forward completes.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Err returns the forward's error. It is nil until Done is closed.
func (j *Job) Err() error {
	select {
	case <-j.done:
		return j.err
	default:
		return nil
	}
}

// Wait blocks until the forward completes or ctx is done.
func (j *Job) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		return j.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *Job) finish(err error) {
	j.err = err
	close(j.done)
}
