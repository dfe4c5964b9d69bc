package constant

// JobStatus is the lifecycle state of a scheduled reminder job.
type JobStatus string

const (
	// JobStatusPending is a job waiting for its fire instant.
	JobStatusPending JobStatus = "pending"
	// JobStatusFired is a job the scheduler has invoked. Terminal.
	JobStatusFired JobStatus = "fired"
	// JobStatusCancelled is a job withdrawn before firing. Terminal.
	JobStatusCancelled JobStatus = "cancelled"
)

func (s JobStatus) String() string {
	return string(s)
}

// Terminal reports whether no further transition is possible.
func (s JobStatus) Terminal() bool {
	return s == JobStatusFired || s == JobStatusCancelled
}
