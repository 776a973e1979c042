// Package models holds the plain data records shared across the scanner:
// the job/job-object/finding rows and the wire-level DTOs built from them.
package models

import "time"

// ObjectStatus is the lifecycle state of a JobObject.
type ObjectStatus string

const (
	StatusQueued     ObjectStatus = "queued"
	StatusProcessing ObjectStatus = "processing"
	StatusSucceeded  ObjectStatus = "succeeded"
	StatusFailed     ObjectStatus = "failed"
)

// Job is one client-initiated scan request over a bucket and optional prefix.
type Job struct {
	JobID     string    `json:"jobId"`
	Bucket    string    `json:"bucket"`
	Prefix    string    `json:"prefix"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// JobObject is the unit of work: one object version under one job.
type JobObject struct {
	JobID     string       `json:"jobId"`
	Bucket    string       `json:"bucket"`
	Key       string       `json:"key"`
	EntityTag string       `json:"entityTag"`
	Status    ObjectStatus `json:"status"`
	LastError string       `json:"lastError,omitempty"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// Finding is a single detector hit at a specific byte offset within a
// specific object version.
type Finding struct {
	ID          int64     `json:"id"`
	JobID       string    `json:"jobId"`
	Bucket      string    `json:"bucket"`
	Key         string    `json:"key"`
	EntityTag   string    `json:"entityTag"`
	Detector    string    `json:"detector"`
	MaskedMatch string    `json:"maskedMatch"`
	Context     string    `json:"context"`
	ByteOffset  int       `json:"byteOffset"`
	CreatedAt   time.Time `json:"createdAt"`
}

// StatusCounts is the zero-filled aggregation over job_object.status used to
// derive job progress.
type StatusCounts struct {
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Succeeded  int `json:"succeeded"`
	Failed     int `json:"failed"`
}

// Total returns the sum of all four buckets.
func (c StatusCounts) Total() int {
	return c.Queued + c.Processing + c.Succeeded + c.Failed
}

// Completed returns the count of terminal (succeeded or failed) objects.
func (c StatusCounts) Completed() int {
	return c.Succeeded + c.Failed
}

// Progress is the derived completion state of a job.
type Progress struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	Percentage int `json:"percentage"`
}

// JobStatus is the overall derived status of a job, per spec.md §4.5.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
)

// DeriveStatus computes the overall job status from status counts, per
// spec.md §4.5: completed if total>0 and completed==total; pending if
// total>0 and queued==total; otherwise running.
func DeriveStatus(c StatusCounts) JobStatus {
	total := c.Total()
	if total == 0 {
		return JobStatusRunning
	}
	if c.Completed() == total {
		return JobStatusCompleted
	}
	if c.Queued == total {
		return JobStatusPending
	}
	return JobStatusRunning
}

// DeriveProgress computes {total, completed, percentage} from status counts.
func DeriveProgress(c StatusCounts) Progress {
	total := c.Total()
	completed := c.Completed()
	pct := 0
	if total > 0 {
		pct = int(roundHalfAwayFromZero(100 * float64(completed) / float64(total)))
	}
	return Progress{Total: total, Completed: completed, Percentage: pct}
}

func roundHalfAwayFromZero(f float64) float64 {
	if f < 0 {
		return -roundHalfAwayFromZero(-f)
	}
	i := float64(int64(f))
	if f-i >= 0.5 {
		return i + 1
	}
	return i
}

// QueueMessage is the wire-level body of a unit-of-work message, per
// spec.md §6: JSON {"job_id","bucket","key","etag"}.
type QueueMessage struct {
	JobID     string `json:"job_id"`
	Bucket    string `json:"bucket"`
	Key       string `json:"key"`
	EntityTag string `json:"etag"`
}
