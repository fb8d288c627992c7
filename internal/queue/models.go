package queue

import (
	"strings"
	"time"
)

// Kind distinguishes the artifact a job produces.
type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

// ParseKind converts a string into a known Kind.
func ParseKind(value string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(value))) {
	case KindVideo:
		return KindVideo, true
	case KindAudio:
		return KindAudio, true
	default:
		return "", false
	}
}

// Status represents the lifecycle of a download job.
type Status string

const (
	StatusQueued   Status = "queued"
	StatusActive   Status = "active"
	StatusRetrying Status = "retrying"
	StatusDone     Status = "done"
	StatusFailed   Status = "failed"
)

// DaemonStopReason is the error message set when jobs are parked due to daemon shutdown.
const DaemonStopReason = "Daemon stopped"

// UserStopReason is the error message set when a user aborts an active job.
const UserStopReason = "Stopped by user"

var allStatuses = []Status{
	StatusQueued,
	StatusActive,
	StatusRetrying,
	StatusDone,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// PendingStatuses are the statuses the scheduler pulls work from, in FIFO order.
var PendingStatuses = []Status{StatusQueued, StatusRetrying}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status admits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusFailed
}

// IsPending reports whether a status makes the job eligible for pickup.
func (s Status) IsPending() bool {
	return s == StatusQueued || s == StatusRetrying
}

// Job represents a download job persisted in SQLite.
type Job struct {
	ID               int64
	URL              string
	Kind             Kind
	Title            string
	RequestedQuality string
	Status           Status
	Attempts         int
	DestinationPath  string
	ErrorMessage     string
	ProgressPercent  float64
	ProgressMessage  string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	LastHeartbeat    *time.Time
}

// IsActive reports whether the job is currently being downloaded.
func (j Job) IsActive() bool {
	return j.Status == StatusActive
}

// SetProgress updates both progress fields together.
func (j *Job) SetProgress(percent float64, message string) {
	j.ProgressPercent = percent
	j.ProgressMessage = message
}

// SetFailed marks the job terminally failed with the given error message.
func (j *Job) SetFailed(message string) {
	j.Status = StatusFailed
	j.ErrorMessage = message
	j.ProgressMessage = message
	j.LastHeartbeat = nil
}

// SetRetrying parks the job for another attempt, keeping the error message
// visible until the next activation clears it.
func (j *Job) SetRetrying(message string) {
	j.Status = StatusRetrying
	j.ErrorMessage = message
	j.ProgressPercent = 0
	j.ProgressMessage = message
	j.LastHeartbeat = nil
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalJobs        int
	Error            string
}

// HealthSummary describes aggregated queue counts per lifecycle state.
type HealthSummary struct {
	Total    int
	Queued   int
	Active   int
	Retrying int
	Done     int
	Failed   int
}
