package ipc

import (
	"time"

	"cliptube/internal/history"
	"cliptube/internal/queue"
)

// QueueItem is the wire representation of a queue job.
type QueueItem struct {
	ID               int64   `json:"id"`
	URL              string  `json:"url"`
	Kind             string  `json:"kind"`
	Title            string  `json:"title"`
	RequestedQuality string  `json:"requested_quality"`
	Status           string  `json:"status"`
	Attempts         int     `json:"attempts"`
	DestinationPath  string  `json:"destination_path"`
	ErrorMessage     string  `json:"error_message"`
	ProgressPercent  float64 `json:"progress_percent"`
	ProgressMessage  string  `json:"progress_message"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
}

// FromJob converts a queue job into its wire representation.
func FromJob(job *queue.Job) QueueItem {
	if job == nil {
		return QueueItem{}
	}
	return QueueItem{
		ID:               job.ID,
		URL:              job.URL,
		Kind:             string(job.Kind),
		Title:            job.Title,
		RequestedQuality: job.RequestedQuality,
		Status:           string(job.Status),
		Attempts:         job.Attempts,
		DestinationPath:  job.DestinationPath,
		ErrorMessage:     job.ErrorMessage,
		ProgressPercent:  job.ProgressPercent,
		ProgressMessage:  job.ProgressMessage,
		CreatedAt:        job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        job.UpdatedAt.Format(time.RFC3339),
	}
}

// HistoryItem is the wire representation of a completed download.
type HistoryItem struct {
	ID              int64  `json:"id"`
	URL             string `json:"url"`
	Kind            string `json:"kind"`
	Title           string `json:"title"`
	Quality         string `json:"quality"`
	DestinationPath string `json:"destination_path"`
	CompletedAt     string `json:"completed_at"`
}

// FromHistoryEntry converts a history entry into its wire representation.
func FromHistoryEntry(entry *history.Entry) HistoryItem {
	if entry == nil {
		return HistoryItem{}
	}
	return HistoryItem{
		ID:              entry.ID,
		URL:             entry.URL,
		Kind:            string(entry.Kind),
		Title:           entry.Title,
		Quality:         entry.Quality,
		DestinationPath: entry.DestinationPath,
		CompletedAt:     entry.CompletedAt.Format(time.RFC3339),
	}
}

// StageHealth describes readiness of the download stage.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail"`
}

// DependencyStatus describes availability of an external binary.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail"`
}

// StopRequest stops the daemon.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon/workflow status information.
type StatusResponse struct {
	Running       bool               `json:"running"`
	PID           int                `json:"pid"`
	QueueStats    map[string]int     `json:"queue_stats"`
	LastError     string             `json:"last_error"`
	LastJob       *QueueItem         `json:"last_job"`
	LockPath      string             `json:"lock_path"`
	QueueDBPath   string             `json:"queue_db_path"`
	HistoryDBPath string             `json:"history_db_path"`
	StageHealth   StageHealth        `json:"stage_health"`
	Dependencies  []DependencyStatus `json:"dependencies"`
}

// AddRequest enqueues downloads for a YouTube link. Empty kinds means the
// kinds enabled in config.
type AddRequest struct {
	URL   string   `json:"url"`
	Kinds []string `json:"kinds"`
}

// AddResponse lists the newly created jobs; duplicates are skipped.
type AddResponse struct {
	Jobs []QueueItem `json:"jobs"`
}

// QueueListRequest filters queue listing by status.
type QueueListRequest struct {
	Statuses []string `json:"statuses"`
}

// QueueListResponse contains queue entries.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// QueueClearRequest removes all jobs.
type QueueClearRequest struct{}

// QueueClearResponse reports number of removed entries.
type QueueClearResponse struct {
	Removed int64 `json:"removed"`
}

// QueueClearDoneRequest removes completed jobs.
type QueueClearDoneRequest struct{}

// QueueClearDoneResponse reports number of removed entries.
type QueueClearDoneResponse struct {
	Removed int64 `json:"removed"`
}

// QueueClearFailedRequest removes failed jobs.
type QueueClearFailedRequest struct{}

// QueueClearFailedResponse reports number of removed entries.
type QueueClearFailedResponse struct {
	Removed int64 `json:"removed"`
}

// QueueResetRequest puts jobs stuck in active back in line.
type QueueResetRequest struct{}

// QueueResetResponse reports number of jobs reset.
type QueueResetResponse struct {
	Updated int64 `json:"updated"`
}

// QueueRetryRequest retries failed jobs. Empty list means all failed jobs.
type QueueRetryRequest struct {
	IDs []int64 `json:"ids"`
}

// QueueRetryResponse reports number of retried jobs.
type QueueRetryResponse struct {
	Updated int64 `json:"updated"`
}

// QueueStopRequest aborts a single job.
type QueueStopRequest struct {
	ID int64 `json:"id"`
}

// QueueStopResponse indicates the job was stopped.
type QueueStopResponse struct {
	Stopped bool `json:"stopped"`
}

// QueueRemoveRequest deletes a single job.
type QueueRemoveRequest struct {
	ID int64 `json:"id"`
}

// QueueRemoveResponse indicates the job was removed.
type QueueRemoveResponse struct {
	Removed bool `json:"removed"`
}

// QueueHealthRequest fetches aggregate diagnostics.
type QueueHealthRequest struct{}

// QueueHealthResponse reports queue health information.
type QueueHealthResponse struct {
	Total    int `json:"total"`
	Queued   int `json:"queued"`
	Active   int `json:"active"`
	Retrying int `json:"retrying"`
	Done     int `json:"done"`
	Failed   int `json:"failed"`
}

// DatabaseHealthRequest fetches detailed database diagnostics.
type DatabaseHealthRequest struct{}

// DatabaseHealthResponse reports database health information.
type DatabaseHealthResponse struct {
	DBPath           string   `json:"db_path"`
	DatabaseExists   bool     `json:"database_exists"`
	DatabaseReadable bool     `json:"database_readable"`
	SchemaVersion    string   `json:"schema_version"`
	TableExists      bool     `json:"table_exists"`
	ColumnsPresent   []string `json:"columns_present"`
	MissingColumns   []string `json:"missing_columns"`
	IntegrityCheck   bool     `json:"integrity_check"`
	TotalJobs        int      `json:"total_jobs"`
	Error            string   `json:"error"`
}

// HistoryListRequest fetches the most recent completed downloads.
type HistoryListRequest struct {
	Limit int `json:"limit"`
}

// HistoryListResponse contains history entries, newest first.
type HistoryListResponse struct {
	Items []HistoryItem `json:"items"`
}

// LogTailRequest fetches log lines based on offset and follow semantics.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
