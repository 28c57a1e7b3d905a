// Package job drives the per-file lifecycle: upload to the job's assigned
// host, poll until the server finishes, download the result, and relocate
// the original. Each Job is owned by exactly one goroutine.
package job

// State is the lifecycle state of a single file's job.
type State int

const (
	StateAdded State = iota
	StateUploaded
	StatePolling
	StateCompleted
	StateFailed
	StateSkipped
)

func (s State) String() string {
	switch s {
	case StateAdded:
		return "added"
	case StateUploaded:
		return "uploaded"
	case StatePolling:
		return "polling"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Job tracks one submitted file through its lifecycle. ID and AssignedHost
// come from the job add response.
type Job struct {
	ID           string
	AssignedHost string
	FilePath     string
	FileName     string
	DownloadLink string
	State        State
}
