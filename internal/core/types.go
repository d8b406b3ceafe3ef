package core

import (
	"time"
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusCompleted JobStatus = "completed"
	JobStatusExpired   JobStatus = "expired"
	JobStatusDeleted   JobStatus = "deleted"
)

func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusCompleted, JobStatusExpired, JobStatusDeleted:
		return true
	}
	return false
}

// Terminal reports whether no further transition is defined out of s.
func (s JobStatus) Terminal() bool {
	return s != JobStatusPending
}

type PrintType string

const (
	PrintTypeBW    PrintType = "bw"
	PrintTypeColor PrintType = "color"
)

type PrintSide string

const (
	PrintSideSingle PrintSide = "single"
	PrintSideDouble PrintSide = "double"
)

// FileRef is one stored file attached to a job. FilePath is set at creation
// and cleared once the artifact is deleted from disk; it never changes
// otherwise.
type FileRef struct {
	FileName string  `json:"file_name"`
	FilePath *string `json:"file_path"`
	FileSize int64   `json:"file_size"`
}

// PrintJob is one unit of customer intent, possibly spanning multiple files.
// ShopID and TokenNumber never change after creation; only Status and the
// FilePath fields of Files are mutated (the latter cleared only).
type PrintJob struct {
	ID          string    `json:"id"`
	ShopID      string    `json:"shop_id"`
	TokenNumber string    `json:"token_number"`
	PrintType   PrintType `json:"print_type"`
	PrintSide   PrintSide `json:"print_side"`
	Copies      int       `json:"copies"`
	Status      JobStatus `json:"status"`
	Files       []FileRef `json:"files"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// LiveFiles returns the refs whose artifact has not been deleted yet.
func (j *PrintJob) LiveFiles() []FileRef {
	var out []FileRef
	for _, f := range j.Files {
		if f.FilePath != nil && *f.FilePath != "" {
			out = append(out, f)
		}
	}
	return out
}

// ClearFilePaths nulls every FilePath in place. Done together with the
// status commit so the "terminal means cleaned" invariant holds.
func (j *PrintJob) ClearFilePaths() {
	for i := range j.Files {
		j.Files[i].FilePath = nil
	}
}

type Shop struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	BWCostPerPage      float64   `json:"bw_cost_per_page"`
	ColorCostPerPage   float64   `json:"color_cost_per_page"`
	IsAcceptingUploads bool      `json:"is_accepting_uploads"`
	CreatedAt          time.Time `json:"created_at"`
}
