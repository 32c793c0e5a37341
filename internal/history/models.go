package history

import "time"

// Status is the lifecycle state of a recorded batch.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFatal     Status = "fatal"
)

// ItemStatus records whether a video was dubbed successfully.
type ItemStatus string

const (
	ItemSucceeded ItemStatus = "succeeded"
	ItemFailed    ItemStatus = "failed"
)

// Batch is one DoEverything invocation.
type Batch struct {
	ID         string
	Input      string
	Root       string
	Status     Status
	StartedAt  time.Time
	FinishedAt *time.Time
	Succeeded  int
	Failed     int
	Summary    string
	Video      string
	Fatal      string
}

// Item is the recorded outcome of one video within a batch.
type Item struct {
	BatchID     string
	Seq         int
	Title       string
	Source      string
	Status      ItemStatus
	OutputVideo string
	Message     string
	Attempts    int
	FailedStage string
	FinishedAt  time.Time
}

// Result is the final tally written when a batch finishes.
type Result struct {
	Succeeded int
	Failed    int
	Summary   string
	Video     string
	// Fatal is set when the batch aborted before processing items.
	Fatal string
}
