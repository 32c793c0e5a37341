package workflow

import "dubflow/internal/stage"

// Outcome is the final result of running one work item.
type Outcome struct {
	Item stage.WorkItem
	// Video is the composited output on success.
	Video string
	// Message is the last failure message reported to the user.
	Message     string
	Err         error
	FailedStage stage.Name
	Attempts    int
}

// Succeeded reports whether the item produced an output video.
func (o Outcome) Succeeded() bool {
	return o.Err == nil
}
