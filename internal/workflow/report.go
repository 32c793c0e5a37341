package workflow

import (
	"fmt"
	"strings"
)

// Report is the aggregate result of one DoEverything call.
type Report struct {
	BatchID   string
	Succeeded int
	Failed    int
	// Failures holds "<title>: <message>" entries in completion order.
	Failures []string
	// Video is the most recently completed successful output, if any.
	Video string
	// Summary is the user-facing status line.
	Summary string
	// Fatal is set when the batch aborted before processing items.
	Fatal bool
	Err   error
}

// Text renders the summary followed by itemized failures.
func (r Report) Text() string {
	if len(r.Failures) == 0 {
		return r.Summary
	}
	var b strings.Builder
	b.WriteString(r.Summary)
	for _, f := range r.Failures {
		b.WriteString("\n- ")
		b.WriteString(f)
	}
	return b.String()
}

func countsSummary(succeeded, failed int) string {
	return fmt.Sprintf("成功: %d\n失败: %d", succeeded, failed)
}

func fatalReport(batchID, summary string, err error) Report {
	return Report{BatchID: batchID, Summary: summary, Fatal: true, Err: err}
}

// add folds one outcome into the report.
func (r *Report) add(o Outcome) {
	if o.Succeeded() {
		r.Succeeded++
		r.Video = o.Video
		return
	}
	r.Failed++
	r.Failures = append(r.Failures, fmt.Sprintf("%s: %s", o.Item.Label(), o.Message))
}
