package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrFolderResolution = errors.New("folder resolution error")
	ErrSourceResolution = errors.New("source resolution error")
	ErrDownload         = errors.New("download error")
	ErrSeparation       = errors.New("separation error")
	ErrTranscription    = errors.New("transcription error")
	ErrTranslation      = errors.New("translation error")
	ErrSynthesis        = errors.New("synthesis error")
	ErrComposition      = errors.New("composition error")
	ErrInit             = errors.New("backend initialization error")
	ErrExternalTool     = errors.New("external tool error")
	ErrConfiguration    = errors.New("configuration error")
	ErrTransient        = errors.New("transient failure")
)

// Kind is a short, log-friendly classification of a marker error.
type Kind string

const (
	KindFolderResolution Kind = "folder_resolution"
	KindSourceResolution Kind = "source_resolution"
	KindDownload         Kind = "download"
	KindSeparation       Kind = "separation"
	KindTranscription    Kind = "transcription"
	KindTranslation      Kind = "translation"
	KindSynthesis        Kind = "synthesis"
	KindComposition      Kind = "composition"
	KindInit             Kind = "init"
	KindExternalTool     Kind = "external_tool"
	KindConfiguration    Kind = "configuration"
	KindTransient        Kind = "transient"
	KindUnknown          Kind = "unknown"
)

var markerKinds = []struct {
	marker error
	kind   Kind
}{
	{ErrFolderResolution, KindFolderResolution},
	{ErrSourceResolution, KindSourceResolution},
	{ErrDownload, KindDownload},
	{ErrSeparation, KindSeparation},
	{ErrTranscription, KindTranscription},
	{ErrTranslation, KindTranslation},
	{ErrSynthesis, KindSynthesis},
	{ErrComposition, KindComposition},
	{ErrInit, KindInit},
	{ErrExternalTool, KindExternalTool},
	{ErrConfiguration, KindConfiguration},
	{ErrTransient, KindTransient},
}

// Error carries stage context alongside a marker so callers can classify the
// failure with errors.Is and still render a readable message.
type Error struct {
	Marker    error
	Stage     string
	Operation string
	Message   string
	Hint      string
	Cause     error
}

func (e *Error) Error() string {
	detail := buildDetail(e.Stage, e.Operation, e.Message)
	if e.Cause != nil {
		return fmt.Sprintf("%v: %s: %v", e.Marker, detail, e.Cause)
	}
	return fmt.Sprintf("%v: %s", e.Marker, detail)
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Marker}
	}
	return []error{e.Marker, e.Cause}
}

// Wrap builds an error that includes stage context while tagging it with the
// provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	return &Error{
		Marker:    marker,
		Stage:     strings.TrimSpace(stage),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Cause:     err,
	}
}

// WithHint attaches an operator-facing remediation hint to a wrapped error.
func WithHint(err error, hint string) error {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		clone := *svcErr
		clone.Hint = strings.TrimSpace(hint)
		return &clone
	}
	return err
}

// ErrorDetails is the flattened view of an error used for structured logs.
type ErrorDetails struct {
	Kind      Kind
	Stage     string
	Operation string
	Message   string
	Hint      string
	Cause     error
}

// Details extracts classification and context from err. Errors that were not
// produced by Wrap still yield a kind (when a marker is in the chain) and the
// plain error text as the message.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{Kind: KindUnknown}
	}
	details := ErrorDetails{Kind: KindOf(err)}
	var svcErr *Error
	if errors.As(err, &svcErr) {
		details.Stage = svcErr.Stage
		details.Operation = svcErr.Operation
		details.Message = svcErr.Message
		details.Hint = svcErr.Hint
		details.Cause = svcErr.Cause
		if details.Message == "" && svcErr.Cause != nil {
			details.Message = strings.TrimSpace(svcErr.Cause.Error())
		}
		return details
	}
	details.Message = strings.TrimSpace(err.Error())
	return details
}

// KindOf reports the first marker kind found in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	for _, mk := range markerKinds {
		if errors.Is(err, mk.marker) {
			return mk.kind
		}
	}
	return KindUnknown
}

// IsPermanent reports whether retrying the failed work cannot help.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrFolderResolution) || errors.Is(err, ErrConfiguration)
}

// IsBatchFatal reports whether err must abort an entire batch before any item runs.
func IsBatchFatal(err error) bool {
	return errors.Is(err, ErrInit) || errors.Is(err, ErrSourceResolution)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
