package services

import (
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/receiptflow/internal/gcp"
)

// ErrorKind classifies why a single record could not be processed.
type ErrorKind string

const (
	KindMalformedEvent  ErrorKind = "MalformedEvent"
	KindObjectRead      ErrorKind = "ObjectReadError"
	KindModelInvocation ErrorKind = "ModelInvocationError"
	KindResponseParse   ErrorKind = "ResponseParseError"
	KindQueueSend       ErrorKind = "QueueSendError"
	KindParse           ErrorKind = "ParseError"
	KindTableWrite      ErrorKind = "TableWriteError"
	KindTopicPublish    ErrorKind = "TopicPublishError"
	KindUnexpected      ErrorKind = "UnexpectedError"
)

// StageError is a tagged failure. For dependency failures Code and Message are the
// provider's own; for data failures Code is empty.
type StageError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *StageError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *StageError) Unwrap() error { return e.Err }

func (e *StageError) logAttrs() []any {
	return []any{"errorKind", e.Kind, "errorCode", e.Code, "errorMessage", e.Message}
}

// dependencyError wraps an I/O failure against storage, the model, the queue, the table or the topic.
func dependencyError(kind ErrorKind, err error) *StageError {
	code, msg := gcp.ErrorCode(err)
	return &StageError{Kind: kind, Code: code, Message: msg, Err: err}
}

// dataError wraps a failure caused by the content being processed.
func dataError(kind ErrorKind, err error) *StageError {
	return &StageError{Kind: kind, Message: err.Error(), Err: err}
}

// Status is the result of processing one record.
type Status string

const (
	StatusProcessed Status = "processed"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Outcome is the result for one record of a batch. Ref names the record
// (an object URI, a message ID or an event ID).
type Outcome struct {
	Ref    string
	Status Status
	Err    *StageError
}

func processed(ref string) Outcome { return Outcome{Ref: ref, Status: StatusProcessed} }
func skipped(ref string) Outcome { return Outcome{Ref: ref, Status: StatusSkipped} }

func failed(ref string, err *StageError) Outcome {
	return Outcome{Ref: ref, Status: StatusFailed, Err: err}
}

// BatchReport collects the outcomes of one invocation in delivery order.
type BatchReport struct {
	Outcomes []Outcome
}

func (r *BatchReport) add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
}

func (r BatchReport) count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

func (r BatchReport) Processed() int { return r.count(StatusProcessed) }
func (r BatchReport) Skipped() int { return r.count(StatusSkipped) }
func (r BatchReport) Failed() int { return r.count(StatusFailed) }

// LogValue summarizes the report for slog.
func (r BatchReport) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("total", len(r.Outcomes)),
		slog.Int("processed", r.Processed()),
		slog.Int("skipped", r.Skipped()),
		slog.Int("failed", r.Failed()),
	)
}

// guard runs fn for one record and turns a panic into a failed outcome,
// so one bad record never takes down the rest of its batch.
func guard(ref string, logCtx *slog.Logger, fn func() Outcome) (out Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			serr := &StageError{Kind: KindUnexpected, Message: fmt.Sprint(rec)}
			logCtx.Error("Unexpected error while processing record.", serr.logAttrs()...)
			out = failed(ref, serr)
		}
	}()
	return fn()
}
