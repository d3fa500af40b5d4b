// Package respond builds the uniform tool response envelope:
// {success, message, data?, error?{code, message, details?}} carried as
// JSON inside the MCP text content block.
package respond

import (
	"errors"
	"fmt"

	"github.com/taskvault/taskvault/internal/graph"
	"github.com/taskvault/taskvault/internal/mcp"
	"github.com/taskvault/taskvault/internal/storage"
	"github.com/taskvault/taskvault/internal/workflow"
)

// Error codes surfaced in the envelope.
const (
	CodeValidation    = "VALIDATION_ERROR"
	CodeNotFound      = "RESOURCE_NOT_FOUND"
	CodeDuplicate     = "DUPLICATE_RESOURCE"
	CodeOperationFail = "OPERATION_FAILED"
	CodeDatabase      = "DATABASE_ERROR"
	CodeInternal      = "INTERNAL_ERROR"
)

// Envelope is the uniform tool reply.
type Envelope struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo classifies a failure for the client.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// OK builds a success envelope.
func OK(message string, data any) (*mcp.ToolsCallResult, error) {
	return mcp.JSONResult(Envelope{Success: true, Message: message, Data: data})
}

// Fail builds a failure envelope with an explicit code.
func Fail(code, message string, details any) (*mcp.ToolsCallResult, error) {
	res, err := mcp.JSONResult(Envelope{
		Success: false,
		Message: message,
		Error:   &ErrorInfo{Code: code, Message: message, Details: details},
	})
	if err != nil {
		return nil, err
	}
	res.IsError = true
	return res, nil
}

// Validationf builds a VALIDATION_ERROR envelope.
func Validationf(format string, args ...any) (*mcp.ToolsCallResult, error) {
	return Fail(CodeValidation, fmt.Sprintf(format, args...), nil)
}

// FromError classifies err into an envelope code. Typed store errors,
// workflow transition rejections and dependency cycles each map to their
// spec'd code; anything else is INTERNAL_ERROR.
func FromError(err error) (*mcp.ToolsCallResult, error) {
	var te *workflow.TransitionError
	if errors.As(err, &te) {
		details := map[string]any{
			"current":  string(te.Current),
			"proposed": string(te.Proposed),
		}
		if te.Required != "" {
			details["required"] = string(te.Required)
		}
		if len(te.Blockers) > 0 {
			details["blockers"] = te.Blockers
		}
		return Fail(CodeValidation, te.Error(), details)
	}

	var ce *graph.CycleError
	if errors.As(err, &ce) {
		return Fail(CodeValidation, ce.Error(), map[string]any{"cycle": ce.Path})
	}

	switch {
	case errors.Is(err, storage.ErrNotFound):
		return Fail(CodeNotFound, err.Error(), nil)
	case errors.Is(err, storage.ErrConflict):
		return Fail(CodeDuplicate, err.Error(), nil)
	case errors.Is(err, storage.ErrValidation):
		return Fail(CodeValidation, err.Error(), nil)
	case errors.Is(err, storage.ErrDatabase):
		return Fail(CodeDatabase, err.Error(), nil)
	default:
		return Fail(CodeInternal, err.Error(), nil)
	}
}

// BulkOutcome is the partial-success report for bulk operations.
type BulkOutcome struct {
	Count    int           `json:"count"`
	Failed   int           `json:"failed"`
	Items    []any         `json:"items,omitempty"`
	Failures []BulkFailure `json:"failures,omitempty"`
}

// BulkFailure is one failed item of a bulk operation.
type BulkFailure struct {
	ID      string `json:"id,omitempty"`
	Index   int    `json:"index"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CodeFor returns the envelope code err would classify as.
func CodeFor(err error) string {
	var te *workflow.TransitionError
	if errors.As(err, &te) {
		return CodeValidation
	}
	if errors.Is(err, graph.ErrCycle) {
		return CodeValidation
	}
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, storage.ErrConflict):
		return CodeDuplicate
	case errors.Is(err, storage.ErrValidation):
		return CodeValidation
	case errors.Is(err, storage.ErrDatabase):
		return CodeDatabase
	default:
		return CodeInternal
	}
}

// Bulk turns a bulk outcome into the right envelope: success with partial
// failures, or OPERATION_FAILED when every item failed.
func (b *BulkOutcome) Respond(message string) (*mcp.ToolsCallResult, error) {
	if b.Count == 0 && b.Failed > 0 {
		return Fail(CodeOperationFail, "all items failed", b)
	}
	return OK(message, b)
}
