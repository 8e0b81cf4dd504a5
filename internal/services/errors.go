package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrValidation   = errors.New("validation error")
	ErrNotFound     = errors.New("not found")
	ErrExternalTool = errors.New("external tool error")
	ErrTimeout      = errors.New("timeout")
	ErrStorage      = errors.New("storage failure")
	ErrDegraded     = errors.New("degraded merge")
	ErrInternal     = errors.New("internal error")
)

// GenericFailureMessage replaces error text that redacts down to nothing.
const GenericFailureMessage = "Operation failed. Check server logs for details."

const maxRedactedLength = 300

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrInternal
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind maps an error to its taxonomy label for logs and status output.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrExternalTool):
		return "external_tool"
	case errors.Is(err, ErrStorage):
		return "storage"
	case errors.Is(err, ErrDegraded):
		return "degraded"
	default:
		return "internal"
	}
}

var (
	credentialPattern = regexp.MustCompile(`://[^/\s@]+@`)
	absPathPattern    = regexp.MustCompile(`(^|[\s"'=(\[,])(/[^\s"'),\]]+)`)
)

// Redact returns error text safe to store on jobs and download records:
// absolute filesystem paths and URL credentials are replaced and long
// output is truncated.
func Redact(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.TrimSpace(err.Error())
	msg = credentialPattern.ReplaceAllString(msg, "://***@")
	msg = absPathPattern.ReplaceAllString(msg, "${1}<path>")
	msg = strings.Join(strings.Fields(msg), " ")
	if len(msg) > maxRedactedLength {
		msg = msg[:maxRedactedLength] + "…"
	}
	if msg == "" {
		return GenericFailureMessage
	}
	return msg
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
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
