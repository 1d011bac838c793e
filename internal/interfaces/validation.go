package interfaces

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// MaxWorkers caps the worker pool; routers throttle harder beyond this.
const MaxWorkers = 15

// ValidationError is a bad flag, config key or target. Field names the
// offending setting as the user wrote it.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ValidatePort rejects anything outside 1-65535
func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return invalid("port", "%d is outside 1-65535", port)
	}
	return nil
}

// ValidateFile checks that a word list or combo file is a readable regular
// file. field is reported back to the user, e.g. "combo".
func ValidateFile(field, path string) error {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return invalid(field, "%s does not exist", path)
	case err != nil:
		return invalid(field, "cannot access %s: %v", path, err)
	case info.IsDir():
		return invalid(field, "%s is a directory", path)
	}
	return nil
}

// ValidateWorkers bounds the worker count to [1, MaxWorkers]
func ValidateWorkers(workers int) error {
	if workers < 1 || workers > MaxWorkers {
		return invalid("threads", "%d workers requested, allowed 1-%d", workers, MaxWorkers)
	}
	return nil
}

// ValidateTarget requires a bare host. URLs are a common mistake with the
// REST service and are rejected early.
func ValidateTarget(target string) error {
	target = strings.TrimSpace(target)
	if target == "" {
		return invalid("target", "no router address given")
	}
	if strings.Contains(target, "://") {
		return invalid("target", "%q looks like a URL, pass the host only", target)
	}
	return nil
}
