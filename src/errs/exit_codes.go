package errs

import "errors"

// ExitCode is the process status reported for a failed command.
type ExitCode int

const (
	ExitSuccess         ExitCode = 0
	ExitGenericError    ExitCode = 1
	ExitValidationError ExitCode = 2
	ExitResourceMissing ExitCode = 3
	ExitStorageError    ExitCode = 4
	ExitNotFound        ExitCode = 5
)

// String returns a human-readable description of the exit code.
func (e ExitCode) String() string {
	switch e {
	case ExitSuccess:
		return "success"
	case ExitGenericError:
		return "generic error"
	case ExitValidationError:
		return "validation error"
	case ExitResourceMissing:
		return "resource missing"
	case ExitStorageError:
		return "storage error"
	case ExitNotFound:
		return "not found"
	default:
		return "unknown"
	}
}

// CodeFor maps an error to its exit code. Validation wins over the other kinds
// since it names the precondition the user has to fix first.
func CodeFor(err error) ExitCode {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, ErrValidation):
		return ExitValidationError
	case errors.Is(err, ErrResourceMissing):
		return ExitResourceMissing
	case errors.Is(err, ErrNotFound):
		return ExitNotFound
	case errors.Is(err, ErrStorage):
		return ExitStorageError
	default:
		return ExitGenericError
	}
}
