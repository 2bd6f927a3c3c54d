package master

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Status Codes
// --------------------------------------------------------------------------

// Status is the closed set of error kinds a master operation can produce.
type Status uint8

const (
	StatusOK Status = iota
	// StatusTableDoesntExist: the key's table has no NORMAL tablet on this
	// master.
	StatusTableDoesntExist
	// StatusObjectDoesntExist: read on an absent object, or the
	// doesntExist reject rule fired. Remove of an absent object succeeds.
	StatusObjectDoesntExist
	// StatusObjectExists: the exists reject rule fired.
	StatusObjectExists
	// StatusWrongVersion: versionLeGiven or versionNeGiven fired.
	StatusWrongVersion
	// StatusRetry: operation on a RECOVERING tablet; the client should
	// re-resolve the tablet map and retry.
	StatusRetry
	// StatusInvalidTablets: setTablets was given overlapping ranges.
	StatusInvalidTablets
	// StatusSegmentRecoveryFailed: some segment could not be recovered from
	// any candidate backup. Reported to the coordinator, never to clients.
	StatusSegmentRecoveryFailed
	// StatusInternal: log append, replication, or segment corruption after
	// all retries were exhausted.
	StatusInternal
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusTableDoesntExist:
		return "TABLE_DOESNT_EXIST"
	case StatusObjectDoesntExist:
		return "OBJECT_DOESNT_EXIST"
	case StatusObjectExists:
		return "OBJECT_EXISTS"
	case StatusWrongVersion:
		return "WRONG_VERSION"
	case StatusRetry:
		return "RETRY"
	case StatusInvalidTablets:
		return "INVALID_TABLETS"
	case StatusSegmentRecoveryFailed:
		return "SEGMENT_RECOVERY_FAILED"
	case StatusInternal:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}

// --------------------------------------------------------------------------
// Error Type
// --------------------------------------------------------------------------

// Error is the typed outcome of a failed master operation. For reject
// failures Version carries the current object version so the caller can
// reconcile (VersionNonexistent when no object exists).
type Error struct {
	Status  Status
	Version uint64
	Msg     string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Status.String()
	}
	return fmt.Sprintf("%s: %s", e.Status, e.Msg)
}

// NewError creates an Error with the given status, current version and
// message.
func NewError(status Status, version uint64, format string, args ...interface{}) *Error {
	return &Error{Status: status, Version: version, Msg: fmt.Sprintf(format, args...)}
}

// StatusOf extracts the Status from an error. Non-master errors map to
// StatusInternal; nil maps to StatusOK.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return StatusInternal
}

// VersionOf extracts the current-version payload from an error, or
// VersionNonexistent if it carries none.
func VersionOf(err error) uint64 {
	var e *Error
	if errors.As(err, &e) {
		return e.Version
	}
	return VersionNonexistent
}
