package access

import "errors"

// ReasonCode is the machine-readable explanation attached to every verdict.
// Every resolution terminates in exactly one reason code.
type ReasonCode string

const (
	// Base resolver outcomes
	ReasonSelf            ReasonCode = "SELF"
	ReasonOwner           ReasonCode = "OWNER"
	ReasonMember          ReasonCode = "MEMBER"
	ReasonShared          ReasonCode = "SHARED"
	ReasonParent          ReasonCode = "PARENT"
	ReasonModuleForbidden ReasonCode = "MODULE_FORBIDDEN"
	ReasonForbidden       ReasonCode = "FORBIDDEN"

	// Additional send-message gates, layered on top of base access
	ReasonSuspended    ReasonCode = "SUSPENDED"
	ReasonThreadFrozen ReasonCode = "THREAD_FROZEN"
)

// Verdict is the capability set computed for an (actor, student) pair.
type Verdict struct {
	CanRead  bool       `json:"can_read"`
	CanWrite bool       `json:"can_write"`
	Reason   ReasonCode `json:"reason"`
}

// Denied reports whether the verdict grants nothing.
func (v Verdict) Denied() bool {
	return !v.CanRead && !v.CanWrite
}

// ErrProfileNotFound signals a missing profile row. Callers must map it to
// 403, never 404, so an unauthorized caller cannot probe for existence.
var ErrProfileNotFound = errors.New("profile not found")
