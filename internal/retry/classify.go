package retry

import (
	"errors"
	"io/fs"

	"golang.org/x/sys/unix"

	"baton/internal/services"
)

// Class is a coarse failure class used by policy allow-lists.
type Class int

const (
	ClassOther Class = iota
	ClassBusy
	ClassTooManyHandles
	ClassUnavailable
	ClassNotFound
	ClassExists
)

func (c Class) String() string {
	switch c {
	case ClassBusy:
		return "resource_busy"
	case ClassTooManyHandles:
		return "too_many_handles"
	case ClassUnavailable:
		return "temporarily_unavailable"
	case ClassNotFound:
		return "not_found"
	case ClassExists:
		return "already_exists"
	default:
		return "other"
	}
}

// TransientClasses is the allow-list used by the named presets.
var TransientClasses = []Class{ClassBusy, ClassTooManyHandles, ClassUnavailable, ClassNotFound, ClassExists}

// Classify maps err onto a failure class.
func Classify(err error) Class {
	switch {
	case err == nil:
		return ClassOther
	case errors.Is(err, unix.EBUSY), errors.Is(err, unix.ETXTBSY):
		return ClassBusy
	case errors.Is(err, unix.EMFILE), errors.Is(err, unix.ENFILE):
		return ClassTooManyHandles
	case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EINTR):
		return ClassUnavailable
	case errors.Is(err, fs.ErrNotExist):
		return ClassNotFound
	case errors.Is(err, fs.ErrExist):
		return ClassExists
	case errors.Is(err, services.ErrValidation):
		return ClassOther
	case services.IsRetryable(err):
		return ClassUnavailable
	default:
		return ClassOther
	}
}
