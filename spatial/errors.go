package spatial

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
)

const (
	// ErrTypeInvalidArgument is the error type returned when an item, a
	// position or an option is not valid.
	ErrTypeInvalidArgument = "invalid_argument"

	// ErrTypeOutOfRange is the error type returned when a position is too far
	// away from the origin to be indexed.
	ErrTypeOutOfRange = "out_of_range"
)

func errZeroItem() error {
	return errors.New("item is a zero value").
		WithType(ErrTypeInvalidArgument)
}

func errInvalidPosition(p Vector3) error {
	return errors.New("position is not finite").
		WithType(ErrTypeInvalidArgument).
		WithTag("position", p)
}

func errPositionOutOfRange(p Vector3) error {
	return errors.New("position is out of range").
		WithType(ErrTypeOutOfRange).
		WithTag("position", p)
}

// invariant panics when a structural invariant of the tree is broken. This
// always denotes a bug in this package.
func invariant(ok bool, msg string) {
	if !ok {
		panic(errors.New(msg).WithType("invariant_violation"))
	}
}
