package observable

import "github.com/pkg/errors"

var (
	// ErrPoisoned is returned by all operations of a store which observed a
	// panic while its lock was held. Returned errors wrap ErrPoisoned with a
	// description of the panic, and may be tested using errors.Is.
	ErrPoisoned = errors.New("observable map poisoned")
	// ErrClosed is returned to waiters which were blocked when the last
	// handle of their store was released.
	ErrClosed = errors.New("observable map closed")
	// ErrReleased is returned by operations of a handle which was released.
	ErrReleased = errors.New("observable map handle released")
)
