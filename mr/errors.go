package mr

import "errors"

var (
	// ErrOutOfMemory indicates the upstream or backing facility could not
	// satisfy a request, or a limiting adaptor rejected it. Recoverable by
	// freeing memory and retrying.
	ErrOutOfMemory = errors.New("mr: out of memory")

	// ErrInvalidArgument indicates a request a validating resource refused,
	// e.g. deallocating a block it did not produce or with the wrong size.
	ErrInvalidArgument = errors.New("mr: invalid argument")

	// ErrConfiguration indicates misuse of resource wiring: reading the default
	// registry before installation, re-installing the current default, or
	// building a cyclic resource graph.
	ErrConfiguration = errors.New("mr: configuration error")
)
