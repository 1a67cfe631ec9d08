package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable wraps any failure of the graph store.
	ErrStoreUnavailable = errors.New("graph store unavailable")
	// ErrSourceUnavailable wraps any failure fetching from the connection source.
	ErrSourceUnavailable = errors.New("connection source unavailable")
	// ErrRootResolutionFailed aborts a crawl before any page is fetched.
	ErrRootResolutionFailed = errors.New("root handle could not be resolved")
	// ErrRootNotFound is returned by Emit for a root that was never resolved.
	ErrRootNotFound = errors.New("root vertex not found")
	// ErrInvalidHandle is returned for handles that are empty after normalization.
	ErrInvalidHandle = errors.New("invalid handle")
)

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

func sourceErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrSourceUnavailable, err)
}
