package domain

import "errors"

var (
	// ErrUpdateOutdated marks an update already incorporated into the book.
	ErrUpdateOutdated = errors.New("order book update is outdated")
	// ErrUpdateGap marks an update that starts past the watermark by more
	// than the tolerated distance, i.e. data was lost in between.
	ErrUpdateGap = errors.New("gap in order book update sequence")

	// ErrSnapshotUnavailable wraps transport or parse failures of the
	// full-depth snapshot fetch.
	ErrSnapshotUnavailable = errors.New("order book snapshot unavailable")

	ErrBookNotFound       = errors.New("order book not found")
	ErrReconcilerExists   = errors.New("reconciler already running for pair")
	ErrReconcilerNotFound = errors.New("no reconciler running for pair")
)
