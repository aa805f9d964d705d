package wal

import (
	"errors"
	"fmt"
	"os"
)

// DefaultRetainCount is the default number of WAL files to retain after compaction.
const DefaultRetainCount = 2

// Compactor deletes WAL segments whose intents are all resolved.
type Compactor struct {
	walDir      string
	retainCount int
}

// CompactorOption configures the Compactor.
type CompactorOption func(*Compactor)

// WithRetainCount sets the number of WAL files to retain.
func WithRetainCount(count int) CompactorOption {
	return func(c *Compactor) {
		if count > 0 {
			c.retainCount = count
		}
	}
}

// NewCompactor creates a new WAL compactor.
func NewCompactor(walDir string, opts ...CompactorOption) *Compactor {
	c := &Compactor{
		walDir:      walDir,
		retainCount: DefaultRetainCount,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compact removes segments with id < beforeSegment, always retaining at
// least retainCount segments. It returns the number of files removed.
func (c *Compactor) Compact(beforeSegment uint64) (int, error) {
	segs, err := listSegments(c.walDir)
	if err != nil {
		return 0, err
	}

	var toDelete []segmentInfo
	for _, s := range segs {
		if s.id < beforeSegment {
			toDelete = append(toDelete, s)
		}
	}

	// Keep the newest of the deletable segments when too few would remain.
	if keep := c.retainCount - (len(segs) - len(toDelete)); keep > 0 {
		if keep > len(toDelete) {
			keep = len(toDelete)
		}
		toDelete = toDelete[:len(toDelete)-keep]
	}

	var errs []error
	removed := 0
	for _, s := range toDelete {
		if err := os.Remove(s.path); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", s.path, err))
			continue
		}
		removed++
	}
	if len(errs) > 0 {
		return removed, fmt.Errorf("wal: failed to delete %d files: %w", len(errs), errors.Join(errs...))
	}
	return removed, nil
}

// TotalSize returns the total size of all WAL files in bytes.
func (c *Compactor) TotalSize() (int64, error) {
	segs, err := listSegments(c.walDir)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, s := range segs {
		info, err := os.Stat(s.path)
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return total, nil
}

// FileCount returns the number of WAL files.
func (c *Compactor) FileCount() (int, error) {
	segs, err := listSegments(c.walDir)
	if err != nil {
		return 0, err
	}
	return len(segs), nil
}
