package scanning

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/semaphore"
)

// Limited wraps a Scanner and bounds the number of scans in flight
type Limited struct {
	next Scanner
	sem  *semaphore.Weighted
}

// NewLimited returns next unchanged when max is not positive
func NewLimited(next Scanner, max int) Scanner {
	if max <= 0 {
		return next
	}
	return &Limited{
		next: next,
		sem:  semaphore.NewWeighted(int64(max)),
	}
}

// ScanReport waits for a free slot, then delegates
func (l *Limited) ScanReport(ctx context.Context, data []byte, contentType string) (*ReportData, error) {
	if !l.sem.TryAcquire(1) {
		slog.Debug("waiting for a free scan slot")
		if err := l.sem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("waiting for scan slot: %w", err)
		}
	}
	defer l.sem.Release(1)

	return l.next.ScanReport(ctx, data, contentType)
}

// Close closes the wrapped scanner
func (l *Limited) Close() error {
	return l.next.Close()
}
