package ingest

import (
	"errors"
	"io"
	"sync/atomic"
)

// Distinct cap violations so callers can tell the user which limit was hit.
var (
	ErrFileTooLarge  = errors.New("file exceeds the per-file size cap")
	ErrTotalTooLarge = errors.New("combined upload size exceeds the request cap")
)

// TotalBudget tracks the bytes remaining for one whole request across
// all of its files. Safe for concurrent uploads.
type TotalBudget struct {
	remaining int64
}

func NewTotalBudget(totalCap int64) *TotalBudget {
	return &TotalBudget{remaining: totalCap}
}

// take reserves n bytes, failing when the request budget would be
// exceeded.
func (b *TotalBudget) take(n int64) error {
	if atomic.AddInt64(&b.remaining, -n) < 0 {
		return ErrTotalTooLarge
	}
	return nil
}

// cappedReader enforces the per-file cap and the shared request budget
// while streaming, so an oversized upload fails the moment a threshold
// would be crossed instead of after buffering the whole file.
type cappedReader struct {
	r             io.Reader
	fileRemaining int64
	budget        *TotalBudget
	count         int64
	err           error
}

func newCappedReader(r io.Reader, perFileCap int64, budget *TotalBudget) *cappedReader {
	return &cappedReader{r: r, fileRemaining: perFileCap, budget: budget}
}

func (c *cappedReader) Read(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}

	n, err := c.r.Read(p)
	if n > 0 {
		if int64(n) > c.fileRemaining {
			c.err = ErrFileTooLarge
			return 0, c.err
		}
		c.fileRemaining -= int64(n)

		if budgetErr := c.budget.take(int64(n)); budgetErr != nil {
			c.err = budgetErr
			return 0, c.err
		}
		c.count += int64(n)
	}
	return n, err
}

// BytesRead reports how many bytes passed the caps, used for telemetry.
func (c *cappedReader) BytesRead() int64 {
	return c.count
}
