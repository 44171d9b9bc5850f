package indexer

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRange = errors.New("to block must be >= from block")
	ErrZeroBatch    = errors.New("batch size must be greater than zero")
)

// BlockRange is an inclusive block range.
type BlockRange struct {
	From uint64
	To   uint64
}

// Blocks is the number of blocks in the range.
func (r BlockRange) Blocks() uint64 {
	return r.To - r.From + 1
}

func (r BlockRange) String() string {
	return fmt.Sprintf("%d-%d", r.From, r.To)
}

// LookbackRange is the window of the last lookback blocks ending at to,
// clamped at genesis. A zero lookback covers a single block.
func LookbackRange(to, lookback uint64) BlockRange {
	switch {
	case lookback == 0:
		return BlockRange{From: to, To: to}
	case to < lookback:
		return BlockRange{From: 0, To: to}
	default:
		return BlockRange{From: to + 1 - lookback, To: to}
	}
}

// SplitRange cuts [from, to] into consecutive batches of at most batchSize
// blocks, oldest first.
func SplitRange(from, to, batchSize uint64) ([]BlockRange, error) {
	if batchSize == 0 {
		return nil, ErrZeroBatch
	}
	if to < from {
		return nil, fmt.Errorf("%w: %d > %d", ErrInvalidRange, from, to)
	}

	ranges := make([]BlockRange, 0, (to-from)/batchSize+1)
	for start := from; ; {
		end := to
		if to-start >= batchSize {
			end = start + batchSize - 1
		}
		ranges = append(ranges, BlockRange{From: start, To: end})
		if end == to {
			return ranges, nil
		}
		start = end + 1
	}
}
