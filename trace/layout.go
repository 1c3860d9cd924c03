package trace

import (
	"fmt"
	"iter"
)

// Layout maps every file of a Trace into its own disjoint block region.
// File i (in sorted order) owns block ids [i*Span, (i+1)*Span).
type Layout struct {
	trace     *Trace
	blockSize uint64
	span      uint64
	base      map[string]uint64
}

// Layout places files in block space. With maxFileSize == 0 the span is
// derived from the largest extent end; otherwise it is maxFileSize/blockSize
// and every file must fit inside it.
func (t *Trace) Layout(blockSize, maxFileSize uint64) (*Layout, error) {
	if blockSize == 0 {
		return nil, fmt.Errorf("trace: block size must be > 0")
	}

	var span uint64
	if maxFileSize == 0 {
		var maxEnd uint64
		for _, e := range t.extents {
			maxEnd = max(maxEnd, e.MaxEnd)
		}
		span = maxEnd/blockSize + 1
	} else {
		span = maxFileSize / blockSize
		for _, name := range t.files {
			// The last touched block must stay inside the file's region.
			if e := t.extents[name]; e.MaxEnd/blockSize >= span {
				return nil, fmt.Errorf("%w: %s ends at byte %d, bound is %d",
					ErrFileTooLarge, name, e.MaxEnd, maxFileSize)
			}
		}
	}

	l := &Layout{
		trace:     t,
		blockSize: blockSize,
		span:      span,
		base:      make(map[string]uint64, len(t.files)),
	}
	for i, name := range t.files {
		l.base[name] = uint64(i) * span
	}
	return l, nil
}

// Span returns the number of block ids reserved per file.
func (l *Layout) Span() uint64 { return l.span }

// BlockSize returns the bytes per block.
func (l *Layout) BlockSize() uint64 { return l.blockSize }

// Base returns the first block id of file's region.
func (l *Layout) Base(file string) (uint64, bool) {
	b, ok := l.base[file]
	return b, ok
}

// Len returns the number of block ids Blocks yields.
func (l *Layout) Len() int {
	n := 0
	for _, r := range l.trace.requests {
		n += int(r.End()/l.blockSize-r.Offset/l.blockSize) + 1
	}
	return n
}

// Blocks yields, for every request in order, the inclusive block range
// [offset/bs, (offset+size)/bs] shifted by the file's base.
func (l *Layout) Blocks() iter.Seq[uint64] {
	return func(yield func(uint64) bool) {
		for _, r := range l.trace.requests {
			base := l.base[r.File]
			for b := r.Offset / l.blockSize; b <= r.End()/l.blockSize; b++ {
				if !yield(base + b) {
					return
				}
			}
		}
	}
}

// Warmup yields every block of every file extent, files in sorted order.
func (l *Layout) Warmup() iter.Seq[uint64] {
	return func(yield func(uint64) bool) {
		for _, name := range l.trace.files {
			e := l.trace.extents[name]
			base := l.base[name]
			for b := e.MinOffset / l.blockSize; b <= e.MaxEnd/l.blockSize; b++ {
				if !yield(base + b) {
					return
				}
			}
		}
	}
}
