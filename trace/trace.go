// Package trace parses file-level I/O traces (CSV with a header row) and
// turns them into block-id streams for cache simulation.
//
// Required columns are located by name: filename, file_offset and
// request_io_size_bytes. An application column is optional and, when
// present, can be used to keep only one application's requests.
package trace

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
)

var (
	// ErrMissingColumns is returned when the header lacks a required column.
	ErrMissingColumns = errors.New("trace: required columns not found")

	// ErrEmpty is returned when no row survives the application filter.
	ErrEmpty = errors.New("trace: no requests")

	// ErrFileTooLarge is returned by Layout when a file extent does not fit
	// the configured per-file bound.
	ErrFileTooLarge = errors.New("trace: file extent exceeds max file size")

	// ErrMalformedRow is returned for rows with unparsable numeric cells.
	ErrMalformedRow = errors.New("trace: malformed row")
)

const (
	colFilename    = "filename"
	colOffset      = "file_offset"
	colSize        = "request_io_size_bytes"
	colApplication = "application"
)

// Request is one accepted trace row.
type Request struct {
	File   string
	Offset uint64
	Size   uint64
}

// End returns the exclusive byte end of the request.
func (r Request) End() uint64 { return r.Offset + r.Size }

// Extent is the byte range ever touched in one file.
type Extent struct {
	MinOffset uint64
	MaxEnd    uint64 // max(offset+size)
}

// Trace is a parsed trace: requests in input order plus per-file extents.
// It is immutable after Parse.
type Trace struct {
	requests []Request
	extents  map[string]Extent
	files    []string // sorted
}

// columns holds header positions; application is -1 when absent.
type columns struct {
	filename, offset, size, application int
}

func locate(header []string) (columns, error) {
	c := columns{-1, -1, -1, -1}
	for i, name := range header {
		switch name {
		case colFilename:
			c.filename = i
		case colOffset:
			c.offset = i
		case colSize:
			c.size = i
		case colApplication:
			c.application = i
		}
	}

	var missing []string
	if c.filename < 0 {
		missing = append(missing, colFilename)
	}
	if c.offset < 0 {
		missing = append(missing, colOffset)
	}
	if c.size < 0 {
		missing = append(missing, colSize)
	}
	if len(missing) > 0 {
		return c, fmt.Errorf("%w: missing %v, found %v", ErrMissingColumns, missing, header)
	}
	return c, nil
}

// Parse reads a CSV trace from r. When application is non-empty and the
// trace has an application column, rows of other applications are skipped.
// Rows with an empty filename are skipped.
func Parse(r io.Reader, application string) (*Trace, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: missing header", ErrEmpty)
	}
	if err != nil {
		return nil, fmt.Errorf("trace: read header: %w", err)
	}
	cols, err := locate(slices.Clone(header))
	if err != nil {
		return nil, err
	}

	t := &Trace{extents: make(map[string]Extent)}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("trace: %w", err)
		}
		line, _ := cr.FieldPos(0)

		if application != "" && cols.application >= 0 && rec[cols.application] != application {
			continue
		}
		name := rec[cols.filename]
		if name == "" {
			continue
		}
		off, err := strconv.ParseUint(rec[cols.offset], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %s %q: %w", ErrMalformedRow, line, colOffset, rec[cols.offset], err)
		}
		size, err := strconv.ParseUint(rec[cols.size], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %s %q: %w", ErrMalformedRow, line, colSize, rec[cols.size], err)
		}

		req := Request{File: name, Offset: off, Size: size}
		t.requests = append(t.requests, req)

		ext, ok := t.extents[name]
		if !ok {
			ext = Extent{MinOffset: off, MaxEnd: req.End()}
		} else {
			ext.MinOffset = min(ext.MinOffset, off)
			ext.MaxEnd = max(ext.MaxEnd, req.End())
		}
		t.extents[name] = ext
	}

	if len(t.requests) == 0 {
		if application != "" {
			return nil, fmt.Errorf("%w: application %q", ErrEmpty, application)
		}
		return nil, ErrEmpty
	}

	t.files = make([]string, 0, len(t.extents))
	for name := range t.extents {
		t.files = append(t.files, name)
	}
	slices.Sort(t.files)
	return t, nil
}

// Len returns the number of accepted requests.
func (t *Trace) Len() int { return len(t.requests) }

// Files returns file names in sorted order. The slice must not be modified.
func (t *Trace) Files() []string { return t.files }

// Extent returns the byte range touched in file.
func (t *Trace) Extent(file string) (Extent, bool) {
	e, ok := t.extents[file]
	return e, ok
}

// Requests returns accepted rows in input order. The slice must not be modified.
func (t *Trace) Requests() []Request { return t.requests }
