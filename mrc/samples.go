package mrc

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
)

// Point is one measured (capacity, miss rate) pair.
type Point struct {
	Capacity int
	MissRate float64
}

// Samples is a miss-ratio curve: points kept in ascending capacity order,
// at most one per capacity.
type Samples struct {
	points []Point
}

func (s *Samples) search(capacity int) (int, bool) {
	return slices.BinarySearchFunc(s.points, capacity, func(p Point, c int) int {
		return p.Capacity - c
	})
}

// Set records the miss rate for capacity, overwriting any earlier value.
func (s *Samples) Set(capacity int, missRate float64) {
	i, found := s.search(capacity)
	if found {
		s.points[i].MissRate = missRate
		return
	}
	s.points = slices.Insert(s.points, i, Point{Capacity: capacity, MissRate: missRate})
}

// Get returns the miss rate recorded for capacity.
func (s *Samples) Get(capacity int) (float64, bool) {
	if i, found := s.search(capacity); found {
		return s.points[i].MissRate, true
	}
	return 0, false
}

func (s *Samples) Len() int { return len(s.points) }

func (s *Samples) Reset() { s.points = s.points[:0] }

// Points returns a copy of the curve in ascending capacity order.
func (s *Samples) Points() []Point { return slices.Clone(s.points) }

// Capacities returns the sampled capacities in ascending order.
func (s *Samples) Capacities() []int {
	out := make([]int, len(s.points))
	for i, p := range s.points {
		out[i] = p.Capacity
	}
	return out
}

// CSVHeader is the first row written by WriteCSV.
var CSVHeader = []string{"Cache size", "Miss Rate"}

// WriteCSV writes the header and one row per point. Miss rates use the
// shortest representation that round-trips; undefined rates print as NaN.
func (s *Samples) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, p := range s.points {
		row := []string{strconv.Itoa(p.Capacity), strconv.FormatFloat(p.MissRate, 'g', -1, 64)}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Save writes the curve to path, replacing any existing file.
func (s *Samples) Save(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("mrc: create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("mrc: close %s: %w", path, cerr)
		}
	}()
	if err = s.WriteCSV(f); err != nil {
		return fmt.Errorf("mrc: write %s: %w", path, err)
	}
	return nil
}
