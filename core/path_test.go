package core

import (
	"errors"
	"math"
	"testing"

	"github.com/signalsfoundry/td-engine/model"
)

const testTile = 40.0

func defaultPath(t *testing.T) *Path {
	t.Helper()
	p, err := NewPath(DefaultWaypoints, testTile)
	if err != nil {
		t.Fatalf("NewPath: %v", err)
	}
	return p
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestPathLengthAndCells(t *testing.T) {
	p := defaultPath(t)

	if got, want := p.Length(), 88*testTile; !approxEqual(got, want) {
		t.Fatalf("Length() = %v, want %v", got, want)
	}
	if got := len(p.Cells()); got != 89 {
		t.Fatalf("len(Cells()) = %d, want 89", got)
	}
	segs := p.Segments()
	if len(segs) != len(DefaultWaypoints)-1 {
		t.Fatalf("len(Segments()) = %d, want %d", len(segs), len(DefaultWaypoints)-1)
	}
	var acc float64
	for i, s := range segs {
		if !approxEqual(s.Start, acc) {
			t.Fatalf("segment %d start = %v, want %v", i, s.Start, acc)
		}
		acc += s.Length
	}
}

func TestPositionAtEndpoints(t *testing.T) {
	p := defaultPath(t)
	first := DefaultWaypoints[0].Center(testTile)
	last := DefaultWaypoints[len(DefaultWaypoints)-1].Center(testTile)

	if got := p.PositionAt(0); got != first {
		t.Fatalf("PositionAt(0) = %+v, want %+v", got, first)
	}
	if got := p.PositionAt(1); got != last {
		t.Fatalf("PositionAt(1) = %+v, want %+v", got, last)
	}
	if got := p.PositionAt(1.7); got != last {
		t.Fatalf("PositionAt(1.7) = %+v, want clamp to %+v", got, last)
	}
	if got := p.PositionAt(-0.2); got != first {
		t.Fatalf("PositionAt(-0.2) = %+v, want clamp to %+v", got, first)
	}
}

func TestPositionAtAlwaysOnASegment(t *testing.T) {
	p := defaultPath(t)
	segs := p.Segments()

	onSegment := func(pt model.Point, s Segment) bool {
		const eps = 1e-6
		minX, maxX := math.Min(s.From.X, s.To.X), math.Max(s.From.X, s.To.X)
		minY, maxY := math.Min(s.From.Y, s.To.Y), math.Max(s.From.Y, s.To.Y)
		return pt.X >= minX-eps && pt.X <= maxX+eps && pt.Y >= minY-eps && pt.Y <= maxY+eps
	}

	for i := 0; i <= 2000; i++ {
		prog := float64(i) / 2000
		pt := p.PositionAt(prog)
		found := false
		for _, s := range segs {
			if onSegment(pt, s) {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("PositionAt(%v) = %+v is not on any segment", prog, pt)
		}
	}
}

func TestPositionAtInterpolatesWithinSegment(t *testing.T) {
	p := defaultPath(t)
	// First leg runs 3 tiles down from (1,0); halfway along it is 1.5 tiles.
	prog := 1.5 * testTile / p.Length()
	got := p.PositionAt(prog)
	want := model.Point{X: 60, Y: 20 + 1.5*testTile}
	if !approxEqual(got.X, want.X) || !approxEqual(got.Y, want.Y) {
		t.Fatalf("PositionAt(%v) = %+v, want %+v", prog, got, want)
	}
}

func TestIsPathCell(t *testing.T) {
	p := defaultPath(t)
	tests := []struct {
		col, row int
		want     bool
	}{
		{1, 0, true},
		{1, 3, true},
		{10, 3, true},
		{18, 5, true},
		{1, 20, true},
		{0, 0, false},
		{2, 0, false},
		{10, 5, false},
		{19, 3, false},
	}
	for _, tt := range tests {
		if got := p.IsPathCell(tt.col, tt.row); got != tt.want {
			t.Errorf("IsPathCell(%d,%d) = %v, want %v", tt.col, tt.row, got, tt.want)
		}
	}
}

func TestNewPathRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		wps  []model.Cell
		tile float64
	}{
		{"single waypoint", []model.Cell{{Col: 1, Row: 1}}, testTile},
		{"diagonal", []model.Cell{{Col: 0, Row: 0}, {Col: 2, Row: 2}}, testTile},
		{"repeated point", []model.Cell{{Col: 0, Row: 0}, {Col: 0, Row: 0}}, testTile},
		{"zero tile", []model.Cell{{Col: 0, Row: 0}, {Col: 0, Row: 3}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewPath(tt.wps, tt.tile); !errors.Is(err, ErrInvalidPath) {
				t.Fatalf("NewPath() error = %v, want ErrInvalidPath", err)
			}
		})
	}
}

func TestPathFitsGrid(t *testing.T) {
	tests := []struct {
		name       string
		wps        []model.Cell
		cols, rows int
		ok         bool
	}{
		{"default map", DefaultWaypoints, 20, 20, true},
		{"default map on 10x10", DefaultWaypoints, 10, 10, false},
		{"default map one row short", DefaultWaypoints, 20, 19, false},
		{"exit inside board", []model.Cell{{Col: 0, Row: 0}, {Col: 0, Row: 4}}, 5, 5, true},
		{"exit off right edge", []model.Cell{{Col: 0, Row: 2}, {Col: 5, Row: 2}}, 5, 5, true},
		{"exit two steps off", []model.Cell{{Col: 0, Row: 2}, {Col: 6, Row: 2}}, 5, 5, false},
		{"entry off board", []model.Cell{{Col: -1, Row: 2}, {Col: 4, Row: 2}}, 5, 5, false},
		{"leg outside board", []model.Cell{{Col: 5, Row: 0}, {Col: 5, Row: 5}}, 5, 5, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPath(tt.wps, testTile)
			if err != nil {
				t.Fatalf("NewPath: %v", err)
			}
			err = p.FitsGrid(tt.cols, tt.rows)
			if tt.ok && err != nil {
				t.Fatalf("FitsGrid(%d,%d) = %v, want nil", tt.cols, tt.rows, err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidPath) {
				t.Fatalf("FitsGrid(%d,%d) = %v, want ErrInvalidPath", tt.cols, tt.rows, err)
			}
		})
	}
}
