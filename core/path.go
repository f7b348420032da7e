package core

import (
	"errors"
	"fmt"
	"sort"

	"github.com/signalsfoundry/td-engine/model"
)

// ErrInvalidPath indicates waypoints that do not form a usable path.
var ErrInvalidPath = errors.New("invalid path")

// DefaultWaypoints is the S-shaped route of the standard 20x20 map. The last
// waypoint sits one row below the grid so enemies walk off the board.
var DefaultWaypoints = []model.Cell{
	{Col: 1, Row: 0},
	{Col: 1, Row: 3},
	{Col: 18, Row: 3},
	{Col: 18, Row: 7},
	{Col: 1, Row: 7},
	{Col: 1, Row: 11},
	{Col: 18, Row: 11},
	{Col: 18, Row: 15},
	{Col: 1, Row: 15},
	{Col: 1, Row: 20},
}

// Segment is one straight leg of the path in continuous space.
type Segment struct {
	From   model.Point
	To     model.Point
	Length float64
	// Start is the arc length at which this segment begins.
	Start float64
}

// Path is the immutable geometry enemies walk along.
type Path struct {
	waypoints []model.Cell
	segments  []Segment
	length    float64
	cells     map[model.Cell]struct{}
}

// NewPath derives segments, total length and the occupied cell set from an
// orthogonal polyline of grid waypoints.
func NewPath(waypoints []model.Cell, tileSize float64) (*Path, error) {
	if tileSize <= 0 {
		return nil, fmt.Errorf("%w: tile size %v", ErrInvalidPath, tileSize)
	}
	if len(waypoints) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 waypoints, got %d", ErrInvalidPath, len(waypoints))
	}

	p := &Path{
		waypoints: append([]model.Cell(nil), waypoints...),
		cells:     make(map[model.Cell]struct{}),
	}

	for i := 0; i < len(waypoints)-1; i++ {
		a, b := waypoints[i], waypoints[i+1]
		sameCol, sameRow := a.Col == b.Col, a.Row == b.Row
		if sameCol == sameRow {
			// Either identical points or a diagonal step.
			return nil, fmt.Errorf("%w: waypoints %d (%s) and %d (%s) must differ in exactly one axis",
				ErrInvalidPath, i, a, i+1, b)
		}

		from, to := a.Center(tileSize), b.Center(tileSize)
		// Orthogonal legs: the length is the absolute delta on the moving axis.
		length := abs(to.X-from.X) + abs(to.Y-from.Y)
		p.segments = append(p.segments, Segment{From: from, To: to, Length: length, Start: p.length})
		p.length += length

		if sameCol {
			for r := min(a.Row, b.Row); r <= max(a.Row, b.Row); r++ {
				p.cells[model.Cell{Col: a.Col, Row: r}] = struct{}{}
			}
		} else {
			for c := min(a.Col, b.Col); c <= max(a.Col, b.Col); c++ {
				p.cells[model.Cell{Col: c, Row: a.Row}] = struct{}{}
			}
		}
	}
	return p, nil
}

// FitsGrid reports whether every waypoint lies on a cols x rows board. The
// final waypoint may instead sit one step outside an edge, the exit cell
// enemies walk off through.
func (p *Path) FitsGrid(cols, rows int) error {
	inside := func(c model.Cell) bool {
		return c.Col >= 0 && c.Col < cols && c.Row >= 0 && c.Row < rows
	}
	last := len(p.waypoints) - 1
	for i, wp := range p.waypoints[:last] {
		if !inside(wp) {
			return fmt.Errorf("%w: waypoint %d (%s) outside %dx%d grid", ErrInvalidPath, i, wp, cols, rows)
		}
	}
	exit := p.waypoints[last]
	if inside(exit) {
		return nil
	}
	clamped := model.Cell{Col: min(max(exit.Col, 0), cols-1), Row: min(max(exit.Row, 0), rows-1)}
	if abs(float64(exit.Col-clamped.Col))+abs(float64(exit.Row-clamped.Row)) != 1 {
		return fmt.Errorf("%w: exit waypoint %d (%s) is not adjacent to the %dx%d grid", ErrInvalidPath, last, exit, cols, rows)
	}
	return nil
}

// MustNewPath is NewPath for static inputs known to be valid.
func MustNewPath(waypoints []model.Cell, tileSize float64) *Path {
	p, err := NewPath(waypoints, tileSize)
	if err != nil {
		panic(err)
	}
	return p
}

// Length is the total arc length.
func (p *Path) Length() float64 { return p.length }

// Segments returns a copy of the derived segments.
func (p *Path) Segments() []Segment { return append([]Segment(nil), p.segments...) }

// Waypoints returns a copy of the source waypoints.
func (p *Path) Waypoints() []model.Cell { return append([]model.Cell(nil), p.waypoints...) }

// Start is the entry point (progress 0).
func (p *Path) Start() model.Point { return p.segments[0].From }

// End is the exit point (progress 1).
func (p *Path) End() model.Point { return p.segments[len(p.segments)-1].To }

// PositionAt maps normalized progress to a point on the path. Progress >= 1
// clamps to the final waypoint; progress <= 0 to the first.
func (p *Path) PositionAt(progress float64) model.Point {
	if progress <= 0 {
		return p.Start()
	}
	dist := progress * p.length
	for _, seg := range p.segments {
		if dist <= seg.Start+seg.Length {
			t := (dist - seg.Start) / seg.Length
			return model.Point{
				X: seg.From.X + (seg.To.X-seg.From.X)*t,
				Y: seg.From.Y + (seg.To.Y-seg.From.Y)*t,
			}
		}
	}
	return p.End()
}

// IsPathCell reports whether the cell lies on the path.
func (p *Path) IsPathCell(col, row int) bool {
	_, ok := p.cells[model.Cell{Col: col, Row: row}]
	return ok
}

// Cells lists path cells ordered by row, then column.
func (p *Path) Cells() []model.Cell {
	out := make([]model.Cell, 0, len(p.cells))
	for c := range p.cells {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].Col < out[j].Col
	})
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
