package model

import "fmt"

// Cell addresses one tile of the build grid.
type Cell struct {
	Col int `json:"col"`
	Row int `json:"row"`
}

// String renders the cell as "col,row".
func (c Cell) String() string {
	return fmt.Sprintf("%d,%d", c.Col, c.Row)
}

// Center returns the continuous-space center of the cell for the given tile size.
func (c Cell) Center(tileSize float64) Point {
	return Point{
		X: float64(c.Col)*tileSize + tileSize/2,
		Y: float64(c.Row)*tileSize + tileSize/2,
	}
}

// Point is a position in continuous (distance-unit) space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DistanceSq returns the squared distance between two points.
func (p Point) DistanceSq(other Point) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return dx*dx + dy*dy
}

// Within reports whether other lies inside the circle of the given radius
// centred on p (inclusive).
func (p Point) Within(other Point, radius float64) bool {
	return p.DistanceSq(other) <= radius*radius
}
