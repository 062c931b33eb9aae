// Package grid defines the coordinate and heading types shared by the
// navigator and session controller. It has no dependency on the wire
// protocol or the transport.
package grid

// Point is a position on the 2D integer grid.
type Point struct {
	X int
	Y int
}

// Origin is the navigation target; no obstacle ever occupies it.
var Origin = Point{X: 0, Y: 0}

// Delta returns p-q.
func (p Point) Delta(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Heading is one of the four cardinal directions a robot may face.
type Heading int

const (
	North Heading = iota
	East
	South
	West
)

func (h Heading) String() string {
	switch h {
	case North:
		return "North"
	case East:
		return "East"
	case South:
		return "South"
	case West:
		return "West"
	default:
		return "Unknown"
	}
}

// TurnLeft rotates the heading 90° counter-clockwise.
func (h Heading) TurnLeft() Heading {
	return (h + 3) % 4
}

// TurnRight rotates the heading 90° clockwise.
func (h Heading) TurnRight() Heading {
	return (h + 1) % 4
}

// Step returns the point one cell ahead of p when facing h.
func (h Heading) Step(p Point) Point {
	switch h {
	case North:
		return Point{X: p.X, Y: p.Y + 1}
	case East:
		return Point{X: p.X + 1, Y: p.Y}
	case South:
		return Point{X: p.X, Y: p.Y - 1}
	case West:
		return Point{X: p.X - 1, Y: p.Y}
	default:
		return p
	}
}

// HeadingFromDelta infers the cardinal direction of travel implied by
// moving from p0 to p1, where the two points differ in exactly one axis
// by exactly one cell. It reports false if the delta is not a unit
// axis-aligned step.
func HeadingFromDelta(p0, p1 Point) (Heading, bool) {
	dx := p1.X - p0.X
	dy := p1.Y - p0.Y
	switch {
	case dx == 1 && dy == 0:
		return East, true
	case dx == -1 && dy == 0:
		return West, true
	case dx == 0 && dy == 1:
		return North, true
	case dx == 0 && dy == -1:
		return South, true
	default:
		return 0, false
	}
}
