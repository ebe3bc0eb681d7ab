// Package geom holds the 2D helpers shared by the sensor and the agents.
//
// Coordinates are playfield units with y pointing up. Headings are degrees
// measured clockwise from straight up, so heading 0 moves along +y and
// heading 90 moves along +x.
package geom

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Clamp360 wraps an angle into [0, 360).
func Clamp360(degrees float64) float64 {
	wrapped := math.Mod(degrees, 360)
	if wrapped < 0 {
		wrapped += 360
	}
	if wrapped >= 360 {
		wrapped = 0
	}
	return wrapped
}

func DegreesToRadians(degrees float64) float64 {
	return math.Pi * degrees / 180
}

func RadiansToDegrees(radians float64) float64 {
	return radians * 180 / math.Pi
}

// Project returns the point reached from origin after travelling distance
// along heading.
func Project(origin orb.Point, headingDegrees, distance float64) orb.Point {
	rad := DegreesToRadians(headingDegrees)
	return orb.Point{
		origin[0] + math.Sin(rad)*distance,
		origin[1] + math.Cos(rad)*distance,
	}
}

// Distance is the euclidean distance between two points.
func Distance(a, b orb.Point) float64 {
	return planar.Distance(a, b)
}

// HeadingTo is the heading that points from one point at another.
func HeadingTo(from, to orb.Point) float64 {
	return Clamp360(RadiansToDegrees(math.Atan2(to[0]-from[0], to[1]-from[1])))
}

// Triangle builds a closed ring from three vertices.
func Triangle(a, b, c orb.Point) orb.Ring {
	return orb.Ring{a, b, c, a}
}

// PointInTriangle reports whether p lies inside or on the edge of triangle
// abc. Each edge's half-plane test must agree in sign with the triangle's
// orientation determinant. A zero-area triangle has determinant 0, every
// test reads 0 >= 0, and so it contains every point: a zero-width sensor
// cone never loses its target.
func PointInTriangle(p, a, b, c orb.Point) bool {
	det := cross(a, b, c)
	return det*cross(a, b, p) >= 0 &&
		det*cross(b, c, p) >= 0 &&
		det*cross(c, a, p) >= 0
}

// cross is the z component of (b-a) x (c-a).
func cross(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}
