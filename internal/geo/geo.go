// Package geo is the pure geometry kernel: great-circle distance, circle
// containment, and perpendicular-bisector half-plane classification over
// GeoJSON-shaped points and polygons. It holds no state and, beyond
// coordinate validation, has no failure paths.
package geo

import (
	"math"

	"hideseek/internal/apperr"
)

const (
	// EarthRadiusM is the mean earth radius used by the haversine formula.
	EarthRadiusM = 6371000.0

	// CircleSegments is the fixed vertex count for circle boundary rings.
	// Rendering only; containment always uses the exact distance formula.
	CircleSegments = 64

	// halfPlaneExtentM bounds the rectangle emitted for half-plane
	// exclusions. Far larger than any playable transit map.
	halfPlaneExtentM = 50000.0
)

// Point is a GeoJSON point, coordinates in [lng, lat] order.
type Point struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// Polygon is a GeoJSON polygon: one or more closed linear rings.
type Polygon struct {
	Type        string         `json:"type"`
	Coordinates [][][2]float64 `json:"coordinates"`
}

func NewPoint(lng, lat float64) Point {
	return Point{Type: "Point", Coordinates: [2]float64{lng, lat}}
}

func (p Point) Lng() float64 { return p.Coordinates[0] }
func (p Point) Lat() float64 { return p.Coordinates[1] }

// Validate rejects NaN/Inf and out-of-range coordinates.
func (p Point) Validate() error {
	lng, lat := p.Lng(), p.Lat()
	if math.IsNaN(lng) || math.IsInf(lng, 0) || math.IsNaN(lat) || math.IsInf(lat, 0) {
		return apperr.Validationf("coordinates must be finite numbers")
	}
	if lng < -180 || lng > 180 {
		return apperr.Validationf("longitude %v out of range [-180, 180]", lng)
	}
	if lat < -90 || lat > 90 {
		return apperr.Validationf("latitude %v out of range [-90, 90]", lat)
	}
	return nil
}

// Distance returns the great-circle distance between a and b in meters.
func Distance(a, b Point) float64 {
	lat1 := a.Lat() * math.Pi / 180
	lat2 := b.Lat() * math.Pi / 180
	dLat := (b.Lat() - a.Lat()) * math.Pi / 180
	dLng := (b.Lng() - a.Lng()) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLng*sinLng
	return 2 * EarthRadiusM * math.Asin(math.Min(1, math.Sqrt(h)))
}

// CircleContains reports whether point lies within radiusM of center.
// The boundary is inclusive: a point at exactly radiusM is contained.
func CircleContains(center Point, radiusM float64, point Point) bool {
	return Distance(center, point) <= radiusM
}

// CirclePolygon approximates the circle boundary as a closed ring of
// segments vertices. Used for client rendering only.
func CirclePolygon(center Point, radiusM float64, segments int) Polygon {
	ring := make([][2]float64, 0, segments+1)
	for i := 0; i < segments; i++ {
		bearing := 2 * math.Pi * float64(i) / float64(segments)
		p := destination(center, radiusM, bearing)
		ring = append(ring, p.Coordinates)
	}
	ring = append(ring, ring[0])
	return Polygon{Type: "Polygon", Coordinates: [][][2]float64{ring}}
}

// destination computes the point reached by travelling distanceM from
// start along the given bearing (radians, clockwise from north).
func destination(start Point, distanceM, bearing float64) Point {
	lat1 := start.Lat() * math.Pi / 180
	lng1 := start.Lng() * math.Pi / 180
	d := distanceM / EarthRadiusM

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(d) + math.Cos(lat1)*math.Sin(d)*math.Cos(bearing))
	lng2 := lng1 + math.Atan2(
		math.Sin(bearing)*math.Sin(d)*math.Cos(lat1),
		math.Cos(d)-math.Sin(lat1)*math.Sin(lat2),
	)
	return NewPoint(lng2*180/math.Pi, lat2*180/math.Pi)
}

// Side classifies a test point relative to the perpendicular bisector of
// a segment A-B.
type Side string

const (
	CloserToA = Side("closer_to_a")
	CloserToB = Side("closer_to_b")
)

// BisectorSide reports which of a/b the test point is nearer to.
// A point equidistant from both classifies as CloserToA, so a hider
// sitting exactly on the bisector has not moved closer to b.
func BisectorSide(a, b, test Point) Side {
	if Distance(test, b) < Distance(test, a) {
		return CloserToB
	}
	return CloserToA
}

// HalfPlanePolygon emits a rectangle covering the half-plane on the given
// side of the perpendicular bisector of A-B, for client rendering. The
// rectangle is centered on the bisector line through the midpoint and
// extends halfPlaneExtentM in every relevant direction.
func HalfPlanePolygon(a, b Point, side Side) Polygon {
	midLng := (a.Lng() + b.Lng()) / 2
	midLat := (a.Lat() + b.Lat()) / 2

	// Local equirectangular frame around the midpoint, meters per degree.
	mPerDegLat := EarthRadiusM * math.Pi / 180
	mPerDegLng := mPerDegLat * math.Cos(midLat*math.Pi/180)

	// Unit vector from A toward B in the local frame.
	dx := (b.Lng() - a.Lng()) * mPerDegLng
	dy := (b.Lat() - a.Lat()) * mPerDegLat
	norm := math.Hypot(dx, dy)
	if norm == 0 {
		// Degenerate segment: no bisector exists, emit an empty ring.
		return Polygon{Type: "Polygon", Coordinates: [][][2]float64{}}
	}
	ux, uy := dx/norm, dy/norm
	// Perpendicular (along the bisector line).
	px, py := -uy, ux

	// The rectangle reaches from the bisector toward A or toward B.
	toward := -1.0
	if side == CloserToB {
		toward = 1.0
	}

	e := halfPlaneExtentM
	corners := [4][2]float64{
		{px * e, py * e},
		{px*e + ux*toward*e, py*e + uy*toward*e},
		{-px*e + ux*toward*e, -py*e + uy*toward*e},
		{-px * e, -py * e},
	}

	ring := make([][2]float64, 0, 5)
	for _, c := range corners {
		ring = append(ring, [2]float64{
			midLng + c[0]/mPerDegLng,
			midLat + c[1]/mPerDegLat,
		})
	}
	ring = append(ring, ring[0])
	return Polygon{Type: "Polygon", Coordinates: [][][2]float64{ring}}
}
