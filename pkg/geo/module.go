package geo

import "math"

// earthRadius is the mean radius of the Earth in meters.
const earthRadius = 6371008.8

// Coordinate is a point on the Earth's surface in decimal degrees.
type Coordinate struct {
	Lat float64
	Lng float64
}

// LatLng is the wire form of a coordinate. Senders and the receiver
// exchange plain lat/lng pairs, never any map-library objects.
type LatLng struct {
	Lat float64 `json:"lat" cbor:"lat"`
	Lng float64 `json:"lng" cbor:"lng"`
}

func (l LatLng) Coordinate() Coordinate {
	return Coordinate{Lat: l.Lat, Lng: l.Lng}
}

func (c Coordinate) LatLng() LatLng {
	return LatLng{Lat: c.Lat, Lng: c.Lng}
}

func radians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// Distance returns the great-circle distance between a and b in meters,
// computed with the haversine formula.
func Distance(a Coordinate, b Coordinate) float64 {
	latA := radians(a.Lat)
	latB := radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLng/2)*math.Sin(dLng/2)

	return 2 * earthRadius * math.Asin(math.Sqrt(h))
}

// Offset returns the coordinate reached by traveling the given distance in
// meters along the given bearing in degrees. Used to place race markers
// and by tests that need a point at a known distance.
func Offset(origin Coordinate, distance float64, bearing float64) Coordinate {
	angular := distance / earthRadius
	theta := radians(bearing)
	lat := radians(origin.Lat)
	lng := radians(origin.Lng)

	lat2 := math.Asin(math.Sin(lat)*math.Cos(angular) +
		math.Cos(lat)*math.Sin(angular)*math.Cos(theta))
	lng2 := lng + math.Atan2(
		math.Sin(theta)*math.Sin(angular)*math.Cos(lat),
		math.Cos(angular)-math.Sin(lat)*math.Sin(lat2),
	)

	return Coordinate{
		Lat: lat2 * 180 / math.Pi,
		Lng: math.Mod(lng2*180/math.Pi+540, 360) - 180,
	}
}
