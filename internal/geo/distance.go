package geo

import "math"

// earthRadiusMiles is the mean Earth radius used for great-circle distances.
const earthRadiusMiles = 3959.0

// UnknownDistance is the sentinel assigned to candidates without stored
// coordinates. It exceeds any real radius, so finite radius filters exclude
// such candidates and distance-based sorts place them last.
const UnknownDistance = math.MaxFloat64

// Point is a latitude/longitude pair in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Miles returns the great-circle distance between two points using the
// Haversine formula, rounded to one decimal place.
func Miles(a, b Point) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return math.Round(earthRadiusMiles*c*10) / 10
}

// MilesTo returns the distance from origin to a possibly missing location.
// A nil location yields UnknownDistance rather than a distance to (0,0).
func MilesTo(origin Point, loc *Point) float64 {
	if loc == nil {
		return UnknownDistance
	}
	return Miles(origin, *loc)
}

// IsKnown reports whether d is a real computed distance.
func IsKnown(d float64) bool {
	return d != UnknownDistance
}

func toRadians(deg float64) float64 {
	return deg * (math.Pi / 180)
}
