package geo

import "math"

// SafeZoneRadiusMeters is the radius of every safe zone around its center.
const SafeZoneRadiusMeters = 1000

// SafeZone is a named circular region where PvP is disabled.
type SafeZone struct {
	Name   string
	Center Coordinate
}

// safeZones is static configuration: the set of protected city centers.
// Order matters — SafeZoneName returns the first match.
var safeZones = []SafeZone{
	{Name: "Times Square", Center: Coordinate{Lat: 40.758, Lng: -73.9855}},
	{Name: "Trafalgar Square", Center: Coordinate{Lat: 51.508, Lng: -0.128}},
	{Name: "Shibuya Crossing", Center: Coordinate{Lat: 35.6595, Lng: 139.7005}},
	{Name: "Place de la Concorde", Center: Coordinate{Lat: 48.8656, Lng: 2.3212}},
	{Name: "Union Square", Center: Coordinate{Lat: 37.7879, Lng: -122.4075}},
	{Name: "Federation Square", Center: Coordinate{Lat: -37.818, Lng: 144.9691}},
}

// SafeZones returns the configured safe-zone table.
func SafeZones() []SafeZone {
	return safeZones
}

// SafeZoneName returns the name of the first safe zone containing pos.
// The membership test uses a latitude-corrected planar approximation rather
// than full haversine: at a 1 km radius the error is negligible and the test
// runs on every combat event.
func SafeZoneName(pos Coordinate) (string, bool) {
	for _, z := range safeZones {
		if planarDistanceMeters(pos, z.Center) <= SafeZoneRadiusMeters {
			return z.Name, true
		}
	}
	return "", false
}

// planarDistanceMeters approximates the distance between two nearby points by
// scaling the longitude delta by cos(mean latitude) before combining it with
// the latitude delta.
func planarDistanceMeters(a, b Coordinate) float64 {
	meanLat := (a.Lat + b.Lat) / 2 * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180 * math.Cos(meanLat)
	return EarthRadiusMeters * math.Sqrt(dLat*dLat+dLng*dLng)
}
