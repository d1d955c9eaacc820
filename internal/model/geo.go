package model

import "math"

const earthRadiusMeters = 6371000.0

// Coordinate is a WGS84 point.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether c is a finite point within WGS84 bounds.
func (c Coordinate) Valid() bool {
	return !math.IsNaN(c.Lat) && !math.IsNaN(c.Lng) && math.Abs(c.Lat) <= 90 && math.Abs(c.Lng) <= 180
}

// DistanceTo returns the great-circle distance to o in metres.
func (c Coordinate) DistanceTo(o Coordinate) float64 {
	dLat := (o.Lat - c.Lat) * math.Pi / 180
	dLon := (o.Lng - c.Lng) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(c.Lat*math.Pi/180)*math.Cos(o.Lat*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Offset returns the point reached by moving north and east by the given
// number of metres. Good enough for the short distances a map view pans.
func (c Coordinate) Offset(northMeters, eastMeters float64) Coordinate {
	dLat := northMeters / earthRadiusMeters * 180 / math.Pi
	dLng := eastMeters / (earthRadiusMeters * math.Cos(c.Lat*math.Pi/180)) * 180 / math.Pi
	return Coordinate{Lat: c.Lat + dLat, Lng: c.Lng + dLng}
}

// BoundingBox is the south-west/north-east rectangle around a set of points.
type BoundingBox struct {
	SouthWest Coordinate `json:"southWest"`
	NorthEast Coordinate `json:"northEast"`
}

// Bounds returns the bounding box of pts. The zero box is returned for an
// empty slice.
func Bounds(pts []Coordinate) BoundingBox {
	if len(pts) == 0 {
		return BoundingBox{}
	}
	b := BoundingBox{SouthWest: pts[0], NorthEast: pts[0]}
	for _, p := range pts[1:] {
		b.SouthWest.Lat = math.Min(b.SouthWest.Lat, p.Lat)
		b.SouthWest.Lng = math.Min(b.SouthWest.Lng, p.Lng)
		b.NorthEast.Lat = math.Max(b.NorthEast.Lat, p.Lat)
		b.NorthEast.Lng = math.Max(b.NorthEast.Lng, p.Lng)
	}
	return b
}

// Region is a map viewport centred on a coordinate with a span in metres.
type Region struct {
	Center          Coordinate `json:"center"`
	LatitudeMeters  float64    `json:"latitudeMeters"`
	LongitudeMeters float64    `json:"longitudeMeters"`
}
