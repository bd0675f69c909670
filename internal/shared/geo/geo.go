package geo

import (
	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

// Point converts a lat/lng pair into orb's lng/lat ordering.
func Point(lat, lng float64) orb.Point {
	return orb.Point{lng, lat}
}

// DistanceM returns the great-circle distance between two coordinates in meters.
func DistanceM(lat1, lng1, lat2, lng2 float64) float64 {
	return orbgeo.DistanceHaversine(Point(lat1, lng1), Point(lat2, lng2))
}

func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	return DistanceM(lat1, lng1, lat2, lng2) / 1000
}
