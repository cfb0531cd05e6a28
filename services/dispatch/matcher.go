package dispatch

import (
	"math"

	"cargalibre/models"
)

// FindTrip returns the first catalog trip the vehicle can serve: the trip's
// weight and volume must fit the vehicle, and the trip origin must lie within
// radiusKm of the vehicle's reported position. Returns nil when nothing
// qualifies.
func FindTrip(t models.Transport, trips []models.Trip, radiusKm float64) *models.Trip {
	for i := range trips {
		trip := trips[i]
		if trip.Weight > t.Capacity || trip.Volume > t.Volume {
			continue
		}
		distanceKm := haversine(t.Location.Latitude, t.Location.Longitude,
			trip.OriginLat, trip.OriginLon)
		if distanceKm <= radiusKm {
			return &trip
		}
	}
	return nil
}

// haversine calculates the great-circle distance (in km) between two lat/lon points.
func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}
