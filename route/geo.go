package route

import (
	"math"

	"github.com/kurtesianplane/andarTayo-sub000/model"
)

const earthRadiusKm = 6371

// Great circle distance in kilometers.
func HaversineDistance(aLat, aLon, bLat, bLon float64) float64 {
	aLatRad := aLat * math.Pi / 180
	aLonRad := aLon * math.Pi / 180
	bLatRad := bLat * math.Pi / 180
	bLonRad := bLon * math.Pi / 180
	deltaLat := aLatRad - bLatRad
	deltaLon := aLonRad - bLonRad

	a := math.Cos(aLatRad)*math.Cos(bLatRad)*math.Pow(math.Sin(deltaLon/2), 2) + math.Pow(math.Sin(deltaLat/2), 2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return c * earthRadiusKm
}

// Length of the segment between two consecutive stops: the
// published DistanceToNext of the first, or failing that the
// straight line between their coordinates.
func segmentKM(a, b model.Stop) (float64, bool) {
	if a.DistanceToNext != nil {
		return *a.DistanceToNext, true
	}
	if a.HasCoordinates() && b.HasCoordinates() {
		return HaversineDistance(*a.Lat, *a.Lon, *b.Lat, *b.Lon), true
	}
	return 0, false
}
