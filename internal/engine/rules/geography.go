// internal/engine/rules/geography.go
package rules

import (
	"fmt"
	"math"
	"time"

	"vendor-ranking-workers/internal/models"
)

const (
	earthRadiusKm = 6371.0

	// Flat proximity score when the vendor covers the postal code but
	// supplies no base location to measure distance from.
	unknownDistanceScore = 0.8
)

// GeographyFilter checks that the job site is inside at least one of the
// vendor's service areas, by postal code and, when a vendor base location
// is available, by haversine distance against the area radius.
type GeographyFilter struct{}

func NewGeographyFilter() *GeographyFilter {
	return &GeographyFilter{}
}

func (f *GeographyFilter) Name() string {
	return "proximity"
}

func (f *GeographyFilter) Evaluate(vendor *models.VendorProfile, job *models.JobRequest, _ time.Time) FilterResult {
	var covering *models.ServiceArea
	for i := range vendor.ServiceAreas {
		if vendor.ServiceAreas[i].CoversPostalCode(job.Location.PostalCode) {
			covering = &vendor.ServiceAreas[i]
			break
		}
	}

	if covering == nil {
		return FilterResult{
			Passed:      false,
			Score:       0,
			Explanation: fmt.Sprintf("postal code %s is not in any service area", job.Location.PostalCode),
		}
	}

	if vendor.BaseLocation == nil || covering.MaxDistance <= 0 {
		return FilterResult{
			Passed:      true,
			Score:       unknownDistanceScore,
			Explanation: fmt.Sprintf("covers postal code %s in region %s, distance unknown", job.Location.PostalCode, covering.Region),
		}
	}

	distance := HaversineKm(
		vendor.BaseLocation.Latitude, vendor.BaseLocation.Longitude,
		job.Location.Latitude, job.Location.Longitude,
	)
	if distance > covering.MaxDistance {
		return FilterResult{
			Passed: false,
			Score:  0,
			Explanation: fmt.Sprintf("job site is %.1fkm away, beyond the %.1fkm radius of region %s",
				distance, covering.MaxDistance, covering.Region),
		}
	}

	score := models.Clamp01(1 - distance/covering.MaxDistance)
	return FilterResult{
		Passed:      true,
		Score:       score,
		Explanation: fmt.Sprintf("%.1fkm from vendor base within %.1fkm radius", distance, covering.MaxDistance),
	}
}

// HaversineKm returns the great-circle distance between two coordinates.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	rLat1 := lat1 * math.Pi / 180
	rLat2 := lat2 * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
