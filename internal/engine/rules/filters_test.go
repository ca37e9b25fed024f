// internal/engine/rules/filters_test.go
package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"vendor-ranking-workers/internal/models"
)

var testNow = time.Date(2026, time.March, 10, 14, 0, 0, 0, time.UTC) // a Tuesday

func activeVendor() *models.VendorProfile {
	return &models.VendorProfile{
		ID:              "vendor-1",
		Name:            "Acme HVAC",
		Status:          models.VendorActive,
		MaxCapacity:     10,
		CurrentCapacity: 3,
		ServiceAreas: []models.ServiceArea{
			{Region: "north", PostalCodes: []string{"75001", "75002"}, MaxDistance: 50},
		},
		BaseLocation: &models.Location{Latitude: 32.98, Longitude: -96.89, PostalCode: "75001"},
	}
}

func testJob() *models.JobRequest {
	return &models.JobRequest{
		ID:          "job-1",
		JobType:     "hvac_repair",
		Urgency:     models.UrgencyMedium,
		SLADeadline: testNow.Add(24 * time.Hour),
		Location:    models.Location{Latitude: 32.99, Longitude: -96.90, PostalCode: "75001"},
	}
}

func TestAvailabilityFilter(t *testing.T) {
	f := NewAvailabilityFilter()

	tests := []struct {
		name      string
		mutate    func(v *models.VendorProfile)
		wantPass  bool
		wantScore float64
	}{
		{
			name:      "active vendor with headroom",
			mutate:    func(v *models.VendorProfile) {},
			wantPass:  true,
			wantScore: 0.7,
		},
		{
			name:     "inactive vendor fails",
			mutate:   func(v *models.VendorProfile) { v.Status = models.VendorInactive },
			wantPass: false,
		},
		{
			name:     "suspended vendor fails",
			mutate:   func(v *models.VendorProfile) { v.Status = models.VendorSuspended },
			wantPass: false,
		},
		{
			name:     "at capacity fails",
			mutate:   func(v *models.VendorProfile) { v.CurrentCapacity = v.MaxCapacity },
			wantPass: false,
		},
		{
			name: "outside every availability window fails",
			mutate: func(v *models.VendorProfile) {
				v.AvailabilityWindows = []models.AvailabilityWindow{
					{DayOfWeek: time.Monday, StartHour: 8, EndHour: 18, Timezone: "UTC"},
				}
			},
			wantPass: false,
		},
		{
			name: "inside a window passes",
			mutate: func(v *models.VendorProfile) {
				v.AvailabilityWindows = []models.AvailabilityWindow{
					{DayOfWeek: time.Tuesday, StartHour: 8, EndHour: 18, Timezone: "UTC"},
				}
			},
			wantPass:  true,
			wantScore: 0.7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vendor := activeVendor()
			tt.mutate(vendor)

			result := f.Evaluate(vendor, testJob(), testNow)

			assert.Equal(t, tt.wantPass, result.Passed)
			if tt.wantPass {
				assert.InDelta(t, tt.wantScore, result.Score, 0.001)
			} else {
				assert.Zero(t, result.Score)
			}
			assert.NotEmpty(t, result.Explanation)
		})
	}
}

func TestGeographyFilter(t *testing.T) {
	f := NewGeographyFilter()

	t.Run("postal code outside every service area fails", func(t *testing.T) {
		job := testJob()
		job.Location.PostalCode = "99999"

		result := f.Evaluate(activeVendor(), job, testNow)

		assert.False(t, result.Passed)
		assert.Zero(t, result.Score)
		assert.Contains(t, result.Explanation, "99999")
	})

	t.Run("covered postal code without base location gets flat score", func(t *testing.T) {
		vendor := activeVendor()
		vendor.BaseLocation = nil

		result := f.Evaluate(vendor, testJob(), testNow)

		assert.True(t, result.Passed)
		assert.InDelta(t, 0.8, result.Score, 0.001)
	})

	t.Run("close job scores near one", func(t *testing.T) {
		result := f.Evaluate(activeVendor(), testJob(), testNow)

		assert.True(t, result.Passed)
		assert.Greater(t, result.Score, 0.9)
	})

	t.Run("job beyond radius fails even with covered postal code", func(t *testing.T) {
		vendor := activeVendor()
		vendor.ServiceAreas[0].MaxDistance = 1

		job := testJob()
		job.Location.Latitude = 33.5 // ~58km north

		result := f.Evaluate(vendor, job, testNow)

		assert.False(t, result.Passed)
		assert.Zero(t, result.Score)
	})

	t.Run("case-insensitive postal code match", func(t *testing.T) {
		vendor := activeVendor()
		vendor.ServiceAreas[0].PostalCodes = []string{"sw1a 1aa"}
		vendor.BaseLocation = nil

		job := testJob()
		job.Location.PostalCode = "SW1A 1AA"

		result := f.Evaluate(vendor, job, testNow)
		assert.True(t, result.Passed)
	})
}

func TestHaversineKm(t *testing.T) {
	// Dallas to Houston, roughly 362km.
	d := HaversineKm(32.7767, -96.7970, 29.7604, -95.3698)
	assert.InDelta(t, 362, d, 5)

	assert.Zero(t, HaversineKm(32.0, -96.0, 32.0, -96.0))
}

func TestCertificationFilter(t *testing.T) {
	f := NewCertificationFilter()
	future := testNow.Add(365 * 24 * time.Hour)
	past := testNow.Add(-24 * time.Hour)

	t.Run("no requirements passes with full score", func(t *testing.T) {
		result := f.Evaluate(activeVendor(), testJob(), testNow)
		assert.True(t, result.Passed)
		assert.Equal(t, 1.0, result.Score)
	})

	t.Run("all requirements matched case-insensitively", func(t *testing.T) {
		vendor := activeVendor()
		vendor.Certifications = []models.Certification{
			{Name: "EPA 608 Universal", Verified: true, ExpiresAt: future},
			{Name: "NATE Certified", Verified: true, ExpiresAt: future},
		}
		job := testJob()
		job.RequiredCertifications = []string{"epa 608", "nate"}

		result := f.Evaluate(vendor, job, testNow)
		assert.True(t, result.Passed)
	})

	t.Run("partial match fails with proportional score", func(t *testing.T) {
		vendor := activeVendor()
		vendor.Certifications = []models.Certification{
			{Name: "EPA 608", Verified: true, ExpiresAt: future},
		}
		job := testJob()
		job.RequiredCertifications = []string{"EPA 608", "NATE"}

		result := f.Evaluate(vendor, job, testNow)

		assert.False(t, result.Passed)
		assert.InDelta(t, 0.5, result.Score, 0.001)
		assert.Contains(t, result.Explanation, "NATE")
	})

	t.Run("expired certification does not count", func(t *testing.T) {
		vendor := activeVendor()
		vendor.Certifications = []models.Certification{
			{Name: "EPA 608", Verified: true, ExpiresAt: past},
		}
		job := testJob()
		job.RequiredCertifications = []string{"EPA 608"}

		result := f.Evaluate(vendor, job, testNow)
		assert.False(t, result.Passed)
	})

	t.Run("unverified certification does not count", func(t *testing.T) {
		vendor := activeVendor()
		vendor.Certifications = []models.Certification{
			{Name: "EPA 608", Verified: false, ExpiresAt: future},
		}
		job := testJob()
		job.RequiredCertifications = []string{"EPA 608"}

		result := f.Evaluate(vendor, job, testNow)
		assert.False(t, result.Passed)
	})

	t.Run("surplus certifications never push the score past one", func(t *testing.T) {
		vendor := activeVendor()
		vendor.Certifications = []models.Certification{
			{Name: "EPA 608", Verified: true, ExpiresAt: future},
			{Name: "NATE", Verified: true, ExpiresAt: future},
			{Name: "OSHA 30", Verified: true, ExpiresAt: future},
		}
		job := testJob()
		job.RequiredCertifications = []string{"EPA 608"}

		result := f.Evaluate(vendor, job, testNow)

		assert.True(t, result.Passed)
		assert.LessOrEqual(t, result.Score, 1.0)
	})
}

func TestCapacityFilter(t *testing.T) {
	f := NewCapacityFilter()

	t.Run("no configured capacity fails", func(t *testing.T) {
		vendor := activeVendor()
		vendor.MaxCapacity = 0
		vendor.CurrentCapacity = 0

		result := f.Evaluate(vendor, testJob(), testNow)
		assert.False(t, result.Passed)
	})

	t.Run("no free slot fails", func(t *testing.T) {
		vendor := activeVendor()
		vendor.CurrentCapacity = vendor.MaxCapacity

		result := f.Evaluate(vendor, testJob(), testNow)
		assert.False(t, result.Passed)
	})

	t.Run("medium urgency scores raw headroom", func(t *testing.T) {
		result := f.Evaluate(activeVendor(), testJob(), testNow)
		assert.True(t, result.Passed)
		assert.InDelta(t, 0.7, result.Score, 0.001)
	})

	t.Run("critical urgency boosts headroom but clamps at one", func(t *testing.T) {
		vendor := activeVendor()
		vendor.CurrentCapacity = 1 // 0.9 headroom * 1.5 clamps

		job := testJob()
		job.Urgency = models.UrgencyCritical

		result := f.Evaluate(vendor, job, testNow)
		assert.True(t, result.Passed)
		assert.Equal(t, 1.0, result.Score)
	})

	t.Run("last slot is halved under critical urgency", func(t *testing.T) {
		vendor := activeVendor()
		vendor.CurrentCapacity = 9

		job := testJob()
		job.Urgency = models.UrgencyCritical

		result := f.Evaluate(vendor, job, testNow)

		assert.True(t, result.Passed)
		// (1-0.9) * 1.5 * 0.5
		assert.InDelta(t, 0.075, result.Score, 0.001)
	})

	t.Run("low urgency discounts headroom", func(t *testing.T) {
		job := testJob()
		job.Urgency = models.UrgencyLow

		result := f.Evaluate(activeVendor(), job, testNow)
		assert.InDelta(t, 0.525, result.Score, 0.001)
	})
}
