// internal/engine/rules/certification.go
package rules

import (
	"fmt"
	"strings"
	"time"

	"vendor-ranking-workers/internal/models"
)

const (
	// Bonus per surplus valid certification beyond the required set.
	surplusCertBonus = 0.02
	maxCertBonus     = 0.10
)

// CertificationFilter requires every certification the job demands to be
// matched by a verified, unexpired vendor certification. Matching is a
// case-insensitive substring check so "EPA 608" satisfies a requirement
// of "epa".
type CertificationFilter struct{}

func NewCertificationFilter() *CertificationFilter {
	return &CertificationFilter{}
}

func (f *CertificationFilter) Name() string {
	return "certification"
}

func (f *CertificationFilter) Evaluate(vendor *models.VendorProfile, job *models.JobRequest, now time.Time) FilterResult {
	required := job.RequiredCertifications
	if len(required) == 0 {
		return FilterResult{
			Passed:      true,
			Score:       1.0,
			Explanation: "no certifications required",
		}
	}

	valid := make([]models.Certification, 0, len(vendor.Certifications))
	for _, c := range vendor.Certifications {
		if c.IsValid(now) {
			valid = append(valid, c)
		}
	}

	matched := 0
	var missing []string
	for _, req := range required {
		if matchesAny(req, valid) {
			matched++
		} else {
			missing = append(missing, req)
		}
	}

	if matched < len(required) {
		return FilterResult{
			Passed: false,
			Score:  float64(matched) / float64(len(required)),
			Explanation: fmt.Sprintf("missing required certification(s): %s (%d/%d matched)",
				strings.Join(missing, ", "), matched, len(required)),
		}
	}

	surplus := len(valid) - matched
	bonus := surplusCertBonus * float64(surplus)
	if bonus > maxCertBonus {
		bonus = maxCertBonus
	}
	return FilterResult{
		Passed:      true,
		Score:       models.Clamp01(1.0 + bonus),
		Explanation: fmt.Sprintf("all %d required certifications verified, %d surplus", len(required), surplus),
	}
}

func matchesAny(required string, certs []models.Certification) bool {
	req := strings.ToLower(strings.TrimSpace(required))
	for _, c := range certs {
		name := strings.ToLower(c.Name)
		if strings.Contains(name, req) || strings.Contains(req, name) {
			return true
		}
	}
	return false
}
