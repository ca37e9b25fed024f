// internal/models/job.go
package models

import (
	"fmt"
	"strings"
	"time"
)

// UrgencyLevel is the declared urgency of a job request, ordered
// low < medium < high < critical.
type UrgencyLevel int

const (
	UrgencyLow UrgencyLevel = iota
	UrgencyMedium
	UrgencyHigh
	UrgencyCritical
)

var urgencyNames = map[UrgencyLevel]string{
	UrgencyLow:      "low",
	UrgencyMedium:   "medium",
	UrgencyHigh:     "high",
	UrgencyCritical: "critical",
}

func (u UrgencyLevel) String() string {
	if name, ok := urgencyNames[u]; ok {
		return name
	}
	return fmt.Sprintf("urgency(%d)", int(u))
}

// ParseUrgency maps a wire-level urgency string to an UrgencyLevel.
func ParseUrgency(s string) (UrgencyLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return UrgencyLow, nil
	case "medium":
		return UrgencyMedium, nil
	case "high":
		return UrgencyHigh, nil
	case "critical":
		return UrgencyCritical, nil
	default:
		return UrgencyLow, fmt.Errorf("unknown urgency level %q", s)
	}
}

func (u UrgencyLevel) MarshalJSON() ([]byte, error) {
	return []byte(`"` + u.String() + `"`), nil
}

func (u *UrgencyLevel) UnmarshalJSON(data []byte) error {
	parsed, err := ParseUrgency(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// CustomerTier follows the tiers the prediction service was trained on.
type CustomerTier string

const (
	TierStandard   CustomerTier = "standard"
	TierPremium    CustomerTier = "premium"
	TierEnterprise CustomerTier = "enterprise"
)

// Location is a job site position plus its postal code.
type Location struct {
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	PostalCode string  `json:"postalCode"`
}

// JobRequest is the immutable job snapshot one ranking call evaluates
// every vendor against.
type JobRequest struct {
	ID                     string       `json:"id"`
	JobType                string       `json:"jobType"`
	Location               Location     `json:"location"`
	Urgency                UrgencyLevel `json:"urgency"`
	SLADeadline            time.Time    `json:"slaDeadline"`
	RequiredCertifications []string     `json:"requiredCertifications,omitempty"`
	CustomerTier           CustomerTier `json:"customerTier"`
	PreferredVendorIDs     []string     `json:"preferredVendorIds,omitempty"`
	BlockedVendorIDs       []string     `json:"blockedVendorIds,omitempty"`
}

// Validate rejects structurally broken job requests before any vendor
// is scored.
func (j *JobRequest) Validate() error {
	if strings.TrimSpace(j.ID) == "" {
		return fmt.Errorf("job id is required")
	}
	if strings.TrimSpace(j.JobType) == "" {
		return fmt.Errorf("job %s: job type is required", j.ID)
	}
	if j.SLADeadline.IsZero() {
		return fmt.Errorf("job %s: SLA deadline is required", j.ID)
	}
	return nil
}

// IsPreferred reports whether the vendor is on the job's preferred list.
func (j *JobRequest) IsPreferred(vendorID string) bool {
	for _, id := range j.PreferredVendorIDs {
		if id == vendorID {
			return true
		}
	}
	return false
}

// IsBlocked reports whether the vendor is on the job's blocked list.
func (j *JobRequest) IsBlocked(vendorID string) bool {
	for _, id := range j.BlockedVendorIDs {
		if id == vendorID {
			return true
		}
	}
	return false
}
