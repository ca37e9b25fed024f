// internal/workers/ranking/rank-vendors/models.go
package rankvendors

import (
	"vendor-ranking-workers/internal/models"
)

// Input carries the ranking request from process variables. Vendors and
// metrics may be supplied inline; otherwise they are loaded from the
// vendor store and the metrics provider.
type Input struct {
	Job       models.JobRequest                `json:"job"`
	VendorIDs []string                         `json:"vendorIds,omitempty"`
	Vendors   []models.VendorProfile           `json:"vendors,omitempty"`
	Metrics   map[string]*models.VendorMetrics `json:"vendorMetrics,omitempty"`
}

type Output struct {
	Ranking *models.RankingResult `json:"ranking"`
}

// inputSchema rejects malformed process variables before any scoring.
var inputSchema = map[string]interface{}{
	"type":     "object",
	"required": []string{"job"},
	"properties": map[string]interface{}{
		"job": map[string]interface{}{
			"type":     "object",
			"required": []string{"id", "jobType", "urgency", "slaDeadline"},
			"properties": map[string]interface{}{
				"id":      map[string]interface{}{"type": "string", "minLength": 1},
				"jobType": map[string]interface{}{"type": "string", "minLength": 1},
				"urgency": map[string]interface{}{
					"type": "string",
					"enum": []string{"low", "medium", "high", "critical"},
				},
				"slaDeadline": map[string]interface{}{"type": "string"},
			},
		},
		"vendorIds": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
		"vendors": map[string]interface{}{"type": "array"},
	},
}
