// internal/store/vendors.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"vendor-ranking-workers/internal/common/logger"
	"vendor-ranking-workers/internal/models"
)

// VendorStore loads vendor profiles from PostgreSQL. Structured fields
// (certifications, service areas, availability) live in jsonb columns.
type VendorStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewVendorStore(db *sql.DB, log logger.Logger) *VendorStore {
	return &VendorStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "vendor-store"}),
	}
}

const vendorColumns = `id, name, status, max_capacity, current_capacity,
	certifications, service_areas, base_location, availability_windows`

// GetByIDs loads the given vendors. Unknown IDs are skipped, not errors;
// the ranker reports them as excluded when the caller expected them.
func (s *VendorStore) GetByIDs(ctx context.Context, vendorIDs []string) ([]models.VendorProfile, error) {
	if len(vendorIDs) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(vendorIDs))
	args := make([]interface{}, len(vendorIDs))
	for i, id := range vendorIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := fmt.Sprintf(`SELECT %s FROM vendors WHERE id IN (%s)`,
		vendorColumns, strings.Join(placeholders, ", "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query vendors: %w", err)
	}
	defer rows.Close()

	return s.scanVendors(rows)
}

// ListActive loads every active vendor, capped at limit.
func (s *VendorStore) ListActive(ctx context.Context, limit int) ([]models.VendorProfile, error) {
	query := fmt.Sprintf(`SELECT %s FROM vendors WHERE status = $1 ORDER BY id LIMIT $2`,
		vendorColumns)

	rows, err := s.db.QueryContext(ctx, query, string(models.VendorActive), limit)
	if err != nil {
		return nil, fmt.Errorf("query active vendors: %w", err)
	}
	defer rows.Close()

	return s.scanVendors(rows)
}

func (s *VendorStore) scanVendors(rows *sql.Rows) ([]models.VendorProfile, error) {
	var vendors []models.VendorProfile

	for rows.Next() {
		var v models.VendorProfile
		var status string
		var certsJSON, areasJSON []byte
		var locationJSON, windowsJSON sql.NullString

		err := rows.Scan(
			&v.ID, &v.Name, &status,
			&v.MaxCapacity, &v.CurrentCapacity,
			&certsJSON, &areasJSON, &locationJSON, &windowsJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("scan vendor row: %w", err)
		}
		v.Status = models.VendorStatus(status)

		if len(certsJSON) > 0 {
			if err := json.Unmarshal(certsJSON, &v.Certifications); err != nil {
				s.logger.Warn("skipping malformed certifications column", map[string]interface{}{
					"vendorId": v.ID, "error": err.Error(),
				})
			}
		}
		if len(areasJSON) > 0 {
			if err := json.Unmarshal(areasJSON, &v.ServiceAreas); err != nil {
				s.logger.Warn("skipping malformed service_areas column", map[string]interface{}{
					"vendorId": v.ID, "error": err.Error(),
				})
			}
		}
		if locationJSON.Valid && locationJSON.String != "" {
			var loc models.Location
			if err := json.Unmarshal([]byte(locationJSON.String), &loc); err == nil {
				v.BaseLocation = &loc
			}
		}
		if windowsJSON.Valid && windowsJSON.String != "" {
			if err := json.Unmarshal([]byte(windowsJSON.String), &v.AvailabilityWindows); err != nil {
				s.logger.Warn("skipping malformed availability_windows column", map[string]interface{}{
					"vendorId": v.ID, "error": err.Error(),
				})
			}
		}

		vendors = append(vendors, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vendor rows: %w", err)
	}
	return vendors, nil
}
