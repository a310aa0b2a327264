// This file provides the aggregation query behind area and company rollups.
package repository

import (
	"context"

	"github.com/Bruce-k901/My-App-sub010/internal/database"
	"github.com/Bruce-k901/My-App-sub010/internal/models"
	"github.com/google/uuid"
)

// RollupRepository reads the latest report of every site in a scope.
type RollupRepository struct{}

// NewRollupRepository creates a new instance of RollupRepository.
//
// Returns:
//   - *RollupRepository: Initialized repository instance
func NewRollupRepository() *RollupRepository {
	return &RollupRepository{}
}

// LatestPerSite returns one summary per active site of the company, optionally limited
// to an area. Each summary carries the counters of the site's most recent report, test
// reports included only when includeTest is set; sites without such a report have a nil
// ReportID and HealthScore.
//
// Parameters:
//   - ctx: Context for cancellation and timeout control
//   - companyID: Tenant scope
//   - areaID: Optional area filter
//   - includeTest: Whether generated test reports may be picked as latest
//
// Returns:
//   - []models.SiteSummary: One entry per site ordered by site name
//   - error: Database error if query fails, nil on success
//
// Database: LEFT JOIN LATERAL picks the newest report per site via idx_reports_site_created
func (r *RollupRepository) LatestPerSite(ctx context.Context, companyID uuid.UUID, areaID *uuid.UUID, includeTest bool) ([]models.SiteSummary, error) {
	query := `
		SELECT s.id, s.name, s.area_id,
		       lr.id, lr.health_score,
		       COALESCE(lr.critical_count, 0), COALESCE(lr.medium_count, 0), COALESCE(lr.low_count, 0),
		       COALESCE(lr.completed_items, 0), COALESCE(lr.total_items, 0),
		       lr.created_at
		FROM sites s
		LEFT JOIN LATERAL (
			SELECT r.id, r.health_score, r.critical_count, r.medium_count, r.low_count,
			       r.completed_items, r.total_items, r.created_at
			FROM health_check_reports r
			WHERE r.site_id = s.id AND ($3 OR NOT r.is_test_data)
			ORDER BY r.created_at DESC
			LIMIT 1
		) lr ON true
		WHERE s.company_id = $1 AND s.is_active
		  AND ($2::uuid IS NULL OR s.area_id = $2)
		ORDER BY s.name
	`

	rows, err := database.Conn(ctx).Query(ctx, query, companyID, areaID, includeTest)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SiteSummary
	for rows.Next() {
		var s models.SiteSummary
		if err := rows.Scan(
			&s.SiteID, &s.SiteName, &s.AreaID,
			&s.ReportID, &s.HealthScore,
			&s.CriticalCount, &s.MediumCount, &s.LowCount,
			&s.ResolvedCount, &s.TotalItems,
			&s.ReportedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
