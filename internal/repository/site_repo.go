// This file reads the company, area and site hierarchy owned by the host application.
package repository

import (
	"context"

	"github.com/Bruce-k901/My-App-sub010/internal/database"
	"github.com/Bruce-k901/My-App-sub010/internal/models"
	"github.com/google/uuid"
)

// SiteRepository handles read-only queries on companies, areas and sites.
type SiteRepository struct{}

// NewSiteRepository creates a new instance of SiteRepository.
//
// Returns:
//   - *SiteRepository: Initialized repository instance
func NewSiteRepository() *SiteRepository {
	return &SiteRepository{}
}

// GetCompany retrieves a company by id.
//
// Returns:
//   - error: ErrNotFound if the company does not exist
func (r *SiteRepository) GetCompany(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	var c models.Company
	err := database.Conn(ctx).QueryRow(ctx,
		`SELECT id, name, created_at FROM companies WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// GetSite retrieves a site scoped to its company.
func (r *SiteRepository) GetSite(ctx context.Context, companyID, id uuid.UUID) (*models.Site, error) {
	var s models.Site
	err := database.Conn(ctx).QueryRow(ctx,
		`SELECT id, company_id, area_id, name, is_active FROM sites WHERE id = $1 AND company_id = $2`,
		id, companyID,
	).Scan(&s.ID, &s.CompanyID, &s.AreaID, &s.Name, &s.Active)
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

// GetArea retrieves an area scoped to its company.
func (r *SiteRepository) GetArea(ctx context.Context, companyID, id uuid.UUID) (*models.Area, error) {
	var a models.Area
	err := database.Conn(ctx).QueryRow(ctx,
		`SELECT id, company_id, name FROM areas WHERE id = $1 AND company_id = $2`,
		id, companyID,
	).Scan(&a.ID, &a.CompanyID, &a.Name)
	if err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

// ListActiveSites returns the active sites of a company ordered by name.
// When areaID is non-nil only sites in that area are returned.
//
// Parameters:
//   - ctx: Context for cancellation and timeout control
//   - companyID: Tenant scope
//   - areaID: Optional area filter
//
// Returns:
//   - []models.Site: Active sites, empty if none
//   - error: Database error if query fails, nil on success
func (r *SiteRepository) ListActiveSites(ctx context.Context, companyID uuid.UUID, areaID *uuid.UUID) ([]models.Site, error) {
	query := `
		SELECT id, company_id, area_id, name, is_active
		FROM sites
		WHERE company_id = $1 AND is_active
		  AND ($2::uuid IS NULL OR area_id = $2)
		ORDER BY name
	`

	rows, err := database.Conn(ctx).Query(ctx, query, companyID, areaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sites []models.Site
	for rows.Next() {
		var s models.Site
		if err := rows.Scan(&s.ID, &s.CompanyID, &s.AreaID, &s.Name, &s.Active); err != nil {
			return nil, err
		}
		sites = append(sites, s)
	}
	return sites, rows.Err()
}
