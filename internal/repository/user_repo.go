// This file reads the user profiles items are delegated and escalated to.
package repository

import (
	"context"
	"fmt"

	"github.com/Bruce-k901/My-App-sub010/internal/database"
	"github.com/Bruce-k901/My-App-sub010/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UserRepository handles read-only queries on profiles.
type UserRepository struct{}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository() *UserRepository {
	return &UserRepository{}
}

// GetProfile retrieves a profile that belongs to the given company.
// Delegation targets must be members of the item's company.
//
// Parameters:
//   - ctx: Context for cancellation and timeout control
//   - companyID: Tenant scope
//   - id: Profile id
//
// Returns:
//   - *models.Profile: The profile
//   - error: ErrNotFound if no such profile exists in the company, database error otherwise
func (r *UserRepository) GetProfile(ctx context.Context, companyID, id uuid.UUID) (*models.Profile, error) {
	query := `SELECT id, company_id, full_name, email FROM profiles WHERE id = $1 AND company_id = $2`

	var p models.Profile
	err := database.Conn(ctx).QueryRow(ctx, query, id, companyID).Scan(
		&p.ID, &p.CompanyID, &p.FullName, &p.Email,
	)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
