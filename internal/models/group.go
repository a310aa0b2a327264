// This file contains the Company, Area and Site hierarchy and the user profiles the
// engine reads. These tables belong to the host application; the engine never writes them.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Company is the tenant root.
//
// Database: companies table
type Company struct {
	ID        uuid.UUID `db:"id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
}

// Area groups sites for regional rollups. A site belongs to at most one area.
//
// Database: areas table
type Area struct {
	ID        uuid.UUID `db:"id"`
	CompanyID uuid.UUID `db:"company_id"`
	Name      string    `db:"name"`
}

// Site is the unit every report is scoped to.
//
// Database: sites table
type Site struct {
	ID        uuid.UUID  `db:"id"`
	CompanyID uuid.UUID  `db:"company_id"`
	AreaID    *uuid.UUID `db:"area_id"` // Nil when the site is not assigned to an area
	Name      string     `db:"name"`
	Active    bool       `db:"is_active"`
}

// Profile is a user who can receive delegated items, reminders and escalations.
//
// Database: profiles table
type Profile struct {
	ID        uuid.UUID `db:"id"`
	CompanyID uuid.UUID `db:"company_id"`
	FullName  string    `db:"full_name"`
	Email     string    `db:"email"`
}
