package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/Bruce-k901/My-App-sub010/internal/models"
	"github.com/Bruce-k901/My-App-sub010/internal/scoring"
)

// RollupService summarises the latest report of every site in an area or company.
type RollupService struct {
	stores Stores
}

func NewRollupService(st Stores) *RollupService {
	return &RollupService{stores: st}
}

// RollupArea summarises the active sites of one area.
func (s *RollupService) RollupArea(ctx context.Context, companyID, areaID uuid.UUID, includeTest bool) (*models.Rollup, error) {
	area, err := s.stores.Sites.GetArea(ctx, companyID, areaID)
	if err != nil {
		return nil, translate(err, ErrAreaNotFound)
	}
	sites, err := s.stores.Rollups.LatestPerSite(ctx, companyID, &area.ID, includeTest)
	if err != nil {
		return nil, fmt.Errorf("rollup area %s: %w", area.ID, err)
	}
	return Aggregate("area", area.ID, sites), nil
}

// RollupCompany summarises every active site of a company.
func (s *RollupService) RollupCompany(ctx context.Context, companyID uuid.UUID, includeTest bool) (*models.Rollup, error) {
	company, err := s.stores.Sites.GetCompany(ctx, companyID)
	if err != nil {
		return nil, translate(err, ErrCompanyNotFound)
	}
	sites, err := s.stores.Rollups.LatestPerSite(ctx, company.ID, nil, includeTest)
	if err != nil {
		return nil, fmt.Errorf("rollup company %s: %w", company.ID, err)
	}
	return Aggregate("company", company.ID, sites), nil
}

// Aggregate folds per-site summaries into a rollup. Sites without a report stay in
// PerSite but do not count towards AvgScore.
func Aggregate(scope string, scopeID uuid.UUID, sites []models.SiteSummary) *models.Rollup {
	r := &models.Rollup{Scope: scope, ScopeID: scopeID, PerSite: make([]models.SiteSummary, 0, len(sites))}
	scores := make([]*float64, 0, len(sites))
	for _, s := range sites {
		r.CriticalTotal += s.CriticalCount
		r.MediumTotal += s.MediumCount
		r.LowTotal += s.LowCount
		r.ResolvedTotal += s.ResolvedCount
		r.TotalItems += s.TotalItems
		scores = append(scores, s.HealthScore)
		r.PerSite = append(r.PerSite, s)
	}
	r.AvgScore = scoring.Mean(scores)

	sort.SliceStable(r.PerSite, func(i, j int) bool {
		a, b := r.PerSite[i], r.PerSite[j]
		if a.CriticalCount != b.CriticalCount {
			return a.CriticalCount > b.CriticalCount
		}
		if a.MediumCount != b.MediumCount {
			return a.MediumCount > b.MediumCount
		}
		if a.LowCount != b.LowCount {
			return a.LowCount > b.LowCount
		}
		return a.SiteName < b.SiteName
	})
	return r
}
