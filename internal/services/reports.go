package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Bruce-k901/My-App-sub010/internal/models"
	"github.com/Bruce-k901/My-App-sub010/internal/repository"
	"github.com/Bruce-k901/My-App-sub010/internal/scoring"
)

// ReportService reads reports with their presentation helpers.
type ReportService struct {
	stores Stores
}

func NewReportService(st Stores) *ReportService {
	return &ReportService{stores: st}
}

// GetReport returns a report with its items, site name, posture and week-over-week trend.
func (s *ReportService) GetReport(ctx context.Context, companyID, reportID uuid.UUID) (*models.ReportView, error) {
	report, err := s.stores.Reports.GetByID(ctx, companyID, reportID)
	if err != nil {
		return nil, translate(err, ErrReportNotFound)
	}
	items, err := s.stores.Items.ListByReport(ctx, report.ID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	if items == nil {
		items = []models.Item{}
	}
	view := s.view(ctx, *report, map[uuid.UUID]string{})
	view.Items = items
	return &view, nil
}

// List returns report summaries without items, newest first.
func (s *ReportService) List(ctx context.Context, f repository.ReportFilter) ([]models.ReportView, error) {
	reports, err := s.stores.Reports.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	names := map[uuid.UUID]string{}
	out := make([]models.ReportView, 0, len(reports))
	for _, r := range reports {
		out = append(out, s.view(ctx, r, names))
	}
	return out, nil
}

// view decorates a report. Site names are looked up once per site; a site that can no
// longer be read leaves the name empty.
func (s *ReportService) view(ctx context.Context, r models.Report, names map[uuid.UUID]string) models.ReportView {
	name, ok := names[r.SiteID]
	if !ok {
		if site, err := s.stores.Sites.GetSite(ctx, r.CompanyID, r.SiteID); err == nil {
			name = site.Name
		}
		names[r.SiteID] = name
	}
	return models.ReportView{
		Report:   r,
		SiteName: name,
		Posture:  scoring.Posture(r.HealthScore),
		Trend:    scoring.Trend(r.PreviousWeekScore, r.HealthScore),
	}
}
