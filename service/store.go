package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/AnTengye/creditreport/config"
	"github.com/AnTengye/creditreport/model"
	"github.com/google/uuid"
)

var ErrReportNotFound = errors.New("report not found")

// ReportStore persists credit reports. Reports are written once and never
// updated; FindAll returns list projections, newest upload first.
type ReportStore interface {
	Create(ctx context.Context, report *model.CreditReport) error
	FindAll(ctx context.Context) ([]model.ReportListItem, error)
	FindByID(ctx context.Context, id string) (*model.CreditReport, error)
	DeleteByID(ctx context.Context, id string) (bool, error)
}

// prepareForCreate fills the identity and timestamps of a new report
func prepareForCreate(report *model.CreditReport, now time.Time) {
	if report.ID == "" {
		report.ID = uuid.New().String()
	}
	if report.UploadDate.IsZero() {
		report.UploadDate = now
	}
	report.CreatedAt = now
	report.UpdatedAt = now
}

// MemoryReportStore keeps reports in process memory. It is meant for
// development and tests; use the gorm store for anything that must survive a
// restart.
type MemoryReportStore struct {
	reports    map[string]*model.CreditReport
	mu         sync.RWMutex
	maxReports int // Maximum reports to keep, 0 = unlimited
}

func NewMemoryReportStore(cfg *config.StoreConfig) *MemoryReportStore {
	maxReports := cfg.MaxReports
	if maxReports < 0 {
		maxReports = 0
	}
	slog.Info("memory report store initialized", "max_reports", maxReports)
	return &MemoryReportStore{
		reports:    make(map[string]*model.CreditReport),
		maxReports: maxReports,
	}
}

func (s *MemoryReportStore) Create(_ context.Context, report *model.CreditReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prepareForCreate(report, time.Now())
	stored := *report
	s.reports[report.ID] = &stored

	s.cleanupIfNeeded()
	return nil
}

func (s *MemoryReportStore) FindAll(_ context.Context) ([]model.ReportListItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]model.ReportListItem, 0, len(s.reports))
	for _, r := range s.reports {
		items = append(items, r.ListItem())
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].UploadDate.After(items[j].UploadDate)
	})
	return items, nil
}

func (s *MemoryReportStore) FindByID(_ context.Context, id string) (*model.CreditReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reports[id]
	if !ok {
		return nil, ErrReportNotFound
	}
	out := *r
	return &out, nil
}

func (s *MemoryReportStore) DeleteByID(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reports[id]; !ok {
		return false, nil
	}
	delete(s.reports, id)
	return true, nil
}

// Count returns the number of reports in the store
func (s *MemoryReportStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reports)
}

// cleanupIfNeeded removes the oldest reports once the store exceeds
// maxReports. Must be called with lock held.
func (s *MemoryReportStore) cleanupIfNeeded() {
	if s.maxReports <= 0 || len(s.reports) <= s.maxReports {
		return
	}

	reports := make([]*model.CreditReport, 0, len(s.reports))
	for _, r := range s.reports {
		reports = append(reports, r)
	}
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].UploadDate.Before(reports[j].UploadDate)
	})

	removeCount := len(reports) - s.maxReports
	for i := 0; i < removeCount; i++ {
		slog.Info("evicting old report",
			"report_id", reports[i].ID,
			"upload_date", reports[i].UploadDate,
		)
		delete(s.reports, reports[i].ID)
	}
}
