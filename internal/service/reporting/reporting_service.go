package reporting

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/wattwise/internal/domain/models"
	repo "github.com/mamadbah2/wattwise/internal/repository/mongodb"
	"github.com/mamadbah2/wattwise/internal/repository/sheets"
)

// Service rolls one calendar day of per-appliance buckets into per-user
// summary documents.
type Service struct {
	users    repo.UserRepository
	reports  repo.ReportRepository
	exporter sheets.Exporter
	logger   *zap.Logger
	now      func() time.Time
}

// NewService wires a new reporting service instance. The exporter may be nil
// when spreadsheet export is not configured.
func NewService(users repo.UserRepository, reports repo.ReportRepository, exporter sheets.Exporter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		users:    users,
		reports:  reports,
		exporter: exporter,
		logger:   logger,
		now:      time.Now,
	}
}

// BuildDailyReport summarizes one user's consumption for the given day from
// the appliance day buckets. The buckets themselves are never pruned.
func BuildDailyReport(user *models.User, day time.Time, createdAt time.Time) models.DailyEnergyReport {
	day = models.TruncateToDay(day)

	report := models.DailyEnergyReport{
		UserID:      user.ID.Hex(),
		Username:    user.Username,
		Date:        day,
		ByAppliance: make(map[string]float64, len(models.ApplianceNames)),
		CreatedAt:   createdAt,
	}

	for _, name := range models.ApplianceNames {
		record := user.Appliance(name)
		consumed := record.ConsumptionOn(day)
		report.ByAppliance[string(name)] = consumed
		report.TotalConsumption += consumed
		if record.IsRunning {
			report.RunningCount++
		}
	}

	return report
}

// GenerateDailyReports builds and persists a report for every user for the
// given day, appending each to the export spreadsheet when configured. Users
// that fail to persist are logged and skipped; the first error is returned
// after the full pass.
func (s *Service) GenerateDailyReports(ctx context.Context, day time.Time) error {
	users, err := s.users.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("list users for reporting: %w", err)
	}

	var firstErr error
	for i := range users {
		report := BuildDailyReport(&users[i], day, s.now())

		if err := s.reports.SaveDailyReport(ctx, report); err != nil {
			s.logger.Error("failed to save daily report",
				zap.String("user_id", report.UserID),
				zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		if s.exporter != nil {
			if err := s.exporter.AppendDailyReport(ctx, report); err != nil {
				s.logger.Error("failed to export daily report",
					zap.String("user_id", report.UserID),
					zap.Error(err))
				if firstErr == nil {
					firstErr = err
				}
			}
		}
	}

	s.logger.Info("daily reports generated",
		zap.Time("day", models.TruncateToDay(day)),
		zap.Int("users", len(users)))
	return firstErr
}
