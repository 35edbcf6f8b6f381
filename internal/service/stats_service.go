package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/destroydevs/TikFetchBot/internal/metrics"
	"github.com/destroydevs/TikFetchBot/internal/model"
)

// StatsSource is the part of the store that aggregates usage.
type StatsSource interface {
	Stats(ctx context.Context) (model.Stats, error)
}

// StatsService reports usage totals to the log and to Prometheus gauges.
type StatsService struct {
	source  StatsSource
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewStatsService(source StatsSource, m *metrics.Metrics, logger *slog.Logger) *StatsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsService{source: source, metrics: m, logger: logger.With("component", "stats")}
}

// Snapshot reads current totals and refreshes the gauges.
func (s *StatsService) Snapshot(ctx context.Context) (model.Stats, error) {
	stats, err := s.source.Stats(ctx)
	if err != nil {
		return model.Stats{}, fmt.Errorf("load stats: %w", err)
	}
	s.metrics.SetTotals(stats.Users, stats.Requests)
	return stats, nil
}

// Report is the scheduled job body.
func (s *StatsService) Report(ctx context.Context) error {
	stats, err := s.Snapshot(ctx)
	if err != nil {
		s.metrics.ObserveError("stats")
		s.logger.Warn("usage report failed", "error", err)
		return err
	}
	s.logger.Info("usage report", "users", stats.Users, "requests", stats.Requests, "avg_per_user", average(stats))
	return nil
}

func average(stats model.Stats) string {
	if stats.Users == 0 {
		return "0.00"
	}
	return fmt.Sprintf("%.2f", float64(stats.Requests)/float64(stats.Users))
}
