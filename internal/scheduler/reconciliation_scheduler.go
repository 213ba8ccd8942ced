package scheduler

import (
	"context"
	"time"

	"github.com/ikkim/storefront/pkg/logger"
	"github.com/ikkim/storefront/pkg/metrics"
	"github.com/robfig/cron/v3"
)

const reconciliationReportJob = "reconciliation_report"

// ReportWriter writes the open reconciliation failures to a workbook in dir.
type ReportWriter interface {
	SaveReport(ctx context.Context, dir string, now time.Time) (string, int, error)
}

// ReconciliationScheduler periodically exports payments that were captured
// but never turned into an order. It never re-creates orders itself.
type ReconciliationScheduler struct {
	cron    *cron.Cron
	spec    string
	dir     string
	reports ReportWriter
	metrics *metrics.CronJobMetrics
	now     func() time.Time
}

func NewReconciliationScheduler(reports ReportWriter, spec, dir string, m *metrics.CronJobMetrics) *ReconciliationScheduler {
	if spec == "" {
		spec = "0 9 * * *"
	}
	return &ReconciliationScheduler{
		cron:    cron.New(),
		spec:    spec,
		dir:     dir,
		reports: reports,
		metrics: m,
		now:     time.Now,
	}
}

// Start registers the job and starts the cron runner.
func (s *ReconciliationScheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.RunOnce(context.Background()) }); err != nil {
		logger.Error("Failed to add cron job for reconciliation report", err, map[string]interface{}{
			"spec": s.spec,
		})
		return err
	}

	s.cron.Start()
	logger.Info("Reconciliation report scheduler started", map[string]interface{}{
		"spec": s.spec,
		"dir":  s.dir,
	})
	return nil
}

// RunOnce writes one report. Errors are logged and counted, not returned,
// so a bad run never stops the schedule.
func (s *ReconciliationScheduler) RunOnce(ctx context.Context) {
	started := s.now()
	logger.Info("Starting scheduled reconciliation report")

	path, count, err := s.reports.SaveReport(ctx, s.dir, started)
	s.metrics.ObserveDuration(reconciliationReportJob, time.Since(started))
	if err != nil {
		s.metrics.IncFailure(reconciliationReportJob)
		logger.Error("Failed to write reconciliation report", err)
		return
	}
	s.metrics.IncSuccess(reconciliationReportJob)

	if count > 0 {
		logger.Warn("Payments awaiting reconciliation", map[string]interface{}{
			"open":   count,
			"report": path,
		})
		return
	}
	logger.Info("No payments awaiting reconciliation", map[string]interface{}{
		"report": path,
	})
}

// Stop waits for a running job to finish.
func (s *ReconciliationScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("Reconciliation report scheduler stopped")
}
