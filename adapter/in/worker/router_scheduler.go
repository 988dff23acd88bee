package worker

import (
	"context"
	"sync/atomic"
	"time"

	"query_router/core/port/in"
	"query_router/pkg/logger"
)

// Analyzer runs a pattern analysis pass.
type Analyzer interface {
	AnalyzeAndUpdatePatterns(ctx context.Context) (*in.AnalysisReport, error)
}

// AnalysisScheduler periodically re-analyzes resolved tickets and refreshes
// the classifier overlay.
type AnalysisScheduler struct {
	analyzer  Analyzer
	refresher OverlayRefresher
	interval  time.Duration
	timeout   time.Duration
	runs      atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewAnalysisScheduler creates a scheduler; refresher may be nil.
func NewAnalysisScheduler(analyzer Analyzer, refresher OverlayRefresher, interval time.Duration) *AnalysisScheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &AnalysisScheduler{
		analyzer:  analyzer,
		refresher: refresher,
		interval:  interval,
		timeout:   5 * time.Minute,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// Start starts the scheduler.
func (s *AnalysisScheduler) Start() {
	logger.Info("[AnalysisScheduler] Starting with interval %v", s.interval)
	go s.run()
}

// Stop stops the scheduler and waits for a running pass to finish.
func (s *AnalysisScheduler) Stop() {
	logger.Info("[AnalysisScheduler] Stopping...")
	s.cancel()
	<-s.done
}

// Runs returns how many passes have completed.
func (s *AnalysisScheduler) Runs() int64 {
	return s.runs.Load()
}

func (s *AnalysisScheduler) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RunOnce(s.ctx)

	for {
		select {
		case <-s.ctx.Done():
			logger.Info("[AnalysisScheduler] Stopped")
			return
		case <-ticker.C:
			s.RunOnce(s.ctx)
		}
	}
}

// RunOnce runs a single analysis pass followed by an overlay refresh.
func (s *AnalysisScheduler) RunOnce(ctx context.Context) (*in.AnalysisReport, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	report, err := s.analyzer.AnalyzeAndUpdatePatterns(ctx)
	if err != nil {
		logger.Error("[AnalysisScheduler] Analysis failed: %v", err)
		return nil, err
	}
	s.runs.Add(1)

	logger.Info("[AnalysisScheduler] Scanned %d tickets, %d reassigned, %d team / %d keyword patterns in %v",
		report.TicketsScanned, report.TicketsReassigned, report.TeamPatterns, report.KeywordPatterns, report.Duration)

	if s.refresher != nil {
		if _, err := s.refresher.Refresh(ctx); err != nil {
			logger.Warn("[AnalysisScheduler] Overlay refresh failed: %v", err)
		}
	}
	return report, nil
}
