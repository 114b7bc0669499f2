package services

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/curalab/fedbench/internal/core/ports"
	"github.com/curalab/fedbench/pkg/logger"
)

// RunMonitorService periodically fails evaluation runs that have been stuck
// in the running state past their timeout, e.g. after a server crash left a
// run without a worker.
type RunMonitorService struct {
	runRepo       ports.EvaluationRunRepository
	scheduler     *gocron.Scheduler
	mutex         sync.Mutex
	checkInterval time.Duration
	runTimeout    time.Duration
	isRunning     bool
	stopCh        chan struct{}
}

func NewRunMonitorService(runRepo ports.EvaluationRunRepository) *RunMonitorService {
	return &RunMonitorService{
		runRepo:       runRepo,
		checkInterval: 1 * time.Minute,
		runTimeout:    30 * time.Minute,
		stopCh:        make(chan struct{}),
	}
}

func (s *RunMonitorService) SetCheckInterval(interval time.Duration) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.checkInterval = interval
}

func (s *RunMonitorService) SetRunTimeout(timeout time.Duration) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.runTimeout = timeout
}

func (s *RunMonitorService) Start() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.isRunning {
		return nil
	}

	log := logger.WithComponent("run_monitor")
	log.Info().
		Dur("check_interval", s.checkInterval).
		Dur("run_timeout", s.runTimeout).
		Msg("Starting stale-run monitor")

	s.scheduler = gocron.NewScheduler(time.UTC)
	s.stopCh = make(chan struct{})

	_, err := s.scheduler.Every(s.checkInterval).Do(func() {
		select {
		case <-s.stopCh:
			return
		default:
			failed, err := s.runRepo.MarkStale(context.Background(), int(s.runTimeout.Seconds()))
			if err != nil {
				log.Error().Err(err).Msg("Failed to sweep stale runs")
				return
			}
			if failed > 0 {
				log.Warn().Int64("failed_runs", failed).Msg("Marked stale evaluation runs as failed")
			}
		}
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to schedule stale-run sweep")
		return err
	}

	s.scheduler.StartAsync()
	s.isRunning = true
	return nil
}

func (s *RunMonitorService) Stop() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isRunning {
		return
	}

	close(s.stopCh)
	s.scheduler.Stop()
	s.isRunning = false

	stopLog := logger.WithComponent("run_monitor")
	stopLog.Info().Msg("Stopped stale-run monitor")
}
