package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/skycal/celestial-data-aggregation/internal/celestial/orchestrator"
)

// Scheduler periodically refreshes the recent-imagery window so the
// calendar surface has warm thumbnails.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   *orchestrator.Service
	window    int // days of recent imagery to keep warm
	interval  time.Duration
}

// New creates a new Scheduler.
func New(service *orchestrator.Service, window int, interval time.Duration) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		service:   service,
		window:    window,
		interval:  interval,
	}
}

// Start schedules the periodic refresh and starts the underlying
// scheduler. The first refresh runs immediately.
func (s *Scheduler) Start() error {
	if s.window <= 0 {
		log.Println("scheduler: no imagery window configured; nothing to schedule")
		return nil
	}

	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 60
	}

	_, err := s.scheduler.Every(minutes).Minutes().StartImmediately().Do(func() {
		log.Println("scheduler: refreshing recent imagery window")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.service.RefreshRecentImages(ctx, s.window); err != nil {
			log.Printf("scheduler: recent imagery refresh failed: %v", err)
			return
		}
		log.Println("scheduler: recent imagery window refreshed")
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
