package services

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// SweepService runs the reservation-expiry sweep on a schedule.
// Each run also prunes expired refresh tokens.
type SweepService struct {
	reservations *ReservationService
	auth         *AuthService
	schedule     string
	cron         *cron.Cron
}

// NewSweepService creates a new sweep service. The schedule is a
// standard cron expression, e.g. "*/15 * * * *".
func NewSweepService(reservations *ReservationService, auth *AuthService, schedule string) *SweepService {
	return &SweepService{
		reservations: reservations,
		auth:         auth,
		schedule:     schedule,
		cron:         cron.New(),
	}
}

// Start registers the sweep job and starts the scheduler
func (s *SweepService) Start() error {
	_, err := s.cron.AddFunc(s.schedule, s.runOnce)
	if err != nil {
		return err
	}
	s.cron.Start()
	log.Printf("⏰ Reservation sweep scheduled: %s", s.schedule)

	// Catch up on anything that lapsed while the process was down
	go s.runOnce()
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish
func (s *SweepService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("🛑 Reservation sweep stopped")
}

func (s *SweepService) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if _, err := s.reservations.ExpireDue(ctx); err != nil {
		log.Printf("❌ Reservation sweep failed: %v", err)
	}
	if err := s.auth.CleanupExpiredTokens(ctx); err != nil {
		log.Printf("❌ Token cleanup failed: %v", err)
	}
}
