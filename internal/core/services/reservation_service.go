package services

import (
	"context"
	"errors"
	"log"

	"shelftrack/internal/adapters/persistence/models"
	"shelftrack/internal/adapters/persistence/repositories"
	"shelftrack/internal/core/domain"
	"shelftrack/internal/pkg/clock"
	"shelftrack/internal/pkg/keymutex"

	"gorm.io/gorm"
)

// Reservation errors
var (
	ErrReservationNotFound = errors.New("reservation not found")
)

// ReservationService manages per-book FIFO hold queues. Queue
// positions are contiguous from 1 among active reservations and
// are renumbered whenever a reservation leaves the queue.
type ReservationService struct {
	reservationRepo repositories.ReservationRepository
	userRepo        repositories.UserRepository
	bookRepo        repositories.BookRepository
	policyRepo      repositories.LoanPolicyRepository
	notifier        Notifier
	bookLocks       *keymutex.KeyMutex
	clk             clock.Clock
}

// NewReservationService creates a new reservation service
func NewReservationService(
	reservationRepo repositories.ReservationRepository,
	userRepo repositories.UserRepository,
	bookRepo repositories.BookRepository,
	policyRepo repositories.LoanPolicyRepository,
	notifier Notifier,
	bookLocks *keymutex.KeyMutex,
	clk clock.Clock,
) *ReservationService {
	return &ReservationService{
		reservationRepo: reservationRepo,
		userRepo:        userRepo,
		bookRepo:        bookRepo,
		policyRepo:      policyRepo,
		notifier:        notifier,
		bookLocks:       bookLocks,
		clk:             clk,
	}
}

// Reserve places a hold at the tail of the book's queue. A user may
// hold at most one active reservation per book.
func (s *ReservationService) Reserve(ctx context.Context, bookID, userID uint) (*models.Reservation, error) {
	// 1. Holder must exist and be in good standing
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if !user.CanBorrow() {
		return nil, domain.ErrUserIneligible
	}

	// 2. The book must exist; its policy sets the pickup window
	book, err := s.bookRepo.GetByID(ctx, bookID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, err
	}
	policy, err := s.policyRepo.GetByItemType(ctx, book.PolicyType)
	if err != nil {
		return nil, err
	}

	s.bookLocks.Lock(bookID)
	defer s.bookLocks.Unlock(bookID)

	// 3. Reject a second active hold by the same user
	existing, err := s.reservationRepo.GetActiveByBookAndUser(ctx, bookID, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrDuplicateReservation
	}

	// 4. Tail position = current maximum + 1
	maxPos, err := s.reservationRepo.MaxActivePosition(ctx, bookID)
	if err != nil {
		return nil, err
	}

	now := s.clk.Now()
	position := maxPos + 1
	expires := now.AddDate(0, 0, policy.ReservationWindowDays)
	reservation := &models.Reservation{
		BookID:          bookID,
		UserID:          userID,
		ReservationDate: now,
		ExpirationDate:  expires,
		Status:          string(domain.ReservationActive),
		QueuePosition:   &position,
	}
	if err := s.reservationRepo.Create(ctx, reservation); err != nil {
		return nil, err
	}

	log.Printf("✅ Reservation: book %d for user %d at position %d", bookID, userID, position)
	return s.GetByID(ctx, reservation.ID)
}

// Fulfill hands the held copy to the reservation's holder. Only an
// active reservation can be fulfilled; the rest of the queue moves up.
func (s *ReservationService) Fulfill(ctx context.Context, id uint) (*models.Reservation, error) {
	reservation, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.bookLocks.Lock(reservation.BookID)
	defer s.bookLocks.Unlock(reservation.BookID)

	// Re-read under the lock; a sweep may have expired it meanwhile
	reservation, err = s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !reservation.IsActive() {
		return nil, domain.ErrNotActive
	}

	if err := s.closeLocked(ctx, reservation, domain.ReservationFulfilled); err != nil {
		return nil, err
	}

	s.notifyReady(ctx, reservation)
	log.Printf("✅ Reservation %d fulfilled (book %d, user %d)", reservation.ID, reservation.BookID, reservation.UserID)
	return reservation, nil
}

// ExpireDue sweeps reservations whose pickup window has lapsed.
// Returns the number of reservations expired.
func (s *ReservationService) ExpireDue(ctx context.Context) (int, error) {
	due, err := s.reservationRepo.ListExpiredActive(ctx, s.clk.Now())
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, reservation := range due {
		if err := s.expireOne(ctx, reservation.ID); err != nil {
			log.Printf("❌ Failed to expire reservation %d: %v", reservation.ID, err)
			continue
		}
		expired++
	}

	if expired > 0 {
		log.Printf("🧹 Expired %d lapsed reservations", expired)
	}
	return expired, nil
}

func (s *ReservationService) expireOne(ctx context.Context, id uint) error {
	reservation, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	s.bookLocks.Lock(reservation.BookID)
	defer s.bookLocks.Unlock(reservation.BookID)

	// Re-read under the lock; staff may have fulfilled it meanwhile
	reservation, err = s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !reservation.IsActive() {
		return nil
	}
	if reservation.ExpirationDate.After(s.clk.Now()) {
		return nil
	}

	return s.closeLocked(ctx, reservation, domain.ReservationExpired)
}

// promoteHeadLocked fulfills the head of the book's queue, if any.
// The caller must hold the book lock.
func (s *ReservationService) promoteHeadLocked(ctx context.Context, bookID uint) error {
	active, err := s.reservationRepo.ListActiveByBook(ctx, bookID)
	if err != nil {
		return err
	}
	if len(active) == 0 {
		return nil
	}

	head := active[0]
	if err := s.closeLocked(ctx, head, domain.ReservationFulfilled); err != nil {
		return err
	}

	s.notifyReady(ctx, head)
	log.Printf("✅ Reservation %d auto-fulfilled (book %d, user %d)", head.ID, head.BookID, head.UserID)
	return nil
}

// closeLocked moves a reservation to a terminal status, clears its
// position and renumbers the remaining queue. Caller holds the book lock.
func (s *ReservationService) closeLocked(ctx context.Context, reservation *models.Reservation, status domain.ReservationStatus) error {
	reservation.Status = string(status)
	reservation.QueuePosition = nil
	if err := s.reservationRepo.Update(ctx, reservation); err != nil {
		return err
	}
	return s.renumberLocked(ctx, reservation.BookID)
}

// renumberLocked reassigns positions 1..n over the active queue in
// arrival order. Caller holds the book lock.
func (s *ReservationService) renumberLocked(ctx context.Context, bookID uint) error {
	active, err := s.reservationRepo.ListActiveByBook(ctx, bookID)
	if err != nil {
		return err
	}
	for i, reservation := range active {
		want := i + 1
		if reservation.QueuePosition != nil && *reservation.QueuePosition == want {
			continue
		}
		position := want
		reservation.QueuePosition = &position
		if err := s.reservationRepo.Update(ctx, reservation); err != nil {
			return err
		}
	}
	return nil
}

func (s *ReservationService) notifyReady(ctx context.Context, reservation *models.Reservation) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.ReservationReady(ctx, reservation); err != nil {
		log.Printf("⚠️ Reservation-ready notification failed: %v", err)
	}
}

// GetByID returns a reservation with book and holder attached
func (s *ReservationService) GetByID(ctx context.Context, id uint) (*models.Reservation, error) {
	reservation, err := s.reservationRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	return reservation, nil
}

// List lists all reservations with pagination
func (s *ReservationService) List(ctx context.Context, offset, limit int) ([]*models.Reservation, int64, error) {
	return s.reservationRepo.List(ctx, offset, limit)
}

// ListByUser returns a holder's reservations
func (s *ReservationService) ListByUser(ctx context.Context, userID uint) ([]*models.Reservation, error) {
	return s.reservationRepo.ListByUser(ctx, userID)
}

// ListByBook returns a book's reservations, terminal ones included
func (s *ReservationService) ListByBook(ctx context.Context, bookID uint) ([]*models.Reservation, error) {
	return s.reservationRepo.ListByBook(ctx, bookID)
}

// Queue returns a book's active queue in position order
func (s *ReservationService) Queue(ctx context.Context, bookID uint) ([]*models.Reservation, error) {
	if _, err := s.bookRepo.GetByID(ctx, bookID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, err
	}
	return s.reservationRepo.ListActiveByBook(ctx, bookID)
}
