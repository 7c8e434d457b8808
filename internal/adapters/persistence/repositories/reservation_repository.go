package repositories

import (
	"context"
	"time"

	"shelftrack/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// reservationRepository implements ReservationRepository interface
type reservationRepository struct {
	db *gorm.DB
}

// NewReservationRepository creates a new reservation repository
func NewReservationRepository(db *gorm.DB) ReservationRepository {
	return &reservationRepository{db: db}
}

// Create creates a new reservation
func (r *reservationRepository) Create(ctx context.Context, reservation *models.Reservation) error {
	return r.db.WithContext(ctx).Create(reservation).Error
}

// GetByID gets a reservation by ID with book and requester preloaded
func (r *reservationRepository) GetByID(ctx context.Context, id uint) (*models.Reservation, error) {
	var reservation models.Reservation
	err := r.db.WithContext(ctx).
		Preload("Book").
		Preload("Requester").
		First(&reservation, id).Error
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

// List lists reservations with pagination, newest first
func (r *reservationRepository) List(ctx context.Context, offset, limit int) ([]*models.Reservation, int64, error) {
	var reservations []*models.Reservation
	var total int64

	if err := r.db.WithContext(ctx).Model(&models.Reservation{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.db.WithContext(ctx).
		Preload("Book").
		Preload("Requester").
		Order("reservation_date DESC").
		Offset(offset).Limit(limit).
		Find(&reservations).Error
	if err != nil {
		return nil, 0, err
	}

	return reservations, total, nil
}

// ListByUser returns all reservations for a requester, newest first
func (r *reservationRepository) ListByUser(ctx context.Context, userID uint) ([]*models.Reservation, error) {
	var reservations []*models.Reservation
	err := r.db.WithContext(ctx).
		Preload("Book").
		Where("user_id = ?", userID).
		Order("reservation_date DESC").
		Find(&reservations).Error
	return reservations, err
}

// ListByBook returns all reservations for a book, newest first
func (r *reservationRepository) ListByBook(ctx context.Context, bookID uint) ([]*models.Reservation, error) {
	var reservations []*models.Reservation
	err := r.db.WithContext(ctx).
		Preload("Requester").
		Where("book_id = ?", bookID).
		Order("reservation_date DESC").
		Find(&reservations).Error
	return reservations, err
}

// ListActiveByBook returns a book's active reservations in queue
// order: FIFO by reservation_date, ties broken by id ascending.
func (r *reservationRepository) ListActiveByBook(ctx context.Context, bookID uint) ([]*models.Reservation, error) {
	var reservations []*models.Reservation
	err := r.db.WithContext(ctx).
		Where("book_id = ? AND status = ?", bookID, "ACTIVE").
		Order("reservation_date ASC, id ASC").
		Find(&reservations).Error
	return reservations, err
}

// GetActiveByBookAndUser finds the active reservation for a
// (book, requester) pair, nil when none exists.
func (r *reservationRepository) GetActiveByBookAndUser(ctx context.Context, bookID, userID uint) (*models.Reservation, error) {
	var reservation models.Reservation
	err := r.db.WithContext(ctx).
		Where("book_id = ? AND user_id = ? AND status = ?", bookID, userID, "ACTIVE").
		First(&reservation).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

// ListExpiredActive returns active reservations whose expiration
// window has elapsed.
func (r *reservationRepository) ListExpiredActive(ctx context.Context, now time.Time) ([]*models.Reservation, error) {
	var reservations []*models.Reservation
	err := r.db.WithContext(ctx).
		Where("status = ? AND expiration_date < ?", "ACTIVE", now).
		Order("book_id ASC, reservation_date ASC").
		Find(&reservations).Error
	return reservations, err
}

// Update updates a reservation
func (r *reservationRepository) Update(ctx context.Context, reservation *models.Reservation) error {
	return r.db.WithContext(ctx).Save(reservation).Error
}

// MaxActivePosition returns the highest queue position among a
// book's active reservations, zero when the queue is empty.
func (r *reservationRepository) MaxActivePosition(ctx context.Context, bookID uint) (int, error) {
	var max *int
	err := r.db.WithContext(ctx).Model(&models.Reservation{}).
		Where("book_id = ? AND status = ?", bookID, "ACTIVE").
		Select("MAX(queue_position)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}
