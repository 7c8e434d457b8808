package repositories

import (
	"context"
	"time"

	"shelftrack/internal/adapters/persistence/models"
)

// UserRepository defines user repository interface
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	List(ctx context.Context, offset, limit int) ([]*models.User, int64, error)
	ListByRole(ctx context.Context, role string, offset, limit int) ([]*models.User, int64, error)
	Count(ctx context.Context) (int64, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// RefreshTokenRepository defines refresh token repository interface
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	Revoke(ctx context.Context, id uint) error
	RevokeByTokenHash(ctx context.Context, tokenHash string) error
	RevokeAllByUserID(ctx context.Context, userID uint) error
	DeleteExpired(ctx context.Context) error
}

// BookRepository defines catalog repository interface
type BookRepository interface {
	Create(ctx context.Context, book *models.Book) error
	GetByID(ctx context.Context, id uint) (*models.Book, error)
	List(ctx context.Context, offset, limit int) ([]*models.Book, int64, error)
	Search(ctx context.Context, query string, offset, limit int) ([]*models.Book, int64, error)
	Update(ctx context.Context, book *models.Book) error
	UpdateCopies(ctx context.Context, bookID uint, copiesOwned, copiesAvailable int) error
	Count(ctx context.Context) (int64, error)
}

// LoanRepository defines loan repository interface
type LoanRepository interface {
	Create(ctx context.Context, loan *models.Loan) error
	GetByID(ctx context.Context, id uint) (*models.Loan, error)
	List(ctx context.Context, offset, limit int) ([]*models.Loan, int64, error)
	ListByUser(ctx context.Context, userID uint) ([]*models.Loan, error)
	ListByBook(ctx context.Context, bookID uint) ([]*models.Loan, error)
	Update(ctx context.Context, loan *models.Loan) error
	CountOpenByBook(ctx context.Context, bookID uint) (int64, error)
	CountOpen(ctx context.Context) (int64, error)
	AppendRenewal(ctx context.Context, renewal *models.LoanRenewal) error
	ApplyRenewal(ctx context.Context, loan *models.Loan, renewal *models.LoanRenewal) error
	ListRenewals(ctx context.Context, loanID uint) ([]models.LoanRenewal, error)
}

// ReservationRepository defines reservation repository interface
type ReservationRepository interface {
	Create(ctx context.Context, reservation *models.Reservation) error
	GetByID(ctx context.Context, id uint) (*models.Reservation, error)
	List(ctx context.Context, offset, limit int) ([]*models.Reservation, int64, error)
	ListByUser(ctx context.Context, userID uint) ([]*models.Reservation, error)
	ListByBook(ctx context.Context, bookID uint) ([]*models.Reservation, error)
	// ListActiveByBook returns active reservations in queue order:
	// reservation_date asc, id asc as the tie-break.
	ListActiveByBook(ctx context.Context, bookID uint) ([]*models.Reservation, error)
	GetActiveByBookAndUser(ctx context.Context, bookID, userID uint) (*models.Reservation, error)
	ListExpiredActive(ctx context.Context, now time.Time) ([]*models.Reservation, error)
	Update(ctx context.Context, reservation *models.Reservation) error
	MaxActivePosition(ctx context.Context, bookID uint) (int, error)
}

// LoanPolicyRepository defines loan policy repository interface.
// Policies are read-only reference data seeded at boot.
type LoanPolicyRepository interface {
	List(ctx context.Context) ([]*models.LoanPolicy, error)
	GetByItemType(ctx context.Context, itemType string) (*models.LoanPolicy, error)
	Upsert(ctx context.Context, policy *models.LoanPolicy) error
}
