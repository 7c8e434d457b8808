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

// Loan errors
var (
	ErrLoanNotFound = errors.New("loan not found")
)

// LoanService drives the loan lifecycle: checkout, renewal, return.
// Inventory effects go through the book service under the shared
// per-book lock so two checkouts of the last copy cannot both win.
type LoanService struct {
	loanRepo     repositories.LoanRepository
	userRepo     repositories.UserRepository
	policyRepo   repositories.LoanPolicyRepository
	books        *BookService
	reservations *ReservationService
	bookLocks    *keymutex.KeyMutex
	clk          clock.Clock
	autoFulfill  bool
}

// NewLoanService creates a new loan service. When autoFulfill is
// enabled, returning a copy promotes the head of the book's
// reservation queue; otherwise fulfillment stays staff-triggered.
func NewLoanService(
	loanRepo repositories.LoanRepository,
	userRepo repositories.UserRepository,
	policyRepo repositories.LoanPolicyRepository,
	books *BookService,
	reservations *ReservationService,
	bookLocks *keymutex.KeyMutex,
	clk clock.Clock,
	autoFulfill bool,
) *LoanService {
	return &LoanService{
		loanRepo:     loanRepo,
		userRepo:     userRepo,
		policyRepo:   policyRepo,
		books:        books,
		reservations: reservations,
		bookLocks:    bookLocks,
		clk:          clk,
		autoFulfill:  autoFulfill,
	}
}

// Checkout opens a loan for a borrower. The due date comes from the
// book's policy; max renewals is copied onto the loan so later
// policy edits never change it.
func (s *LoanService) Checkout(ctx context.Context, bookID, userID uint) (*models.Loan, error) {
	// 1. Borrower must exist and be in good standing
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

	// 2. Claim a copy under the book lock
	s.bookLocks.Lock(bookID)
	defer s.bookLocks.Unlock(bookID)

	book, err := s.books.reserveCopy(ctx, bookID)
	if err != nil {
		return nil, err
	}

	policy, err := s.policyRepo.GetByItemType(ctx, book.PolicyType)
	if err != nil {
		// Undo the claim; the loan cannot be priced without a policy.
		if _, relErr := s.books.releaseCopy(ctx, bookID); relErr != nil {
			log.Printf("❌ Failed to release copy after policy lookup error: %v", relErr)
		}
		return nil, err
	}

	now := s.clk.Now()
	loan := &models.Loan{
		BookID:      bookID,
		UserID:      userID,
		LoanDate:    now,
		DueDate:     now.AddDate(0, 0, policy.LoanPeriodDays),
		MaxRenewals: policy.MaxRenewals,
	}

	if err := s.loanRepo.Create(ctx, loan); err != nil {
		if _, relErr := s.books.releaseCopy(ctx, bookID); relErr != nil {
			log.Printf("❌ Failed to release copy after loan create error: %v", relErr)
		}
		return nil, err
	}

	log.Printf("✅ Checkout: book %d to user %d, due %s", bookID, userID, loan.DueDate.Format("2006-01-02"))
	return s.loanRepo.GetByID(ctx, loan.ID)
}

// Renew extends the effective due date by one loan period and
// appends a history entry. Renewal is permitted while overdue;
// only the renewal budget and an open loan gate it.
func (s *LoanService) Renew(ctx context.Context, loanID uint, reason string, actorID uint) (*models.Loan, error) {
	loan, err := s.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}

	s.bookLocks.Lock(loan.BookID)
	defer s.bookLocks.Unlock(loan.BookID)

	// Re-read under the lock; a concurrent renew or return may have
	// advanced the loan meanwhile.
	loan, err = s.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}

	if !loan.IsOpen() {
		return nil, domain.ErrAlreadyReturned
	}
	if loan.RenewalCount >= loan.MaxRenewals {
		return nil, domain.ErrRenewalLimitExceeded
	}

	policy, err := s.policyRepo.GetByItemType(ctx, loan.Book.PolicyType)
	if err != nil {
		return nil, err
	}

	previousDue := loan.EffectiveDueDate()
	newDue := previousDue.AddDate(0, 0, policy.LoanPeriodDays)

	loan.RenewalDueDate = &newDue
	loan.RenewalCount++
	renewal := &models.LoanRenewal{
		LoanID:          loan.ID,
		RenewalDate:     s.clk.Now(),
		PreviousDueDate: previousDue,
		NewDueDate:      newDue,
		Reason:          reason,
		ActorID:         actorID,
	}
	// One transactional write; the loan never advances without its
	// history entry.
	if err := s.loanRepo.ApplyRenewal(ctx, loan, renewal); err != nil {
		return nil, err
	}

	log.Printf("✅ Loan %d renewed (%d/%d), new due %s", loan.ID, loan.RenewalCount, loan.MaxRenewals, newDue.Format("2006-01-02"))
	return loan, nil
}

// Return closes a loan and releases its copy. Closing twice fails;
// the copy is released exactly once.
func (s *LoanService) Return(ctx context.Context, loanID uint) (*models.Loan, error) {
	loan, err := s.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}

	s.bookLocks.Lock(loan.BookID)
	defer s.bookLocks.Unlock(loan.BookID)

	// Re-read under the lock; a concurrent return may have closed it.
	loan, err = s.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if !loan.IsOpen() {
		return nil, domain.ErrAlreadyReturned
	}

	now := s.clk.Now()
	loan.ReturnDate = &now
	if err := s.loanRepo.Update(ctx, loan); err != nil {
		return nil, err
	}

	if _, err := s.books.releaseCopy(ctx, loan.BookID); err != nil {
		return nil, err
	}

	log.Printf("✅ Loan %d returned (book %d)", loan.ID, loan.BookID)

	if s.autoFulfill {
		if err := s.reservations.promoteHeadLocked(ctx, loan.BookID); err != nil {
			log.Printf("⚠️ Queue promotion failed for book %d: %v", loan.BookID, err)
		}
	}

	return loan, nil
}

// GetByID returns a loan with book and borrower attached
func (s *LoanService) GetByID(ctx context.Context, id uint) (*models.Loan, error) {
	loan, err := s.loanRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLoanNotFound
		}
		return nil, err
	}
	return loan, nil
}

// List lists all loans with pagination
func (s *LoanService) List(ctx context.Context, offset, limit int) ([]*models.Loan, int64, error) {
	return s.loanRepo.List(ctx, offset, limit)
}

// ListByUser returns a borrower's loans
func (s *LoanService) ListByUser(ctx context.Context, userID uint) ([]*models.Loan, error) {
	return s.loanRepo.ListByUser(ctx, userID)
}

// ListByBook returns a book's loans
func (s *LoanService) ListByBook(ctx context.Context, bookID uint) ([]*models.Loan, error) {
	return s.loanRepo.ListByBook(ctx, bookID)
}

// History returns a loan's renewal history in order
func (s *LoanService) History(ctx context.Context, loanID uint) ([]models.LoanRenewal, error) {
	if _, err := s.GetByID(ctx, loanID); err != nil {
		return nil, err
	}
	return s.loanRepo.ListRenewals(ctx, loanID)
}

// ActiveCount counts open loans across the catalog
func (s *LoanService) ActiveCount(ctx context.Context) (int64, error) {
	return s.loanRepo.CountOpen(ctx)
}
