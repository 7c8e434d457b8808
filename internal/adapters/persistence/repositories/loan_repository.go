package repositories

import (
	"context"

	"shelftrack/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// loanRepository implements LoanRepository interface
type loanRepository struct {
	db *gorm.DB
}

// NewLoanRepository creates a new loan repository
func NewLoanRepository(db *gorm.DB) LoanRepository {
	return &loanRepository{db: db}
}

// Create creates a new loan
func (r *loanRepository) Create(ctx context.Context, loan *models.Loan) error {
	return r.db.WithContext(ctx).Create(loan).Error
}

// GetByID gets a loan by ID with book and borrower preloaded
func (r *loanRepository) GetByID(ctx context.Context, id uint) (*models.Loan, error) {
	var loan models.Loan
	err := r.db.WithContext(ctx).
		Preload("Book").
		Preload("Borrower").
		First(&loan, id).Error
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

// List lists loans with pagination, newest first
func (r *loanRepository) List(ctx context.Context, offset, limit int) ([]*models.Loan, int64, error) {
	var loans []*models.Loan
	var total int64

	if err := r.db.WithContext(ctx).Model(&models.Loan{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.db.WithContext(ctx).
		Preload("Book").
		Preload("Borrower").
		Order("loan_date DESC").
		Offset(offset).Limit(limit).
		Find(&loans).Error
	if err != nil {
		return nil, 0, err
	}

	return loans, total, nil
}

// ListByUser returns all loans for a borrower, newest first
func (r *loanRepository) ListByUser(ctx context.Context, userID uint) ([]*models.Loan, error) {
	var loans []*models.Loan
	err := r.db.WithContext(ctx).
		Preload("Book").
		Where("user_id = ?", userID).
		Order("loan_date DESC").
		Find(&loans).Error
	return loans, err
}

// ListByBook returns all loans for a book, newest first
func (r *loanRepository) ListByBook(ctx context.Context, bookID uint) ([]*models.Loan, error) {
	var loans []*models.Loan
	err := r.db.WithContext(ctx).
		Preload("Borrower").
		Where("book_id = ?", bookID).
		Order("loan_date DESC").
		Find(&loans).Error
	return loans, err
}

// Update updates a loan
func (r *loanRepository) Update(ctx context.Context, loan *models.Loan) error {
	return r.db.WithContext(ctx).Save(loan).Error
}

// CountOpenByBook counts open loans on a single book
func (r *loanRepository) CountOpenByBook(ctx context.Context, bookID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Loan{}).
		Where("book_id = ? AND return_date IS NULL", bookID).
		Count(&count).Error
	return count, err
}

// CountOpen counts open loans across the catalog
func (r *loanRepository) CountOpen(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Loan{}).
		Where("return_date IS NULL").
		Count(&count).Error
	return count, err
}

// AppendRenewal stores a renewal history entry
func (r *loanRepository) AppendRenewal(ctx context.Context, renewal *models.LoanRenewal) error {
	return r.db.WithContext(ctx).Create(renewal).Error
}

// ApplyRenewal persists a renewed loan and its history entry in one
// transaction so the loan never advances without a matching entry
func (r *loanRepository) ApplyRenewal(ctx context.Context, loan *models.Loan, renewal *models.LoanRenewal) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(loan).Error; err != nil {
			return err
		}
		return tx.Create(renewal).Error
	})
}

// ListRenewals returns a loan's renewal history in order
func (r *loanRepository) ListRenewals(ctx context.Context, loanID uint) ([]models.LoanRenewal, error) {
	var renewals []models.LoanRenewal
	err := r.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("renewal_date ASC, id ASC").
		Find(&renewals).Error
	return renewals, err
}
