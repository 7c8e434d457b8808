package repositories

import (
	"context"

	"shelftrack/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// loanPolicyRepository implements LoanPolicyRepository interface
type loanPolicyRepository struct {
	db *gorm.DB
}

// NewLoanPolicyRepository creates a new loan policy repository
func NewLoanPolicyRepository(db *gorm.DB) LoanPolicyRepository {
	return &loanPolicyRepository{db: db}
}

// List returns all loan policies
func (r *loanPolicyRepository) List(ctx context.Context) ([]*models.LoanPolicy, error) {
	var policies []*models.LoanPolicy
	err := r.db.WithContext(ctx).Order("item_type ASC").Find(&policies).Error
	return policies, err
}

// GetByItemType returns the policy for one item type
func (r *loanPolicyRepository) GetByItemType(ctx context.Context, itemType string) (*models.LoanPolicy, error) {
	var policy models.LoanPolicy
	err := r.db.WithContext(ctx).Where("item_type = ?", itemType).First(&policy).Error
	if err != nil {
		return nil, err
	}
	return &policy, nil
}

// Upsert creates the policy if its item type is new, otherwise
// leaves the stored row untouched. Used by the seeder only.
func (r *loanPolicyRepository) Upsert(ctx context.Context, policy *models.LoanPolicy) error {
	var existing models.LoanPolicy
	err := r.db.WithContext(ctx).Where("item_type = ?", policy.ItemType).First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		return r.db.WithContext(ctx).Create(policy).Error
	}
	return err
}
