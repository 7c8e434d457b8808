package services

import (
	"context"
	"errors"

	"shelftrack/internal/adapters/persistence/models"
	"shelftrack/internal/adapters/persistence/repositories"

	"gorm.io/gorm"
)

// Policy errors
var (
	ErrPolicyNotFound = errors.New("loan policy not found")
	ErrInvalidPolicy  = errors.New("loan policy values must not be negative")
)

// PolicyService manages loan policies. Policy edits apply to future
// checkouts only; open loans keep the renewal budget they started with.
type PolicyService struct {
	policyRepo repositories.LoanPolicyRepository
}

// NewPolicyService creates a new policy service
func NewPolicyService(policyRepo repositories.LoanPolicyRepository) *PolicyService {
	return &PolicyService{policyRepo: policyRepo}
}

// UpsertPolicyInput represents policy create/update input
type UpsertPolicyInput struct {
	ItemType              string `json:"itemType" validate:"required"`
	LoanPeriodDays        int    `json:"loanPeriodDays" validate:"required,min=1"`
	MaxRenewals           int    `json:"maxRenewals" validate:"min=0"`
	GracePeriodDays       int    `json:"gracePeriodDays" validate:"min=0"`
	ReservationWindowDays int    `json:"reservationWindowDays" validate:"required,min=1"`
	Description           string `json:"description"`
}

// List lists all loan policies
func (s *PolicyService) List(ctx context.Context) ([]*models.LoanPolicy, error) {
	return s.policyRepo.List(ctx)
}

// GetByItemType returns the policy for one item type
func (s *PolicyService) GetByItemType(ctx context.Context, itemType string) (*models.LoanPolicy, error) {
	policy, err := s.policyRepo.GetByItemType(ctx, itemType)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPolicyNotFound
		}
		return nil, err
	}
	return policy, nil
}

// Upsert creates or replaces the policy for an item type
func (s *PolicyService) Upsert(ctx context.Context, input *UpsertPolicyInput) (*models.LoanPolicy, error) {
	if input.ItemType == "" {
		return nil, ErrInvalidPolicy
	}
	if input.LoanPeriodDays < 1 || input.MaxRenewals < 0 || input.GracePeriodDays < 0 || input.ReservationWindowDays < 1 {
		return nil, ErrInvalidPolicy
	}

	policy := &models.LoanPolicy{
		ItemType:              input.ItemType,
		LoanPeriodDays:        input.LoanPeriodDays,
		MaxRenewals:           input.MaxRenewals,
		GracePeriodDays:       input.GracePeriodDays,
		ReservationWindowDays: input.ReservationWindowDays,
		Description:           input.Description,
	}
	if err := s.policyRepo.Upsert(ctx, policy); err != nil {
		return nil, err
	}
	return policy, nil
}
