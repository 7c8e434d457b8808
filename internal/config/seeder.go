package config

import (
	"log"

	"shelftrack/internal/adapters/persistence/models"
	"shelftrack/internal/core/domain"
	"shelftrack/internal/pkg/password"

	"gorm.io/gorm"
)

// Seeder handles database seeding
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db}
}

// Run executes all seeders
func (s *Seeder) Run() error {
	log.Println("🌱 Running database seeders...")

	if err := s.seedLoanPolicies(); err != nil {
		log.Printf("⚠️ Policy seeder skipped: %v", err)
	}
	if err := s.seedAdminUser(); err != nil {
		log.Printf("⚠️ Admin seeder skipped: %v", err)
	}

	log.Println("✅ Database seeding completed")
	return nil
}

// seedLoanPolicies ensures every item type has a circulation policy.
// Checkouts fail without one, so these run on every boot.
func (s *Seeder) seedLoanPolicies() error {
	policies := []models.LoanPolicy{
		{
			ItemType:              "BOOK",
			LoanPeriodDays:        14,
			MaxRenewals:           2,
			GracePeriodDays:       3,
			ReservationWindowDays: 7,
			Description:           "Standard circulating book",
		},
		{
			ItemType:              "REFERENCE",
			LoanPeriodDays:        3,
			MaxRenewals:           0,
			GracePeriodDays:       0,
			ReservationWindowDays: 2,
			Description:           "Short-loan reference material",
		},
	}

	for _, policy := range policies {
		var count int64
		s.db.Model(&models.LoanPolicy{}).Where("item_type = ?", policy.ItemType).Count(&count)
		if count > 0 {
			continue
		}
		if err := s.db.Create(&policy).Error; err != nil {
			return err
		}
		log.Printf("✅ Loan policy created: %s", policy.ItemType)
	}
	return nil
}

// seedAdminUser seeds default admin user
// This is for development/testing only
// In production, create admin through secure process
func (s *Seeder) seedAdminUser() error {
	// Check if admin already exists
	var count int64
	s.db.Model(&models.User{}).Where("role = ?", string(domain.RoleAdmin)).Count(&count)
	if count > 0 {
		return nil // Admin already exists
	}

	hashedPassword, err := password.Hash("admin123456")
	if err != nil {
		return err
	}

	admin := &models.User{
		Username:  "admin",
		Email:     "admin@shelftrack.local",
		Password:  hashedPassword,
		FirstName: "System",
		LastName:  "Administrator",
		Role:      string(domain.RoleAdmin),
		Status:    string(domain.UserActive),
	}

	if err := s.db.Create(admin).Error; err != nil {
		return err
	}

	log.Printf("✅ Admin user created: %s", admin.Username)
	return nil
}
