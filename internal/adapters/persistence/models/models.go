package models

import (
	"time"

	"shelftrack/internal/core/domain"

	"gorm.io/gorm"
)

// ============================================================
// Accounts & Auth Tables
// ============================================================

// User represents users table
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Username  string         `gorm:"uniqueIndex;size:20;not null" json:"username"`
	Email     string         `gorm:"uniqueIndex;size:100;not null" json:"email"`
	Password  string         `gorm:"size:255;not null" json:"-"`
	FirstName string         `gorm:"size:50;not null" json:"first_name"`
	LastName  string         `gorm:"size:50;not null" json:"last_name"`
	Role      string         `gorm:"size:20;default:'MEMBER';index" json:"role"`
	Status    string         `gorm:"size:20;default:'ACTIVE'" json:"status"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// CanBorrow reports whether the account may open new loans or reservations
func (u *User) CanBorrow() bool {
	return domain.UserStatus(u.Status).CanBorrow()
}

// UserResponse DTO
type UserResponse struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func (u *User) ToResponse() *UserResponse {
	return &UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
		Status:    u.Status,
		CreatedAt: u.CreatedAt,
	}
}

// RefreshToken represents refresh_tokens table
type RefreshToken struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"index;not null" json:"user_id"`
	TokenHash string     `gorm:"size:255;not null;index" json:"-"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	RevokedAt *time.Time `gorm:"index" json:"revoked_at"`
	User      User       `gorm:"foreignKey:UserID" json:"-"`
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

func (rt *RefreshToken) IsRevoked() bool {
	return rt.RevokedAt != nil
}

func (rt *RefreshToken) IsExpired() bool {
	return time.Now().After(rt.ExpiresAt)
}

// ============================================================
// Catalog Tables
// ============================================================

// Book represents books table. Copies are tracked in aggregate:
// copies_available = copies_owned - open loans on this book.
type Book struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Title           string         `gorm:"size:255;not null;index" json:"title"`
	Authors         string         `gorm:"size:255" json:"authors"`
	Publisher       string         `gorm:"size:150" json:"publisher"`
	PublishedDate   string         `gorm:"size:20" json:"published_date"`
	Description     string         `gorm:"type:text" json:"description"`
	ISBN            string         `gorm:"size:20;index" json:"isbn"`
	ExternalID      string         `gorm:"size:50;index" json:"external_id"`
	ImageURL        string         `gorm:"size:500" json:"image_url"`
	AverageRating   float64        `gorm:"type:decimal(3,2);default:0" json:"average_rating"`
	RatingsCount    int            `gorm:"default:0" json:"ratings_count"`
	CopiesOwned     int            `gorm:"not null;default:0" json:"copies_owned"`
	CopiesAvailable int            `gorm:"not null;default:0" json:"copies_available"`
	PolicyType      string         `gorm:"size:20;not null;default:'BOOK'" json:"policy_type"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Book) TableName() string {
	return "books"
}

// IsDiscontinued reports whether the title has been soft-retired
func (b *Book) IsDiscontinued() bool {
	return b.CopiesOwned == 0
}

// CopiesOnLoan derives the number of copies currently out
func (b *Book) CopiesOnLoan() int {
	return b.CopiesOwned - b.CopiesAvailable
}

// LoanPolicy represents loan_policies table. Read-only reference data
// keyed by item type; max_renewals is copied onto each loan at
// checkout so later policy edits never rewrite existing loans.
type LoanPolicy struct {
	ID                    uint      `gorm:"primaryKey" json:"id"`
	ItemType              string    `gorm:"size:20;uniqueIndex;not null" json:"item_type"`
	LoanPeriodDays        int       `gorm:"not null" json:"loan_period_days"`
	MaxRenewals           int       `gorm:"not null" json:"max_renewals"`
	GracePeriodDays       int       `gorm:"not null;default:0" json:"grace_period_days"`
	ReservationWindowDays int       `gorm:"not null;default:7" json:"reservation_window_days"`
	Description           string    `gorm:"type:text" json:"description"`
	CreatedAt             time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (LoanPolicy) TableName() string {
	return "loan_policies"
}

// ============================================================
// Auto Migration
// ============================================================

// AutoMigrate runs auto migration for all tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&RefreshToken{},
		&LoanPolicy{},
		&Book{},
		&Loan{},
		&LoanRenewal{},
		&Reservation{},
	)
}
