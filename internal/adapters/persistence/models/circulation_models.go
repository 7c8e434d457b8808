package models

import (
	"time"

	"shelftrack/internal/core/domain"
)

// ============================================================
// Circulation Tables
// ============================================================

// Loan represents loans table. A loan is never deleted, only closed
// by setting returned_at. Overdue is derived from dates at read time.
type Loan struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	BookID         uint       `gorm:"not null;index" json:"book_id"`
	UserID         uint       `gorm:"not null;index" json:"user_id"`
	LoanDate       time.Time  `gorm:"not null" json:"loan_date"`
	DueDate        time.Time  `gorm:"not null" json:"due_date"`
	RenewalDueDate *time.Time `json:"renewal_due_date"`
	ReturnDate     *time.Time `gorm:"index" json:"return_date"`
	RenewalCount   int        `gorm:"not null;default:0" json:"renewal_count"`
	MaxRenewals    int        `gorm:"not null" json:"max_renewals"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Book     Book          `gorm:"foreignKey:BookID" json:"book,omitempty"`
	Borrower User          `gorm:"foreignKey:UserID" json:"borrower,omitempty"`
	Renewals []LoanRenewal `gorm:"foreignKey:LoanID" json:"renewals,omitempty"`
}

func (Loan) TableName() string {
	return "loans"
}

// IsOpen reports whether the loan has not been returned
func (l *Loan) IsOpen() bool {
	return l.ReturnDate == nil
}

// EffectiveDueDate is the renewal due date when set, else the
// original due date.
func (l *Loan) EffectiveDueDate() time.Time {
	if l.RenewalDueDate != nil {
		return *l.RenewalDueDate
	}
	return l.DueDate
}

// IsOverdue reports whether the loan is open and past its effective
// due date at the given instant.
func (l *Loan) IsOverdue(now time.Time) bool {
	return l.IsOpen() && now.After(l.EffectiveDueDate())
}

// IsRenewable reports whether another renewal is permitted
func (l *Loan) IsRenewable() bool {
	return l.IsOpen() && l.RenewalCount < l.MaxRenewals
}

// State returns the derived lifecycle label for display
func (l *Loan) State(now time.Time) string {
	switch {
	case !l.IsOpen():
		return domain.LoanStateReturned
	case l.IsOverdue(now):
		return domain.LoanStateOverdue
	}
	return domain.LoanStateActive
}

// LoanResponse DTO carrying derived fields the client renders
type LoanResponse struct {
	ID             uint          `json:"id"`
	BookID         uint          `json:"book_id"`
	UserID         uint          `json:"user_id"`
	BookTitle      string        `json:"book_title,omitempty"`
	BorrowerName   string        `json:"borrower_name,omitempty"`
	LoanDate       time.Time     `json:"loan_date"`
	DueDate        time.Time     `json:"due_date"`
	RenewalDueDate *time.Time    `json:"renewal_due_date"`
	ReturnDate     *time.Time    `json:"return_date"`
	RenewalCount   int           `json:"renewal_count"`
	MaxRenewals    int           `json:"max_renewals"`
	State          string        `json:"state"`
	IsOverdue      bool          `json:"is_overdue"`
	IsRenewable    bool          `json:"is_renewable"`
	Renewals       []LoanRenewal `json:"renewals,omitempty"`
}

func (l *Loan) ToResponse(now time.Time) *LoanResponse {
	resp := &LoanResponse{
		ID:             l.ID,
		BookID:         l.BookID,
		UserID:         l.UserID,
		LoanDate:       l.LoanDate,
		DueDate:        l.DueDate,
		RenewalDueDate: l.RenewalDueDate,
		ReturnDate:     l.ReturnDate,
		RenewalCount:   l.RenewalCount,
		MaxRenewals:    l.MaxRenewals,
		State:          l.State(now),
		IsOverdue:      l.IsOverdue(now),
		IsRenewable:    l.IsRenewable(),
		Renewals:       l.Renewals,
	}
	if l.Book.ID != 0 {
		resp.BookTitle = l.Book.Title
	}
	if l.Borrower.ID != 0 {
		resp.BorrowerName = l.Borrower.FirstName + " " + l.Borrower.LastName
	}
	return resp
}

// LoanRenewal represents loan_renewals table, the ordered renewal
// history of a loan.
type LoanRenewal struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	LoanID          uint      `gorm:"not null;index" json:"loan_id"`
	RenewalDate     time.Time `gorm:"not null" json:"renewal_date"`
	PreviousDueDate time.Time `gorm:"not null" json:"previous_due_date"`
	NewDueDate      time.Time `gorm:"not null" json:"new_due_date"`
	Reason          string    `gorm:"size:255" json:"reason"`
	ActorID         uint      `gorm:"not null" json:"actor_id"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (LoanRenewal) TableName() string {
	return "loan_renewals"
}

// Reservation represents reservations table. queue_position is a
// contiguous 1-based rank among a book's active reservations and is
// cleared once the reservation reaches a terminal state.
type Reservation struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	BookID          uint      `gorm:"not null;index" json:"book_id"`
	UserID          uint      `gorm:"not null;index" json:"user_id"`
	ReservationDate time.Time `gorm:"not null" json:"reservation_date"`
	ExpirationDate  time.Time `gorm:"not null;index" json:"expiration_date"`
	Status          string    `gorm:"size:15;default:'ACTIVE';index" json:"status"`
	QueuePosition   *int      `json:"queue_position"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Book      Book `gorm:"foreignKey:BookID" json:"book,omitempty"`
	Requester User `gorm:"foreignKey:UserID" json:"requester,omitempty"`
}

func (Reservation) TableName() string {
	return "reservations"
}

// IsActive reports whether the reservation still holds a queue slot
func (r *Reservation) IsActive() bool {
	return domain.ReservationStatus(r.Status) == domain.ReservationActive
}
