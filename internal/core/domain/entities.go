package domain

// Role represents user role in the system
type Role string

const (
	RoleMember    Role = "MEMBER"
	RoleLibrarian Role = "LIBRARIAN"
	RoleAdmin     Role = "ADMIN"
)

// IsValid reports whether r is one of the known roles
func (r Role) IsValid() bool {
	switch r {
	case RoleMember, RoleLibrarian, RoleAdmin:
		return true
	}
	return false
}

// UserStatus represents account status
type UserStatus string

const (
	UserActive    UserStatus = "ACTIVE"
	UserSuspended UserStatus = "SUSPENDED"
	UserExpired   UserStatus = "EXPIRED"
)

// CanBorrow reports whether an account in this status may open
// new loans or reservations
func (s UserStatus) CanBorrow() bool {
	return s == UserActive
}

// ReservationStatus represents the reservation lifecycle state
type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "ACTIVE"
	ReservationFulfilled ReservationStatus = "FULFILLED"
	ReservationExpired   ReservationStatus = "EXPIRED"
)

// IsTerminal reports whether the status is final
func (s ReservationStatus) IsTerminal() bool {
	return s == ReservationFulfilled || s == ReservationExpired
}

// Loan state labels. Overdue is derived from dates, never stored;
// these exist for display and filtering only.
const (
	LoanStateActive   = "ACTIVE"
	LoanStateOverdue  = "OVERDUE"
	LoanStateReturned = "RETURNED"
)
