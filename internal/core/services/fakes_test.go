package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"shelftrack/internal/adapters/persistence/models"
	"shelftrack/internal/pkg/keymutex"

	"gorm.io/gorm"
)

// In-memory repositories for service tests. They hold values and hand
// out copies so tests observe only what Update persisted.

type fakeUserRepo struct {
	mu     sync.Mutex
	nextID uint
	users  map[uint]models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{nextID: 1, users: make(map[uint]models.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user.ID = r.nextID
	r.nextID++
	r.users[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id uint) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &user, nil
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Username == username {
			u := user
			return &u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) Update(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) List(_ context.Context, offset, limit int) ([]*models.User, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.sorted()
	return page(all, offset, limit), int64(len(all)), nil
}

func (r *fakeUserRepo) ListByRole(_ context.Context, role string, offset, limit int) ([]*models.User, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*models.User
	for _, user := range r.sorted() {
		if user.Role == role {
			matched = append(matched, user)
		}
	}
	return page(matched, offset, limit), int64(len(matched)), nil
}

func (r *fakeUserRepo) Count(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.users)), nil
}

func (r *fakeUserRepo) ExistsByUsername(_ context.Context, username string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeUserRepo) ExistsByEmail(_ context.Context, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeUserRepo) sorted() []*models.User {
	out := make([]*models.User, 0, len(r.users))
	for id := range r.users {
		user := r.users[id]
		out = append(out, &user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type fakeRefreshTokenRepo struct {
	mu     sync.Mutex
	nextID uint
	tokens map[uint]models.RefreshToken
}

func newFakeRefreshTokenRepo() *fakeRefreshTokenRepo {
	return &fakeRefreshTokenRepo{nextID: 1, tokens: make(map[uint]models.RefreshToken)}
}

func (r *fakeRefreshTokenRepo) Create(_ context.Context, token *models.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	token.ID = r.nextID
	r.nextID++
	r.tokens[token.ID] = *token
	return nil
}

func (r *fakeRefreshTokenRepo) GetByTokenHash(_ context.Context, tokenHash string) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, token := range r.tokens {
		if token.TokenHash == tokenHash {
			t := token
			return &t, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRefreshTokenRepo) Revoke(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.tokens[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	now := time.Now()
	token.RevokedAt = &now
	r.tokens[id] = token
	return nil
}

func (r *fakeRefreshTokenRepo) RevokeByTokenHash(_ context.Context, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for id, token := range r.tokens {
		if token.TokenHash == tokenHash && token.RevokedAt == nil {
			token.RevokedAt = &now
			r.tokens[id] = token
		}
	}
	return nil
}

func (r *fakeRefreshTokenRepo) RevokeAllByUserID(_ context.Context, userID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for id, token := range r.tokens {
		if token.UserID == userID && token.RevokedAt == nil {
			token.RevokedAt = &now
			r.tokens[id] = token
		}
	}
	return nil
}

func (r *fakeRefreshTokenRepo) DeleteExpired(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, token := range r.tokens {
		if time.Now().After(token.ExpiresAt) {
			delete(r.tokens, id)
		}
	}
	return nil
}

type fakeBookRepo struct {
	mu     sync.Mutex
	nextID uint
	books  map[uint]models.Book
}

func newFakeBookRepo() *fakeBookRepo {
	return &fakeBookRepo{nextID: 1, books: make(map[uint]models.Book)}
}

func (r *fakeBookRepo) Create(_ context.Context, book *models.Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	book.ID = r.nextID
	r.nextID++
	r.books[book.ID] = *book
	return nil
}

func (r *fakeBookRepo) GetByID(_ context.Context, id uint) (*models.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	book, ok := r.books[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &book, nil
}

func (r *fakeBookRepo) List(_ context.Context, offset, limit int) ([]*models.Book, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.sorted()
	return page(all, offset, limit), int64(len(all)), nil
}

func (r *fakeBookRepo) Search(_ context.Context, query string, offset, limit int) ([]*models.Book, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q := strings.ToLower(query)
	var matched []*models.Book
	for _, book := range r.sorted() {
		if strings.Contains(strings.ToLower(book.Title), q) ||
			strings.Contains(strings.ToLower(book.Authors), q) ||
			strings.Contains(strings.ToLower(book.ISBN), q) {
			matched = append(matched, book)
		}
	}
	return page(matched, offset, limit), int64(len(matched)), nil
}

func (r *fakeBookRepo) Update(_ context.Context, book *models.Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.books[book.ID] = *book
	return nil
}

func (r *fakeBookRepo) UpdateCopies(_ context.Context, bookID uint, copiesOwned, copiesAvailable int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	book, ok := r.books[bookID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	book.CopiesOwned = copiesOwned
	book.CopiesAvailable = copiesAvailable
	r.books[bookID] = book
	return nil
}

func (r *fakeBookRepo) Count(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.books)), nil
}

func (r *fakeBookRepo) sorted() []*models.Book {
	out := make([]*models.Book, 0, len(r.books))
	for id := range r.books {
		book := r.books[id]
		out = append(out, &book)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type fakeLoanRepo struct {
	mu              sync.Mutex
	nextID          uint
	loans           map[uint]models.Loan
	renewals        []models.LoanRenewal
	books           *fakeBookRepo
	users           *fakeUserRepo
	applyRenewalErr error
}

func newFakeLoanRepo(books *fakeBookRepo, users *fakeUserRepo) *fakeLoanRepo {
	return &fakeLoanRepo{nextID: 1, loans: make(map[uint]models.Loan), books: books, users: users}
}

func (r *fakeLoanRepo) Create(_ context.Context, loan *models.Loan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	loan.ID = r.nextID
	r.nextID++
	r.loans[loan.ID] = *loan
	return nil
}

func (r *fakeLoanRepo) GetByID(ctx context.Context, id uint) (*models.Loan, error) {
	r.mu.Lock()
	loan, ok := r.loans[id]
	r.mu.Unlock()
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	if book, err := r.books.GetByID(ctx, loan.BookID); err == nil {
		loan.Book = *book
	}
	if user, err := r.users.GetByID(ctx, loan.UserID); err == nil {
		loan.Borrower = *user
	}
	return &loan, nil
}

func (r *fakeLoanRepo) List(_ context.Context, offset, limit int) ([]*models.Loan, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.sorted()
	return page(all, offset, limit), int64(len(all)), nil
}

func (r *fakeLoanRepo) ListByUser(_ context.Context, userID uint) ([]*models.Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Loan
	for _, loan := range r.sorted() {
		if loan.UserID == userID {
			out = append(out, loan)
		}
	}
	return out, nil
}

func (r *fakeLoanRepo) ListByBook(_ context.Context, bookID uint) ([]*models.Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Loan
	for _, loan := range r.sorted() {
		if loan.BookID == bookID {
			out = append(out, loan)
		}
	}
	return out, nil
}

func (r *fakeLoanRepo) Update(_ context.Context, loan *models.Loan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *loan
	stored.Book = models.Book{}
	stored.Borrower = models.User{}
	r.loans[loan.ID] = stored
	return nil
}

func (r *fakeLoanRepo) CountOpenByBook(_ context.Context, bookID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, loan := range r.loans {
		if loan.BookID == bookID && loan.ReturnDate == nil {
			count++
		}
	}
	return count, nil
}

func (r *fakeLoanRepo) CountOpen(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, loan := range r.loans {
		if loan.ReturnDate == nil {
			count++
		}
	}
	return count, nil
}

func (r *fakeLoanRepo) AppendRenewal(_ context.Context, renewal *models.LoanRenewal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	renewal.ID = uint(len(r.renewals) + 1)
	r.renewals = append(r.renewals, *renewal)
	return nil
}

func (r *fakeLoanRepo) ApplyRenewal(_ context.Context, loan *models.Loan, renewal *models.LoanRenewal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.applyRenewalErr != nil {
		return r.applyRenewalErr
	}
	stored := *loan
	stored.Book = models.Book{}
	stored.Borrower = models.User{}
	r.loans[loan.ID] = stored
	renewal.ID = uint(len(r.renewals) + 1)
	r.renewals = append(r.renewals, *renewal)
	return nil
}

func (r *fakeLoanRepo) ListRenewals(_ context.Context, loanID uint) ([]models.LoanRenewal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.LoanRenewal
	for _, renewal := range r.renewals {
		if renewal.LoanID == loanID {
			out = append(out, renewal)
		}
	}
	return out, nil
}

func (r *fakeLoanRepo) sorted() []*models.Loan {
	out := make([]*models.Loan, 0, len(r.loans))
	for id := range r.loans {
		loan := r.loans[id]
		out = append(out, &loan)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type fakeReservationRepo struct {
	mu           sync.Mutex
	nextID       uint
	reservations map[uint]models.Reservation
}

func newFakeReservationRepo() *fakeReservationRepo {
	return &fakeReservationRepo{nextID: 1, reservations: make(map[uint]models.Reservation)}
}

func (r *fakeReservationRepo) Create(_ context.Context, reservation *models.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reservation.ID = r.nextID
	r.nextID++
	r.reservations[reservation.ID] = *reservation
	return nil
}

func (r *fakeReservationRepo) GetByID(_ context.Context, id uint) (*models.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reservation, ok := r.reservations[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &reservation, nil
}

func (r *fakeReservationRepo) List(_ context.Context, offset, limit int) ([]*models.Reservation, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.sorted()
	return page(all, offset, limit), int64(len(all)), nil
}

func (r *fakeReservationRepo) ListByUser(_ context.Context, userID uint) ([]*models.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Reservation
	for _, reservation := range r.sorted() {
		if reservation.UserID == userID {
			out = append(out, reservation)
		}
	}
	return out, nil
}

func (r *fakeReservationRepo) ListByBook(_ context.Context, bookID uint) ([]*models.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Reservation
	for _, reservation := range r.sorted() {
		if reservation.BookID == bookID {
			out = append(out, reservation)
		}
	}
	return out, nil
}

func (r *fakeReservationRepo) ListActiveByBook(_ context.Context, bookID uint) ([]*models.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Reservation
	for _, reservation := range r.sorted() {
		if reservation.BookID == bookID && reservation.IsActive() {
			out = append(out, reservation)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ReservationDate.Equal(out[j].ReservationDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].ReservationDate.Before(out[j].ReservationDate)
	})
	return out, nil
}

func (r *fakeReservationRepo) GetActiveByBookAndUser(_ context.Context, bookID, userID uint) (*models.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reservation := range r.reservations {
		if reservation.BookID == bookID && reservation.UserID == userID && reservation.IsActive() {
			res := reservation
			return &res, nil
		}
	}
	return nil, nil
}

func (r *fakeReservationRepo) ListExpiredActive(_ context.Context, now time.Time) ([]*models.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Reservation
	for _, reservation := range r.sorted() {
		if reservation.IsActive() && reservation.ExpirationDate.Before(now) {
			out = append(out, reservation)
		}
	}
	return out, nil
}

func (r *fakeReservationRepo) Update(_ context.Context, reservation *models.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reservations[reservation.ID] = *reservation
	return nil
}

func (r *fakeReservationRepo) MaxActivePosition(_ context.Context, bookID uint) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	max := 0
	for _, reservation := range r.reservations {
		if reservation.BookID == bookID && reservation.IsActive() &&
			reservation.QueuePosition != nil && *reservation.QueuePosition > max {
			max = *reservation.QueuePosition
		}
	}
	return max, nil
}

func (r *fakeReservationRepo) sorted() []*models.Reservation {
	out := make([]*models.Reservation, 0, len(r.reservations))
	for id := range r.reservations {
		reservation := r.reservations[id]
		out = append(out, &reservation)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type fakePolicyRepo struct {
	mu       sync.Mutex
	policies map[string]models.LoanPolicy
}

func newFakePolicyRepo(policies ...models.LoanPolicy) *fakePolicyRepo {
	repo := &fakePolicyRepo{policies: make(map[string]models.LoanPolicy)}
	for i, policy := range policies {
		policy.ID = uint(i + 1)
		repo.policies[policy.ItemType] = policy
	}
	return repo
}

func (r *fakePolicyRepo) List(_ context.Context) ([]*models.LoanPolicy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.LoanPolicy, 0, len(r.policies))
	for key := range r.policies {
		policy := r.policies[key]
		out = append(out, &policy)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemType < out[j].ItemType })
	return out, nil
}

func (r *fakePolicyRepo) GetByItemType(_ context.Context, itemType string) (*models.LoanPolicy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	policy, ok := r.policies[itemType]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &policy, nil
}

func (r *fakePolicyRepo) Upsert(_ context.Context, policy *models.LoanPolicy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.policies[policy.ItemType]; ok {
		policy.ID = existing.ID
	} else {
		policy.ID = uint(len(r.policies) + 1)
	}
	r.policies[policy.ItemType] = *policy
	return nil
}

// testClock is a settable clock so tests can move time forward
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(t time.Time) *testClock {
	return &testClock{now: t.UTC()}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingNotifier captures reservation-ready notifications
type recordingNotifier struct {
	mu    sync.Mutex
	ready []uint
}

func (n *recordingNotifier) ReservationReady(_ context.Context, reservation *models.Reservation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ready = append(n.ready, reservation.ID)
	return nil
}

func (n *recordingNotifier) readyIDs() []uint {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]uint(nil), n.ready...)
}

// circStack wires the circulation services over in-memory repositories
// with a settable clock, the way routes.Setup wires them over GORM.
type circStack struct {
	users        *fakeUserRepo
	books        *fakeBookRepo
	loans        *fakeLoanRepo
	reservations *fakeReservationRepo
	policies     *fakePolicyRepo
	notifier     *recordingNotifier
	clk          *testClock

	bookSvc *BookService
	loanSvc *LoanService
	resSvc  *ReservationService
}

func newCircStack(autoFulfill bool) *circStack {
	users := newFakeUserRepo()
	books := newFakeBookRepo()
	loans := newFakeLoanRepo(books, users)
	reservations := newFakeReservationRepo()
	policies := newFakePolicyRepo(
		models.LoanPolicy{ItemType: "BOOK", LoanPeriodDays: 14, MaxRenewals: 2, GracePeriodDays: 3, ReservationWindowDays: 7},
		models.LoanPolicy{ItemType: "REFERENCE", LoanPeriodDays: 3, MaxRenewals: 0, ReservationWindowDays: 2},
	)
	notifier := &recordingNotifier{}
	clk := newTestClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	locks := keymutex.New()

	bookSvc := NewBookService(books, loans, policies, locks)
	resSvc := NewReservationService(reservations, users, books, policies, notifier, locks, clk)
	loanSvc := NewLoanService(loans, users, policies, bookSvc, resSvc, locks, clk, autoFulfill)

	return &circStack{
		users:        users,
		books:        books,
		loans:        loans,
		reservations: reservations,
		policies:     policies,
		notifier:     notifier,
		clk:          clk,
		bookSvc:      bookSvc,
		loanSvc:      loanSvc,
		resSvc:       resSvc,
	}
}

func (s *circStack) addUser(username string, status string) *models.User {
	user := &models.User{
		Username:  username,
		Email:     username + "@example.org",
		Password:  "hashed",
		FirstName: "Test",
		LastName:  "User",
		Role:      "MEMBER",
		Status:    status,
	}
	if err := s.users.Create(context.Background(), user); err != nil {
		panic(err)
	}
	return user
}

func (s *circStack) addBook(title string, copies int) *models.Book {
	book := &models.Book{
		Title:           title,
		Authors:         "Test Author",
		PolicyType:      "BOOK",
		CopiesOwned:     copies,
		CopiesAvailable: copies,
	}
	if err := s.books.Create(context.Background(), book); err != nil {
		panic(err)
	}
	return book
}

func page[T any](items []*T, offset, limit int) []*T {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
