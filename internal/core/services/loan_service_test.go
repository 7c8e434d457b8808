package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"shelftrack/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckoutSetsDueDateFromPolicy(t *testing.T) {
	stack := newCircStack(false)
	ctx := context.Background()
	user := stack.addUser("alice", "ACTIVE")
	book := stack.addBook("The Go Programming Language", 3)

	loan, err := stack.loanSvc.Checkout(ctx, book.ID, user.ID)
	require.NoError(t, err)

	assert.Equal(t, book.ID, loan.BookID)
	assert.Equal(t, user.ID, loan.UserID)
	assert.Equal(t, stack.clk.Now().AddDate(0, 0, 14), loan.DueDate)
	assert.Equal(t, 2, loan.MaxRenewals)
	assert.Nil(t, loan.ReturnDate)

	updated, err := stack.bookSvc.GetByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.CopiesAvailable)
	assert.Equal(t, 3, updated.CopiesOwned)
}

func TestCheckoutRejectsIneligibleBorrower(t *testing.T) {
	stack := newCircStack(false)
	ctx := context.Background()
	book := stack.addBook("Unix Network Programming", 1)

	suspended := stack.addUser("bob", "SUSPENDED")
	_, err := stack.loanSvc.Checkout(ctx, book.ID, suspended.ID)
	assert.ErrorIs(t, err, domain.ErrUserIneligible)

	expired := stack.addUser("carol", "EXPIRED")
	_, err = stack.loanSvc.Checkout(ctx, book.ID, expired.ID)
	assert.ErrorIs(t, err, domain.ErrUserIneligible)

	// No copy was claimed by the failed attempts
	updated, err := stack.bookSvc.GetByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.CopiesAvailable)
}

func TestCheckoutUnknownBookAndUser(t *testing.T) {
	stack := newCircStack(false)
	ctx := context.Background()
	user := stack.addUser("alice", "ACTIVE")
	book := stack.addBook("Designing Data-Intensive Applications", 1)

	_, err := stack.loanSvc.Checkout(ctx, 999, user.ID)
	assert.ErrorIs(t, err, ErrBookNotFound)

	_, err = stack.loanSvc.Checkout(ctx, book.ID, 999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestCheckoutNoCopiesAvailable(t *testing.T) {
	stack := newCircStack(false)
	ctx := context.Background()
	alice := stack.addUser("alice", "ACTIVE")
	bob := stack.addUser("bob", "ACTIVE")
	book := stack.addBook("The C Programming Language", 1)

	_, err := stack.loanSvc.Checkout(ctx, book.ID, alice.ID)
	require.NoError(t, err)

	_, err = stack.loanSvc.Checkout(ctx, book.ID, bob.ID)
	assert.ErrorIs(t, err, domain.ErrNoCopiesAvailable)
}

func TestCheckoutLastCopyRace(t *testing.T) {
	stack := newCircStack(false)
	ctx := context.Background()
	alice := stack.addUser("alice", "ACTIVE")
	bob := stack.addUser("bob", "ACTIVE")
	book := stack.addBook("Operating Systems: Three Easy Pieces", 1)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i, userID := range []uint{alice.ID, bob.ID} {
		wg.Add(1)
		go func(slot int, id uint) {
			defer wg.Done()
			_, results[slot] = stack.loanSvc.Checkout(ctx, book.ID, id)
		}(i, userID)
	}
	wg.Wait()

	wins, losses := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case assert.ErrorIs(t, err, domain.ErrNoCopiesAvailable):
			losses++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, losses)

	updated, err := stack.bookSvc.GetByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.CopiesAvailable)
}

func TestRenewExtendsEffectiveDueDate(t *testing.T) {
	stack := newCircStack(false)
	ctx := context.Background()
	user := stack.addUser("alice", "ACTIVE")
	book := stack.addBook("The Pragmatic Programmer", 1)

	loan, err := stack.loanSvc.Checkout(ctx, book.ID, user.ID)
	require.NoError(t, err)
	firstDue := loan.DueDate

	stack.clk.Advance(5 * 24 * time.Hour)
	renewed, err := stack.loanSvc.Renew(ctx, loan.ID, "needs more time", user.ID)
	require.NoError(t, err)
	require.NotNil(t, renewed.RenewalDueDate)
	assert.Equal(t, firstDue.AddDate(0, 0, 14), *renewed.RenewalDueDate)
	assert.Equal(t, 1, renewed.RenewalCount)
	assert.Equal(t, firstDue, renewed.DueDate, "original due date is preserved")

	history, err := stack.loanSvc.History(ctx, loan.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, firstDue, history[0].PreviousDueDate)
	assert.Equal(t, firstDue.AddDate(0, 0, 14), history[0].NewDueDate)
	assert.Equal(t, "needs more time", history[0].Reason)
	assert.Equal(t, user.ID, history[0].ActorID)

	// Second renewal stacks on the first
	again, err := stack.loanSvc.Renew(ctx, loan.ID, "", user.ID)
	require.NoError(t, err)
	assert.Equal(t, firstDue.AddDate(0, 0, 28), *again.RenewalDueDate)

	// Budget exhausted
	_, err = stack.loanSvc.Renew(ctx, loan.ID, "", user.ID)
	assert.ErrorIs(t, err, domain.ErrRenewalLimitExceeded)
}

func TestRenewAllowedWhileOverdue(t *testing.T) {
	stack := newCircStack(false)
	ctx := context.Background()
	user := stack.addUser("alice", "ACTIVE")
	book := stack.addBook("Refactoring", 1)

	loan, err := stack.loanSvc.Checkout(ctx, book.ID, user.ID)
	require.NoError(t, err)

	// Well past the due date plus grace
	stack.clk.Advance(30 * 24 * time.Hour)
	require.True(t, loan.IsOverdue(stack.clk.Now()))

	renewed, err := stack.loanSvc.Renew(ctx, loan.ID, "", user.ID)
	require.NoError(t, err)
	assert.Equal(t, loan.DueDate.AddDate(0, 0, 14), *renewed.RenewalDueDate)
}

func TestRenewalBudgetFrozenAtCheckout(t *testing.T) {
	stack := newCircStack(false)
	ctx := context.Background()
	user := stack.addUser("alice", "ACTIVE")
	book := stack.addBook("Clean Architecture", 1)

	loan, err := stack.loanSvc.Checkout(ctx, book.ID, user.ID)
	require.NoError(t, err)
	require.Equal(t, 2, loan.MaxRenewals)

	// Tightening the policy afterwards does not touch open loans
	policy, err := stack.policies.GetByItemType(ctx, "BOOK")
	require.NoError(t, err)
	policy.MaxRenewals = 0
	require.NoError(t, stack.policies.Upsert(ctx, policy))

	_, err = stack.loanSvc.Renew(ctx, loan.ID, "", user.ID)
	assert.NoError(t, err)
}

func TestRenewLastSlotRace(t *testing.T) {
	stack := newCircStack(false)
	ctx := context.Background()
	user := stack.addUser("alice", "ACTIVE")
	book := stack.addBook("Designing Data-Intensive Applications", 1)

	policy, err := stack.policies.GetByItemType(ctx, "BOOK")
	require.NoError(t, err)
	policy.MaxRenewals = 1
	require.NoError(t, stack.policies.Upsert(ctx, policy))

	loan, err := stack.loanSvc.Checkout(ctx, book.ID, user.ID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			_, results[slot] = stack.loanSvc.Renew(ctx, loan.ID, "", user.ID)
		}(i)
	}
	wg.Wait()

	wins, losses := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case assert.ErrorIs(t, err, domain.ErrRenewalLimitExceeded):
			losses++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, losses)

	updated, err := stack.loanSvc.GetByID(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.RenewalCount)
	history, err := stack.loanSvc.History(ctx, loan.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestRenewWriteFailureLeavesLoanUntouched(t *testing.T) {
	stack := newCircStack(false)
	ctx := context.Background()
	user := stack.addUser("alice", "ACTIVE")
	book := stack.addBook("Refactoring", 1)

	loan, err := stack.loanSvc.Checkout(ctx, book.ID, user.ID)
	require.NoError(t, err)

	stack.loans.applyRenewalErr = errors.New("connection reset")
	_, err = stack.loanSvc.Renew(ctx, loan.ID, "vacation", user.ID)
	require.Error(t, err)

	updated, err := stack.loanSvc.GetByID(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.RenewalCount)
	assert.Nil(t, updated.RenewalDueDate)
	history, err := stack.loanSvc.History(ctx, loan.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRenewClosedLoan(t *testing.T) {
	stack := newCircStack(false)
	ctx := context.Background()
	user := stack.addUser("alice", "ACTIVE")
	book := stack.addBook("Site Reliability Engineering", 1)

	loan, err := stack.loanSvc.Checkout(ctx, book.ID, user.ID)
	require.NoError(t, err)
	_, err = stack.loanSvc.Return(ctx, loan.ID)
	require.NoError(t, err)

	_, err = stack.loanSvc.Renew(ctx, loan.ID, "", user.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyReturned)
}

func TestReturnReleasesCopyExactlyOnce(t *testing.T) {
	stack := newCircStack(false)
	ctx := context.Background()
	user := stack.addUser("alice", "ACTIVE")
	book := stack.addBook("Programming Pearls", 2)

	loan, err := stack.loanSvc.Checkout(ctx, book.ID, user.ID)
	require.NoError(t, err)

	closed, err := stack.loanSvc.Return(ctx, loan.ID)
	require.NoError(t, err)
	require.NotNil(t, closed.ReturnDate)
	assert.Equal(t, stack.clk.Now(), *closed.ReturnDate)

	_, err = stack.loanSvc.Return(ctx, loan.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyReturned)

	updated, err := stack.bookSvc.GetByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.CopiesAvailable, "copy released only once")
}

func TestReturnAutoFulfillPromotesQueueHead(t *testing.T) {
	stack := newCircStack(true)
	ctx := context.Background()
	alice := stack.addUser("alice", "ACTIVE")
	bob := stack.addUser("bob", "ACTIVE")
	carol := stack.addUser("carol", "ACTIVE")
	book := stack.addBook("The Mythical Man-Month", 1)

	loan, err := stack.loanSvc.Checkout(ctx, book.ID, alice.ID)
	require.NoError(t, err)

	first, err := stack.resSvc.Reserve(ctx, book.ID, bob.ID)
	require.NoError(t, err)
	second, err := stack.resSvc.Reserve(ctx, book.ID, carol.ID)
	require.NoError(t, err)

	_, err = stack.loanSvc.Return(ctx, loan.ID)
	require.NoError(t, err)

	head, err := stack.resSvc.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.ReservationFulfilled), head.Status)
	assert.Nil(t, head.QueuePosition)

	next, err := stack.resSvc.GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.ReservationActive), next.Status)
	require.NotNil(t, next.QueuePosition)
	assert.Equal(t, 1, *next.QueuePosition)

	assert.Equal(t, []uint{first.ID}, stack.notifier.readyIDs())
}

func TestReturnWithoutAutoFulfillLeavesQueue(t *testing.T) {
	stack := newCircStack(false)
	ctx := context.Background()
	alice := stack.addUser("alice", "ACTIVE")
	bob := stack.addUser("bob", "ACTIVE")
	book := stack.addBook("Structure and Interpretation of Computer Programs", 1)

	loan, err := stack.loanSvc.Checkout(ctx, book.ID, alice.ID)
	require.NoError(t, err)
	hold, err := stack.resSvc.Reserve(ctx, book.ID, bob.ID)
	require.NoError(t, err)

	_, err = stack.loanSvc.Return(ctx, loan.ID)
	require.NoError(t, err)

	unchanged, err := stack.resSvc.GetByID(ctx, hold.ID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.ReservationActive), unchanged.Status)
	assert.Empty(t, stack.notifier.readyIDs())
}

func TestLoanHistoryUnknownLoan(t *testing.T) {
	stack := newCircStack(false)

	_, err := stack.loanSvc.History(context.Background(), 42)
	assert.ErrorIs(t, err, ErrLoanNotFound)
}

func TestActiveCount(t *testing.T) {
	stack := newCircStack(false)
	ctx := context.Background()
	alice := stack.addUser("alice", "ACTIVE")
	bob := stack.addUser("bob", "ACTIVE")
	book := stack.addBook("Compilers: Principles, Techniques, and Tools", 2)

	first, err := stack.loanSvc.Checkout(ctx, book.ID, alice.ID)
	require.NoError(t, err)
	_, err = stack.loanSvc.Checkout(ctx, book.ID, bob.ID)
	require.NoError(t, err)

	count, err := stack.loanSvc.ActiveCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	_, err = stack.loanSvc.Return(ctx, first.ID)
	require.NoError(t, err)

	count, err = stack.loanSvc.ActiveCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
