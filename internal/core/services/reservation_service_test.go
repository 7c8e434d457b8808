package services

import (
	"context"
	"testing"
	"time"

	"shelftrack/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserveAssignsArrivalPositions(t *testing.T) {
	stack := newCircStack(false)
	ctx := context.Background()
	book := stack.addBook("Domain-Driven Design", 1)

	var ids []uint
	for _, name := range []string{"alice", "bob", "carol"} {
		user := stack.addUser(name, "ACTIVE")
		reservation, err := stack.resSvc.Reserve(ctx, book.ID, user.ID)
		require.NoError(t, err)
		ids = append(ids, reservation.ID)
		stack.clk.Advance(time.Hour)
	}

	queue, err := stack.resSvc.Queue(ctx, book.ID)
	require.NoError(t, err)
	require.Len(t, queue, 3)
	for i, reservation := range queue {
		assert.Equal(t, ids[i], reservation.ID)
		require.NotNil(t, reservation.QueuePosition)
		assert.Equal(t, i+1, *reservation.QueuePosition)
		assert.Equal(t, string(domain.ReservationActive), reservation.Status)
	}
}

func TestReserveSetsPickupWindowFromPolicy(t *testing.T) {
	stack := newCircStack(false)
	ctx := context.Background()
	user := stack.addUser("alice", "ACTIVE")
	book := stack.addBook("Working Effectively with Legacy Code", 1)

	reservation, err := stack.resSvc.Reserve(ctx, book.ID, user.ID)
	require.NoError(t, err)

	assert.Equal(t, stack.clk.Now(), reservation.ReservationDate)
	assert.Equal(t, stack.clk.Now().AddDate(0, 0, 7), reservation.ExpirationDate)
}

func TestReserveRejectsSecondActiveHold(t *testing.T) {
	stack := newCircStack(false)
	ctx := context.Background()
	user := stack.addUser("alice", "ACTIVE")
	book := stack.addBook("Code Complete", 1)

	first, err := stack.resSvc.Reserve(ctx, book.ID, user.ID)
	require.NoError(t, err)

	_, err = stack.resSvc.Reserve(ctx, book.ID, user.ID)
	assert.ErrorIs(t, err, domain.ErrDuplicateReservation)

	// Once the hold closes, a new one is allowed
	_, err = stack.resSvc.Fulfill(ctx, first.ID)
	require.NoError(t, err)

	_, err = stack.resSvc.Reserve(ctx, book.ID, user.ID)
	assert.NoError(t, err)
}

func TestReserveRejectsIneligibleHolder(t *testing.T) {
	stack := newCircStack(false)
	ctx := context.Background()
	book := stack.addBook("The Art of Computer Programming", 1)

	suspended := stack.addUser("bob", "SUSPENDED")
	_, err := stack.resSvc.Reserve(ctx, book.ID, suspended.ID)
	assert.ErrorIs(t, err, domain.ErrUserIneligible)
}

func TestReserveUnknownBook(t *testing.T) {
	stack := newCircStack(false)
	user := stack.addUser("alice", "ACTIVE")

	_, err := stack.resSvc.Reserve(context.Background(), 999, user.ID)
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestFulfillRenumbersRemainingQueue(t *testing.T) {
	stack := newCircStack(false)
	ctx := context.Background()
	book := stack.addBook("Introduction to Algorithms", 1)

	var ids []uint
	for _, name := range []string{"alice", "bob", "carol"} {
		user := stack.addUser(name, "ACTIVE")
		reservation, err := stack.resSvc.Reserve(ctx, book.ID, user.ID)
		require.NoError(t, err)
		ids = append(ids, reservation.ID)
		stack.clk.Advance(time.Hour)
	}

	fulfilled, err := stack.resSvc.Fulfill(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, string(domain.ReservationFulfilled), fulfilled.Status)
	assert.Nil(t, fulfilled.QueuePosition)

	queue, err := stack.resSvc.Queue(ctx, book.ID)
	require.NoError(t, err)
	require.Len(t, queue, 2)
	assert.Equal(t, ids[1], queue[0].ID)
	assert.Equal(t, 1, *queue[0].QueuePosition)
	assert.Equal(t, ids[2], queue[1].ID)
	assert.Equal(t, 2, *queue[1].QueuePosition)

	assert.Equal(t, []uint{ids[0]}, stack.notifier.readyIDs())
}

func TestFulfillMiddleOfQueue(t *testing.T) {
	stack := newCircStack(false)
	ctx := context.Background()
	book := stack.addBook("The Design of Everyday Things", 1)

	var ids []uint
	for _, name := range []string{"alice", "bob", "carol"} {
		user := stack.addUser(name, "ACTIVE")
		reservation, err := stack.resSvc.Reserve(ctx, book.ID, user.ID)
		require.NoError(t, err)
		ids = append(ids, reservation.ID)
		stack.clk.Advance(time.Hour)
	}

	_, err := stack.resSvc.Fulfill(ctx, ids[1])
	require.NoError(t, err)

	queue, err := stack.resSvc.Queue(ctx, book.ID)
	require.NoError(t, err)
	require.Len(t, queue, 2)
	assert.Equal(t, ids[0], queue[0].ID)
	assert.Equal(t, 1, *queue[0].QueuePosition)
	assert.Equal(t, ids[2], queue[1].ID)
	assert.Equal(t, 2, *queue[1].QueuePosition)
}

func TestFulfillTerminalReservation(t *testing.T) {
	stack := newCircStack(false)
	ctx := context.Background()
	user := stack.addUser("alice", "ACTIVE")
	book := stack.addBook("Effective Go Patterns", 1)

	reservation, err := stack.resSvc.Reserve(ctx, book.ID, user.ID)
	require.NoError(t, err)

	_, err = stack.resSvc.Fulfill(ctx, reservation.ID)
	require.NoError(t, err)

	_, err = stack.resSvc.Fulfill(ctx, reservation.ID)
	assert.ErrorIs(t, err, domain.ErrNotActive)
}

func TestFulfillUnknownReservation(t *testing.T) {
	stack := newCircStack(false)

	_, err := stack.resSvc.Fulfill(context.Background(), 404)
	assert.ErrorIs(t, err, ErrReservationNotFound)
}

func TestExpireDueSweepsLapsedHolds(t *testing.T) {
	stack := newCircStack(false)
	ctx := context.Background()
	alice := stack.addUser("alice", "ACTIVE")
	bob := stack.addUser("bob", "ACTIVE")
	book := stack.addBook("Database Internals", 1)

	stale, err := stack.resSvc.Reserve(ctx, book.ID, alice.ID)
	require.NoError(t, err)

	// Bob joins three days later; his window lapses later too
	stack.clk.Advance(3 * 24 * time.Hour)
	fresh, err := stack.resSvc.Reserve(ctx, book.ID, bob.ID)
	require.NoError(t, err)

	// Past Alice's window, within Bob's
	stack.clk.Advance(5 * 24 * time.Hour)
	expired, err := stack.resSvc.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	lapsed, err := stack.resSvc.GetByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.ReservationExpired), lapsed.Status)
	assert.Nil(t, lapsed.QueuePosition)

	survivor, err := stack.resSvc.GetByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.ReservationActive), survivor.Status)
	require.NotNil(t, survivor.QueuePosition)
	assert.Equal(t, 1, *survivor.QueuePosition, "queue renumbered after expiry")

	// Expiry never notifies anyone
	assert.Empty(t, stack.notifier.readyIDs())

	// Idempotent: nothing left to expire
	expired, err = stack.resSvc.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, expired)
}

func TestQueueUnknownBook(t *testing.T) {
	stack := newCircStack(false)

	_, err := stack.resSvc.Queue(context.Background(), 999)
	assert.ErrorIs(t, err, ErrBookNotFound)
}
