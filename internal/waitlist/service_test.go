package waitlist

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"ticketly/internal/events"
	"ticketly/internal/shared/apperrors"
)

func TestStatusTransitions(t *testing.T) {
	assert.True(t, StatusActive.CanTransitionTo(StatusNotified))
	assert.True(t, StatusActive.CanTransitionTo(StatusExpired))
	assert.True(t, StatusNotified.CanTransitionTo(StatusConverted))
	assert.True(t, StatusNotified.CanTransitionTo(StatusActive)) // tail re-queue
	assert.True(t, StatusNotified.CanTransitionTo(StatusExpired))

	assert.False(t, StatusActive.CanTransitionTo(StatusConverted))
	assert.False(t, StatusConverted.CanTransitionTo(StatusActive))
	assert.False(t, StatusExpired.CanTransitionTo(StatusActive))

	assert.True(t, StatusConverted.IsTerminal())
	assert.True(t, StatusExpired.IsTerminal())
	assert.False(t, StatusActive.IsTerminal())
	assert.False(t, StatusNotified.IsTerminal())
}

func TestWindowRemaining(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	deadline := now.Add(10 * time.Minute)

	notified := &Entry{Status: StatusNotified, ExpiresAt: &deadline}
	remaining := notified.WindowRemaining(now)
	assert.NotNil(t, remaining)
	assert.Equal(t, 10*time.Minute, *remaining)

	// Lapsed window reports nothing rather than a negative duration.
	assert.Nil(t, notified.WindowRemaining(deadline.Add(time.Second)))

	active := &Entry{Status: StatusActive, ExpiresAt: &deadline}
	assert.Nil(t, active.WindowRemaining(now))

	noWindow := &Entry{Status: StatusNotified}
	assert.Nil(t, noWindow.WindowRemaining(now))
}

// memRepo is an in-memory queue store. Transactions run the body against a
// nil handle; locking is a no-op because tests are single-threaded.
type memRepo struct {
	entries map[uuid.UUID]*Entry
}

func newMemRepo(entries ...*Entry) *memRepo {
	repo := &memRepo{entries: make(map[uuid.UUID]*Entry)}
	for _, entry := range entries {
		stored := *entry
		repo.entries[entry.ID] = &stored
	}
	return repo
}

func (r *memRepo) WithTx(tx *gorm.DB) Repository { return r }

func (r *memRepo) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func (r *memRepo) Create(ctx context.Context, entry *Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	stored := *entry
	r.entries[entry.ID] = &stored
	return nil
}

func (r *memRepo) GetByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	stored, ok := r.entries[id]
	if !ok {
		return nil, apperrors.NotFound(apperrors.CodeWaitlistNotFound, "waitlist entry not found")
	}
	copied := *stored
	return &copied, nil
}

func (r *memRepo) GetNonTerminal(ctx context.Context, userID, eventID uuid.UUID) (*Entry, error) {
	for _, stored := range r.entries {
		if stored.UserID == userID && stored.EventID == eventID && !stored.Status.IsTerminal() {
			copied := *stored
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *memRepo) LockQueue(ctx context.Context, eventID uuid.UUID) ([]Entry, error) {
	var queue []Entry
	for _, stored := range r.entries {
		if stored.EventID == eventID && !stored.Status.IsTerminal() {
			queue = append(queue, *stored)
		}
	}
	sort.Slice(queue, func(i, j int) bool { return queue[i].Position < queue[j].Position })
	return queue, nil
}

func (r *memRepo) MaxPosition(ctx context.Context, eventID uuid.UUID) (int, error) {
	max := 0
	for _, stored := range r.entries {
		if stored.EventID == eventID && !stored.Status.IsTerminal() && stored.Position > max {
			max = stored.Position
		}
	}
	return max, nil
}

func (r *memRepo) SetNotified(ctx context.Context, id uuid.UUID, notifiedAt, expiresAt time.Time) error {
	stored, ok := r.entries[id]
	if !ok || stored.Status != StatusActive {
		return apperrors.Concurrency(apperrors.CodeInvalidState, "waitlist entry changed concurrently")
	}
	stored.Status = StatusNotified
	stored.NotifiedAt = &notifiedAt
	stored.ExpiresAt = &expiresAt
	stored.UpdatedAt = notifiedAt
	return nil
}

func (r *memRepo) Requeue(ctx context.Context, id uuid.UUID, position int) error {
	stored, ok := r.entries[id]
	if !ok || stored.Status != StatusNotified {
		return apperrors.Concurrency(apperrors.CodeInvalidState, "waitlist entry changed concurrently")
	}
	stored.Status = StatusActive
	stored.Position = position
	stored.NotifiedAt = nil
	stored.ExpiresAt = nil
	stored.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *memRepo) SetTerminal(ctx context.Context, id uuid.UUID, from, to Status) error {
	stored, ok := r.entries[id]
	if !ok || stored.Status != from {
		return apperrors.Concurrency(apperrors.CodeInvalidState, "waitlist entry changed concurrently")
	}
	stored.Status = to
	stored.Position = 0
	stored.ExpiresAt = nil
	return nil
}

func (r *memRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(r.entries, id)
	return nil
}

func (r *memRepo) ShiftPositionsAfter(ctx context.Context, eventID uuid.UUID, position int) error {
	for _, stored := range r.entries {
		if stored.EventID == eventID && !stored.Status.IsTerminal() && stored.Position > position {
			stored.Position--
		}
	}
	return nil
}

func (r *memRepo) ListStaleNotified(ctx context.Context, cutoff time.Time, limit int) ([]Entry, error) {
	var stale []Entry
	for _, stored := range r.entries {
		if stored.Status == StatusNotified && stored.UpdatedAt.Before(cutoff) {
			stale = append(stale, *stored)
		}
	}
	sort.Slice(stale, func(i, j int) bool {
		if !stale[i].UpdatedAt.Equal(stale[j].UpdatedAt) {
			return stale[i].UpdatedAt.Before(stale[j].UpdatedAt)
		}
		return stale[i].Position < stale[j].Position
	})
	if len(stale) > limit {
		stale = stale[:limit]
	}
	return stale, nil
}

func (r *memRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]Entry, error) {
	var out []Entry
	for _, stored := range r.entries {
		if stored.UserID == userID {
			out = append(out, *stored)
		}
	}
	return out, nil
}

func (r *memRepo) ListByEvent(ctx context.Context, eventID uuid.UUID, status Status) ([]Entry, error) {
	var out []Entry
	for _, stored := range r.entries {
		if stored.EventID == eventID && (status == "" || stored.Status == status) {
			out = append(out, *stored)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (r *memRepo) CountByStatus(ctx context.Context, eventID uuid.UUID) (map[Status]int, error) {
	counts := make(map[Status]int)
	for _, stored := range r.entries {
		if stored.EventID == eventID {
			counts[stored.Status]++
		}
	}
	return counts, nil
}

type fakeEventsRepo struct {
	events.Repository

	event *events.Event
}

func (r *fakeEventsRepo) WithTx(tx *gorm.DB) events.Repository { return r }

func (r *fakeEventsRepo) GetByID(ctx context.Context, id uuid.UUID) (*events.Event, error) {
	if r.event == nil || r.event.ID != id {
		return nil, apperrors.NotFound(apperrors.CodeEventNotFound, "event not found")
	}
	copied := *r.event
	return &copied, nil
}

var queueTestNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestCoordinator(repo Repository, event *events.Event) *coordinator {
	return &coordinator{
		repo:         repo,
		events:       &fakeEventsRepo{event: event},
		notifyWindow: 24 * time.Hour,
		maxQuantity:  4,
		now:          func() time.Time { return queueTestNow },
	}
}

func activeEntry(eventID uuid.UUID, position, quantity int) *Entry {
	return &Entry{
		ID:       uuid.New(),
		UserID:   uuid.New(),
		EventID:  eventID,
		Quantity: quantity,
		Position: position,
		Status:   StatusActive,
		JoinedAt: queueTestNow.Add(-time.Hour),
	}
}

func soldOutEvent() *events.Event {
	return &events.Event{
		ID:                uuid.New(),
		TotalCapacity:     50,
		AvailableCapacity: 0,
		IsActive:          true,
		EventDate:         queueTestNow.AddDate(0, 1, 0),
	}
}

func TestOfferCapacityNotifiesInOrderAndBlocksOnHead(t *testing.T) {
	event := soldOutEvent()
	w1 := activeEntry(event.ID, 1, 2)
	w2 := activeEntry(event.ID, 2, 1)
	w3 := activeEntry(event.ID, 3, 2)
	repo := newMemRepo(w1, w2, w3)
	c := newTestCoordinator(repo, event)

	intents, err := c.OfferCapacity(context.Background(), nil, event.ID, 3)
	require.NoError(t, err)
	require.Len(t, intents, 2)

	deadline := queueTestNow.Add(24 * time.Hour)
	for _, id := range []uuid.UUID{w1.ID, w2.ID} {
		entry := repo.entries[id]
		assert.Equal(t, StatusNotified, entry.Status)
		require.NotNil(t, entry.ExpiresAt)
		assert.Equal(t, deadline, *entry.ExpiresAt)
	}
	// The third entry did not fit and stays queued untouched.
	assert.Equal(t, StatusActive, repo.entries[w3.ID].Status)
}

func TestOfferCapacityHeadOfLineIsNotLeapfrogged(t *testing.T) {
	event := soldOutEvent()
	big := activeEntry(event.ID, 1, 5)
	small := activeEntry(event.ID, 2, 1)
	repo := newMemRepo(big, small)
	c := newTestCoordinator(repo, event)

	// A head that does not fit holds up the whole queue even when a later
	// entry would fit.
	intents, err := c.OfferCapacity(context.Background(), nil, event.ID, 2)
	require.NoError(t, err)
	assert.Empty(t, intents)
	assert.Equal(t, StatusActive, repo.entries[big.ID].Status)
	assert.Equal(t, StatusActive, repo.entries[small.ID].Status)
}

func TestOfferCapacitySkipsAlreadyNotifiedEntries(t *testing.T) {
	event := soldOutEvent()
	already := activeEntry(event.ID, 1, 1)
	already.Status = StatusNotified
	next := activeEntry(event.ID, 2, 1)
	repo := newMemRepo(already, next)
	c := newTestCoordinator(repo, event)

	intents, err := c.OfferCapacity(context.Background(), nil, event.ID, 1)
	require.NoError(t, err)
	require.Len(t, intents, 1)
	assert.Equal(t, StatusNotified, repo.entries[next.ID].Status)
}

func TestOfferCapacityZeroQuantityIsNoop(t *testing.T) {
	event := soldOutEvent()
	repo := newMemRepo(activeEntry(event.ID, 1, 1))
	c := newTestCoordinator(repo, event)

	intents, err := c.OfferCapacity(context.Background(), nil, event.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, intents)
}

func TestExpireNotificationsRequeuesAtTail(t *testing.T) {
	event := soldOutEvent()
	w1 := activeEntry(event.ID, 1, 2)
	w2 := activeEntry(event.ID, 2, 1)
	w3 := activeEntry(event.ID, 3, 2)
	repo := newMemRepo(w1, w2, w3)
	c := newTestCoordinator(repo, event)

	_, err := c.OfferCapacity(context.Background(), nil, event.ID, 3)
	require.NoError(t, err)

	// Neither notified user books; both windows lapse and the entries return
	// to ACTIVE at the tail in notification order.
	requeued, err := c.ExpireNotifications(context.Background(), queueTestNow.Add(25*time.Hour), 10)
	require.NoError(t, err)
	assert.Equal(t, 2, requeued)

	assert.Equal(t, StatusActive, repo.entries[w1.ID].Status)
	assert.Equal(t, StatusActive, repo.entries[w2.ID].Status)
	assert.Equal(t, 1, repo.entries[w3.ID].Position)
	assert.Equal(t, 2, repo.entries[w1.ID].Position)
	assert.Equal(t, 3, repo.entries[w2.ID].Position)
	assert.Nil(t, repo.entries[w1.ID].ExpiresAt)
}

func TestConvertEntryCompactsPositions(t *testing.T) {
	event := soldOutEvent()
	notified := activeEntry(event.ID, 1, 1)
	notified.Status = StatusNotified
	behind := activeEntry(event.ID, 2, 1)
	repo := newMemRepo(notified, behind)
	c := newTestCoordinator(repo, event)

	require.NoError(t, c.ConvertEntry(context.Background(), nil, notified.UserID, event.ID))

	assert.Equal(t, StatusConverted, repo.entries[notified.ID].Status)
	assert.Zero(t, repo.entries[notified.ID].Position)
	assert.Equal(t, 1, repo.entries[behind.ID].Position)

	// Converting a user with no open window is a no-op.
	require.NoError(t, c.ConvertEntry(context.Background(), nil, uuid.New(), event.ID))
}

func TestJoinAppendsAtTail(t *testing.T) {
	event := soldOutEvent()
	repo := newMemRepo(activeEntry(event.ID, 1, 2))
	c := newTestCoordinator(repo, event)

	resp, err := c.Join(context.Background(), uuid.New(), &JoinWaitlistRequest{
		EventID:  event.ID.String(),
		Quantity: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Position)
	assert.Equal(t, StatusActive, resp.Status)
}

func TestJoinGates(t *testing.T) {
	event := soldOutEvent()
	userID := uuid.New()
	repo := newMemRepo()
	c := newTestCoordinator(repo, event)

	// Over the per-user cap.
	_, err := c.Join(context.Background(), userID, &JoinWaitlistRequest{
		EventID:  event.ID.String(),
		Quantity: 5,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	// Already queued.
	_, err = c.Join(context.Background(), userID, &JoinWaitlistRequest{EventID: event.ID.String(), Quantity: 1})
	require.NoError(t, err)
	_, err = c.Join(context.Background(), userID, &JoinWaitlistRequest{EventID: event.ID.String(), Quantity: 1})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeAlreadyOnWaitlist, apperrors.CodeOf(err))

	// Still bookable directly.
	event.AvailableCapacity = 10
	_, err = c.Join(context.Background(), uuid.New(), &JoinWaitlistRequest{EventID: event.ID.String(), Quantity: 1})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeEventNotSoldOut, apperrors.CodeOf(err))

	// Deactivated event.
	event.AvailableCapacity = 0
	event.IsActive = false
	_, err = c.Join(context.Background(), uuid.New(), &JoinWaitlistRequest{EventID: event.ID.String(), Quantity: 1})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeEventInactive, apperrors.CodeOf(err))
}

func TestEntryToResponse(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	deadline := now.Add(time.Hour)

	entry := &Entry{
		ID:        uuid.New(),
		EventID:   uuid.New(),
		Position:  4,
		Quantity:  2,
		Status:    StatusNotified,
		JoinedAt:  now.Add(-time.Hour),
		ExpiresAt: &deadline,
	}

	resp := entry.ToResponse(now)
	assert.Equal(t, 4, resp.Position)
	assert.Equal(t, StatusNotified, resp.Status)
	assert.Equal(t, 3600, resp.WindowRemainingS)
}
