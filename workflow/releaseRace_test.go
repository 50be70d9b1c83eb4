package workflow

import (
	"strconv"
	"sync"
	"testing"

	"github.com/aivisionaries/hydropay_backend/models"
)

// NOTE: These tests are intentionally DB-free. They validate the concurrency
// semantics the workflow relies on:
// - a status flip is a conditional update, so exactly one of N racers wins
// - push deliveries are deduplicated by a durable idempotency key
//
// Full DB-backed coverage lives in the docker-gated integration tests.

// fakeApplicationStore mirrors the conditional UPDATE the workflow issues:
// UPDATE applications SET status = ? WHERE id = ? AND status = ?, with the
// caller checking RowsAffected.
type fakeApplicationStore struct {
	mu       sync.Mutex
	statuses map[int]models.ApplicationStatus
	seen     map[string]bool
	handled  int
}

func newFakeApplicationStore() *fakeApplicationStore {
	return &fakeApplicationStore{
		statuses: map[int]models.ApplicationStatus{},
		seen:     map[string]bool{},
	}
}

// flip applies the transition only when the row is still in the expected
// status. Returns true when a row was affected.
func (s *fakeApplicationStore) flip(applicationID int, from, to models.ApplicationStatus) bool {
	if !CanTransition(from, to) {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.statuses[applicationID] != from {
		return false
	}
	s.statuses[applicationID] = to
	return true
}

// handleOnce deduplicates by (application, handler, message), like the
// idempotency_keys unique index.
func (s *fakeApplicationStore) handleOnce(applicationID int, handlerName, messageID string, fn func()) {
	key := strconv.Itoa(applicationID) + "|" + handlerName + "|" + messageID
	s.mu.Lock()
	if s.seen[key] {
		s.mu.Unlock()
		return
	}
	s.seen[key] = true
	s.mu.Unlock()

	fn()

	s.mu.Lock()
	s.handled++
	s.mu.Unlock()
}

func TestConcurrentRelease_ExactlyOneWins(t *testing.T) {
	const appID = 7

	store := newFakeApplicationStore()
	store.statuses[appID] = models.ApplicationStatusGovtApproved

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if store.flip(appID, models.ApplicationStatusGovtApproved, models.ApplicationStatusFundReleased) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly 1 winning release, got %d", wins)
	}
	if got := store.statuses[appID]; got != models.ApplicationStatusFundReleased {
		t.Fatalf("final status = %s, want %s", got, models.ApplicationStatusFundReleased)
	}
}

func TestConcurrentFlip_LosersSeeStaleStatus(t *testing.T) {
	// Two racers trying different exits from pending: whichever wins, the other
	// must lose, and the final status must be a legal successor of pending.
	for run := 0; run < 100; run++ {
		const appID = 1
		store := newFakeApplicationStore()
		store.statuses[appID] = models.ApplicationStatusPending

		results := make(chan bool, 2)
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			results <- store.flip(appID, models.ApplicationStatusPending, models.ApplicationStatusAuditorVerified)
		}()
		go func() {
			defer wg.Done()
			results <- store.flip(appID, models.ApplicationStatusPending, models.ApplicationStatusRejected)
		}()
		wg.Wait()
		close(results)

		wins := 0
		for ok := range results {
			if ok {
				wins++
			}
		}
		if wins != 1 {
			t.Fatalf("run=%d expected 1 winner, got %d", run, wins)
		}
		final := store.statuses[appID]
		if !CanTransition(models.ApplicationStatusPending, final) {
			t.Fatalf("run=%d final status %s is not a successor of pending", run, final)
		}
	}
}

func TestDuplicatePushDelivery_HandledOnce(t *testing.T) {
	store := newFakeApplicationStore()

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.handleOnce(1, "notifyStatusChange", "msg-42", func() {})
		}()
	}
	wg.Wait()

	if store.handled != 1 {
		t.Fatalf("expected exactly 1 handled delivery, got %d", store.handled)
	}
}
