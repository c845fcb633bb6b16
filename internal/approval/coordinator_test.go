package approval

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"station/internal/db/repositories"
	"station/pkg/models"
)

type fakeRepo struct {
	mu   sync.Mutex
	rows map[string]*models.Approval
}

func newFakeRepo() *fakeRepo { return &fakeRepo{rows: make(map[string]*models.Approval)} }

func (f *fakeRepo) Create(_ context.Context, a *models.Approval) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *a
	f.rows[a.ID] = &cp
	return nil
}

func (f *fakeRepo) Get(_ context.Context, id string) (*models.Approval, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id], nil
}

func (f *fakeRepo) Resolve(_ context.Context, id string, status models.ApprovalStatus, reason *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok || row.Status != models.ApprovalPending {
		return repositories.ErrAlreadyResolved
	}
	row.Status = status
	row.Reason = reason
	return nil
}

func (f *fakeRepo) SweepTimeouts(_ context.Context, now time.Time) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id, row := range f.rows {
		if row.Status == models.ApprovalPending && row.TimeoutAt.Before(now) {
			row.Status = models.ApprovalTimedOut
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func TestRequestResolvedByRespond(t *testing.T) {
	repo := newFakeRepo()
	c := New(repo, nil, time.Minute)

	var status models.ApprovalStatus
	var err error
	done := make(chan struct{})
	go func() {
		status, err = c.Request(context.Background(), "appr-1", "ep-1", "bash", "{}", "call-1", make(chan struct{}))
		close(done)
	}()

	require.Eventually(t, func() bool {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		_, ok := repo.rows["appr-1"]
		return ok
	}, time.Second, time.Millisecond)

	require.NoError(t, c.Respond(context.Background(), "appr-1", true, nil))
	<-done
	require.NoError(t, err)
	require.Equal(t, models.ApprovalApproved, status)
}

func TestRequestCancelledLeavesRowPending(t *testing.T) {
	repo := newFakeRepo()
	c := New(repo, nil, time.Minute)
	cancel := make(chan struct{})

	var status models.ApprovalStatus
	var err error
	done := make(chan struct{})
	go func() {
		status, err = c.Request(context.Background(), "appr-2", "ep-2", "bash", "{}", "call-2", cancel)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	close(cancel)
	<-done

	require.ErrorIs(t, err, ErrCancelled)
	require.Empty(t, status)

	row, _ := repo.Get(context.Background(), "appr-2")
	require.Equal(t, models.ApprovalPending, row.Status)
}

func TestSweepTimeoutsResolvesWaiter(t *testing.T) {
	repo := newFakeRepo()
	c := New(repo, nil, 10*time.Millisecond)

	var status models.ApprovalStatus
	done := make(chan struct{})
	go func() {
		status, _ = c.Request(context.Background(), "appr-3", "ep-3", "bash", "{}", "call-3", make(chan struct{}))
		close(done)
	}()

	time.Sleep(15 * time.Millisecond)
	require.NoError(t, c.SweepTimeouts(context.Background()))
	<-done
	require.Equal(t, models.ApprovalTimedOut, status)
}

func TestRespondIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	c := New(repo, nil, time.Minute)
	require.NoError(t, repo.Create(context.Background(), &models.Approval{ID: "appr-4", Status: models.ApprovalPending, TimeoutAt: time.Now().Add(time.Hour)}))

	require.NoError(t, c.Respond(context.Background(), "appr-4", true, nil))
	require.NoError(t, c.Respond(context.Background(), "appr-4", false, nil))

	row, _ := repo.Get(context.Background(), "appr-4")
	require.Equal(t, models.ApprovalApproved, row.Status)
}
