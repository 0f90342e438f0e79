package services

import (
	"sync"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/store/memstore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	clock      *testClock
	store      *memstore.Store
	retention  *RetentionService
	lifecycle  *LifecycleService
	moderation *ModerationService
	admin      *AdminService
	sweeper    *RetentionSweeper
	operator   Actor
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	st := memstore.NewWithClock(clock.Now)

	retention := NewRetentionService(st, DefaultGraceDays)
	retention.nowFn = clock.Now
	lc := NewLifecycleService(st, retention)
	lc.nowFn = clock.Now
	mod := NewModerationService(st, lc)
	mod.nowFn = clock.Now
	admin := NewAdminService(st, mod)
	admin.nowFn = clock.Now
	sweeper := NewRetentionSweeper(retention, lc, 0)
	sweeper.nowFn = clock.Now

	return &testEnv{
		clock:      clock,
		store:      st,
		retention:  retention,
		lifecycle:  lc,
		moderation: mod,
		admin:      admin,
		sweeper:    sweeper,
		operator:   Actor{UserID: uuid.New(), Operator: true},
	}
}

func (e *testEnv) user(t *testing.T, email, password string) models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return e.store.AddUser(models.User{Email: email, DisplayName: email, Password: string(hash)})
}

func (e *testEnv) listing(owner models.User, title string) models.Listing {
	return e.store.AddListing(models.Listing{OwnerID: owner.ID, Title: title})
}

func days(n int) time.Duration { return time.Duration(n) * 24 * time.Hour }
