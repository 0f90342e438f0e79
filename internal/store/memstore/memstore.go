// Package memstore is an in-process implementation of store.Store used by
// the test suites and by STORE_DRIVER=memory for local development.
// Transactions are serialised behind one mutex and applied copy-on-write.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/apperr"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/lifecycle"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/store"
	"github.com/google/uuid"
)

type dataset struct {
	users     map[uuid.UUID]models.User
	listings  map[uuid.UUID]models.Listing
	templates map[uuid.UUID]models.Template
	chats     []models.ChatMessage
	trades    []models.Trade
	media     []models.MediaFile
	schedules []models.RetentionSchedule
	reports   map[uuid.UUID]models.Report
}

func newDataset() *dataset {
	return &dataset{
		users:     make(map[uuid.UUID]models.User),
		listings:  make(map[uuid.UUID]models.Listing),
		templates: make(map[uuid.UUID]models.Template),
		reports:   make(map[uuid.UUID]models.Report),
	}
}

func (d *dataset) clone() *dataset {
	c := newDataset()
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.listings {
		c.listings[k] = v
	}
	for k, v := range d.templates {
		c.templates[k] = v
	}
	for k, v := range d.reports {
		c.reports[k] = v
	}
	c.chats = append([]models.ChatMessage(nil), d.chats...)
	c.trades = append([]models.Trade(nil), d.trades...)
	c.media = append([]models.MediaFile(nil), d.media...)
	c.schedules = append([]models.RetentionSchedule(nil), d.schedules...)
	return c
}

type Store struct {
	mu    *sync.Mutex
	data  *dataset
	inTx  bool
	nowFn func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return NewWithClock(time.Now)
}

// NewWithClock stamps created_at/updated_at from nowFn.
func NewWithClock(nowFn func() time.Time) *Store {
	return &Store{mu: &sync.Mutex{}, data: newDataset(), nowFn: nowFn}
}

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Store{mu: s.mu, data: s.data.clone(), inTx: true, nowFn: s.nowFn}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.data = tx.data
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

// Seeding helpers. They fill in ids, default statuses and timestamps.

func (s *Store) AddUser(u models.User) models.User {
	defer s.lock()()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Status == "" {
		u.Status = lifecycle.StatusActive
	}
	if u.Role == "" {
		u.Role = "user"
	}
	u.CreatedAt, u.UpdatedAt = s.stamp(u.CreatedAt)
	s.data.users[u.ID] = u
	return u
}

func (s *Store) AddListing(l models.Listing) models.Listing {
	defer s.lock()()
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.Status == "" {
		l.Status = lifecycle.StatusActive
	}
	l.CreatedAt, l.UpdatedAt = s.stamp(l.CreatedAt)
	s.data.listings[l.ID] = l
	return l
}

func (s *Store) AddTemplate(t models.Template) models.Template {
	defer s.lock()()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Status == "" {
		t.Status = lifecycle.StatusActive
	}
	if t.Visibility == "" {
		t.Visibility = lifecycle.VisibilityPublic
	}
	t.CreatedAt, t.UpdatedAt = s.stamp(t.CreatedAt)
	s.data.templates[t.ID] = t
	return t
}

func (s *Store) AddChatMessage(m models.ChatMessage) {
	defer s.lock()()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	s.data.chats = append(s.data.chats, m)
}

func (s *Store) AddTrade(t models.Trade) {
	defer s.lock()()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	s.data.trades = append(s.data.trades, t)
}

func (s *Store) AddMediaFile(m models.MediaFile) {
	defer s.lock()()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	s.data.media = append(s.data.media, m)
}

func (s *Store) stamp(created time.Time) (time.Time, time.Time) {
	now := s.nowFn()
	if created.IsZero() {
		created = now
	}
	return created, now
}

func (s *Store) GetEntity(_ context.Context, kind lifecycle.Kind, id uuid.UUID) (*store.Entity, error) {
	defer s.lock()()
	e, ok := s.entity(kind, id)
	if !ok {
		return nil, apperr.NotFound("GetEntity", "%s not found", kind)
	}
	return e, nil
}

func (s *Store) entity(kind lifecycle.Kind, id uuid.UUID) (*store.Entity, bool) {
	switch kind {
	case lifecycle.KindListing:
		l, ok := s.data.listings[id]
		if !ok {
			return nil, false
		}
		return &store.Entity{Kind: kind, ID: l.ID, OwnerID: l.OwnerID, Title: l.Title, Status: l.Status, DeletedAt: l.DeletedAt}, true
	case lifecycle.KindTemplate:
		t, ok := s.data.templates[id]
		if !ok {
			return nil, false
		}
		return &store.Entity{Kind: kind, ID: t.ID, OwnerID: t.OwnerID, Title: t.Title, Status: t.Status, Visibility: t.Visibility, DeletedAt: t.DeletedAt}, true
	case lifecycle.KindUser:
		u, ok := s.data.users[id]
		if !ok {
			return nil, false
		}
		return userEntity(u), true
	}
	return nil, false
}

func userEntity(u models.User) *store.Entity {
	title := u.DisplayName
	if title == "" {
		title = u.Email
	}
	return &store.Entity{
		Kind:             lifecycle.KindUser,
		ID:               u.ID,
		OwnerID:          u.ID,
		Title:            title,
		Status:           u.Status,
		DeletedAt:        u.DeletedAt,
		SuspendedAt:      u.SuspendedAt,
		SuspendedBy:      u.SuspendedBy,
		SuspensionReason: u.SuspensionReason,
	}
}

func (s *Store) GetAccount(_ context.Context, id uuid.UUID) (*models.User, error) {
	defer s.lock()()
	u, ok := s.data.users[id]
	if !ok {
		return nil, apperr.NotFound("GetAccount", "user not found")
	}
	return &u, nil
}

func (s *Store) TransitionStatus(_ context.Context, kind lifecycle.Kind, id uuid.UUID, from, to lifecycle.Status, deletedAt *time.Time) (bool, error) {
	defer s.lock()()
	now := s.nowFn()
	switch kind {
	case lifecycle.KindListing:
		l, ok := s.data.listings[id]
		if !ok || l.Status != from {
			return false, nil
		}
		l.Status, l.DeletedAt, l.UpdatedAt = to, deletedAt, now
		s.data.listings[id] = l
	case lifecycle.KindTemplate:
		t, ok := s.data.templates[id]
		if !ok || t.Status != from {
			return false, nil
		}
		t.Status, t.DeletedAt, t.UpdatedAt = to, deletedAt, now
		s.data.templates[id] = t
	case lifecycle.KindUser:
		u, ok := s.data.users[id]
		if !ok || u.Status != from {
			return false, nil
		}
		u.Status, u.DeletedAt, u.UpdatedAt = to, deletedAt, now
		s.data.users[id] = u
	default:
		return false, apperr.Validation("TransitionStatus", "unknown entity type %q", kind)
	}
	return true, nil
}

func (s *Store) SetSuspension(_ context.Context, userID uuid.UUID, sp *store.Suspension) error {
	defer s.lock()()
	u, ok := s.data.users[userID]
	if !ok {
		return apperr.NotFound("SetSuspension", "user not found")
	}
	if sp == nil {
		u.SuspendedAt, u.SuspendedBy, u.SuspensionReason = nil, nil, ""
	} else {
		at := sp.At
		u.SuspendedAt, u.SuspendedBy, u.SuspensionReason = &at, sp.By, sp.Reason
	}
	u.UpdatedAt = s.nowFn()
	s.data.users[userID] = u
	return nil
}

func (s *Store) Purge(_ context.Context, kind lifecycle.Kind, id uuid.UUID) (store.Cascade, error) {
	defer s.lock()()
	if _, ok := s.entity(kind, id); !ok {
		return store.Cascade{}, apperr.NotFound("Purge", "%s not found", kind)
	}
	switch kind {
	case lifecycle.KindListing:
		return s.purgeListing(id), nil
	case lifecycle.KindTemplate:
		return s.purgeTemplate(id), nil
	}
	return s.purgeUser(id), nil
}

func (s *Store) purgeListing(id uuid.UUID) store.Cascade {
	var c store.Cascade
	s.data.chats, c.ChatMessages = filter(s.data.chats, func(m models.ChatMessage) bool { return m.ListingID == id })
	s.data.trades, c.Transactions = filter(s.data.trades, func(t models.Trade) bool { return t.ListingID == id })
	c.MediaFiles = s.purgeMedia(lifecycle.KindListing, id)
	delete(s.data.listings, id)
	return c
}

func (s *Store) purgeTemplate(id uuid.UUID) store.Cascade {
	var c store.Cascade
	c.MediaFiles = s.purgeMedia(lifecycle.KindTemplate, id)
	delete(s.data.templates, id)
	return c
}

func (s *Store) purgeUser(id uuid.UUID) store.Cascade {
	var c store.Cascade
	for lid, l := range s.data.listings {
		if l.OwnerID == id {
			c.Add(s.purgeListing(lid))
			s.dropSchedules(lifecycle.KindListing, lid)
			c.Listings++
		}
	}
	for tid, t := range s.data.templates {
		if t.OwnerID == id {
			c.Add(s.purgeTemplate(tid))
			s.dropSchedules(lifecycle.KindTemplate, tid)
			c.Templates++
		}
	}
	var n int64
	s.data.chats, n = filter(s.data.chats, func(m models.ChatMessage) bool { return m.SenderID == id || m.ReceiverID == id })
	c.ChatMessages += n
	s.data.trades, n = filter(s.data.trades, func(t models.Trade) bool { return t.BuyerID == id || t.SellerID == id })
	c.Transactions += n
	s.data.media, n = filter(s.data.media, func(m models.MediaFile) bool { return m.OwnerID == id })
	c.MediaFiles += n
	delete(s.data.users, id)
	return c
}

func (s *Store) purgeMedia(kind lifecycle.Kind, id uuid.UUID) int64 {
	var n int64
	s.data.media, n = filter(s.data.media, func(m models.MediaFile) bool { return m.EntityType == kind && m.EntityID == id })
	return n
}

// dropSchedules removes active schedules of nested entities erased with a
// parent; the parent's own entry is marked processed by the caller.
func (s *Store) dropSchedules(kind lifecycle.Kind, id uuid.UUID) {
	s.data.schedules, _ = filter(s.data.schedules, func(r models.RetentionSchedule) bool {
		return r.ProcessedAt == nil && r.EntityType == kind && r.EntityID == id
	})
}

// filter removes the items matching drop and returns how many were removed.
func filter[T any](items []T, drop func(T) bool) ([]T, int64) {
	kept := items[:0:0]
	var n int64
	for _, it := range items {
		if drop(it) {
			n++
			continue
		}
		kept = append(kept, it)
	}
	return kept, n
}

func (s *Store) activeIndex(kind lifecycle.Kind, id uuid.UUID) int {
	for i, r := range s.data.schedules {
		if r.ProcessedAt == nil && r.EntityType == kind && r.EntityID == id {
			return i
		}
	}
	return -1
}

func (s *Store) CreateSchedule(_ context.Context, r *models.RetentionSchedule) error {
	defer s.lock()()
	if s.activeIndex(r.EntityType, r.EntityID) >= 0 {
		return apperr.DuplicateSchedule("CreateSchedule", "%s %s already has a pending deletion", r.EntityType, r.EntityID)
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.nowFn()
	}
	s.data.schedules = append(s.data.schedules, *r)
	return nil
}

func (s *Store) ActiveSchedule(_ context.Context, kind lifecycle.Kind, id uuid.UUID) (*models.RetentionSchedule, error) {
	defer s.lock()()
	i := s.activeIndex(kind, id)
	if i < 0 {
		return nil, apperr.NotFound("ActiveSchedule", "no pending deletion for %s", kind)
	}
	r := s.data.schedules[i]
	return &r, nil
}

func (s *Store) DeleteActiveSchedule(_ context.Context, kind lifecycle.Kind, id uuid.UUID) (bool, error) {
	defer s.lock()()
	i := s.activeIndex(kind, id)
	if i < 0 {
		return false, nil
	}
	s.data.schedules = append(s.data.schedules[:i:i], s.data.schedules[i+1:]...)
	return true, nil
}

func (s *Store) MarkScheduleProcessed(_ context.Context, kind lifecycle.Kind, id uuid.UUID, at time.Time) (bool, error) {
	defer s.lock()()
	i := s.activeIndex(kind, id)
	if i < 0 {
		return false, nil
	}
	s.data.schedules[i].ProcessedAt = &at
	return true, nil
}

func (s *Store) DueSchedules(_ context.Context, now time.Time, limit int) ([]models.RetentionSchedule, error) {
	defer s.lock()()
	due := make([]models.RetentionSchedule, 0)
	for _, r := range s.data.schedules {
		if r.Due(now) {
			due = append(due, r)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ScheduledFor.Before(due[j].ScheduledFor) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *Store) CreateReport(_ context.Context, r *models.Report) error {
	defer s.lock()()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	r.CreatedAt, r.UpdatedAt = s.stamp(r.CreatedAt)
	s.data.reports[r.ID] = *r
	return nil
}

func (s *Store) GetReport(_ context.Context, id uuid.UUID) (*models.Report, error) {
	defer s.lock()()
	r, ok := s.data.reports[id]
	if !ok {
		return nil, apperr.NotFound("GetReport", "report not found")
	}
	return &r, nil
}

func (s *Store) ListReports(_ context.Context, statuses []models.ReportStatus, limit, offset int) ([]models.Report, int64, error) {
	defer s.lock()()
	want := make(map[models.ReportStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	all := make([]models.Report, 0)
	for _, r := range s.data.reports {
		if len(want) == 0 || want[r.Status] {
			all = append(all, r)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID.String() < all[j].ID.String()
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	total := int64(len(all))
	if offset >= len(all) {
		return []models.Report{}, total, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, total, nil
}

func (s *Store) MarkReportReviewed(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	defer s.lock()()
	r, ok := s.data.reports[id]
	if !ok || r.Status != models.ReportPending {
		return false, nil
	}
	r.Status, r.ReviewedAt, r.UpdatedAt = models.ReportReviewed, &at, at
	s.data.reports[id] = r
	return true, nil
}

func (s *Store) ResolveReport(_ context.Context, id uuid.UUID, res store.ReportResolution) (bool, error) {
	defer s.lock()()
	r, ok := s.data.reports[id]
	if !ok || !r.Status.Open() {
		return false, nil
	}
	action := res.Action
	at := res.ResolvedAt
	r.Status = res.Status
	r.Action = &action
	r.AdminNotes = res.AdminNotes
	r.ResolvedBy = res.ResolvedBy
	r.ResolvedAt = &at
	r.UpdatedAt = at
	s.data.reports[id] = r
	return true, nil
}

func (s *Store) UserHistory(_ context.Context, userID uuid.UUID) (*store.UserHistory, error) {
	defer s.lock()()
	u, ok := s.data.users[userID]
	if !ok {
		return nil, apperr.NotFound("UserHistory", "user not found")
	}
	h := &store.UserHistory{UserID: userID, Suspended: u.Suspended()}
	for _, r := range s.data.reports {
		if !s.ownedBy(r.EntityType, r.EntityID, userID) {
			continue
		}
		h.ReportsAgainst++
		if r.Status == models.ReportResolved {
			h.ResolvedAgainst++
		}
	}
	for _, l := range s.data.listings {
		if l.OwnerID == userID && l.Status == lifecycle.StatusActive {
			h.ActiveListings++
		}
	}
	return h, nil
}

func (s *Store) ownedBy(kind lifecycle.Kind, id, userID uuid.UUID) bool {
	switch kind {
	case lifecycle.KindUser:
		return id == userID
	case lifecycle.KindListing:
		l, ok := s.data.listings[id]
		return ok && l.OwnerID == userID
	case lifecycle.KindTemplate:
		t, ok := s.data.templates[id]
		return ok && t.OwnerID == userID
	}
	return false
}

func (s *Store) ListPendingDeletion(_ context.Context, kind lifecycle.Kind) ([]store.PendingDeletion, error) {
	defer s.lock()()
	out := make([]store.PendingDeletion, 0)
	add := func(e *store.Entity) {
		if e.Status != lifecycle.StatusRemoved && e.DeletedAt == nil {
			return
		}
		pd := store.PendingDeletion{Entity: *e}
		if i := s.activeIndex(kind, e.ID); i >= 0 {
			at := s.data.schedules[i].ScheduledFor
			pd.ScheduledFor = &at
			pd.Reason = s.data.schedules[i].Reason
		}
		out = append(out, pd)
	}
	switch kind {
	case lifecycle.KindListing:
		for id := range s.data.listings {
			e, _ := s.entity(kind, id)
			add(e)
		}
	case lifecycle.KindTemplate:
		for id := range s.data.templates {
			e, _ := s.entity(kind, id)
			add(e)
		}
	case lifecycle.KindUser:
		for id := range s.data.users {
			e, _ := s.entity(kind, id)
			add(e)
		}
	default:
		return nil, apperr.Validation("ListPendingDeletion", "unknown entity type %q", kind)
	}
	store.SortByDeadline(out)
	return out, nil
}

func (s *Store) ListSuspended(_ context.Context) ([]store.SuspendedAccount, error) {
	defer s.lock()()
	out := make([]store.SuspendedAccount, 0)
	for _, u := range s.data.users {
		if !u.Suspended() {
			continue
		}
		sa := store.SuspendedAccount{Entity: *userEntity(u), Email: u.Email}
		if i := s.activeIndex(lifecycle.KindUser, u.ID); i >= 0 {
			at := s.data.schedules[i].ScheduledFor
			sa.ScheduledFor = &at
		}
		out = append(out, sa)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SuspendedAt.After(*out[j].SuspendedAt) })
	return out, nil
}
