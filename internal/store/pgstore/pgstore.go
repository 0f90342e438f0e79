// Package pgstore implements store.Store on PostgreSQL through gorm.
package pgstore

import (
	"context"
	"errors"
	"time"

	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/apperr"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/lifecycle"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/store"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Store struct {
	db *gorm.DB
}

var _ store.Store = (*Store)(nil)

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// wrap turns gorm and driver errors into typed kinds.
func wrap(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.Wrap(apperr.KindNotFound, op, err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperr.Wrap(apperr.KindDuplicateSchedule, op, err)
	}
	return apperr.FromStoreMessage(op, err)
}

func modelFor(kind lifecycle.Kind) (any, error) {
	switch kind {
	case lifecycle.KindListing:
		return &models.Listing{}, nil
	case lifecycle.KindTemplate:
		return &models.Template{}, nil
	case lifecycle.KindUser:
		return &models.User{}, nil
	}
	return nil, apperr.Validation("store", "unknown entity type %q", kind)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func listingEntity(l *models.Listing) *store.Entity {
	return &store.Entity{Kind: lifecycle.KindListing, ID: l.ID, OwnerID: l.OwnerID, Title: l.Title, Status: l.Status, DeletedAt: l.DeletedAt}
}

func templateEntity(t *models.Template) *store.Entity {
	return &store.Entity{Kind: lifecycle.KindTemplate, ID: t.ID, OwnerID: t.OwnerID, Title: t.Title, Status: t.Status, Visibility: t.Visibility, DeletedAt: t.DeletedAt}
}

func userEntity(u *models.User) *store.Entity {
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

func (s *Store) GetEntity(ctx context.Context, kind lifecycle.Kind, id uuid.UUID) (*store.Entity, error) {
	db := s.db.WithContext(ctx)
	switch kind {
	case lifecycle.KindListing:
		var l models.Listing
		if err := db.First(&l, "id = ?", id).Error; err != nil {
			return nil, wrap("GetEntity", err)
		}
		return listingEntity(&l), nil
	case lifecycle.KindTemplate:
		var t models.Template
		if err := db.First(&t, "id = ?", id).Error; err != nil {
			return nil, wrap("GetEntity", err)
		}
		return templateEntity(&t), nil
	case lifecycle.KindUser:
		var u models.User
		if err := db.First(&u, "id = ?", id).Error; err != nil {
			return nil, wrap("GetEntity", err)
		}
		return userEntity(&u), nil
	}
	return nil, apperr.Validation("GetEntity", "unknown entity type %q", kind)
}

func (s *Store) GetAccount(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, wrap("GetAccount", err)
	}
	return &u, nil
}

func (s *Store) TransitionStatus(ctx context.Context, kind lifecycle.Kind, id uuid.UUID, from, to lifecycle.Status, deletedAt *time.Time) (bool, error) {
	model, err := modelFor(kind)
	if err != nil {
		return false, err
	}
	res := s.db.WithContext(ctx).Model(model).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"deleted_at": deletedAt,
		})
	if res.Error != nil {
		return false, wrap("TransitionStatus", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) SetSuspension(ctx context.Context, userID uuid.UUID, sp *store.Suspension) error {
	updates := map[string]interface{}{
		"suspended_at":      nil,
		"suspended_by":      nil,
		"suspension_reason": "",
	}
	if sp != nil {
		updates["suspended_at"] = sp.At
		updates["suspended_by"] = sp.By
		updates["suspension_reason"] = sp.Reason
	}
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(updates)
	if res.Error != nil {
		return wrap("SetSuspension", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("SetSuspension", "user not found")
	}
	return nil
}

func (s *Store) Purge(ctx context.Context, kind lifecycle.Kind, id uuid.UUID) (store.Cascade, error) {
	var c store.Cascade
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		switch kind {
		case lifecycle.KindListing:
			c, err = purgeListings(tx, []uuid.UUID{id})
			if err != nil {
				return err
			}
			return deleteOne(tx, &models.Listing{}, id)
		case lifecycle.KindTemplate:
			c, err = purgeTemplates(tx, []uuid.UUID{id})
			if err != nil {
				return err
			}
			return deleteOne(tx, &models.Template{}, id)
		case lifecycle.KindUser:
			c, err = purgeUser(tx, id)
			return err
		}
		return apperr.Validation("Purge", "unknown entity type %q", kind)
	})
	if err != nil {
		return store.Cascade{}, wrap("Purge", err)
	}
	return c, nil
}

func deleteOne(tx *gorm.DB, model any, id uuid.UUID) error {
	res := tx.Where("id = ?", id).Delete(model)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("Purge", "entity not found")
	}
	return nil
}

func purgeListings(tx *gorm.DB, ids []uuid.UUID) (store.Cascade, error) {
	var c store.Cascade
	if len(ids) == 0 {
		return c, nil
	}
	res := tx.Where("listing_id IN ?", ids).Delete(&models.ChatMessage{})
	if res.Error != nil {
		return c, res.Error
	}
	c.ChatMessages = res.RowsAffected

	res = tx.Where("listing_id IN ?", ids).Delete(&models.Trade{})
	if res.Error != nil {
		return c, res.Error
	}
	c.Transactions = res.RowsAffected

	res = tx.Where("entity_type = ? AND entity_id IN ?", lifecycle.KindListing, ids).Delete(&models.MediaFile{})
	if res.Error != nil {
		return c, res.Error
	}
	c.MediaFiles = res.RowsAffected
	return c, nil
}

func purgeTemplates(tx *gorm.DB, ids []uuid.UUID) (store.Cascade, error) {
	var c store.Cascade
	if len(ids) == 0 {
		return c, nil
	}
	res := tx.Where("entity_type = ? AND entity_id IN ?", lifecycle.KindTemplate, ids).Delete(&models.MediaFile{})
	if res.Error != nil {
		return c, res.Error
	}
	c.MediaFiles = res.RowsAffected
	return c, nil
}

// purgeUser erases the account with everything it owns. Active schedules
// of the owned listings and templates go with them.
func purgeUser(tx *gorm.DB, id uuid.UUID) (store.Cascade, error) {
	var c store.Cascade

	var listingIDs, templateIDs []uuid.UUID
	if err := tx.Model(&models.Listing{}).Where("owner_id = ?", id).Pluck("id", &listingIDs).Error; err != nil {
		return c, err
	}
	if err := tx.Model(&models.Template{}).Where("owner_id = ?", id).Pluck("id", &templateIDs).Error; err != nil {
		return c, err
	}

	lc, err := purgeListings(tx, listingIDs)
	if err != nil {
		return c, err
	}
	c.Add(lc)
	tc, err := purgeTemplates(tx, templateIDs)
	if err != nil {
		return c, err
	}
	c.Add(tc)

	res := tx.Where("sender_id = ? OR receiver_id = ?", id, id).Delete(&models.ChatMessage{})
	if res.Error != nil {
		return c, res.Error
	}
	c.ChatMessages += res.RowsAffected

	res = tx.Where("buyer_id = ? OR seller_id = ?", id, id).Delete(&models.Trade{})
	if res.Error != nil {
		return c, res.Error
	}
	c.Transactions += res.RowsAffected

	res = tx.Where("owner_id = ?", id).Delete(&models.MediaFile{})
	if res.Error != nil {
		return c, res.Error
	}
	c.MediaFiles += res.RowsAffected

	for kind, ids := range map[lifecycle.Kind][]uuid.UUID{lifecycle.KindListing: listingIDs, lifecycle.KindTemplate: templateIDs} {
		if len(ids) == 0 {
			continue
		}
		if err := tx.Where("entity_type = ? AND entity_id IN ? AND processed_at IS NULL", kind, ids).
			Delete(&models.RetentionSchedule{}).Error; err != nil {
			return c, err
		}
	}

	if len(listingIDs) > 0 {
		res = tx.Where("id IN ?", listingIDs).Delete(&models.Listing{})
		if res.Error != nil {
			return c, res.Error
		}
		c.Listings = res.RowsAffected
	}
	if len(templateIDs) > 0 {
		res = tx.Where("id IN ?", templateIDs).Delete(&models.Template{})
		if res.Error != nil {
			return c, res.Error
		}
		c.Templates = res.RowsAffected
	}

	return c, deleteOne(tx, &models.User{}, id)
}

func (s *Store) CreateSchedule(ctx context.Context, r *models.RetentionSchedule) error {
	var n int64
	db := s.db.WithContext(ctx)
	if err := db.Model(&models.RetentionSchedule{}).
		Where("entity_type = ? AND entity_id = ? AND processed_at IS NULL", r.EntityType, r.EntityID).
		Count(&n).Error; err != nil {
		return wrap("CreateSchedule", err)
	}
	if n > 0 {
		return apperr.DuplicateSchedule("CreateSchedule", "%s %s already has a pending deletion", r.EntityType, r.EntityID)
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if err := db.Create(r).Error; err != nil {
		return wrap("CreateSchedule", err)
	}
	return nil
}

func (s *Store) ActiveSchedule(ctx context.Context, kind lifecycle.Kind, id uuid.UUID) (*models.RetentionSchedule, error) {
	var r models.RetentionSchedule
	err := s.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ? AND processed_at IS NULL", kind, id).
		First(&r).Error
	if err != nil {
		return nil, wrap("ActiveSchedule", err)
	}
	return &r, nil
}

func (s *Store) DeleteActiveSchedule(ctx context.Context, kind lifecycle.Kind, id uuid.UUID) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ? AND processed_at IS NULL", kind, id).
		Delete(&models.RetentionSchedule{})
	if res.Error != nil {
		return false, wrap("DeleteActiveSchedule", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) MarkScheduleProcessed(ctx context.Context, kind lifecycle.Kind, id uuid.UUID, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.RetentionSchedule{}).
		Where("entity_type = ? AND entity_id = ? AND processed_at IS NULL", kind, id).
		Update("processed_at", at)
	if res.Error != nil {
		return false, wrap("MarkScheduleProcessed", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) DueSchedules(ctx context.Context, now time.Time, limit int) ([]models.RetentionSchedule, error) {
	due := make([]models.RetentionSchedule, 0)
	q := s.db.WithContext(ctx).
		Where("processed_at IS NULL AND scheduled_for <= ?", now).
		Order("scheduled_for ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&due).Error; err != nil {
		return nil, wrap("DueSchedules", err)
	}
	return due, nil
}

func (s *Store) CreateReport(ctx context.Context, r *models.Report) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return wrap("CreateReport", err)
	}
	return nil
}

func (s *Store) GetReport(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	var r models.Report
	if err := s.db.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return nil, wrap("GetReport", err)
	}
	return &r, nil
}

func (s *Store) ListReports(ctx context.Context, statuses []models.ReportStatus, limit, offset int) ([]models.Report, int64, error) {
	reports := make([]models.Report, 0)
	var total int64

	query := s.db.WithContext(ctx).Model(&models.Report{})
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, wrap("ListReports", err)
	}
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&reports).Error; err != nil {
		return nil, 0, wrap("ListReports", err)
	}
	return reports, total, nil
}

func (s *Store) MarkReportReviewed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Report{}).
		Where("id = ? AND status = ?", id, models.ReportPending).
		Updates(map[string]interface{}{
			"status":      models.ReportReviewed,
			"reviewed_at": at,
		})
	if res.Error != nil {
		return false, wrap("MarkReportReviewed", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) ResolveReport(ctx context.Context, id uuid.UUID, r store.ReportResolution) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Report{}).
		Where("id = ? AND status IN ?", id, store.OpenReportStatuses).
		Updates(map[string]interface{}{
			"status":      r.Status,
			"action":      r.Action,
			"admin_notes": r.AdminNotes,
			"resolved_by": r.ResolvedBy,
			"resolved_at": r.ResolvedAt,
		})
	if res.Error != nil {
		return false, wrap("ResolveReport", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) UserHistory(ctx context.Context, userID uuid.UUID) (*store.UserHistory, error) {
	db := s.db.WithContext(ctx)

	var u models.User
	if err := db.First(&u, "id = ?", userID).Error; err != nil {
		return nil, wrap("UserHistory", err)
	}
	h := &store.UserHistory{UserID: userID, Suspended: u.Suspended()}

	owned := func() *gorm.DB {
		return db.Model(&models.Report{}).Where(
			"(entity_type = ? AND entity_id = ?) OR (entity_type = ? AND entity_id IN (?)) OR (entity_type = ? AND entity_id IN (?))",
			lifecycle.KindUser, userID,
			lifecycle.KindListing, db.Model(&models.Listing{}).Select("id").Where("owner_id = ?", userID),
			lifecycle.KindTemplate, db.Model(&models.Template{}).Select("id").Where("owner_id = ?", userID),
		)
	}
	if err := owned().Count(&h.ReportsAgainst).Error; err != nil {
		return nil, wrap("UserHistory", err)
	}
	if err := owned().Where("status = ?", models.ReportResolved).Count(&h.ResolvedAgainst).Error; err != nil {
		return nil, wrap("UserHistory", err)
	}
	if err := db.Model(&models.Listing{}).
		Where("owner_id = ? AND status = ?", userID, lifecycle.StatusActive).
		Count(&h.ActiveListings).Error; err != nil {
		return nil, wrap("UserHistory", err)
	}
	return h, nil
}

// activeSchedules maps entity id to its unprocessed schedule.
func (s *Store) activeSchedules(ctx context.Context, kind lifecycle.Kind, ids []uuid.UUID) (map[uuid.UUID]models.RetentionSchedule, error) {
	out := make(map[uuid.UUID]models.RetentionSchedule, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.RetentionSchedule
	if err := s.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id IN ? AND processed_at IS NULL", kind, ids).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.EntityID] = r
	}
	return out, nil
}

func (s *Store) ListPendingDeletion(ctx context.Context, kind lifecycle.Kind) ([]store.PendingDeletion, error) {
	db := s.db.WithContext(ctx)
	where := "status = ? OR deleted_at IS NOT NULL"

	var entities []*store.Entity
	switch kind {
	case lifecycle.KindListing:
		var rows []models.Listing
		if err := db.Where(where, lifecycle.StatusRemoved).Find(&rows).Error; err != nil {
			return nil, wrap("ListPendingDeletion", err)
		}
		for i := range rows {
			entities = append(entities, listingEntity(&rows[i]))
		}
	case lifecycle.KindTemplate:
		var rows []models.Template
		if err := db.Where(where, lifecycle.StatusRemoved).Find(&rows).Error; err != nil {
			return nil, wrap("ListPendingDeletion", err)
		}
		for i := range rows {
			entities = append(entities, templateEntity(&rows[i]))
		}
	case lifecycle.KindUser:
		var rows []models.User
		if err := db.Where(where, lifecycle.StatusRemoved).Find(&rows).Error; err != nil {
			return nil, wrap("ListPendingDeletion", err)
		}
		for i := range rows {
			entities = append(entities, userEntity(&rows[i]))
		}
	default:
		return nil, apperr.Validation("ListPendingDeletion", "unknown entity type %q", kind)
	}

	ids := make([]uuid.UUID, len(entities))
	for i, e := range entities {
		ids[i] = e.ID
	}
	schedules, err := s.activeSchedules(ctx, kind, ids)
	if err != nil {
		return nil, wrap("ListPendingDeletion", err)
	}

	out := make([]store.PendingDeletion, 0, len(entities))
	for _, e := range entities {
		pd := store.PendingDeletion{Entity: *e}
		if r, ok := schedules[e.ID]; ok {
			at := r.ScheduledFor
			pd.ScheduledFor = &at
			pd.Reason = r.Reason
		}
		out = append(out, pd)
	}
	store.SortByDeadline(out)
	return out, nil
}

func (s *Store) ListSuspended(ctx context.Context) ([]store.SuspendedAccount, error) {
	var rows []models.User
	if err := s.db.WithContext(ctx).
		Where("suspended_at IS NOT NULL").
		Order("suspended_at DESC").
		Find(&rows).Error; err != nil {
		return nil, wrap("ListSuspended", err)
	}

	ids := make([]uuid.UUID, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}
	schedules, err := s.activeSchedules(ctx, lifecycle.KindUser, ids)
	if err != nil {
		return nil, wrap("ListSuspended", err)
	}

	out := make([]store.SuspendedAccount, 0, len(rows))
	for i := range rows {
		sa := store.SuspendedAccount{Entity: *userEntity(&rows[i]), Email: rows[i].Email}
		if r, ok := schedules[rows[i].ID]; ok {
			at := r.ScheduledFor
			sa.ScheduledFor = &at
		}
		out = append(out, sa)
	}
	return out, nil
}
