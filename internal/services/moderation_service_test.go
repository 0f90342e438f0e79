package services

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/apperr"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/lifecycle"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func submit(t *testing.T, env *testEnv, reporter uuid.UUID, kind lifecycle.Kind, id uuid.UUID) *models.Report {
	t.Helper()
	r, err := env.moderation.Submit(context.Background(), reporter, SubmitReport{
		EntityType: kind,
		EntityID:   id,
		Reason:     models.ReasonScam,
	})
	require.NoError(t, err)
	return r
}

func TestSubmit_Validation(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	reporter := env.user(t, "rep@example.com", "secret123")
	owner := env.user(t, "ana@example.com", "secret123")
	l := env.listing(owner, "Panini 1982 #45")

	_, err := env.moderation.Submit(ctx, reporter.ID, SubmitReport{EntityType: lifecycle.KindListing, EntityID: l.ID, Reason: "boring"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = env.moderation.Submit(ctx, reporter.ID, SubmitReport{EntityType: "post", EntityID: l.ID, Reason: models.ReasonSpam})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = env.moderation.Submit(ctx, reporter.ID, SubmitReport{
		EntityType: lifecycle.KindListing, EntityID: l.ID, Reason: models.ReasonSpam,
		Description: strings.Repeat("x", MaxDescriptionLength+1),
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = env.moderation.Submit(ctx, reporter.ID, SubmitReport{EntityType: lifecycle.KindListing, EntityID: uuid.New(), Reason: models.ReasonSpam})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = env.moderation.Submit(ctx, uuid.Nil, SubmitReport{EntityType: lifecycle.KindListing, EntityID: l.ID, Reason: models.ReasonSpam})
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestSubmit_CapturesSnapshot(t *testing.T) {
	env := newEnv(t)
	reporter := env.user(t, "rep@example.com", "secret123")
	owner := env.user(t, "ana@example.com", "secret123")
	l := env.listing(owner, "Panini 1982 #45")

	r := submit(t, env, reporter.ID, lifecycle.KindListing, l.ID)
	assert.Equal(t, models.ReportPending, r.Status)

	var snap ContentSnapshot
	require.NoError(t, json.Unmarshal(r.ContentSnapshot, &snap))
	assert.Equal(t, "Panini 1982 #45", snap.Title)
	assert.Equal(t, owner.ID, snap.OwnerID)
	assert.Equal(t, lifecycle.StatusActive, snap.Status)

	// The same reporter may report the same content again.
	again := submit(t, env, reporter.ID, lifecycle.KindListing, l.ID)
	assert.NotEqual(t, r.ID, again.ID)
}

func TestResolve_RemoveContent(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	reporter := env.user(t, "rep@example.com", "secret123")
	owner := env.user(t, "ana@example.com", "secret123")
	l := env.listing(owner, "Fake Messi")
	r := submit(t, env, reporter.ID, lifecycle.KindListing, l.ID)

	out, err := env.moderation.Resolve(ctx, env.operator, r.ID, models.ActionRemoveContent, "confirmed counterfeit")
	require.NoError(t, err)
	assert.Equal(t, models.ReportResolved, out.Status)
	require.NotNil(t, out.Action)
	assert.Equal(t, models.ActionRemoveContent, *out.Action)
	assert.Equal(t, "confirmed counterfeit", out.AdminNotes)
	require.NotNil(t, out.ResolvedBy)
	assert.Equal(t, env.operator.UserID, *out.ResolvedBy)
	require.NotNil(t, out.ResolvedAt)

	e, err := env.store.GetEntity(ctx, lifecycle.KindListing, l.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusRemoved, e.Status)

	sched, err := env.retention.Active(ctx, lifecycle.KindListing, l.ID)
	require.NoError(t, err)
	assert.Equal(t, env.clock.Now().Add(days(30)), sched.ScheduledFor)

	_, err = env.moderation.Resolve(ctx, env.operator, r.ID, models.ActionDismiss, "changed my mind")
	require.ErrorIs(t, err, apperr.ErrInvalidState)

	got, err := env.store.GetReport(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "confirmed counterfeit", got.AdminNotes)
	assert.Equal(t, models.ReportResolved, got.Status)
}

func TestResolve_SuspendUser(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	reporter := env.user(t, "rep@example.com", "secret123")
	owner := env.user(t, "ana@example.com", "secret123")
	tpl := env.store.AddTemplate(models.Template{OwnerID: owner.ID, Title: "insultos"})
	r := submit(t, env, reporter.ID, lifecycle.KindTemplate, tpl.ID)

	out, err := env.moderation.Resolve(ctx, env.operator, r.ID, models.ActionSuspendUser, "repeat offender")
	require.NoError(t, err)
	assert.Equal(t, models.ReportResolved, out.Status)

	acc, err := env.store.GetAccount(ctx, owner.ID)
	require.NoError(t, err)
	require.NotNil(t, acc.SuspendedAt)
	assert.Contains(t, acc.SuspensionReason, "repeat offender")
	assert.Equal(t, lifecycle.StatusActive, acc.Status)

	e, err := env.store.GetEntity(ctx, lifecycle.KindTemplate, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusActive, e.Status)
}

func TestResolve_Dismiss(t *testing.T) {
	env := newEnv(t)
	reporter := env.user(t, "rep@example.com", "secret123")
	target := env.user(t, "ana@example.com", "secret123")
	r := submit(t, env, reporter.ID, lifecycle.KindUser, target.ID)

	out, err := env.moderation.Resolve(context.Background(), env.operator, r.ID, models.ActionDismiss, "no evidence")
	require.NoError(t, err)
	assert.Equal(t, models.ReportDismissed, out.Status)
}

func TestResolve_FailedActionRollsBack(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	reporter := env.user(t, "rep@example.com", "secret123")
	owner := env.user(t, "ana@example.com", "secret123")
	l := env.listing(owner, "Panini 1982 #45")
	r := submit(t, env, reporter.ID, lifecycle.KindListing, l.ID)

	_, err := env.lifecycle.ChangeListingStatus(ctx, UserActor(owner.ID), l.ID, lifecycle.StatusSold)
	require.NoError(t, err)

	_, err = env.moderation.Resolve(ctx, env.operator, r.ID, models.ActionRemoveContent, "remove it")
	require.ErrorIs(t, err, apperr.ErrInvalidState)

	got, err := env.store.GetReport(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportPending, got.Status)
	assert.Empty(t, got.AdminNotes)
	assert.Nil(t, got.Action)
}

func TestResolve_DuplicateReportsSameAction(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	first := env.user(t, "rep@example.com", "secret123")
	second := env.user(t, "rep2@example.com", "secret123")
	owner := env.user(t, "ana@example.com", "secret123")
	l := env.listing(owner, "Fake Messi")
	r1 := submit(t, env, first.ID, lifecycle.KindListing, l.ID)
	r2 := submit(t, env, second.ID, lifecycle.KindListing, l.ID)

	t.Run("remove content twice", func(t *testing.T) {
		out, err := env.moderation.Resolve(ctx, env.operator, r1.ID, models.ActionRemoveContent, "counterfeit")
		require.NoError(t, err)
		assert.Equal(t, models.ReportResolved, out.Status)
		sched, err := env.retention.Active(ctx, lifecycle.KindListing, l.ID)
		require.NoError(t, err)
		deadline := sched.ScheduledFor

		env.clock.Advance(days(2))
		out, err = env.moderation.Resolve(ctx, env.operator, r2.ID, models.ActionRemoveContent, "same listing")
		require.NoError(t, err)
		assert.Equal(t, models.ReportResolved, out.Status)

		sched, err = env.retention.Active(ctx, lifecycle.KindListing, l.ID)
		require.NoError(t, err)
		assert.Equal(t, deadline, sched.ScheduledFor)
	})

	t.Run("suspend owner twice", func(t *testing.T) {
		tpl := env.store.AddTemplate(models.Template{OwnerID: owner.ID, Title: "insultos"})
		r3 := submit(t, env, first.ID, lifecycle.KindTemplate, tpl.ID)
		r4 := submit(t, env, second.ID, lifecycle.KindUser, owner.ID)

		_, err := env.moderation.Resolve(ctx, env.operator, r3.ID, models.ActionSuspendUser, "abuse")
		require.NoError(t, err)
		acc, err := env.store.GetAccount(ctx, owner.ID)
		require.NoError(t, err)
		require.NotNil(t, acc.SuspendedAt)
		suspendedAt := *acc.SuspendedAt

		env.clock.Advance(time.Hour)
		out, err := env.moderation.Resolve(ctx, env.operator, r4.ID, models.ActionSuspendUser, "abuse again")
		require.NoError(t, err)
		assert.Equal(t, models.ReportResolved, out.Status)

		acc, err = env.store.GetAccount(ctx, owner.ID)
		require.NoError(t, err)
		require.NotNil(t, acc.SuspendedAt)
		assert.Equal(t, suspendedAt, *acc.SuspendedAt)
		assert.Contains(t, acc.SuspensionReason, "abuse")
		assert.NotContains(t, acc.SuspensionReason, "abuse again")
	})
}

func TestResolve_RemoveContentAlreadyDeletedByOwner(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	reporter := env.user(t, "rep@example.com", "secret123")
	owner := env.user(t, "ana@example.com", "secret123")
	l := env.listing(owner, "Fake Messi")
	r := submit(t, env, reporter.ID, lifecycle.KindListing, l.ID)

	res, err := env.lifecycle.SoftDelete(ctx, UserActor(owner.ID), lifecycle.KindListing, l.ID, "")
	require.NoError(t, err)
	require.NotNil(t, res.ScheduledFor)

	env.clock.Advance(days(5))
	out, err := env.moderation.Resolve(ctx, env.operator, r.ID, models.ActionRemoveContent, "hid the evidence")
	require.NoError(t, err)
	assert.Equal(t, models.ReportResolved, out.Status)

	sched, err := env.retention.Active(ctx, lifecycle.KindListing, l.ID)
	require.NoError(t, err)
	assert.Equal(t, ReasonReportPrefix+string(models.ReasonScam), sched.Reason)
	assert.Equal(t, *res.ScheduledFor, sched.ScheduledFor)

	// The owner can no longer undo it.
	_, err = env.lifecycle.Restore(ctx, UserActor(owner.ID), lifecycle.KindListing, l.ID)
	assert.ErrorIs(t, err, apperr.ErrPermission)
}

func TestResolve_Validation(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	reporter := env.user(t, "rep@example.com", "secret123")
	target := env.user(t, "ana@example.com", "secret123")
	r := submit(t, env, reporter.ID, lifecycle.KindUser, target.ID)

	_, err := env.moderation.Resolve(ctx, env.operator, r.ID, models.ActionDismiss, "   ")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = env.moderation.Resolve(ctx, env.operator, r.ID, "ban", "notes")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = env.moderation.Resolve(ctx, UserActor(reporter.ID), r.ID, models.ActionDismiss, "notes")
	assert.ErrorIs(t, err, apperr.ErrPermission)
	_, err = env.moderation.Resolve(ctx, env.operator, uuid.New(), models.ActionDismiss, "notes")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestMarkReviewedThenResolve(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	reporter := env.user(t, "rep@example.com", "secret123")
	target := env.user(t, "ana@example.com", "secret123")
	r := submit(t, env, reporter.ID, lifecycle.KindUser, target.ID)

	out, err := env.moderation.MarkReviewed(ctx, env.operator, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportReviewed, out.Status)
	require.NotNil(t, out.ReviewedAt)

	_, err = env.moderation.MarkReviewed(ctx, env.operator, r.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	pending, total, err := env.moderation.ListPending(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, pending, 1)

	_, err = env.moderation.Resolve(ctx, env.operator, r.ID, models.ActionSuspendUser, "harassment confirmed")
	require.NoError(t, err)

	pending, total, err = env.moderation.ListPending(ctx, 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, pending)
}

func TestListPending_NewestFirstAndClamped(t *testing.T) {
	env := newEnv(t)
	reporter := env.user(t, "rep@example.com", "secret123")
	target := env.user(t, "ana@example.com", "secret123")

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		ids = append(ids, submit(t, env, reporter.ID, lifecycle.KindUser, target.ID).ID)
		env.clock.Advance(time.Minute)
	}

	got, total, err := env.moderation.ListPending(context.Background(), 1000, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, got, 3)
	assert.Equal(t, ids[2], got[0].ID)
	assert.Equal(t, ids[0], got[2].ID)

	assert.Equal(t, MaxReportLimit, ClampLimit(1000))
	assert.Equal(t, DefaultReportLimit, ClampLimit(0))
}

func TestGetDetails(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	reporter := env.user(t, "rep@example.com", "secret123")
	owner := env.user(t, "ana@example.com", "secret123")
	l1 := env.listing(owner, "uno")
	env.listing(owner, "dos")

	first := submit(t, env, reporter.ID, lifecycle.KindListing, l1.ID)
	_, err := env.moderation.Resolve(ctx, env.operator, first.ID, models.ActionRemoveContent, "fake")
	require.NoError(t, err)
	second := submit(t, env, reporter.ID, lifecycle.KindUser, owner.ID)

	d, err := env.moderation.GetDetails(ctx, second.ID)
	require.NoError(t, err)
	require.NotNil(t, d.Content)
	assert.Equal(t, owner.ID, d.Content.ID)
	require.NotNil(t, d.History)
	assert.Equal(t, int64(2), d.History.ReportsAgainst)
	assert.Equal(t, int64(1), d.History.ResolvedAgainst)
	assert.Equal(t, int64(1), d.History.ActiveListings)
	assert.False(t, d.History.Suspended)

	// Erased content still resolves its owner from the snapshot.
	_, err = env.lifecycle.HardDelete(ctx, env.operator, lifecycle.KindListing, l1.ID)
	require.NoError(t, err)
	d, err = env.moderation.GetDetails(ctx, first.ID)
	require.NoError(t, err)
	assert.Nil(t, d.Content)
	require.NotNil(t, d.History)
	assert.Equal(t, owner.ID, d.History.UserID)

	_, err = env.moderation.GetDetails(ctx, uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
