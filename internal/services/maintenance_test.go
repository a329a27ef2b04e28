package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shepherdhq/shepherd-backend/internal/pkg/dbctx"
	"github.com/shepherdhq/shepherd-backend/internal/types"
)

func TestDedupeActiveMentorsKeepsMostRecent(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	disciple := s.mkUser(t, "Disciple", false)
	m1 := s.mkUser(t, "MentorOne", false)
	m2 := s.mkUser(t, "MentorTwo", false)

	// legacy data imported before the partial unique index existed
	require.NoError(t, s.db.Exec(`DROP INDEX "uniq_discipleship_active_disciple"`).Error)

	older, err := s.edges.Create(dbc, &types.Discipleship{
		MentorID:   m1.ID,
		DiscipleID: disciple.ID,
		StartedAt:  time.Now().Add(-48 * time.Hour),
	})
	require.NoError(t, err)
	newer, err := s.edges.Create(dbc, &types.Discipleship{
		MentorID:   m2.ID,
		DiscipleID: disciple.ID,
		StartedAt:  time.Now().Add(-24 * time.Hour),
	})
	require.NoError(t, err)

	// make the keep-preference unambiguous
	require.NoError(t, s.db.Exec(`UPDATE "discipleship" SET updated_at = ? WHERE id = ?`, time.Now().Add(-time.Hour), older.ID).Error)
	require.NoError(t, s.db.Exec(`UPDATE "discipleship" SET updated_at = ? WHERE id = ?`, time.Now(), newer.ID).Error)

	result, err := s.maintenance.DedupeActiveMentors(ctx, false)
	require.NoError(t, err)
	require.Equal(t, 1, result.Processed)
	require.Equal(t, 1, result.Removed)

	active := s.activeEdges(t, disciple.ID)
	require.Len(t, active, 1)
	require.Equal(t, newer.ID, active[0].ID, "most recently updated row survives")

	kept, err := s.edges.GetByID(dbc, older.ID)
	require.NoError(t, err)
	require.Equal(t, types.DiscipleshipInactive, kept.Status)
	require.NotNil(t, kept.EndedAt)

	// idempotent: a second run finds nothing
	again, err := s.maintenance.DedupeActiveMentors(ctx, false)
	require.NoError(t, err)
	require.Zero(t, again.Processed)
	require.Zero(t, again.Removed)
}

func TestDedupeActiveMentorsDryRun(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	disciple := s.mkUser(t, "Disciple", false)
	m1 := s.mkUser(t, "MentorOne", false)
	m2 := s.mkUser(t, "MentorTwo", false)

	require.NoError(t, s.db.Exec(`DROP INDEX "uniq_discipleship_active_disciple"`).Error)
	_, err := s.edges.Create(dbc, &types.Discipleship{MentorID: m1.ID, DiscipleID: disciple.ID})
	require.NoError(t, err)
	_, err = s.edges.Create(dbc, &types.Discipleship{MentorID: m2.ID, DiscipleID: disciple.ID})
	require.NoError(t, err)

	result, err := s.maintenance.DedupeActiveMentors(ctx, true)
	require.NoError(t, err)
	require.Equal(t, 1, result.Processed)
	require.Equal(t, 1, result.Removed)

	require.Len(t, s.activeEdges(t, disciple.ID), 2, "dry run must not mutate")
}

func TestRebuildAllPrimaryUsers(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	leader := s.mkUser(t, "Leader", true)
	a := s.mkUser(t, "A", false)
	b := s.mkUser(t, "B", false)
	outsider := s.mkUser(t, "Outsider", false)

	_, err := s.discipleship.AssignMentor(ctx, a.ID, leader.ID)
	require.NoError(t, err)
	_, err = s.discipleship.AssignMentor(ctx, b.ID, a.ID)
	require.NoError(t, err)

	// corrupt the propagated values behind the core's back
	dbc := dbctx.Context{Ctx: ctx}
	require.NoError(t, s.users.SetPrimaryUserID(dbc, b.ID, nil))
	require.NoError(t, s.users.SetPrimaryUserID(dbc, outsider.ID, &leader.ID))

	result, err := s.maintenance.RebuildAllPrimaryUsers(ctx, false)
	require.NoError(t, err)
	require.Equal(t, 2, result.Updated, "b restored, outsider cleared")
	require.Equal(t, 2, result.Unchanged)
	require.Zero(t, result.Skipped)

	require.Equal(t, leader.ID, *s.reload(t, b.ID).PrimaryUserID)
	require.Nil(t, s.reload(t, outsider.ID).PrimaryUserID, "no mentor chain clears the stale value")
}

func TestRebuildAllPrimaryUsersDryRun(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	leader := s.mkUser(t, "Leader", true)
	stale := s.mkUser(t, "Stale", false)

	// stale primary with no active mentor chain: reported, not written
	dbc := dbctx.Context{Ctx: ctx}
	require.NoError(t, s.users.SetPrimaryUserID(dbc, stale.ID, &leader.ID))

	result, err := s.maintenance.RebuildAllPrimaryUsers(ctx, true)
	require.NoError(t, err)
	require.Equal(t, 1, result.Updated, "stale user reported as to-be-cleared")

	require.Equal(t, leader.ID, *s.reload(t, stale.ID).PrimaryUserID, "dry run must not mutate")
}

func TestRebuildSkipsCyclicChains(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	x := s.mkUser(t, "X", false)
	y := s.mkUser(t, "Y", false)

	_, err := s.edges.Create(dbc, &types.Discipleship{MentorID: x.ID, DiscipleID: y.ID})
	require.NoError(t, err)
	_, err = s.edges.Create(dbc, &types.Discipleship{MentorID: y.ID, DiscipleID: x.ID})
	require.NoError(t, err)

	result, err := s.maintenance.RebuildAllPrimaryUsers(ctx, false)
	require.NoError(t, err)
	require.Equal(t, 2, result.Skipped, "cyclic chain users are skipped, not hung on")
}
