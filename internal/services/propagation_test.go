package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/shepherdhq/shepherd-backend/internal/pkg/errors"
	"github.com/shepherdhq/shepherd-backend/internal/types"
)

func TestSetPrimaryLeaderCascadesChain(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	l := s.mkUser(t, "L", false)
	a := s.mkUser(t, "A", false)
	b := s.mkUser(t, "B", false)
	c := s.mkUser(t, "C", false)

	// L -> A -> B -> C, built before anyone is a leader
	for _, pair := range [][2]*types.User{{a, l}, {b, a}, {c, b}} {
		_, err := s.discipleship.AssignMentor(ctx, pair[0].ID, pair[1].ID)
		require.NoError(t, err)
	}
	require.Nil(t, s.reload(t, c.ID).PrimaryUserID, "no leader above yet")

	require.NoError(t, s.propagation.SetPrimaryLeader(ctx, l.ID, true))

	for _, user := range []*types.User{a, b, c} {
		got := s.reload(t, user.ID)
		require.NotNil(t, got.PrimaryUserID)
		require.Equal(t, l.ID, *got.PrimaryUserID)
	}
	require.True(t, s.reload(t, l.ID).IsPrimaryLeader)
}

func TestSetPrimaryLeaderUnsetClearsSubtree(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	l := s.mkUser(t, "L", true)
	a := s.mkUser(t, "A", false)
	b := s.mkUser(t, "B", false)

	_, err := s.discipleship.AssignMentor(ctx, a.ID, l.ID)
	require.NoError(t, err)
	_, err = s.discipleship.AssignMentor(ctx, b.ID, a.ID)
	require.NoError(t, err)
	require.Equal(t, l.ID, *s.reload(t, b.ID).PrimaryUserID)

	require.NoError(t, s.propagation.SetPrimaryLeader(ctx, l.ID, false))

	require.Nil(t, s.reload(t, a.ID).PrimaryUserID)
	require.Nil(t, s.reload(t, b.ID).PrimaryUserID)
}

func TestCascadeStopsInheritingAtNestedLeader(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	top := s.mkUser(t, "Top", true)
	mid := s.mkUser(t, "Mid", true) // a leader nested under another leader
	low := s.mkUser(t, "Low", false)

	_, err := s.discipleship.AssignMentor(ctx, mid.ID, top.ID)
	require.NoError(t, err)
	_, err = s.discipleship.AssignMentor(ctx, low.ID, mid.ID)
	require.NoError(t, err)

	require.Equal(t, top.ID, *s.reload(t, mid.ID).PrimaryUserID, "nested leader inherits from above")
	require.Equal(t, mid.ID, *s.reload(t, low.ID).PrimaryUserID, "their subtree roots on them, not on the top leader")
}

func TestSetPrimaryUserDirectEdit(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	root := s.mkUser(t, "Root", false)
	a := s.mkUser(t, "A", false)
	b := s.mkUser(t, "B", false)
	external := s.mkUser(t, "External", true)

	_, err := s.discipleship.AssignMentor(ctx, a.ID, root.ID)
	require.NoError(t, err)
	_, err = s.discipleship.AssignMentor(ctx, b.ID, a.ID)
	require.NoError(t, err)

	require.NoError(t, s.propagation.SetPrimaryUser(ctx, root.ID, &external.ID))

	require.Equal(t, external.ID, *s.reload(t, root.ID).PrimaryUserID)
	require.Equal(t, external.ID, *s.reload(t, a.ID).PrimaryUserID, "direct admin edit cascades")
	require.Equal(t, external.ID, *s.reload(t, b.ID).PrimaryUserID)
}

func TestPropagationUnknownUser(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	ghost := s.mkUser(t, "Ghost", false)
	require.NoError(t, s.db.Exec(`DELETE FROM "user" WHERE id = ?`, ghost.ID).Error)

	err := s.propagation.SetPrimaryLeader(ctx, ghost.ID, true)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	require.ErrorIs(t, s.propagation.SetPrimaryUser(ctx, ghost.ID, nil), apperrors.ErrNotFound)
}
