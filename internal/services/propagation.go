package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shepherdhq/shepherd-backend/internal/logger"
	"github.com/shepherdhq/shepherd-backend/internal/network"
	"github.com/shepherdhq/shepherd-backend/internal/pkg/dbctx"
	apperrors "github.com/shepherdhq/shepherd-backend/internal/pkg/errors"
	"github.com/shepherdhq/shepherd-backend/internal/repos"
	"github.com/shepherdhq/shepherd-backend/internal/types"
)

// PropagationService keeps primary_user_id consistent down the forest. All
// of its writes go through UserRepo.UpdateFields, which touches columns
// directly with no model hooks, so a cascade can never retrigger itself.
type PropagationService interface {
	// CascadePrimaryUser pushes newPrimary to every active descendant of
	// mentorID whose primary differs. A descendant flagged as a primary
	// leader still receives newPrimary, but their own subtree inherits the
	// descendant's id from there down. Returns the number of users updated.
	CascadePrimaryUser(dbc dbctx.Context, mentorID uuid.UUID, newPrimary *uuid.UUID, edges network.EdgeMap) (int, error)
	// SetPrimaryLeader flips the primary-leader flag and re-cascades the
	// user's subtree.
	SetPrimaryLeader(ctx context.Context, userID uuid.UUID, isPrimary bool) error
	// SetPrimaryUser is the direct admin edit of a user's primary_user_id;
	// it applies the value and cascades it downward.
	SetPrimaryUser(ctx context.Context, userID uuid.UUID, primary *uuid.UUID) error
}

type propagationService struct {
	db               *gorm.DB
	log              *logger.Logger
	userRepo         repos.UserRepo
	discipleshipRepo repos.DiscipleshipRepo
	cache            NetworkCache
}

func NewPropagationService(db *gorm.DB, log *logger.Logger, userRepo repos.UserRepo, discipleshipRepo repos.DiscipleshipRepo, cache NetworkCache) PropagationService {
	return &propagationService{
		db:               db,
		log:              log.With("service", "PropagationService"),
		userRepo:         userRepo,
		discipleshipRepo: discipleshipRepo,
		cache:            cache,
	}
}

func (ps *propagationService) CascadePrimaryUser(dbc dbctx.Context, mentorID uuid.UUID, newPrimary *uuid.UUID, edges network.EdgeMap) (int, error) {
	memberIDs, anomaly := network.UserIDs(mentorID, edges)
	if anomaly {
		ps.log.Warn("Cycle detected during primary cascade", "mentor_id", mentorID)
	}
	users, err := ps.userRepo.GetByIDs(dbc, memberIDs)
	if err != nil {
		return 0, fmt.Errorf("load cascade subtree: %w", err)
	}
	byID := make(map[uuid.UUID]*types.User, len(users))
	for _, user := range users {
		byID[user.ID] = user
	}

	type frame struct {
		userID  uuid.UUID
		primary *uuid.UUID
	}
	visited := map[uuid.UUID]struct{}{mentorID: {}}
	stack := make([]frame, 0, len(edges[mentorID]))
	for _, discipleID := range edges[mentorID] {
		stack = append(stack, frame{userID: discipleID, primary: newPrimary})
	}

	updated := 0
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := visited[f.userID]; seen {
			continue
		}
		visited[f.userID] = struct{}{}

		user := byID[f.userID]
		if user == nil {
			ps.log.Warn("Cascade reached user missing from directory", "user_id", f.userID)
			continue
		}
		if !uuidPtrEqual(user.PrimaryUserID, f.primary) {
			if err := ps.userRepo.SetPrimaryUserID(dbc, f.userID, f.primary); err != nil {
				return updated, fmt.Errorf("set primary_user_id for %s: %w", f.userID, err)
			}
			updated++
		}

		childPrimary := f.primary
		if user.IsPrimaryLeader {
			id := user.ID
			childPrimary = &id
		}
		for _, discipleID := range edges[f.userID] {
			stack = append(stack, frame{userID: discipleID, primary: childPrimary})
		}
	}
	return updated, nil
}

func (ps *propagationService) SetPrimaryLeader(ctx context.Context, userID uuid.UUID, isPrimary bool) error {
	dbc := dbctx.Context{Ctx: ctx}

	user, err := ps.userRepo.GetByID(dbc, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return apperrors.ErrNotFound
	}
	if err := ps.userRepo.UpdateFields(dbc, userID, map[string]interface{}{
		"is_primary_leader": isPrimary,
	}); err != nil {
		return err
	}

	edgePairs, err := ps.discipleshipRepo.ListActiveEdges(dbc)
	if err != nil {
		return err
	}
	edges := network.BuildEdgeMap(edgePairs)

	// Subtree inherits this user's id when they became a leader; otherwise
	// whatever this user now inherits from above.
	var downstream *uuid.UUID
	if isPrimary {
		id := userID
		downstream = &id
	} else {
		downstream = user.PrimaryUserID
	}

	updated, err := ps.CascadePrimaryUser(dbc, userID, downstream, edges)
	if err != nil {
		return err
	}
	ps.log.Info("Primary leader flag changed", "user_id", userID, "is_primary_leader", isPrimary, "descendants_updated", updated)
	ps.cache.InvalidateAll(ctx)
	return nil
}

func (ps *propagationService) SetPrimaryUser(ctx context.Context, userID uuid.UUID, primary *uuid.UUID) error {
	dbc := dbctx.Context{Ctx: ctx}

	user, err := ps.userRepo.GetByID(dbc, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return apperrors.ErrNotFound
	}
	if err := ps.userRepo.SetPrimaryUserID(dbc, userID, primary); err != nil {
		return err
	}

	edgePairs, err := ps.discipleshipRepo.ListActiveEdges(dbc)
	if err != nil {
		return err
	}
	edges := network.BuildEdgeMap(edgePairs)

	downstream := primary
	if user.IsPrimaryLeader {
		id := userID
		downstream = &id
	}
	updated, err := ps.CascadePrimaryUser(dbc, userID, downstream, edges)
	if err != nil {
		return err
	}
	ps.log.Info("Primary user reassigned", "user_id", userID, "primary_user_id", primary, "descendants_updated", updated)
	return nil
}

func uuidPtrEqual(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
