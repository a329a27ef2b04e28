package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shepherdhq/shepherd-backend/internal/logger"
	"github.com/shepherdhq/shepherd-backend/internal/network"
	"github.com/shepherdhq/shepherd-backend/internal/pkg/dbctx"
	apperrors "github.com/shepherdhq/shepherd-backend/internal/pkg/errors"
	"github.com/shepherdhq/shepherd-backend/internal/repos"
	"github.com/shepherdhq/shepherd-backend/internal/types"
)

// DiscipleshipService is the only sanctioned write path for mentor edges.
// It guarantees at most one active mentor per disciple even under
// concurrent reassignments of the same disciple.
type DiscipleshipService interface {
	AssignMentor(ctx context.Context, discipleID, mentorID uuid.UUID) (*types.Discipleship, error)
	EndMentorship(ctx context.Context, discipleID uuid.UUID, status types.DiscipleshipStatus) (*types.Discipleship, error)
}

type discipleshipService struct {
	db               *gorm.DB
	log              *logger.Logger
	userRepo         repos.UserRepo
	discipleshipRepo repos.DiscipleshipRepo
	cache            NetworkCache
	propagation      PropagationService
}

func NewDiscipleshipService(db *gorm.DB, log *logger.Logger, userRepo repos.UserRepo, discipleshipRepo repos.DiscipleshipRepo, cache NetworkCache, propagation PropagationService) DiscipleshipService {
	return &discipleshipService{
		db:               db,
		log:              log.With("service", "DiscipleshipService"),
		userRepo:         userRepo,
		discipleshipRepo: discipleshipRepo,
		cache:            cache,
		propagation:      propagation,
	}
}

func (ds *discipleshipService) AssignMentor(ctx context.Context, discipleID, mentorID uuid.UUID) (*types.Discipleship, error) {
	if discipleID == uuid.Nil || mentorID == uuid.Nil {
		return nil, apperrors.ErrInvalidArgument
	}
	if discipleID == mentorID {
		return nil, apperrors.ErrSelfMentorship
	}

	users, err := ds.userRepo.GetByIDs(dbctx.Context{Ctx: ctx}, []uuid.UUID{discipleID, mentorID})
	if err != nil {
		return nil, err
	}
	var mentor *types.User
	found := map[uuid.UUID]bool{}
	for _, user := range users {
		found[user.ID] = true
		if user.ID == mentorID {
			mentor = user
		}
	}
	if !found[discipleID] || !found[mentorID] {
		return nil, apperrors.ErrNotFound
	}

	var edge *types.Discipleship
	err = ds.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		edge, txErr = ds.assignLocked(dbctx.Context{Ctx: ctx, Tx: tx}, discipleID, mentorID)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	ds.cache.InvalidateAll(ctx)
	if err := ds.propagateFromMentor(ctx, mentor); err != nil {
		// The edge is committed; a propagation failure leaves primaries
		// repairable by the rebuild job.
		ds.log.Error("Primary propagation failed after mentor assignment", "disciple_id", discipleID, "mentor_id", mentorID, "error", err)
	}
	ds.log.Info("Mentor assigned", "disciple_id", discipleID, "mentor_id", mentorID, "edge_id", edge.ID)
	return edge, nil
}

// assignLocked runs the deactivate-then-activate-or-insert sequence under a
// row lock on the disciple's edge rows. The partial unique index remains the
// authoritative backstop: a duplicate-key failure from the insert means a
// concurrent writer won the race, so we retry once through the reactivate
// path instead of surfacing the constraint violation.
func (ds *discipleshipService) assignLocked(dbc dbctx.Context, discipleID, mentorID uuid.UUID) (*types.Discipleship, error) {
	rows, err := ds.discipleshipRepo.ListForDiscipleLocked(dbc, discipleID)
	if err != nil {
		return nil, fmt.Errorf("lock disciple edges: %w", err)
	}

	var existing *types.Discipleship
	for _, row := range rows {
		if row.IsActive() && row.MentorID != mentorID {
			if err := ds.discipleshipRepo.SetStatus(dbc, row.ID, types.DiscipleshipInactive); err != nil {
				return nil, fmt.Errorf("deactivate edge %s: %w", row.ID, err)
			}
		}
		if row.MentorID == mentorID {
			if existing == nil || row.IsActive() {
				existing = row
			}
		}
	}

	if existing != nil {
		return ds.reactivate(dbc, existing)
	}

	edge, err := ds.discipleshipRepo.Create(dbc, &types.Discipleship{
		MentorID:   mentorID,
		DiscipleID: discipleID,
		Status:     types.DiscipleshipActive,
		StartedAt:  time.Now(),
	})
	if err == nil {
		return edge, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, err
	}

	// A concurrent insert slipped past the lock; the surviving active row
	// must be ours to reuse.
	ds.log.Warn("Active-edge uniqueness tripped, retrying via reactivation", "disciple_id", discipleID, "mentor_id", mentorID)
	row, findErr := ds.discipleshipRepo.FindByPair(dbc, mentorID, discipleID)
	if findErr != nil {
		return nil, findErr
	}
	if row == nil {
		return nil, apperrors.ErrConflict
	}
	return ds.reactivate(dbc, row)
}

func (ds *discipleshipService) reactivate(dbc dbctx.Context, edge *types.Discipleship) (*types.Discipleship, error) {
	updates := map[string]interface{}{
		"status":   types.DiscipleshipActive,
		"ended_at": nil,
	}
	if edge.StartedAt.IsZero() {
		updates["started_at"] = time.Now()
	}
	if err := ds.discipleshipRepo.UpdateFields(dbc, edge.ID, updates); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.ErrConflict
		}
		return nil, fmt.Errorf("reactivate edge %s: %w", edge.ID, err)
	}
	return ds.discipleshipRepo.GetByID(dbc, edge.ID)
}

// propagateFromMentor cascades the primary the disciple now inherits: the
// mentor's own id when the mentor is a primary leader, otherwise whatever
// root the mentor inherits.
func (ds *discipleshipService) propagateFromMentor(ctx context.Context, mentor *types.User) error {
	dbc := dbctx.Context{Ctx: ctx}
	newPrimary := mentor.PrimaryUserID
	if mentor.IsPrimaryLeader {
		id := mentor.ID
		newPrimary = &id
	}

	edgePairs, err := ds.discipleshipRepo.ListActiveEdges(dbc)
	if err != nil {
		return err
	}
	_, err = ds.propagation.CascadePrimaryUser(dbc, mentor.ID, newPrimary, network.BuildEdgeMap(edgePairs))
	return err
}

func (ds *discipleshipService) EndMentorship(ctx context.Context, discipleID uuid.UUID, status types.DiscipleshipStatus) (*types.Discipleship, error) {
	if status != types.DiscipleshipInactive && status != types.DiscipleshipCompleted {
		return nil, apperrors.ErrInvalidArgument
	}
	dbc := dbctx.Context{Ctx: ctx}

	edge, err := ds.discipleshipRepo.FindActiveForDisciple(dbc, discipleID)
	if err != nil {
		return nil, err
	}
	if edge == nil {
		return nil, apperrors.ErrNotFound
	}
	if err := ds.discipleshipRepo.SetStatus(dbc, edge.ID, status); err != nil {
		return nil, err
	}
	ds.cache.InvalidateAll(ctx)

	// With no active mentor the disciple inherits nothing; their subtree
	// re-roots on the disciple when the disciple is a leader themselves.
	disciple, err := ds.userRepo.GetByID(dbc, discipleID)
	if err == nil && disciple != nil {
		if updErr := ds.userRepo.SetPrimaryUserID(dbc, discipleID, nil); updErr != nil {
			ds.log.Error("Failed to clear primary after mentorship end", "disciple_id", discipleID, "error", updErr)
		}
		var downstream *uuid.UUID
		if disciple.IsPrimaryLeader {
			id := disciple.ID
			downstream = &id
		}
		edgePairs, edgeErr := ds.discipleshipRepo.ListActiveEdges(dbc)
		if edgeErr == nil {
			if _, cascadeErr := ds.propagation.CascadePrimaryUser(dbc, discipleID, downstream, network.BuildEdgeMap(edgePairs)); cascadeErr != nil {
				ds.log.Error("Primary propagation failed after mentorship end", "disciple_id", discipleID, "error", cascadeErr)
			}
		}
	}

	ds.log.Info("Mentorship ended", "disciple_id", discipleID, "edge_id", edge.ID, "status", status)
	return ds.discipleshipRepo.GetByID(dbc, edge.ID)
}
