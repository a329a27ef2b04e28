package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shepherdhq/shepherd-backend/internal/logger"
	"github.com/shepherdhq/shepherd-backend/internal/network"
	"github.com/shepherdhq/shepherd-backend/internal/pkg/dbctx"
	"github.com/shepherdhq/shepherd-backend/internal/repos"
	"github.com/shepherdhq/shepherd-backend/internal/types"
)

// DedupeResult reports one dedupe run.
type DedupeResult struct {
	Processed int `json:"processed"`
	Removed   int `json:"removed"`
}

// RebuildResult reports one primary_user_id rebuild.
type RebuildResult struct {
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped"`
}

// MaintenanceService holds the idempotent, operator-run repair jobs. Both
// are safe to interrupt and re-run; neither belongs on the request path.
type MaintenanceService interface {
	// DedupeActiveMentors collapses disciples with more than one active edge
	// (legacy data or bypassed writes) down to the most recently touched
	// row, deactivating the rest.
	DedupeActiveMentors(ctx context.Context, dryRun bool) (*DedupeResult, error)
	// RebuildAllPrimaryUsers recomputes primary_user_id for the entire
	// population from the active mentor chains, writing only changed rows.
	RebuildAllPrimaryUsers(ctx context.Context, dryRun bool) (*RebuildResult, error)
}

type maintenanceService struct {
	db               *gorm.DB
	log              *logger.Logger
	userRepo         repos.UserRepo
	discipleshipRepo repos.DiscipleshipRepo
	cache            NetworkCache
}

func NewMaintenanceService(db *gorm.DB, log *logger.Logger, userRepo repos.UserRepo, discipleshipRepo repos.DiscipleshipRepo, cache NetworkCache) MaintenanceService {
	return &maintenanceService{
		db:               db,
		log:              log.With("service", "MaintenanceService"),
		userRepo:         userRepo,
		discipleshipRepo: discipleshipRepo,
		cache:            cache,
	}
}

func (ms *maintenanceService) DedupeActiveMentors(ctx context.Context, dryRun bool) (*DedupeResult, error) {
	dbc := dbctx.Context{Ctx: ctx}

	discipleIDs, err := ms.discipleshipRepo.ListDuplicateActiveDiscipleIDs(dbc)
	if err != nil {
		return nil, fmt.Errorf("find duplicate active disciples: %w", err)
	}

	result := &DedupeResult{}
	for _, discipleID := range discipleIDs {
		rows, err := ms.discipleshipRepo.ListActiveForDisciple(dbc, discipleID)
		if err != nil {
			return result, fmt.Errorf("load active edges for disciple %s: %w", discipleID, err)
		}
		if len(rows) < 2 {
			continue
		}
		result.Processed++
		// rows are ordered keep-first; everything after is a duplicate
		keep := rows[0]
		for _, row := range rows[1:] {
			if dryRun {
				ms.log.Info("[dry-run] would deactivate duplicate active edge", "disciple_id", discipleID, "edge_id", row.ID, "kept_edge_id", keep.ID)
				result.Removed++
				continue
			}
			if err := ms.discipleshipRepo.SetStatus(dbc, row.ID, types.DiscipleshipInactive); err != nil {
				return result, fmt.Errorf("deactivate duplicate edge %s: %w", row.ID, err)
			}
			ms.log.Info("Deactivated duplicate active edge", "disciple_id", discipleID, "edge_id", row.ID, "kept_edge_id", keep.ID)
			result.Removed++
		}
	}

	if !dryRun && result.Removed > 0 {
		ms.cache.InvalidateAll(ctx)
	}
	ms.log.Info("Dedupe run complete", "dry_run", dryRun, "processed", result.Processed, "removed", result.Removed)
	return result, nil
}

func (ms *maintenanceService) RebuildAllPrimaryUsers(ctx context.Context, dryRun bool) (*RebuildResult, error) {
	dbc := dbctx.Context{Ctx: ctx}

	users, err := ms.userRepo.ListAll(dbc)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	edges, err := ms.discipleshipRepo.ListActiveEdges(dbc)
	if err != nil {
		return nil, fmt.Errorf("load active edges: %w", err)
	}
	parents := network.ParentMap(edges)

	ancestry := make(map[uuid.UUID]network.AncestryUser, len(users))
	for _, user := range users {
		ancestry[user.ID] = network.AncestryUser{
			IsPrimaryLeader: user.IsPrimaryLeader,
			PrimaryUserID:   user.PrimaryUserID,
		}
	}

	result := &RebuildResult{}
	for _, user := range users {
		want, cyclic := network.ResolvePrimary(user.ID, parents, ancestry)
		if cyclic {
			ms.log.Warn("Cyclic mentor chain, skipping user", "user_id", user.ID)
			result.Skipped++
			continue
		}
		if uuidPtrEqual(user.PrimaryUserID, want) {
			result.Unchanged++
			continue
		}
		if dryRun {
			if want == nil {
				ms.log.Info("[dry-run] would clear primary_user_id", "user_id", user.ID, "current", user.PrimaryUserID)
			} else {
				ms.log.Info("[dry-run] would set primary_user_id", "user_id", user.ID, "current", user.PrimaryUserID, "want", *want)
			}
			result.Updated++
			continue
		}
		if err := ms.userRepo.SetPrimaryUserID(dbc, user.ID, want); err != nil {
			return result, fmt.Errorf("set primary_user_id for %s: %w", user.ID, err)
		}
		result.Updated++
	}

	if !dryRun && result.Updated > 0 {
		ms.cache.InvalidateAll(ctx)
	}
	ms.log.Info("Primary rebuild complete", "dry_run", dryRun, "updated", result.Updated, "unchanged", result.Unchanged, "skipped", result.Skipped)
	return result, nil
}
