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

// NetworkStats is the dashboard projection for one root user.
type NetworkStats struct {
	TotalMembers    int `json:"total_members"`
	DirectDisciples int `json:"direct_disciples"`
	MaxDepth        int `json:"max_depth"`
}

// NetworkService serves every read over the discipleship forest: membership
// scoping, tree rendering and stats. Each call loads the active edge set
// once and traverses in memory.
type NetworkService interface {
	UserIDs(ctx context.Context, rootID uuid.UUID) ([]uuid.UUID, error)
	BuildTree(ctx context.Context, rootID uuid.UUID, maxDepth int) (*network.TreeNode, error)
	Stats(ctx context.Context, rootID uuid.UUID) (*NetworkStats, error)
}

type networkService struct {
	db               *gorm.DB
	log              *logger.Logger
	userRepo         repos.UserRepo
	discipleshipRepo repos.DiscipleshipRepo
	cache            NetworkCache
}

func NewNetworkService(db *gorm.DB, log *logger.Logger, userRepo repos.UserRepo, discipleshipRepo repos.DiscipleshipRepo, cache NetworkCache) NetworkService {
	return &networkService{
		db:               db,
		log:              log.With("service", "NetworkService"),
		userRepo:         userRepo,
		discipleshipRepo: discipleshipRepo,
		cache:            cache,
	}
}

func (ns *networkService) loadEdgeMap(ctx context.Context) (network.EdgeMap, error) {
	edges, err := ns.discipleshipRepo.ListActiveEdges(dbctx.Context{Ctx: ctx})
	if err != nil {
		return nil, fmt.Errorf("list active edges: %w", err)
	}
	return network.BuildEdgeMap(edges), nil
}

func (ns *networkService) UserIDs(ctx context.Context, rootID uuid.UUID) ([]uuid.UUID, error) {
	if ids, ok := ns.cache.GetUserIDs(ctx, rootID); ok {
		return ids, nil
	}
	edgeMap, err := ns.loadEdgeMap(ctx)
	if err != nil {
		return nil, err
	}
	ids, anomaly := network.UserIDs(rootID, edgeMap)
	if anomaly {
		ns.log.Warn("Cycle detected in active discipleship edges", "root_id", rootID)
	}
	ns.cache.SetUserIDs(ctx, rootID, ids)
	return ids, nil
}

func (ns *networkService) BuildTree(ctx context.Context, rootID uuid.UUID, maxDepth int) (*network.TreeNode, error) {
	dbc := dbctx.Context{Ctx: ctx}

	root, err := ns.userRepo.GetByID(dbc, rootID)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, apperrors.ErrNotFound
	}

	edgeMap, err := ns.loadEdgeMap(ctx)
	if err != nil {
		return nil, err
	}

	memberIDs, anomaly := network.UserIDs(rootID, edgeMap)
	if anomaly {
		ns.log.Warn("Cycle detected in active discipleship edges", "root_id", rootID)
	}
	members, err := ns.userRepo.GetByIDs(dbc, memberIDs)
	if err != nil {
		return nil, err
	}
	attrs := make(map[uuid.UUID]network.NodeAttrs, len(members))
	for _, member := range members {
		attrs[member.ID] = nodeAttrs(member)
	}

	tree := network.BuildTree(rootID, edgeMap, attrs, network.TreeOptions{
		MaxDepth: maxDepth,
		FetchAttrs: func(id uuid.UUID) *network.NodeAttrs {
			user, err := ns.userRepo.GetByID(dbc, id)
			if err != nil || user == nil {
				ns.log.Warn("Tree node user missing from directory", "user_id", id, "error", err)
				return nil
			}
			a := nodeAttrs(user)
			return &a
		},
	})
	return tree, nil
}

func (ns *networkService) Stats(ctx context.Context, rootID uuid.UUID) (*NetworkStats, error) {
	root, err := ns.userRepo.GetByID(dbctx.Context{Ctx: ctx}, rootID)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, apperrors.ErrNotFound
	}

	edgeMap, err := ns.loadEdgeMap(ctx)
	if err != nil {
		return nil, err
	}
	depth, anomaly := network.MaxDepth(rootID, edgeMap)
	if anomaly {
		ns.log.Warn("Cycle detected in active discipleship edges", "root_id", rootID)
	}
	return &NetworkStats{
		TotalMembers:    network.CountDescendants(rootID, edgeMap) + 1,
		DirectDisciples: len(edgeMap[rootID]),
		MaxDepth:        depth,
	}, nil
}

func nodeAttrs(user *types.User) network.NodeAttrs {
	return network.NodeAttrs{
		Name:            user.FullName(),
		Gender:          user.Gender,
		IsPrimaryLeader: user.IsPrimaryLeader,
	}
}
