package repos

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shepherdhq/shepherd-backend/internal/logger"
	"github.com/shepherdhq/shepherd-backend/internal/network"
	"github.com/shepherdhq/shepherd-backend/internal/pkg/dbctx"
	apperrors "github.com/shepherdhq/shepherd-backend/internal/pkg/errors"
	"github.com/shepherdhq/shepherd-backend/internal/types"
)

type DiscipleshipRepo interface {
	Create(dbc dbctx.Context, edge *types.Discipleship) (*types.Discipleship, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Discipleship, error)
	// ListActiveEdges is the single bulk fetch every traversal is built on.
	ListActiveEdges(dbc dbctx.Context) ([]network.Edge, error)
	SetStatus(dbc dbctx.Context, edgeID uuid.UUID, status types.DiscipleshipStatus) error
	FindActiveForDisciple(dbc dbctx.Context, discipleID uuid.UUID) (*types.Discipleship, error)
	FindByPair(dbc dbctx.Context, mentorID, discipleID uuid.UUID) (*types.Discipleship, error)
	// ListForDiscipleLocked reads the disciple's edge rows under a row lock
	// (FOR UPDATE) so concurrent reassignments of the same disciple
	// serialize. Must run inside a transaction.
	ListForDiscipleLocked(dbc dbctx.Context, discipleID uuid.UUID) ([]*types.Discipleship, error)
	// ListActiveForDisciple returns active rows newest-first (updated_at,
	// then created_at, then id), the keep-preference order of the dedupe job.
	ListActiveForDisciple(dbc dbctx.Context, discipleID uuid.UUID) ([]*types.Discipleship, error)
	ListDuplicateActiveDiscipleIDs(dbc dbctx.Context) ([]uuid.UUID, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type discipleshipRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDiscipleshipRepo(db *gorm.DB, baseLog *logger.Logger) DiscipleshipRepo {
	return &discipleshipRepo{db: db, log: baseLog.With("repo", "DiscipleshipRepo")}
}

func (r *discipleshipRepo) Create(dbc dbctx.Context, edge *types.Discipleship) (*types.Discipleship, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if edge == nil {
		return nil, apperrors.ErrInvalidArgument
	}
	if edge.MentorID == edge.DiscipleID {
		return nil, apperrors.ErrSelfMentorship
	}
	if edge.ID == uuid.Nil {
		edge.ID = uuid.New()
	}
	if edge.Status == "" {
		edge.Status = types.DiscipleshipActive
	}
	if !edge.Status.Valid() {
		return nil, apperrors.ErrInvalidArgument
	}
	if edge.StartedAt.IsZero() {
		edge.StartedAt = time.Now()
	}
	if err := transaction.WithContext(dbc.Ctx).Create(edge).Error; err != nil {
		return nil, err
	}
	return edge, nil
}

func (r *discipleshipRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Discipleship, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var edge types.Discipleship
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&edge).Error
	if err != nil {
		return nil, err
	}
	if edge.ID == uuid.Nil {
		return nil, nil
	}
	return &edge, nil
}

func (r *discipleshipRepo) ListActiveEdges(dbc dbctx.Context) ([]network.Edge, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []struct {
		MentorID   uuid.UUID
		DiscipleID uuid.UUID
	}
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.Discipleship{}).
		Select("mentor_id", "disciple_id").
		Where("status = ?", types.DiscipleshipActive).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	edges := make([]network.Edge, 0, len(rows))
	for _, row := range rows {
		edges = append(edges, network.Edge{MentorID: row.MentorID, DiscipleID: row.DiscipleID})
	}
	return edges, nil
}

func (r *discipleshipRepo) SetStatus(dbc dbctx.Context, edgeID uuid.UUID, status types.DiscipleshipStatus) error {
	updates := map[string]interface{}{
		"status": status,
	}
	if status == types.DiscipleshipActive {
		updates["ended_at"] = nil
	} else {
		updates["ended_at"] = time.Now()
	}
	return r.UpdateFields(dbc, edgeID, updates)
}

func (r *discipleshipRepo) FindActiveForDisciple(dbc dbctx.Context, discipleID uuid.UUID) (*types.Discipleship, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var edge types.Discipleship
	err := transaction.WithContext(dbc.Ctx).
		Where("disciple_id = ? AND status = ?", discipleID, types.DiscipleshipActive).
		Limit(1).
		Find(&edge).Error
	if err != nil {
		return nil, err
	}
	if edge.ID == uuid.Nil {
		return nil, nil
	}
	return &edge, nil
}

func (r *discipleshipRepo) FindByPair(dbc dbctx.Context, mentorID, discipleID uuid.UUID) (*types.Discipleship, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var edge types.Discipleship
	err := transaction.WithContext(dbc.Ctx).
		Where("mentor_id = ? AND disciple_id = ?", mentorID, discipleID).
		Order("created_at DESC").
		Limit(1).
		Find(&edge).Error
	if err != nil {
		return nil, err
	}
	if edge.ID == uuid.Nil {
		return nil, nil
	}
	return &edge, nil
}

func (r *discipleshipRepo) ListForDiscipleLocked(dbc dbctx.Context, discipleID uuid.UUID) ([]*types.Discipleship, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Ctx)
	// sqlite has no FOR UPDATE; its single-writer file lock serializes
	// writers instead.
	if transaction.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var out []*types.Discipleship
	if err := q.Where("disciple_id = ?", discipleID).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *discipleshipRepo) ListActiveForDisciple(dbc dbctx.Context, discipleID uuid.UUID) ([]*types.Discipleship, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Discipleship
	err := transaction.WithContext(dbc.Ctx).
		Where("disciple_id = ? AND status = ?", discipleID, types.DiscipleshipActive).
		Order("updated_at DESC, created_at DESC, id DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *discipleshipRepo) ListDuplicateActiveDiscipleIDs(dbc dbctx.Context) ([]uuid.UUID, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var ids []uuid.UUID
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.Discipleship{}).
		Where("status = ?", types.DiscipleshipActive).
		Group("disciple_id").
		Having("COUNT(*) > 1").
		Pluck("disciple_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *discipleshipRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.Discipleship{}).
		Where("id = ?", id).
		Updates(updates).Error
}
