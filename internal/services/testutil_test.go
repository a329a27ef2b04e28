package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/shepherdhq/shepherd-backend/internal/logger"
	"github.com/shepherdhq/shepherd-backend/internal/pkg/dbctx"
	"github.com/shepherdhq/shepherd-backend/internal/repos"
	"github.com/shepherdhq/shepherd-backend/internal/types"
)

// newTestDB opens an isolated in-memory sqlite database with the production
// schema. The uuid defaults and jsonb column of the postgres migration do
// not exist in sqlite, so the schema is declared here and ids are assigned
// by the repos.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	ddl := []string{
		`CREATE TABLE "user" (
			id TEXT PRIMARY KEY,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			gender TEXT DEFAULT '',
			is_primary_leader BOOLEAN NOT NULL DEFAULT false,
			primary_user_id TEXT,
			profile TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE "discipleship" (
			id TEXT PRIMARY KEY,
			mentor_id TEXT NOT NULL,
			disciple_id TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			started_at DATETIME NOT NULL,
			ended_at DATETIME,
			notes TEXT DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE UNIQUE INDEX "uniq_discipleship_active_disciple"
			ON "discipleship" ("disciple_id") WHERE "status" = 'active'`,
	}
	for _, stmt := range ddl {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type testStack struct {
	db           *gorm.DB
	users        repos.UserRepo
	edges        repos.DiscipleshipRepo
	cache        NetworkCache
	propagation  PropagationService
	discipleship DiscipleshipService
	maintenance  MaintenanceService
	network      NetworkService
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	db := newTestDB(t)
	log := logger.NewNop()
	users := repos.NewUserRepo(db, log)
	edges := repos.NewDiscipleshipRepo(db, log)
	cache := NewMemoryNetworkCache()
	propagation := NewPropagationService(db, log, users, edges, cache)
	return &testStack{
		db:           db,
		users:        users,
		edges:        edges,
		cache:        cache,
		propagation:  propagation,
		discipleship: NewDiscipleshipService(db, log, users, edges, cache, propagation),
		maintenance:  NewMaintenanceService(db, log, users, edges, cache),
		network:      NewNetworkService(db, log, users, edges, cache),
	}
}

func (s *testStack) mkUser(t *testing.T, name string, isPrimaryLeader bool) *types.User {
	t.Helper()

	user := &types.User{
		ID:              uuid.New(),
		FirstName:       name,
		IsPrimaryLeader: isPrimaryLeader,
		Profile:         datatypes.JSON(`{}`),
	}
	_, err := s.users.Create(dbctx.Context{Ctx: context.Background()}, []*types.User{user})
	require.NoError(t, err)
	return user
}

func (s *testStack) reload(t *testing.T, id uuid.UUID) *types.User {
	t.Helper()

	user, err := s.users.GetByID(dbctx.Context{Ctx: context.Background()}, id)
	require.NoError(t, err)
	require.NotNil(t, user)
	return user
}

func (s *testStack) activeEdges(t *testing.T, discipleID uuid.UUID) []*types.Discipleship {
	t.Helper()

	rows, err := s.edges.ListActiveForDisciple(dbctx.Context{Ctx: context.Background()}, discipleID)
	require.NoError(t, err)
	return rows
}
