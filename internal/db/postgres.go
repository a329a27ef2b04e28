package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/shepherdhq/shepherd-backend/internal/logger"
	"github.com/shepherdhq/shepherd-backend/internal/types"
	"github.com/shepherdhq/shepherd-backend/internal/utils"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", log)
	postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", log)
	postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", log)
	postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", log)
	postgresName := utils.GetEnv("POSTGRES_NAME", "shepherd", log)

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", postgresUser, postgresPassword, postgresHost, postgresPort, postgresName)

	log.Info("Connecting to Postgres...")
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	})
	if err != nil {
		log.Error("Failed to connect to Postgres", "error", err)
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		log.Error("Failed to enable uuid-ossp extension", "error", err)
		return nil, fmt.Errorf("failed to enable uuid-ossp extension: %w", err)
	}

	return &PostgresService{db: db, log: serviceLog}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	err := s.db.AutoMigrate(
		&types.User{},
		&types.Discipleship{},
	)
	if err != nil {
		s.log.Error("Auto migration failed for postgres tables", "error", err)
		return err
	}

	if err := s.db.Exec(`
		ALTER TABLE "discipleship"
		DROP CONSTRAINT IF EXISTS "fk_discipleship_mentor_id";
	`).Error; err != nil {
		return fmt.Errorf("failed to reset fk_discipleship_mentor_id: %w", err)
	}
	if err := s.db.Exec(`
		ALTER TABLE "discipleship"
		ADD CONSTRAINT "fk_discipleship_mentor_id"
		FOREIGN KEY ("mentor_id")
		REFERENCES "user"("id")
		ON DELETE CASCADE
	`).Error; err != nil {
		return fmt.Errorf("failed to add fk_discipleship_mentor_id: %w", err)
	}
	if err := s.db.Exec(`
		ALTER TABLE "discipleship"
		DROP CONSTRAINT IF EXISTS "fk_discipleship_disciple_id";
	`).Error; err != nil {
		return fmt.Errorf("failed to reset fk_discipleship_disciple_id: %w", err)
	}
	if err := s.db.Exec(`
		ALTER TABLE "discipleship"
		ADD CONSTRAINT "fk_discipleship_disciple_id"
		FOREIGN KEY ("disciple_id")
		REFERENCES "user"("id")
		ON DELETE CASCADE
	`).Error; err != nil {
		return fmt.Errorf("failed to add fk_discipleship_disciple_id: %w", err)
	}

	return s.EnsureIndexes()
}

// EnsureIndexes installs the storage-level backstop for the
// single-active-mentor invariant. The application-level row lock in
// DiscipleshipService is an optimization; this index is the ground truth.
func (s *PostgresService) EnsureIndexes() error {
	s.log.Info("Ensuring discipleship indexes...")
	if err := s.db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS "uniq_discipleship_active_disciple"
		ON "discipleship" ("disciple_id")
		WHERE "status" = 'active'
	`).Error; err != nil {
		return fmt.Errorf("failed to create uniq_discipleship_active_disciple: %w", err)
	}
	return nil
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}
