// Package db establishes the Postgres connection and owns schema bootstrap,
// grounded on the teacher's internal/db/postgres.go: a thin gorm.Open
// wrapper plus an AutoMigrateAll covering every durable model.
package db

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/fleetctl/masterctl/internal/domain"
	"github.com/fleetctl/masterctl/internal/platform/logger"
)

// PostgresService owns the gorm connection used by every internal/repos type.
type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func getEnv(name, def string) string {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	return v
}

// NewPostgresService opens the connection. Every domain model uses an
// autoincrement bigint primary key (or a natural string key for Worker and
// ControllerReplica), so unlike the teacher's bootstrap this never needs the
// uuid-ossp extension.
func NewPostgresService(baseLog *logger.Logger) (*PostgresService, error) {
	serviceLog := baseLog.With("service", "PostgresService")

	baseLog.Info("loading postgres environment variables")
	host := getEnv("POSTGRES_HOST", "localhost")
	port := getEnv("POSTGRES_PORT", "5432")
	user := getEnv("POSTGRES_USER", "postgres")
	password := getEnv("POSTGRES_PASSWORD", "")
	name := getEnv("POSTGRES_NAME", "masterctl")

	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		user, password, host, port, name,
	)

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	baseLog.Info("connecting to postgres")
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	})
	if err != nil {
		baseLog.Error("failed to connect to postgres", "error", err)
		return nil, fmt.Errorf("db: connect postgres: %w", err)
	}

	return &PostgresService{db: gdb, log: serviceLog}, nil
}

// AutoMigrateAll creates every durable table idempotently, then runs the
// system_logs auto-repair step.
func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("auto migrating postgres tables")

	err := s.db.AutoMigrate(
		&domain.Worker{},
		&domain.Message{},
		&domain.Task{},
		&domain.Assignment{},
		&domain.Result{},
		&domain.ContextSlice{},
		&domain.PerformanceSnapshot{},
		&domain.ControllerReplica{},
		&domain.QueueSnapshot{},
		&domain.SystemLog{},
	)
	if err != nil {
		s.log.Error("auto migration failed", "error", err)
		return fmt.Errorf("db: auto migrate: %w", err)
	}

	if err := s.repairSystemLogsPrimaryKey(); err != nil {
		s.log.Error("system_logs repair failed", "error", err)
		return err
	}
	return nil
}

// repairSystemLogsPrimaryKey drops and recreates system_logs if its id
// column's default isn't an autoincrementing sequence, the one case
// AutoMigrate won't fix on its own (a stale column default left over from a
// manual schema edit or an older migration tool).
func (s *PostgresService) repairSystemLogsPrimaryKey() error {
	var defaultExpr string
	row := s.db.Raw(`
		SELECT column_default FROM information_schema.columns
		WHERE table_name = 'system_logs' AND column_name = 'id'
	`).Row()
	if err := row.Scan(&defaultExpr); err != nil {
		// No rows means the table doesn't exist yet; AutoMigrate above
		// already created it with the correct default, nothing to repair.
		return nil
	}
	if strings.Contains(defaultExpr, "nextval") {
		return nil
	}

	s.log.Warn("system_logs primary key default is non-autoincrement, repairing", "default", defaultExpr)
	if err := s.db.Exec(`DROP TABLE IF EXISTS system_logs`).Error; err != nil {
		return fmt.Errorf("db: drop system_logs: %w", err)
	}
	if err := s.db.AutoMigrate(&domain.SystemLog{}); err != nil {
		return fmt.Errorf("db: recreate system_logs: %w", err)
	}
	return nil
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}
