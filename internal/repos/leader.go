package repos

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fleetctl/masterctl/internal/domain"
	"github.com/fleetctl/masterctl/internal/platform/logger"
)

// LeaderRepo implements leader.Repo against the controller_heartbeats table.
type LeaderRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLeaderRepo(db *gorm.DB, baseLog *logger.Logger) *LeaderRepo {
	return &LeaderRepo{db: db, log: baseLog.With("repo", "LeaderRepo")}
}

// UpsertHeartbeat inserts or refreshes one replica's heartbeat row without
// touching its Active flag.
func (r *LeaderRepo) UpsertHeartbeat(ctx context.Context, masterID string, now time.Time) error {
	replica := domain.ControllerReplica{MasterID: masterID, LastHeartbeat: now}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "master_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_heartbeat"}),
		}).
		Create(&replica).Error
}

func (r *LeaderRepo) SetActive(ctx context.Context, masterID string, active bool) error {
	return r.db.WithContext(ctx).Model(&domain.ControllerReplica{}).
		Where("master_id = ?", masterID).
		Update("active", active).Error
}

func (r *LeaderRepo) ListReplicas(ctx context.Context) ([]domain.ControllerReplica, error) {
	var replicas []domain.ControllerReplica
	if err := r.db.WithContext(ctx).Find(&replicas).Error; err != nil {
		return nil, err
	}
	return replicas, nil
}
