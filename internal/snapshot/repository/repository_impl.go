package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	snapshotdomain "github.com/smallbiznis/patronage/internal/snapshot/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Record is one persisted snapshot row. Rows are append-only; LoadLatest
// picks the newest so a partially written row never shadows a good one.
type Record struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	TakenAt   time.Time    `gorm:"not null;index"`
	Payload   []byte       `gorm:"type:blob;not null"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Record) TableName() string { return "state_snapshots" }

type Params struct {
	fx.In

	DB    *gorm.DB
	GenID *snowflake.Node
}

type Repository struct {
	db    *gorm.DB
	genID *snowflake.Node
}

func Provide(p Params) (snapshotdomain.Repository, error) {
	return New(p.DB, p.GenID)
}

func New(db *gorm.DB, genID *snowflake.Node) (*Repository, error) {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, err
	}
	return &Repository{db: db, genID: genID}, nil
}

func (r *Repository) SaveLatest(ctx context.Context, snap snapshotdomain.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	record := Record{
		ID:      r.genID.Generate(),
		TakenAt: snap.TakenAt,
		Payload: payload,
	}
	return r.db.WithContext(ctx).Create(&record).Error
}

func (r *Repository) LoadLatest(ctx context.Context) (*snapshotdomain.Snapshot, error) {
	var record Record
	err := r.db.WithContext(ctx).Order("taken_at DESC, id DESC").First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var snap snapshotdomain.Snapshot
	if err := json.Unmarshal(record.Payload, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
