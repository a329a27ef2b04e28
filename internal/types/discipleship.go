package types

import (
	"time"

	"github.com/google/uuid"
)

// DiscipleshipStatus is the lifecycle state of a mentor->disciple edge.
type DiscipleshipStatus string

const (
	DiscipleshipActive    DiscipleshipStatus = "active"
	DiscipleshipInactive  DiscipleshipStatus = "inactive"
	DiscipleshipCompleted DiscipleshipStatus = "completed"
)

func (s DiscipleshipStatus) Valid() bool {
	switch s {
	case DiscipleshipActive, DiscipleshipInactive, DiscipleshipCompleted:
		return true
	}
	return false
}

// Discipleship is a directed mentor->disciple edge. A disciple has at most
// one active mentor at a time; the partial unique index on
// (disciple_id) WHERE status = 'active' is the storage-level backstop for
// that invariant (see db.PostgresService.EnsureIndexes).
type Discipleship struct {
	ID         uuid.UUID          `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	MentorID   uuid.UUID          `gorm:"type:uuid;not null;column:mentor_id;index" json:"mentor_id"`
	DiscipleID uuid.UUID          `gorm:"type:uuid;not null;column:disciple_id;index" json:"disciple_id"`
	Status     DiscipleshipStatus `gorm:"type:varchar(20);not null;default:'active';column:status" json:"status"`

	StartedAt time.Time  `gorm:"not null;column:started_at" json:"started_at"`
	EndedAt   *time.Time `gorm:"column:ended_at" json:"ended_at,omitempty"`
	Notes     string     `gorm:"column:notes;type:text" json:"notes,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Discipleship) TableName() string { return "discipleship" }

func (d *Discipleship) IsActive() bool { return d.Status == DiscipleshipActive }
