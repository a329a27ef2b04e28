package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// User is a church member. Only the fields the discipleship core reads are
// modeled as columns; everything display-only lives in Profile.
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	FirstName string    `gorm:"not null;column:first_name" json:"first_name"`
	LastName  string    `gorm:"not null;column:last_name" json:"last_name"`

	// Gender is "male", "female" or empty.
	Gender string `gorm:"column:gender;type:varchar(10)" json:"gender,omitempty"`

	// IsPrimaryLeader marks a top-level network root. Users below a primary
	// leader inherit their id through PrimaryUserID.
	IsPrimaryLeader bool `gorm:"not null;default:false;column:is_primary_leader;index" json:"is_primary_leader"`

	// PrimaryUserID points at the topmost root of this user's network.
	// Mutated only by the propagation service and the rebuild job.
	PrimaryUserID *uuid.UUID `gorm:"type:uuid;column:primary_user_id;index" json:"primary_user_id,omitempty"`

	// Profile holds free-form display attributes for the admin UI.
	Profile datatypes.JSON `gorm:"column:profile;type:jsonb;not null;default:'{}'" json:"profile"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (User) TableName() string { return "user" }

func (u *User) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
