package models

import "time"

// User is an account. Users are deactivated, never deleted.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:200;not null" json:"name"`
	Email     string    `gorm:"uniqueIndex;size:200;not null" json:"email"`
	Password  []byte    `gorm:"not null" json:"-"` // bcrypt hash
	Active    bool      `gorm:"not null" json:"active"`
	Admin     bool      `gorm:"not null" json:"admin"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}
