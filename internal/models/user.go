package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// User is the read model of an account known to the support desk.
// Accounts are issued by the external auth service; this table only backs
// agent listings and the name columns of session projections.
type User struct {
	ID          string         `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"type:text;not null" json:"name"`
	Email       string         `gorm:"uniqueIndex" json:"email"`
	Role        Role           `gorm:"type:text;not null;index" json:"role"`
	ProductName string         `json:"product_name"`
	Products    pq.StringArray `gorm:"type:text[]" json:"products"` // extra products an agent covers
}

// BeforeCreate generates a UUID for the user if ID is not set yet.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}
