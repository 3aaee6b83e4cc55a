package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Roles a caller can hold
const (
	RoleSupplier  = "supplier"
	RoleForwarder = "forwarder"
	RoleBuyer     = "buyer"
)

// User represents an account of a supplier, forwarder or buyer
type User struct {
	ID          string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Email       string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Password    string    `gorm:"not null" json:"-"`
	FullName    string    `gorm:"type:varchar(255);not null" json:"name"`
	CompanyName string    `gorm:"type:varchar(255)" json:"company_name"`
	Phone       string    `gorm:"type:varchar(20)" json:"phone"`
	Role        string    `gorm:"type:varchar(20);index;not null" json:"role"`
	GSTIN       string    `gorm:"type:varchar(15)" json:"gstin,omitempty"`
	Country     string    `gorm:"type:varchar(100)" json:"country"`
	IsActive    bool      `json:"is_active"`
	IsVerified  bool      `json:"is_verified"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUID primary key
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// ValidRole reports whether role is one of the known roles
func ValidRole(role string) bool {
	switch role {
	case RoleSupplier, RoleForwarder, RoleBuyer:
		return true
	}
	return false
}
