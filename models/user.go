// models/user.go
package models

import (
	"time"
)

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleBuyer || r == RoleSeller || r == RoleAdmin
}

type UserStatus string

const (
	UserPending   UserStatus = "pending"
	UserApproved  UserStatus = "approved"
	UserRejected  UserStatus = "rejected"
	UserSuspended UserStatus = "suspended"
)

func (s UserStatus) Valid() bool {
	switch s {
	case UserPending, UserApproved, UserRejected, UserSuspended:
		return true
	}
	return false
}

type User struct {
	ID           string     `bson:"id" json:"id"`
	Email        string     `bson:"email" json:"email"`
	PasswordHash string     `bson:"password_hash" json:"-"`
	Role         Role       `bson:"role" json:"role"`
	Status       UserStatus `bson:"status" json:"status"`
	CompanyName  string     `bson:"company_name" json:"company_name"`
	ContactName  string     `bson:"contact_name" json:"contact_name"`
	Phone        string     `bson:"phone,omitempty" json:"phone,omitempty"`
	Website      string     `bson:"website,omitempty" json:"website,omitempty"`
	Address      string     `bson:"address,omitempty" json:"address,omitempty"`
	LastLogin    *time.Time `bson:"last_login,omitempty" json:"last_login,omitempty"`
	CreatedAt    time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at" json:"updated_at"`
}

// DisplayName is what other parties see for this user.
func (u User) DisplayName() string {
	if u.CompanyName != "" {
		return u.CompanyName
	}
	if u.ContactName != "" {
		return u.ContactName
	}
	return u.Email
}

// Principal is an authenticated actor.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

func (p Principal) IsAdmin() bool  { return p.Role == RoleAdmin }
func (p Principal) IsBuyer() bool  { return p.Role == RoleBuyer }
func (p Principal) IsSeller() bool { return p.Role == RoleSeller }

func PrincipalFor(u User) Principal {
	return Principal{ID: u.ID, Email: u.Email, Name: u.DisplayName(), Role: u.Role}
}
