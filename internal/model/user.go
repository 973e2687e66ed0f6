package model

import (
	"strings"

	"gorm.io/gorm"
)

// User owns listings. Credentials live with the external identity provider;
// only the profile needed for invoice snapshots is kept here.
type User struct {
	gorm.Model
	Email       string `json:"email" gorm:"uniqueIndex;not null"`
	Username    string `json:"username" gorm:"uniqueIndex;not null"`
	CompanyName string `json:"company_name"`

	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number"`

	Listings []Listing `json:"-"`
}

func (u *User) GetFullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// DisplayName falls back to the company name, then the username.
func (u *User) DisplayName() string {
	if name := u.GetFullName(); name != "" {
		return name
	}
	if u.CompanyName != "" {
		return u.CompanyName
	}
	return u.Username
}
