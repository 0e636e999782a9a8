// Package models provides data model definitions for the Let's Donate sync core.
package models

import "time"

// User is the locally cached copy of a server account.
type User struct {
	ID            int64  `db:"id" json:"-"`
	ServerID      string `db:"server_id" json:"_id"`
	Firstname     string `db:"firstname" json:"firstname"`
	Lastname      string `db:"lastname" json:"lastname"`
	Email         string `db:"email" json:"email"`
	ContactNumber string `db:"contactnumber" json:"contactnumber,omitempty"`
	Address       string `db:"address" json:"address,omitempty"`
	Synced        bool   `db:"synced" json:"-"`
	CreatedAt     int64  `db:"created_at" json:"-"`
	UpdatedAt     int64  `db:"updated_at" json:"-"`
}

// TableName returns the table name for User.
func (User) TableName() string {
	return "users"
}

// FullName joins first and last name.
func (u *User) FullName() string {
	switch {
	case u.Firstname == "":
		return u.Lastname
	case u.Lastname == "":
		return u.Firstname
	}
	return u.Firstname + " " + u.Lastname
}

// UpdatedAtTime returns the UpdatedAt as time.Time.
func (u *User) UpdatedAtTime() time.Time {
	return time.UnixMilli(u.UpdatedAt)
}

// UserUpdate carries the editable profile fields. Password is only sent to the
// server and never stored locally.
type UserUpdate struct {
	Firstname     string `json:"firstname"`
	Lastname      string `json:"lastname"`
	Email         string `json:"email"`
	ContactNumber string `json:"contactnumber"`
	Address       string `json:"address"`
	Password      string `json:"password,omitempty"`
}

// Apply copies the update onto u.
func (up UserUpdate) Apply(u *User) {
	u.Firstname = up.Firstname
	u.Lastname = up.Lastname
	u.Email = up.Email
	u.ContactNumber = up.ContactNumber
	u.Address = up.Address
}

// Registration is the sign-up form sent to POST /users.
type Registration struct {
	Firstname     string `json:"firstname"`
	Lastname      string `json:"lastname"`
	Email         string `json:"email"`
	Password      string `json:"password"`
	ContactNumber string `json:"contactnumber"`
	Address       string `json:"address"`
}
