// Package auth handles user authentication and session management for the
// accounts service. It provides registration, login with token pairs,
// refresh-token rotation backed by Redis sessions, logout, and the guards
// that protect the rest of the API.
//
// This is a CORE plugin -- always enabled, cannot be disabled.
package auth

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// Role is a user's authorization level.
type Role string

// Known roles. New users always start as RoleUser.
const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// DateLayout is the wire and storage format of a birth date.
const DateLayout = "2006-01-02"

// Date is a calendar date without a time of day. It marshals to and from
// "YYYY-MM-DD" in JSON and maps onto a SQL DATE column.
type Date struct {
	time.Time
}

// ParseDate parses a "YYYY-MM-DD" string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

// String returns the date as "YYYY-MM-DD".
func (d Date) String() string {
	return d.Format(DateLayout)
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Scan implements sql.Scanner. The driver hands back time.Time when the DSN
// sets parseTime, otherwise raw bytes.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		y, m, day := v.Date()
		d.Time = time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
		return nil
	case []byte:
		parsed, err := ParseDate(string(v))
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case string:
		parsed, err := ParseDate(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

// User represents a registered account. This is the domain model used
// throughout the application. Database scanning and JSON marshaling use this
// struct directly.
type User struct {
	ID           string    `json:"id"`
	FullName     string    `json:"fullName"`
	BirthDate    Date      `json:"birthDate"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never expose in JSON responses.
	Role         Role      `json:"role"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
}

// withoutSecret returns a copy of u with the password hash cleared.
func (u *User) withoutSecret() *User {
	cp := *u
	cp.PasswordHash = ""
	return &cp
}

// --- Request DTOs (bound from HTTP requests) ---

// RegisterRequest holds the registration payload.
type RegisterRequest struct {
	FullName  string `json:"fullName" validate:"required,min=3,max=50"`
	BirthDate string `json:"birthDate" validate:"required,datetime=2006-01-02"`
	Email     string `json:"email" validate:"required,email,max=40"`
	Password  string `json:"password" validate:"required,min=6,max=20"`
}

// LoginRequest holds the login payload.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// TokenRequest carries a refresh token for refresh and logout.
type TokenRequest struct {
	Token string `json:"token" validate:"required"`
}

// --- Service Input DTOs (passed from handler to service) ---

// RegisterInput is the validated input for creating a new user.
type RegisterInput struct {
	FullName  string
	BirthDate Date
	Email     string
	Password  string
}

// LoginInput is the validated input for authenticating a user.
type LoginInput struct {
	Email    string
	Password string
}

// --- Responses ---

// TokenPair is returned by login and refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// UserPage is one page of the admin user listing.
type UserPage struct {
	Users   []User `json:"users"`
	Total   int    `json:"total"`
	Page    int    `json:"page"`
	PerPage int    `json:"perPage"`
}

// normalizeEmail trims and lower-cases an address so lookups and the unique
// index agree.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
