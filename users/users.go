package users

import (
	"fmt"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// RoleType represents a role granted to a user
type RoleType string

const (
	RoleAdmin RoleType = "admin" // Can manage users
	RoleUser  RoleType = "user"  // Regular user
)

type User struct {
	ID           string     `json:"uuid,omitempty"`        // Unique identifier for the user
	LoginName    string     `json:"loginname"`             // Unique login name, matched exactly on login
	DisplayName  string     `json:"displayname,omitempty"` // Human readable name
	Email        string     `json:"email,omitempty"`       // User's email address
	PasswordHash string     `json:"-"`                     // Hashed version of the user's password - never serialize
	Roles        []RoleType `json:"roles,omitempty"`       // Granted roles
	Blocked      bool       `json:"blocked,omitempty"`     // Blocked, has the user been blocked from logging in
	DateJoined   time.Time  `json:"date_joined,omitempty"` // Date and time when the user registered
	LastLogin    time.Time  `json:"last_login,omitempty"`  // Last time the user logged in
}

// Principal is the authenticated identity embedded in a session after a successful login.
type Principal struct {
	UUID        string     `json:"uuid"`
	LoginName   string     `json:"loginname"`
	DisplayName string     `json:"displayname"`
	Roles       []RoleType `json:"roles"`
}

// Principal returns the public identity of the user.
func (u *User) Principal() Principal {
	roles := make([]RoleType, len(u.Roles))
	copy(roles, u.Roles)
	return Principal{
		UUID:        u.ID,
		LoginName:   u.LoginName,
		DisplayName: u.DisplayName,
		Roles:       roles,
	}
}

// HasRole checks if the user has been granted role
func (u *User) HasRole(role RoleType) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasRole checks if the principal carries role
func (p Principal) HasRole(role RoleType) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
