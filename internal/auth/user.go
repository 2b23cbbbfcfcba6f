// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 8

var (
	// emailRegex matches local@domain.tld with no whitespace.
	emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

	// nameRegex matches letters, spaces and hyphens.
	nameRegex = regexp.MustCompile(`^[a-zA-Z\s-]+$`)

	// companyRegex matches letters, digits, spaces and & . , ' -
	companyRegex = regexp.MustCompile(`^[a-zA-Z0-9\s&.,'-]+$`)
)

// User represents a registered account.
type User struct {
	ID             ulid.ULID
	Email          string
	PasswordHash   string
	FirstName      string
	LastName       string
	CompanyName    string // empty when not provided
	FailedAttempts int
	LockedUntil    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewUser creates a validated User instance.
// The email is normalized; passwordHash must already be a hash.
func NewUser(email, passwordHash, firstName, lastName, companyName string) (*User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, oops.Code("USER_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if strings.TrimSpace(passwordHash) == "" {
		return nil, oops.Code("USER_INVALID_PASSWORD_HASH").Errorf("password hash cannot be empty")
	}
	firstName = strings.TrimSpace(firstName)
	if firstName == "" {
		return nil, oops.Code("USER_INVALID_FIRST_NAME").Errorf("first name cannot be empty")
	}
	lastName = strings.TrimSpace(lastName)
	if lastName == "" {
		return nil, oops.Code("USER_INVALID_LAST_NAME").Errorf("last name cannot be empty")
	}

	now := time.Now()
	return &User{
		ID:           ulid.Make(),
		Email:        email,
		PasswordHash: passwordHash,
		FirstName:    firstName,
		LastName:     lastName,
		CompanyName:  strings.TrimSpace(companyName),
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// IsLockedAt returns true if the user is locked out at the given time.
func (u *User) IsLockedAt(now time.Time) bool {
	return IsLockedOut(u.LockedUntil, now)
}

// RecordFailure increments the failure counter and sets lockout if threshold reached.
// A lock that has already expired starts a new run of failures.
func (u *User) RecordFailure(now time.Time) {
	if u.LockedUntil != nil && !IsLockedOut(u.LockedUntil, now) {
		u.FailedAttempts = 0
		u.LockedUntil = nil
	}
	u.FailedAttempts++
	u.LockedUntil = ComputeLockoutTime(u.FailedAttempts, now)
	u.UpdatedAt = now
}

// RecordSuccess resets failure counter and lockout.
func (u *User) RecordSuccess(now time.Time) {
	u.FailedAttempts = 0
	u.LockedUntil = nil
	u.UpdatedAt = now
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks the local@domain.tld shape.
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return oops.Code("AUTH_INVALID_EMAIL").
			With("email", email).
			Errorf("Please enter a valid email address")
	}
	return nil
}

// ValidatePassword enforces the minimum password length.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return oops.Code("AUTH_WEAK_PASSWORD").
			With("min", MinPasswordLength).
			Errorf("Password must be at least %d characters long", MinPasswordLength)
	}
	return nil
}

// ValidateName checks a first or last name. field names the input for the message.
func ValidateName(field, name string) error {
	if !nameRegex.MatchString(name) {
		return oops.Code("AUTH_INVALID_NAME").
			With("field", field).
			Errorf("%s can only contain letters, spaces, and hyphens", field)
	}
	return nil
}

// ValidateCompanyName checks an optional company name. Empty is valid.
func ValidateCompanyName(name string) error {
	if name == "" {
		return nil
	}
	if !companyRegex.MatchString(name) {
		return oops.Code("AUTH_INVALID_COMPANY").
			Errorf("Company name contains invalid characters")
	}
	return nil
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user.
	// Returns an error wrapping ErrDuplicateEmail if the email is taken.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByEmail retrieves a user by email (case-insensitive).
	// Returns ErrNotFound if no user has the given email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// Update updates an existing user.
	Update(ctx context.Context, user *User) error
}
