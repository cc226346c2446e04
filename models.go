package auth

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
)

// User is the account record returned by the backend. IsAdmin is the only
// source of the user's role.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FullName  string `json:"full_name,omitempty"`
	IsActive  bool   `json:"is_active"`
	IsAdmin   bool   `json:"is_admin"`
	CreatedAt string `json:"created_at,omitempty"`
}

// Validate checks the user is usable as a session identity
func (u User) Validate() error {
	if u.ID == 0 && strings.TrimSpace(u.Username) == "" {
		return errors.New("user record has no identity", errors.CategoryValidation).
			WithTextCode(TextCodeInvalidSession)
	}
	return nil
}

// Role derives the role from the admin flag
func (u User) Role() Role {
	if u.IsAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// DisplayName returns the full name falling back to the username
func (u User) DisplayName() string {
	if name := strings.TrimSpace(u.FullName); name != "" {
		return name
	}
	return u.Username
}

// AuthResponse is the backend payload for login and signup
type AuthResponse struct {
	Message string `json:"message,omitempty"`
	Token   string `json:"token"`
	User    *User  `json:"user"`
}

// LoginRequest payload
type LoginRequest struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validationError(validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
	), "Missing username or password")
}

// SignupRequest is the account creation payload. It deliberately has no admin
// field so a self-service signup can not ask for one.
type SignupRequest struct {
	Username string `form:"username" json:"username"`
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
	FullName string `form:"full_name" json:"full_name"`
}

// Validate will run validation rules
func (r SignupRequest) Validate() error {
	return validationError(validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(3, 80)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 128)),
		validation.Field(&r.FullName, validation.Length(0, 200)),
	), "Invalid signup details")
}

func validationError(err error, message string) error {
	if err == nil {
		return nil
	}

	fields := map[string]any{}
	if verrs, ok := err.(validation.Errors); ok {
		for field, ferr := range verrs {
			fields[field] = ferr.Error()
		}
	}

	return errors.Wrap(err, errors.CategoryValidation, message).
		WithTextCode(TextCodeInvalidPayload).
		WithCode(errors.CodeBadRequest).
		WithMetadata(fields)
}

// ProfileUpdate holds the editable profile fields, nil fields are left as is
type ProfileUpdate struct {
	FullName *string `json:"full_name,omitempty"`
	Email    *string `json:"email,omitempty"`
}

// Validate will run validation rules
func (r ProfileUpdate) Validate() error {
	return validationError(validation.ValidateStruct(&r,
		validation.Field(&r.FullName, validation.NilOrNotEmpty, validation.Length(0, 200)),
		validation.Field(&r.Email, validation.NilOrNotEmpty, is.Email),
	), "Invalid profile details")
}

// Empty reports whether the update changes nothing
func (r ProfileUpdate) Empty() bool {
	return r.FullName == nil && r.Email == nil
}

// ChangePasswordRequest payload
type ChangePasswordRequest struct {
	CurrentPassword string `form:"current_password" json:"current_password"`
	NewPassword     string `form:"new_password" json:"new_password"`
}

// Validate will run validation rules
func (r ChangePasswordRequest) Validate() error {
	return validationError(validation.ValidateStruct(&r,
		validation.Field(&r.CurrentPassword, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(6, 128)),
	), "Invalid password change")
}
