package model

import (
	"errors"
	"time"
)

// User represents a Luna account.
type User struct {
	ID             int64      `db:"id" json:"id"`
	Username       string     `db:"username" json:"username"`
	Email          string     `db:"email" json:"email"`
	PasswordHashed string     `db:"password_hashed" json:"-"` // "-" hides from JSON output
	EmailVerified  bool       `db:"email_verified" json:"email_verified"`
	VerifiedAt     *time.Time `db:"verified_at" json:"-"`
	DisplayName    *string    `db:"display_name" json:"display_name"`
	AvatarURL      *string    `db:"avatar_url" json:"avatar_url"`
	AvatarKey      *string    `db:"avatar_key" json:"-"`
	Bio            *string    `db:"bio" json:"bio"`
	FollowerCount  int        `db:"follower_count" json:"follower_count"`
	FollowingCount int        `db:"following_count" json:"following_count"`
	PostCount      int        `db:"post_count" json:"post_count"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// RegisterRequest represents the data needed to register a new account.
// Registration leaves the account unverified until the emailed OTP is confirmed.
type RegisterRequest struct {
	Username    string  `json:"username"`
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	DisplayName string  `json:"display_name"`
	AvatarURL   *string `json:"-"`
	AvatarKey   *string `json:"-"`
}

// VerifyEmailRequest confirms ownership of the registered email address.
type VerifyEmailRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// ResendOTPRequest asks for a fresh verification code.
type ResendOTPRequest struct {
	Email string `json:"email"`
}

// ProfileResponse is a user profile enriched with the viewer's follow status.
type ProfileResponse struct {
	*User
	IsFollowing bool `json:"is_following"`
}

// LoginRequest represents the data needed to log in.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// OTP constraints
const (
	OTPLength      = 6
	OTPTTL         = 10 * time.Minute
	OTPMaxAttempts = 5
)

var (
	// ErrUserNotFound is returned when a user cannot be found
	ErrUserNotFound = errors.New("user not found")

	// ErrUsernameExists is returned when attempting to create a user with a taken username
	ErrUsernameExists = errors.New("username already exists")

	// ErrEmailExists is returned when the email address is already registered
	ErrEmailExists = errors.New("email already registered")

	// ErrInvalidCredentials is returned when login credentials are incorrect
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrEmailNotVerified is returned when a login is attempted before OTP verification
	ErrEmailNotVerified = errors.New("email not verified")

	// ErrAlreadyVerified is returned when verifying an account that is already verified
	ErrAlreadyVerified = errors.New("email already verified")

	// ErrInvalidOTP is returned when the supplied code does not match
	ErrInvalidOTP = errors.New("invalid verification code")

	// ErrOTPExpired is returned when no live code exists for the email
	ErrOTPExpired = errors.New("verification code expired or not issued")

	// ErrTooManyOTPAttempts is returned once the attempt budget is exhausted
	ErrTooManyOTPAttempts = errors.New("too many verification attempts")
)

// Auth API error codes (used in HTTP responses)
const (
	CodeEmailNotVerified = "EMAIL_NOT_VERIFIED"
	CodeOTPInvalid       = "OTP_INVALID"
	CodeOTPExpired       = "OTP_EXPIRED"
)
