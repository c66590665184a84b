package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"math/big"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"luna/internal/cache"
	"luna/internal/mailer"
	"luna/internal/model"
	"luna/internal/repository"
)

// UserService handles accounts: registration, email verification via OTP,
// login, and profile reads.
type UserService struct {
	repo       repository.UserRepository
	followRepo repository.FollowRepository
	otpStore   cache.OTPStore
	mailer     mailer.Mailer
}

func NewUserService(
	repo repository.UserRepository,
	followRepo repository.FollowRepository,
	otpStore cache.OTPStore,
	m mailer.Mailer,
) *UserService {
	return &UserService{
		repo:       repo,
		followRepo: followRepo,
		otpStore:   otpStore,
		mailer:     m,
	}
}

// Register creates a new, unverified account and emails a one-time code.
// The account cannot log in until VerifyEmail succeeds.
func (s *UserService) Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error) {
	if strings.TrimSpace(req.Username) == "" {
		return nil, fmt.Errorf("username is required")
	}
	if strings.TrimSpace(req.Password) == "" {
		return nil, fmt.Errorf("password is required")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("invalid email address")
	}
	if (req.AvatarURL == nil) != (req.AvatarKey == nil) {
		return nil, fmt.Errorf("avatar_url and avatar_key must both be provided or both omitted")
	}

	exists, err := s.repo.ExistsByUsername(ctx, req.Username)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if exists {
		return nil, model.ErrUsernameExists
	}

	exists, err = s.repo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return nil, model.ErrEmailExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Username:       req.Username,
		Email:          email,
		PasswordHashed: string(hashedPassword),
		AvatarURL:      req.AvatarURL,
		AvatarKey:      req.AvatarKey,
	}
	if req.DisplayName != "" {
		user.DisplayName = &req.DisplayName
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	if err := s.issueOTP(ctx, email); err != nil {
		// Account exists, user can hit resend. Don't fail registration.
		log.Printf("[UserService] Issue OTP FAILED: email=%s err=%v", email, err)
	}

	log.Printf("[UserService] Register OK: user=%d username=%s", user.ID, user.Username)
	return user, nil
}

// VerifyEmail consumes the emailed code and marks the account verified.
func (s *UserService) VerifyEmail(ctx context.Context, req *model.VerifyEmailRequest) error {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user.EmailVerified {
		return model.ErrAlreadyVerified
	}

	if err := s.otpStore.Verify(ctx, email, req.Code); err != nil {
		return err
	}

	if err := s.repo.MarkEmailVerified(ctx, user.ID); err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}

	log.Printf("[UserService] VerifyEmail OK: user=%d", user.ID)
	return nil
}

// ResendOTP issues a fresh code for an unverified account. The previous code
// stops working once the new one is stored.
func (s *UserService) ResendOTP(ctx context.Context, req *model.ResendOTPRequest) error {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user.EmailVerified {
		return model.ErrAlreadyVerified
	}

	return s.issueOTP(ctx, email)
}

func (s *UserService) issueOTP(ctx context.Context, email string) error {
	code, err := generateOTP(model.OTPLength)
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}
	if err := s.otpStore.Set(ctx, email, code, model.OTPTTL); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}
	if err := s.mailer.SendOTP(email, code); err != nil {
		return fmt.Errorf("send otp: %w", err)
	}
	return nil
}

// Login authenticates with username and password. Unverified accounts are
// rejected with ErrEmailNotVerified after the password check, so the error
// never leaks whether credentials were right for someone else's account.
func (s *UserService) Login(ctx context.Context, req *model.LoginRequest) (*model.User, error) {
	user, err := s.repo.GetByUsername(ctx, req.Username)
	if err != nil {
		// Don't reveal whether username exists or not
		return nil, model.ErrInvalidCredentials
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHashed), []byte(req.Password))
	if err != nil {
		return nil, model.ErrInvalidCredentials
	}

	if !user.EmailVerified {
		return nil, model.ErrEmailNotVerified
	}

	return user, nil
}

// GetByID retrieves a user by ID.
func (s *UserService) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateAvatar records a newly uploaded avatar and returns the fresh user.
func (s *UserService) UpdateAvatar(ctx context.Context, userID int64, avatarURL, avatarKey string) (*model.User, error) {
	if err := s.repo.UpdateAvatar(ctx, userID, avatarURL, avatarKey); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, userID)
}

// GetProfile retrieves a user's profile with follow relationship status.
// Two queries on purpose: the existence check fails fast, and a follow
// status failure degrades gracefully instead of blocking the profile.
func (s *UserService) GetProfile(ctx context.Context, userID int64, viewerID *int64) (*model.ProfileResponse, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile := &model.ProfileResponse{
		User:        user,
		IsFollowing: false,
	}

	if viewerID != nil && *viewerID != userID {
		isFollowing, err := s.followRepo.Exists(ctx, *viewerID, userID)
		if err == nil {
			profile.IsFollowing = isFollowing
		}
	}

	return profile, nil
}

// Search finds users by username with optional follow status enrichment.
// Batched CheckFollows avoids an N+1 on the follow table.
func (s *UserService) Search(ctx context.Context, query string, limit int, viewerID *int64) ([]model.UserSummary, error) {
	users, err := s.repo.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	if viewerID != nil && len(users) > 0 {
		userIDs := make([]int64, len(users))
		for i, user := range users {
			userIDs[i] = user.ID
		}

		followMap, err := s.followRepo.CheckFollows(ctx, *viewerID, userIDs)
		if err == nil {
			for i := range users {
				users[i].IsFollowing = followMap[users[i].ID]
			}
		}
	}

	return users, nil
}

// generateOTP returns a random numeric code of the given length.
func generateOTP(length int) (string, error) {
	var b strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
