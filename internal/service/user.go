package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/inkwell/internal/apperror"
	"github.com/sakif/inkwell/internal/auth"
	"github.com/sakif/inkwell/internal/model"
	"github.com/sakif/inkwell/internal/repository"
)

// InvalidCredentials is the one message shown for any failed sign-in, so
// the login page does not reveal which usernames exist.
const InvalidCredentials = "Invalid Username or Password"

// UserService handles registration, sign-in and profiles.
//
// DEPENDENCIES:
//   - users      repository.UserRepository → account records
//   - passwords  *auth.PasswordService     → bcrypt hash/verify
//   - tokens     *auth.TokenService        → session tokens for signed-in users
type UserService struct {
	users     repository.UserRepository
	passwords *auth.PasswordService
	tokens    *auth.TokenService
	logger    *slog.Logger
}

func NewUserService(
	users repository.UserRepository,
	passwords *auth.PasswordService,
	tokens *auth.TokenService,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:     users,
		passwords: passwords,
		tokens:    tokens,
		logger:    logger,
	}
}

// AuthResult bundles a signed-in user with the session token issued for
// them, so the handler can set the cookie and redirect in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// NormalizeEmail is applied to every email before storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account. The username is kept exactly as typed
// (after trimming); the email is normalised. Duplicate usernames or emails
// come back as a Conflict error naming the field.
func (s *UserService) Register(ctx context.Context, username, email, password string) (*model.User, error) {
	username, err := requireText("username", "username", username, model.MaxUsernameLength)
	if err != nil {
		return nil, err
	}
	email, err = requireText("email", "email", NormalizeEmail(email), model.MaxEmailLength)
	if err != nil {
		return nil, err
	}
	if err := validate.Var(email, "email"); err != nil {
		return nil, apperror.ValidationFailed("email", "not a valid email address")
	}
	if password == "" {
		return nil, apperror.ValidationFailed("password", "password is required")
	}
	if len(password) > model.MaxPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be %d bytes or fewer", model.MaxPasswordLength))
	}

	digest, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("registering user: %w", err)
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: digest,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("registering user: %w", err)
	}

	s.logger.Info("user registered",
		slog.Int64("id", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// VerifyPassword reports whether candidate matches the user's digest. It
// never fails: a malformed digest simply does not match.
func (s *UserService) VerifyPassword(user *model.User, candidate string) bool {
	if user == nil {
		return false
	}
	return s.passwords.Verify(user.PasswordHash, candidate)
}

// Authenticate checks a username and password and issues a session token.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*AuthResult, error) {
	user, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized(InvalidCredentials)
		}
		return nil, fmt.Errorf("authenticating: %w", err)
	}
	if !s.VerifyPassword(user, password) {
		s.logger.Info("failed sign-in", slog.String("username", user.Username))
		return nil, apperror.Unauthorized(InvalidCredentials)
	}
	return s.signIn(user)
}

// LoginOrRegisterGitHub signs in the user owning the GitHub account's email,
// registering one on first use. New accounts take the GitHub login as their
// username (suffixed with the GitHub id if taken) and a random password.
func (s *UserService) LoginOrRegisterGitHub(ctx context.Context, gh *auth.GitHubUser) (*AuthResult, error) {
	if gh == nil {
		return nil, errors.New("service/user: GitHub user must not be nil")
	}
	email := NormalizeEmail(gh.Email)
	if email == "" {
		return nil, apperror.Unauthorized("Your GitHub account has no verified email address")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return s.signIn(user)
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("service/user: looking up GitHub email: %w", err)
	}

	password, err := randomPassword()
	if err != nil {
		return nil, err
	}

	username := truncate(gh.Login, model.MaxUsernameLength)
	user, err = s.Register(ctx, username, email, password)
	if errors.Is(err, apperror.ErrConflict) && apperror.FieldOf(err) == "username" {
		suffix := fmt.Sprintf("-%d", gh.ID)
		username = truncate(gh.Login, model.MaxUsernameLength-len(suffix)) + suffix
		user, err = s.Register(ctx, username, email, password)
	}
	if err != nil {
		return nil, fmt.Errorf("service/user: registering GitHub user %q: %w", gh.Login, err)
	}

	s.logger.Info("user registered via GitHub",
		slog.Int64("id", user.ID),
		slog.Int64("githubID", gh.ID),
	)
	return s.signIn(user)
}

func (s *UserService) signIn(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/user: issuing token for user %d: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

func (s *UserService) Get(ctx context.Context, id int64) (*model.User, error) {
	return s.users.GetUserByID(ctx, id)
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.users.GetUserByUsername(ctx, username)
}

func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	return s.users.ListUsers(ctx)
}

// UpdateProfile replaces the user's "about me" text.
func (s *UserService) UpdateProfile(ctx context.Context, id int64, aboutMe string) error {
	aboutMe = strings.TrimSpace(aboutMe)
	if err := maxText("about_me", "about me", aboutMe, model.MaxAboutMeLength); err != nil {
		return err
	}
	if err := s.users.UpdateProfile(ctx, id, aboutMe); err != nil {
		return fmt.Errorf("updating profile: %w", err)
	}
	return nil
}

// TouchLastSeen records that the user was just active.
func (s *UserService) TouchLastSeen(ctx context.Context, id int64, at time.Time) error {
	return s.users.TouchLastSeen(ctx, id, at)
}

// Delete removes a user together with their posts. It is an administrative
// action; the web app does not expose it.
func (s *UserService) Delete(ctx context.Context, id int64) error {
	if err := s.users.DeleteUser(ctx, id); err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	s.logger.Info("user deleted", slog.Int64("id", id))
	return nil
}

func randomPassword() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("service/user: generating password: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}
