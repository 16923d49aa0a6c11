package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	jwtMiddleware "github.com/improveclean/cleaning-site/internal/middleware"
	"github.com/improveclean/cleaning-site/internal/service"
	"github.com/improveclean/cleaning-site/internal/store"
	"github.com/improveclean/cleaning-site/internal/store/users"
)

const (
	MsgPasswordMismatch = "The two password fields didn't match."
	MsgUsernameTaken    = "A user with that username already exists."
	MsgPasswordTooShort = "This password is too short. It must contain at least 8 characters."
	MsgPasswordTooLong  = "This password is too long. It must contain at most 72 bytes."

	// bcrypt rejects longer passwords outright.
	maxPasswordBytes = 72
	maxNameLen       = 30
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
)

type UserStore interface {
	Create(ctx context.Context, user *users.User) (*users.User, error)
	GetByID(ctx context.Context, id int64) (*users.User, error)
	GetByUsername(ctx context.Context, username string) (*users.User, error)
	UpdateProfile(ctx context.Context, userID int64, firstName, lastName, email string) error
}

// SessionRevoker is satisfied by redisx.Sessions.
type SessionRevoker interface {
	Revoke(ctx context.Context, sessionKey string, expiresAt time.Time) error
}

type AuthService struct {
	log      *zap.Logger
	users    UserStore
	sessions SessionRevoker
	secret   string
	ttl      time.Duration
}

func NewAuthService(log *zap.Logger, users UserStore, sessions SessionRevoker, secret string, ttl time.Duration) *AuthService {
	return &AuthService{
		log:      log,
		users:    users,
		sessions: sessions,
		secret:   secret,
		ttl:      ttl,
	}
}

type SignupRequest struct {
	Username  string `json:"username" form:"username" binding:"required,max=150"`
	FirstName string `json:"first_name" form:"first_name" binding:"required,max=30"`
	LastName  string `json:"last_name" form:"last_name" binding:"required,max=30"`
	Email     string `json:"email" form:"email" binding:"required,email"`
	Password1 string `json:"password1" form:"password1" binding:"required"`
	Password2 string `json:"password2" form:"password2" binding:"required"`
}

type LoginRequest struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

type ProfileRequest struct {
	FirstName string `json:"first_name" form:"first_name" binding:"max=150"`
	LastName  string `json:"last_name" form:"last_name" binding:"max=150"`
	Email     string `json:"email" form:"email" binding:"required,email"`
}

type LoginResponse struct {
	Token   string    `json:"token"`
	User    UserInfo  `json:"user"`
	Expires time.Time `json:"expires"`
}

type UserInfo struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	FullName    string    `json:"full_name"`
	IsSuperuser bool      `json:"is_superuser"`
	DateJoined  time.Time `json:"date_joined"`
}

func (s *AuthService) Signup(ctx context.Context, req SignupRequest) (*LoginResponse, error) {
	verr := &service.ValidationError{}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		verr.Add("username", service.MsgRequired)
	}
	firstName, lastName := strings.TrimSpace(req.FirstName), strings.TrimSpace(req.LastName)
	checkName(verr, "first_name", firstName)
	checkName(verr, "last_name", lastName)
	if !service.ValidEmail(req.Email) {
		verr.Add("email", service.MsgInvalidEmail)
	}
	if req.Password1 != req.Password2 {
		verr.Add("password2", MsgPasswordMismatch)
	} else if len(req.Password1) < 8 {
		verr.Add("password2", MsgPasswordTooShort)
	} else if len(req.Password1) > maxPasswordBytes {
		verr.Add("password2", MsgPasswordTooLong)
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password1), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &users.User{
		Username:     username,
		Email:        req.Email,
		FirstName:    firstName,
		LastName:     lastName,
		PasswordHash: string(hashedPassword),
		IsActive:     true,
	}
	user, err = s.users.Create(ctx, user)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, service.FieldError("username", MsgUsernameTaken)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	s.log.Info("user registered", zap.Int64("user_id", user.ID))

	return s.issue(user)
}

func checkName(verr *service.ValidationError, field, v string) {
	switch {
	case v == "":
		verr.Add(field, service.MsgRequired)
	case utf8.RuneCountInString(v) > maxNameLen:
		verr.Add(field, fmt.Sprintf("Ensure this value has at most %d characters.", maxNameLen))
	}
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive || user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issue(user)
}

// Logout revokes the session key until its token would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, sessionKey string, expires time.Time) error {
	if sessionKey == "" {
		return nil
	}
	return s.sessions.Revoke(ctx, sessionKey, expires)
}

func (s *AuthService) GetProfile(ctx context.Context, userID int64) (*UserInfo, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	info := userToInfo(user)
	return &info, nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID int64, req ProfileRequest) (*UserInfo, error) {
	if !service.ValidEmail(req.Email) {
		return nil, service.FieldError("email", service.MsgInvalidEmail)
	}
	err := s.users.UpdateProfile(ctx, userID, strings.TrimSpace(req.FirstName), strings.TrimSpace(req.LastName), req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return s.GetProfile(ctx, userID)
}

func (s *AuthService) issue(user *users.User) (*LoginResponse, error) {
	token, _, expires, err := jwtMiddleware.Issue(s.secret, user.ID, user.IsSuperuser, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &LoginResponse{Token: token, User: userToInfo(user), Expires: expires}, nil
}

func userToInfo(user *users.User) UserInfo {
	return UserInfo{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		FullName:    user.FullName(),
		IsSuperuser: user.IsSuperuser,
		DateJoined:  user.DateJoined,
	}
}
