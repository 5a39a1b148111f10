// Package auth issues bearer tokens and resolves them to core.Principal values.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/weekorder/weekorder/core"
)

const minPasswordLength = 8

// User is an account that can sign in.
type User struct {
	ID           uint      `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         core.Role `json:"role"`
	StoreID      *uint     `json:"storeId"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Principal converts the user to the identity the order engine consumes.
func (u *User) Principal() core.Principal {
	return core.Principal{UserID: u.ID, Email: u.Email, Role: u.Role, StoreID: u.StoreID}
}

// UserRepository persists users. Missing rows are core.ErrNotFound and a
// taken email is core.ErrConflictingUniqueValue.
type UserRepository interface {
	CountUsersByRole(ctx context.Context, role core.Role) (int64, error)
	CreateUser(ctx context.Context, user *User) error
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	FindUserByID(ctx context.Context, id uint) (*User, error)
	StoreExists(ctx context.Context, storeID uint) (bool, error)
}

// Session is a successful sign-in.
type Session struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// Service implements owner bootstrap, sign-in and token authentication.
type Service struct {
	users  UserRepository
	tokens *TokenService
	logger core.Logger
	cost   int
}

// NewService creates an auth service.
func NewService(users UserRepository, tokens *TokenService, logger core.Logger) *Service {
	return &Service{
		users:  users,
		tokens: tokens,
		logger: core.WithComponent(logger, "auth"),
		cost:   bcrypt.DefaultCost,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func unauthenticated(msg string) error {
	return &core.Error{Op: "auth", Kind: "identity", Message: msg, Err: core.ErrUnauthenticated}
}

// BootstrapOwner creates the first OWNER account. Once an owner exists it
// fails with core.ErrForbidden.
func (s *Service) BootstrapOwner(ctx context.Context, email, password string) (*Session, error) {
	const op = "auth.BootstrapOwner"

	email = normalizeEmail(email)
	if email == "" || len(password) < minPasswordLength {
		return nil, &core.Error{Op: op, Kind: "identity",
			Message: "Email and password (min 8 chars) are required.", Err: core.ErrInvalidInput}
	}

	owners, err := s.users.CountUsersByRole(ctx, core.RoleOwner)
	if err != nil {
		return nil, err
	}
	if owners > 0 {
		return nil, &core.Error{Op: op, Kind: "identity",
			Message: "Owner already exists. Use owner panel for user creation.", Err: core.ErrForbidden}
	}

	user, err := s.createUser(ctx, email, password, core.RoleOwner, nil)
	if err != nil {
		return nil, err
	}
	s.logger.InfoWithContext(ctx, "Owner bootstrapped", map[string]interface{}{"user_id": user.ID})
	return s.session(user)
}

// Login verifies credentials and issues a token.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, &core.Error{Op: "auth.Login", Kind: "identity",
			Message: "Email and password are required.", Err: core.ErrInvalidInput}
	}

	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, unauthenticated("Invalid credentials.")
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, unauthenticated("Invalid credentials.")
	}
	return s.session(user)
}

// CreateStorekeeper creates a STORE account bound to an existing store.
func (s *Service) CreateStorekeeper(ctx context.Context, email, password string, storeID uint) (*User, error) {
	const op = "auth.CreateStorekeeper"

	email = normalizeEmail(email)
	if email == "" || len(password) < minPasswordLength || storeID == 0 {
		return nil, &core.Error{Op: op, Kind: "identity",
			Message: "email, password (min 8), and storeId are required.", Err: core.ErrInvalidInput}
	}

	exists, err := s.users.StoreExists(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &core.Error{Op: op, Kind: "identity", Message: "Store not found.", Err: core.ErrNotFound}
	}

	user, err := s.createUser(ctx, email, password, core.RoleStore, &storeID)
	if err != nil {
		return nil, err
	}
	s.logger.InfoWithContext(ctx, "Storekeeper created", map[string]interface{}{
		"user_id":  user.ID,
		"store_id": storeID,
	})
	return user, nil
}

// Authenticate resolves a bearer token to the principal of a still-existing user.
func (s *Service) Authenticate(ctx context.Context, token string) (core.Principal, error) {
	if token == "" {
		return core.Principal{}, unauthenticated("Authentication required.")
	}
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return core.Principal{}, err
	}
	user, err := s.users.FindUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Principal{}, unauthenticated("User no longer exists.")
		}
		return core.Principal{}, err
	}
	return user.Principal(), nil
}

func (s *Service) createUser(ctx context.Context, email, password string, role core.Role, storeID *uint) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, err
	}
	user := &User{Email: email, PasswordHash: string(hash), Role: role, StoreID: storeID}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, core.ErrConflictingUniqueValue) {
			return nil, &core.Error{Op: "auth.createUser", Kind: "identity",
				Message: "Email is already in use.", Err: core.ErrConflictingUniqueValue}
		}
		return nil, err
	}
	return user, nil
}

func (s *Service) session(user *User) (*Session, error) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, User: user}, nil
}
