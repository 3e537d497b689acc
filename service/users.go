package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/AnTengye/creditreport/config"
	"github.com/AnTengye/creditreport/model"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("user already exists with this email")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// WeakPasswordError reports a password shorter than the configured minimum
type WeakPasswordError struct {
	MinLength int
}

func (e *WeakPasswordError) Error() string {
	return fmt.Sprintf("password must be at least %d characters long", e.MinLength)
}

// UserStore persists user accounts. Emails are stored lowercased and are
// unique.
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// MemoryUserStore keeps users in process memory
type MemoryUserStore struct {
	users   map[string]*model.User
	byEmail map[string]string
	mu      sync.RWMutex
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		users:   make(map[string]*model.User),
		byEmail: make(map[string]string),
	}
}

func (s *MemoryUserStore) Create(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := normalizeEmail(user.Email)
	if _, ok := s.byEmail[email]; ok {
		return ErrEmailTaken
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now()
	user.Email = email
	user.CreatedAt = now
	user.UpdatedAt = now

	stored := *user
	s.users[user.ID] = &stored
	s.byEmail[email] = user.ID
	return nil
}

func (s *MemoryUserStore) FindByID(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	out := *u
	return &out, nil
}

func (s *MemoryUserStore) FindByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	out := *s.users[id]
	return &out, nil
}

func (s *MemoryUserStore) Update(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if !ok {
		return ErrUserNotFound
	}
	email := normalizeEmail(user.Email)
	if owner, taken := s.byEmail[email]; taken && owner != user.ID {
		return ErrEmailTaken
	}

	delete(s.byEmail, existing.Email)
	user.Email = email
	user.CreatedAt = existing.CreatedAt
	user.UpdatedAt = time.Now()

	stored := *user
	s.users[user.ID] = &stored
	s.byEmail[email] = user.ID
	return nil
}

// ProfileUpdate carries the optional profile changes. Empty fields are left
// unchanged.
type ProfileUpdate struct {
	Name     string
	Email    string
	Password string
}

// UserService registers and authenticates users
type UserService struct {
	store     UserStore
	minLength int
	cost      int
}

func NewUserService(store UserStore, cfg *config.AuthConfig) *UserService {
	return &UserService{
		store:     store,
		minLength: cfg.MinPasswordLength,
		cost:      bcrypt.DefaultCost,
	}
}

func (s *UserService) hash(password string) (string, error) {
	if len(password) < s.minLength {
		return "", &WeakPasswordError{MinLength: s.minLength}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Register creates a user with the default role
func (s *UserService) Register(ctx context.Context, name, email, password string) (*model.User, error) {
	return s.create(ctx, name, email, password, model.RoleUser)
}

func (s *UserService) create(ctx context.Context, name, email, password, role string) (*model.User, error) {
	hash, err := s.hash(password)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		Name:         strings.TrimSpace(name),
		Email:        normalizeEmail(email),
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.store.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate checks the credentials and returns the matching user. Unknown
// emails and wrong passwords both yield ErrInvalidCredentials.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.store.FindByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *UserService) Profile(ctx context.Context, id string) (*model.User, error) {
	return s.store.FindByID(ctx, id)
}

func (s *UserService) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*model.User, error) {
	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if name := strings.TrimSpace(upd.Name); name != "" {
		user.Name = name
	}
	if upd.Email != "" {
		user.Email = normalizeEmail(upd.Email)
	}
	if upd.Password != "" {
		hash, err := s.hash(upd.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}
	if err := s.store.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// SeedUsers creates the configured users that do not exist yet
func (s *UserService) SeedUsers(ctx context.Context, users []config.User) error {
	for _, u := range users {
		if _, err := s.store.FindByEmail(ctx, u.Email); err == nil {
			continue
		} else if !errors.Is(err, ErrUserNotFound) {
			return err
		}

		role := u.Role
		if role == "" {
			role = model.RoleUser
		}
		if _, err := s.create(ctx, u.Name, u.Email, u.Password, role); err != nil {
			return fmt.Errorf("seed user %s: %w", u.Email, err)
		}
		slog.Info("seeded user", "email", normalizeEmail(u.Email), "role", role)
	}
	return nil
}
