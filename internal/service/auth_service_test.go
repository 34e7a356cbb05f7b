package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"

	"github.com/bondplatform/bond-backend/internal/models"
	"github.com/bondplatform/bond-backend/internal/pkg/apperror"
	"github.com/bondplatform/bond-backend/internal/repository"
)

type mockAuthRepository struct {
	mock.Mock
}

func (m *mockAuthRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockAuthRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockAuthRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockAuthRepository) UpdateLastLoginAt(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *mockAuthRepository) CreateSession(ctx context.Context, session *models.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *mockAuthRepository) DeleteSession(ctx context.Context, refreshToken string) error {
	args := m.Called(ctx, refreshToken)
	return args.Error(0)
}

func (m *mockAuthRepository) ListSessions(ctx context.Context, userID uuid.UUID) ([]models.Session, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Session), args.Error(1)
}

func (m *mockAuthRepository) DeleteSessionByID(ctx context.Context, sessionID, userID uuid.UUID) error {
	args := m.Called(ctx, sessionID, userID)
	return args.Error(0)
}

func testTokenManager() *TokenManager {
	return NewTokenManager("access-secret", "refresh-secret", 15*time.Minute, 720*time.Hour)
}

func TestRegister_Success(t *testing.T) {
	repo := new(mockAuthRepository)

	repo.On("GetByEmail", mock.Anything, "new@example.com").Return(nil, repository.ErrUserNotFound)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(u *models.User) bool {
		return u.Email == "new@example.com" && u.Role == models.RoleClient && u.PasswordHash != ""
	})).Return(nil)
	repo.On("CreateSession", mock.Anything, mock.Anything).Return(nil)

	svc := NewAuthService(repo, testTokenManager())

	result, err := svc.Register(context.Background(), RegisterInput{
		Email:    "new@example.com",
		Password: "Str0ngPass!word",
		Username: "newcomer",
		Role:     models.RoleClient,
	}, nil)

	assert.NoError(t, err)
	assert.NotEmpty(t, result.TokenPair.AccessToken)
	assert.NotEmpty(t, result.TokenPair.RefreshToken)
	repo.AssertExpectations(t)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	repo := new(mockAuthRepository)

	repo.On("GetByEmail", mock.Anything, "busy@example.com").
		Return(&models.User{ID: uuid.New(), Email: "busy@example.com"}, nil)

	svc := NewAuthService(repo, testTokenManager())

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:    "busy@example.com",
		Password: "Str0ngPass!word",
		Username: "someone",
	}, nil)

	assert.Error(t, err)
	appErr, ok := apperror.As(err)
	assert.True(t, ok)
	assert.Equal(t, apperror.ErrCodeConflict, appErr.Code)
	assert.Contains(t, err.Error(), "уже зарегистрирован")
}

func TestRegister_ArbiterNotAllowed(t *testing.T) {
	svc := NewAuthService(new(mockAuthRepository), testTokenManager())

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:    "judge@example.com",
		Password: "Str0ngPass!word",
		Username: "judge",
		Role:     models.RoleArbiter,
	}, nil)

	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
	assert.Contains(t, err.Error(), "допустимые роли")
}

func TestLogin_WrongPassword(t *testing.T) {
	repo := new(mockAuthRepository)

	hash, _ := bcrypt.GenerateFromPassword([]byte("correct-password"), bcrypt.MinCost)
	repo.On("GetByEmail", mock.Anything, "user@example.com").Return(&models.User{
		ID:           uuid.New(),
		Email:        "user@example.com",
		PasswordHash: string(hash),
		Role:         models.RoleFreelancer,
		IsActive:     true,
	}, nil)

	svc := NewAuthService(repo, testTokenManager())

	_, err := svc.Login(context.Background(), LoginInput{
		Email:    "user@example.com",
		Password: "wrong-password",
	}, nil)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "неверный email или пароль")
}

func TestLogin_BlockedAccount(t *testing.T) {
	repo := new(mockAuthRepository)

	repo.On("GetByEmail", mock.Anything, "blocked@example.com").Return(&models.User{
		ID:       uuid.New(),
		Email:    "blocked@example.com",
		IsActive: false,
	}, nil)

	svc := NewAuthService(repo, testTokenManager())

	_, err := svc.Login(context.Background(), LoginInput{
		Email:    "blocked@example.com",
		Password: "whatever-pass",
	}, nil)

	assert.Error(t, err)
	assert.True(t, apperror.IsForbidden(err))
	assert.Contains(t, err.Error(), "заблокирован")
}

func TestLogin_Success(t *testing.T) {
	repo := new(mockAuthRepository)

	user := &models.User{
		ID:       uuid.New(),
		Email:    "user@example.com",
		Role:     models.RoleClient,
		IsActive: true,
	}
	hash, _ := bcrypt.GenerateFromPassword([]byte("correct-password"), bcrypt.MinCost)
	user.PasswordHash = string(hash)

	repo.On("GetByEmail", mock.Anything, "user@example.com").Return(user, nil)
	repo.On("UpdateLastLoginAt", mock.Anything, user.ID).Return(nil)
	repo.On("CreateSession", mock.Anything, mock.MatchedBy(func(s *models.Session) bool {
		return s.UserID == user.ID && s.RefreshToken != ""
	})).Return(nil)

	svc := NewAuthService(repo, testTokenManager())

	result, err := svc.Login(context.Background(), LoginInput{
		Email:    "user@example.com",
		Password: "correct-password",
	}, map[string]string{"user_agent": "test-agent", "ip": "127.0.0.1"})

	assert.NoError(t, err)
	assert.Equal(t, user.ID, result.User.ID)
	assert.NotEmpty(t, result.TokenPair.AccessToken)
	repo.AssertExpectations(t)
}

func TestRefresh_RotatesSession(t *testing.T) {
	repo := new(mockAuthRepository)
	tokens := testTokenManager()

	user := &models.User{ID: uuid.New(), Role: models.RoleFreelancer, IsActive: true}
	pair, _, err := tokens.GeneratePair(user)
	assert.NoError(t, err)

	repo.On("GetByID", mock.Anything, user.ID).Return(user, nil)
	repo.On("DeleteSession", mock.Anything, pair.RefreshToken).Return(nil)
	repo.On("CreateSession", mock.Anything, mock.Anything).Return(nil)

	svc := NewAuthService(repo, tokens)

	newPair, err := svc.Refresh(context.Background(), pair.RefreshToken, nil)

	assert.NoError(t, err)
	assert.NotEmpty(t, newPair.RefreshToken)
	repo.AssertExpectations(t)
}

func TestRefresh_InvalidToken(t *testing.T) {
	svc := NewAuthService(new(mockAuthRepository), testTokenManager())

	_, err := svc.Refresh(context.Background(), "not-a-jwt", nil)

	assert.Error(t, err)
	appErr, ok := apperror.As(err)
	assert.True(t, ok)
	assert.Equal(t, apperror.ErrCodeUnauthorized, appErr.Code)
}
