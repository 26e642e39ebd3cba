package service_test // 测试包

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Avishi2511/bug-tracker/internal/domain"
	"github.com/Avishi2511/bug-tracker/internal/repository"
	"github.com/Avishi2511/bug-tracker/internal/repository/mocks"
	"github.com/Avishi2511/bug-tracker/internal/service"
)

// --- 测试 Register 方法 ---

func TestAuthService_Register_Success(t *testing.T) {
	// Arrange: 准备 Mock 对象, Service 实例, 和测试数据
	mockUserRepo := new(mocks.UserRepository)
	authService, err := service.NewAuthService(mockUserRepo, "very-secret-key", 1)
	require.NoError(t, err, "创建 AuthService 不应失败")

	ctx := context.Background()
	input := service.RegisterInput{
		Username:  "newbie",
		Password:  "StrongPass123",
		Email:     "newbie@example.com",
		FirstName: "New",
		LastName:  "Bie",
		Role:      domain.RoleTester,
	}

	// 设置 Mock 预期: Save 成功，并填充 ID/时间戳
	mockUserRepo.On("Save", ctx, mock.MatchedBy(func(user *domain.User) bool {
		assert.Equal(t, input.Username, user.Username)
		assert.Equal(t, input.Email, user.Email)
		assert.Equal(t, domain.RoleTester, user.Role)
		assert.True(t, user.IsActive, "新用户应默认激活")
		// 验证密码已被哈希
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)), "密码应被正确哈希")
		return true
	})).
		Run(func(args mock.Arguments) { // 模拟数据库填充字段
			userArg := args.Get(1).(*domain.User)
			userArg.ID = 5
			userArg.CreatedAt = time.Now().Add(-time.Second)
			userArg.UpdatedAt = time.Now().Add(-time.Second)
		}).
		Return(nil).
		Once()

	// Act
	registeredUser, err := authService.Register(ctx, input)

	// Assert
	assert.NoError(t, err, "成功注册时不应有错误")
	require.NotNil(t, registeredUser, "成功注册时应返回用户对象")
	assert.Equal(t, uint(5), registeredUser.ID)
	assert.Equal(t, input.Username, registeredUser.Username)
	assert.Empty(t, registeredUser.Password, "返回的用户密码应为空")

	mockUserRepo.AssertExpectations(t)
}

func TestAuthService_Register_ValidationCollectsAllFields(t *testing.T) {
	// Arrange: 所有字段都不合法
	mockUserRepo := new(mocks.UserRepository)
	authService, _ := service.NewAuthService(mockUserRepo, "secret", 1)

	input := service.RegisterInput{
		Username:  "ab",        // 太短
		Password:  "123",       // 太短
		Email:     "not-email", // 格式错误
		FirstName: "",          // 缺失
		LastName:  "",          // 缺失
		Role:      domain.RoleAdmin, // 公开注册不允许 admin
	}

	// Act
	user, err := authService.Register(context.Background(), input)

	// Assert: 一次性报告所有失败字段，Save 不应被调用
	assert.Nil(t, user)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr, "应返回 ValidationError")
	assert.Len(t, verr.Fields, 6, "应一次性报告全部 6 个失败字段")
	mockUserRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestAuthService_Register_InvalidUsernameCharacters(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	authService, _ := service.NewAuthService(mockUserRepo, "secret", 1)

	input := service.RegisterInput{
		Username:  "bad name!",
		Password:  "password123",
		Email:     "ok@example.com",
		FirstName: "Ok",
		LastName:  "User",
		Role:      domain.RoleDeveloper,
	}

	user, err := authService.Register(context.Background(), input)

	assert.Nil(t, user)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Fields, 1)
	assert.Equal(t, "username", verr.Fields[0].Field)
}

func TestAuthService_Register_DuplicateUsernameOrEmail(t *testing.T) {
	// Arrange
	mockUserRepo := new(mocks.UserRepository)
	authService, _ := service.NewAuthService(mockUserRepo, "secret", 1)
	ctx := context.Background()

	input := service.RegisterInput{
		Username:  "existing",
		Password:  "password123",
		Email:     "existing@example.com",
		FirstName: "Ex",
		LastName:  "Isting",
		Role:      domain.RoleTester,
	}

	// 设置 Mock 预期: 唯一约束冲突
	mockUserRepo.On("Save", ctx, mock.AnythingOfType("*domain.User")).
		Return(repository.ErrDuplicateEntry).
		Once()

	// Act
	user, err := authService.Register(ctx, input)

	// Assert
	assert.Nil(t, user)
	assert.ErrorIs(t, err, service.ErrRegistrationFailed)
	mockUserRepo.AssertExpectations(t)
}

// --- 测试 Login 方法 ---

func hashForTest(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestAuthService_Login_Success(t *testing.T) {
	// Arrange
	mockUserRepo := new(mocks.UserRepository)
	authService, _ := service.NewAuthService(mockUserRepo, "secret", 1)
	ctx := context.Background()

	storedUser := &domain.User{
		ID:       3,
		Username: "dev1",
		Password: hashForTest(t, "correct-password"),
		Role:     domain.RoleDeveloper,
		IsActive: true,
	}
	mockUserRepo.On("FindByUsername", ctx, "dev1").Return(storedUser, nil).Once()
	// LastLogin 更新
	mockUserRepo.On("Save", ctx, mock.MatchedBy(func(user *domain.User) bool {
		return user.LastLogin != nil
	})).Return(nil).Once()

	// Act
	token, user, err := authService.Login(ctx, "dev1", "correct-password")

	// Assert
	assert.NoError(t, err)
	assert.NotEmpty(t, token, "应返回签名的 JWT")
	require.NotNil(t, user)
	assert.Empty(t, user.Password, "返回的用户密码应为空")
	mockUserRepo.AssertExpectations(t)
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	authService, _ := service.NewAuthService(mockUserRepo, "secret", 1)
	ctx := context.Background()

	storedUser := &domain.User{
		ID:       3,
		Username: "dev1",
		Password: hashForTest(t, "correct-password"),
		IsActive: true,
	}
	mockUserRepo.On("FindByUsername", ctx, "dev1").Return(storedUser, nil).Once()

	token, user, err := authService.Login(ctx, "dev1", "wrong-password")

	assert.ErrorIs(t, err, service.ErrAuthenticationFailed)
	assert.Empty(t, token)
	assert.Nil(t, user)
	mockUserRepo.AssertExpectations(t)
}

func TestAuthService_Login_UserNotFound(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	authService, _ := service.NewAuthService(mockUserRepo, "secret", 1)
	ctx := context.Background()

	mockUserRepo.On("FindByUsername", ctx, "ghost").
		Return(nil, repository.ErrUserNotFound).Once()

	token, user, err := authService.Login(ctx, "ghost", "whatever")

	// 不泄露用户是否存在，统一返回认证失败
	assert.ErrorIs(t, err, service.ErrAuthenticationFailed)
	assert.Empty(t, token)
	assert.Nil(t, user)
}

func TestAuthService_Login_DeactivatedAccount(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	authService, _ := service.NewAuthService(mockUserRepo, "secret", 1)
	ctx := context.Background()

	storedUser := &domain.User{
		ID:       4,
		Username: "gone",
		Password: hashForTest(t, "correct-password"),
		IsActive: false,
	}
	mockUserRepo.On("FindByUsername", ctx, "gone").Return(storedUser, nil).Once()

	token, user, err := authService.Login(ctx, "gone", "correct-password")

	assert.ErrorIs(t, err, service.ErrAccountDisabled)
	assert.Empty(t, token)
	assert.Nil(t, user)
	// 停用账户不应更新 LastLogin
	mockUserRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

// --- 测试 CurrentUser 方法 ---

func TestAuthService_CurrentUser_DeactivationInvalidatesToken(t *testing.T) {
	// Arrange: 持有有效 token 的用户已被停用
	mockUserRepo := new(mocks.UserRepository)
	authService, _ := service.NewAuthService(mockUserRepo, "secret", 1)
	ctx := context.Background()

	deactivated := &domain.User{ID: 9, Username: "left", IsActive: false}
	mockUserRepo.On("FindByID", ctx, uint(9)).Return(deactivated, nil).Once()

	// Act
	user, err := authService.CurrentUser(ctx, 9)

	// Assert: 停用立即生效，不等 token 过期
	assert.Nil(t, user)
	assert.ErrorIs(t, err, service.ErrAccountDisabled)
}

func TestAuthService_CurrentUser_UnknownID(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	authService, _ := service.NewAuthService(mockUserRepo, "secret", 1)
	ctx := context.Background()

	mockUserRepo.On("FindByID", ctx, uint(404)).
		Return(nil, repository.ErrUserNotFound).Once()

	user, err := authService.CurrentUser(ctx, 404)

	assert.Nil(t, user)
	assert.ErrorIs(t, err, service.ErrAuthenticationFailed)
}

func TestAuthService_CurrentUser_RepositoryError(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	authService, _ := service.NewAuthService(mockUserRepo, "secret", 1)
	ctx := context.Background()

	mockUserRepo.On("FindByID", ctx, uint(1)).
		Return(nil, errors.New("connection reset")).Once()

	user, err := authService.CurrentUser(ctx, 1)

	assert.Nil(t, user)
	assert.ErrorIs(t, err, service.ErrInternalServer)
}
