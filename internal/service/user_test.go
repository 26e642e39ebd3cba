package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Avishi2511/bug-tracker/internal/domain"
	"github.com/Avishi2511/bug-tracker/internal/repository"
	"github.com/Avishi2511/bug-tracker/internal/repository/mocks"
	"github.com/Avishi2511/bug-tracker/internal/service"
)

func TestUserService_List_AdminOnly(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	svc := service.NewUserService(mockUserRepo)

	_, err := svc.List(context.Background(), devPrincipal, repository.UserFilter{})

	assert.ErrorIs(t, err, service.ErrAccessDenied)
	mockUserRepo.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}

func TestUserService_List_SanitizesPasswords(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	svc := service.NewUserService(mockUserRepo)
	ctx := context.Background()

	role := domain.RoleDeveloper
	active := true
	filter := repository.UserFilter{Role: &role, IsActive: &active}
	mockUserRepo.On("List", ctx, filter).Return([]domain.User{
		{ID: 2, Username: "dev1", Password: "hashed-secret", Role: domain.RoleDeveloper},
	}, nil).Once()

	users, err := svc.List(ctx, adminPrincipal, filter)

	assert.NoError(t, err)
	require.Len(t, users, 1)
	assert.Empty(t, users[0].Password, "返回的用户不应携带密码哈希")
}

func TestUserService_Create_AdminMayMintAdmin(t *testing.T) {
	// 管理端创建不受公开注册的角色限制
	mockUserRepo := new(mocks.UserRepository)
	svc := service.NewUserService(mockUserRepo)
	ctx := context.Background()

	mockUserRepo.On("Save", ctx, mock.MatchedBy(func(user *domain.User) bool {
		return user.Role == domain.RoleAdmin && user.IsActive
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*domain.User).ID = 12
	}).Return(nil).Once()

	user, err := svc.Create(ctx, adminPrincipal, service.CreateUserInput{
		Username:  "admin2",
		Password:  "password123",
		Email:     "admin2@example.com",
		FirstName: "Second",
		LastName:  "Admin",
		Role:      domain.RoleAdmin,
	})

	assert.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, uint(12), user.ID)
	assert.Empty(t, user.Password)
}

func TestUserService_Update_DeactivateUser(t *testing.T) {
	// Arrange: 管理员停用一个开发者
	mockUserRepo := new(mocks.UserRepository)
	svc := service.NewUserService(mockUserRepo)
	ctx := context.Background()

	existing := &domain.User{ID: 2, Username: "dev1", Role: domain.RoleDeveloper, IsActive: true}
	mockUserRepo.On("FindByID", ctx, uint(2)).Return(existing, nil).Once()
	mockUserRepo.On("Save", ctx, mock.MatchedBy(func(user *domain.User) bool {
		assert.False(t, user.IsActive)
		assert.Equal(t, "dev1", user.Username, "用户名不可变更")
		return true
	})).Return(nil).Once()

	inactive := false
	user, err := svc.Update(ctx, adminPrincipal, 2, service.UpdateUserInput{IsActive: &inactive})

	// Assert: 软停用，不物理删除
	assert.NoError(t, err)
	require.NotNil(t, user)
	assert.False(t, user.IsActive)
	mockUserRepo.AssertExpectations(t)
}

func TestUserService_Update_UnknownUser(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	svc := service.NewUserService(mockUserRepo)
	ctx := context.Background()

	mockUserRepo.On("FindByID", ctx, uint(404)).
		Return(nil, repository.ErrUserNotFound).Once()

	newRole := domain.RoleTester
	user, err := svc.Update(ctx, adminPrincipal, 404, service.UpdateUserInput{Role: &newRole})

	assert.Nil(t, user)
	assert.ErrorIs(t, err, service.ErrUserNotFound)
}

func TestUserService_Update_InvalidRole(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	svc := service.NewUserService(mockUserRepo)
	ctx := context.Background()

	existing := &domain.User{ID: 2, Username: "dev1", Role: domain.RoleDeveloper, IsActive: true}
	mockUserRepo.On("FindByID", ctx, uint(2)).Return(existing, nil).Once()

	bogus := domain.Role("superuser")
	user, err := svc.Update(ctx, adminPrincipal, 2, service.UpdateUserInput{Role: &bogus})

	assert.Nil(t, user)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "role", verr.Fields[0].Field)
	mockUserRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}
