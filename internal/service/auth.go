package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/Avishi2511/bug-tracker/internal/domain"
	"github.com/Avishi2511/bug-tracker/internal/repository"
)

// AuthService 负责用户认证相关的业务逻辑。
type AuthService struct {
	userRepo  repository.UserRepository
	jwtSecret []byte
	jwtExpiry time.Duration
}

// NewAuthService 创建 AuthService 实例。
// jwtSecretKey 应从安全配置中获取。
// jwtExpiryHours 定义 token 过期的小时数。
func NewAuthService(userRepo repository.UserRepository, jwtSecretKey string, jwtExpiryHours int) (*AuthService, error) {
	if userRepo == nil {
		panic("UserRepository cannot be nil for AuthService")
	}
	if jwtSecretKey == "" {
		return nil, fmt.Errorf("JWT secret key cannot be empty")
	}
	if jwtExpiryHours <= 0 {
		jwtExpiryHours = 24 // 默认 24 小时
	}
	return &AuthService{
		userRepo:  userRepo,
		jwtSecret: []byte(jwtSecretKey),
		jwtExpiry: time.Duration(jwtExpiryHours) * time.Hour,
	}, nil
}

// RegisterInput 是公开注册的输入。
type RegisterInput struct {
	Username  string
	Password  string
	Email     string
	FirstName string
	LastName  string
	Role      domain.Role
}

// Register 处理用户注册。
// 公开注册只允许 tester 和 developer 角色；管理员账户由启动引导
// 或已有管理员通过用户管理创建。
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	logCtx := logrus.WithFields(logrus.Fields{"username": input.Username, "email": input.Email})

	// 1. 验证全部字段，一次性报告所有失败
	if err := validateRegistration(input); err != nil {
		logCtx.WithError(err).Warn("Registration failed: validation")
		return nil, err
	}

	// 2. 哈希密码
	hashedPassword, err := hashPassword(input.Password)
	if err != nil {
		logCtx.WithError(err).Error("Failed to hash password during registration")
		return nil, ErrInternalServer
	}

	// 3. 创建用户对象
	user := &domain.User{
		Username:  input.Username,
		Password:  hashedPassword,
		Email:     strings.TrimSpace(input.Email),
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
		Role:      input.Role,
		IsActive:  true,
	}

	// 4. 保存用户 (调用 Repository 接口)
	err = s.userRepo.Save(ctx, user)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			logCtx.WithError(err).Warn("Registration failed: Username or email already exists")
			return nil, ErrRegistrationFailed
		}
		logCtx.WithError(err).Error("Database error during user creation")
		return nil, ErrInternalServer
	}

	logCtx.WithField("user_id", user.ID).Info("User registered successfully")
	sanitized := user.Sanitized()
	return &sanitized, nil
}

// validateRegistration 校验注册输入的所有字段。
func validateRegistration(input RegisterInput) error {
	verr := &domain.ValidationError{}
	validateUsername(verr, input.Username)
	validatePassword(verr, input.Password)
	validateEmailField(verr, input.Email)
	validateName(verr, "firstName", input.FirstName)
	validateName(verr, "lastName", input.LastName)
	// 公开注册不允许铸造管理员
	if input.Role != domain.RoleTester && input.Role != domain.RoleDeveloper {
		verr.Add("role", "role must be either tester or developer")
	}
	return verr.ErrOrNil()
}

// 长度上限一律按字符数（rune）而非字节数计算，多字节输入不受惩罚。
func validateUsername(verr *domain.ValidationError, username string) {
	if utf8.RuneCountInString(username) < 3 || utf8.RuneCountInString(username) > 30 {
		verr.Add("username", "username must be between 3 and 30 characters")
	} else if !domain.ValidUsername(username) {
		verr.Add("username", "username can only contain letters, numbers, and underscores")
	}
}

func validatePassword(verr *domain.ValidationError, password string) {
	if utf8.RuneCountInString(password) < 6 {
		verr.Add("password", "password must be at least 6 characters long")
	}
}

func validateEmailField(verr *domain.ValidationError, email string) {
	if !domain.ValidEmail(strings.TrimSpace(email)) {
		verr.Add("email", "please provide a valid email")
	}
}

func validateName(verr *domain.ValidationError, field, value string) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		verr.Add(field, field+" is required")
	} else if utf8.RuneCountInString(trimmed) > 50 {
		verr.Add(field, field+" cannot exceed 50 characters")
	}
}

// Login 处理用户登录。成功时返回签名的 JWT 和脱敏后的用户。
func (s *AuthService) Login(ctx context.Context, username, password string) (string, *domain.User, error) {
	logCtx := logrus.WithField("username", username)

	// 1. 查找用户
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			logCtx.WithError(err).Warn("Login attempt failed: User not found")
		} else {
			logCtx.WithError(err).Warn("Login attempt failed: Error finding user")
		}
		return "", nil, ErrAuthenticationFailed // 对客户端统一返回认证失败
	}
	if user == nil {
		logCtx.Warn("Login attempt failed: User not found (repo returned nil user without error)")
		return "", nil, ErrAuthenticationFailed
	}

	// 2. 停用的账户不能登录
	if !user.IsActive {
		logCtx.Warn("Login attempt failed: Account is deactivated")
		return "", nil, ErrAccountDisabled
	}

	// 3. 验证密码
	if !checkPassword(password, user.Password) {
		logCtx.Warn("Login attempt failed: Invalid password")
		return "", nil, ErrAuthenticationFailed
	}

	// 4. 记录最近登录时间。写入失败不阻止登录，只记日志。
	now := time.Now()
	user.LastLogin = &now
	if err := s.userRepo.Save(ctx, user); err != nil {
		logCtx.WithError(err).Warn("Failed to update last login timestamp")
	}

	// 5. 生成 JWT Token
	token, err := s.generateJWT(user.ID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to generate JWT token during login")
		return "", nil, ErrInternalServer
	}

	logCtx.WithField("user_id", user.ID).Info("User logged in successfully")
	sanitized := user.Sanitized()
	return token, &sanitized, nil
}

// CurrentUser 根据令牌中的用户 ID 重新解析主体。
// 每次请求都从身份存储重新读取角色和激活标记，
// 绝不信任客户端缓存的角色声明。
func (s *AuthService) CurrentUser(ctx context.Context, userID uint) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrAuthenticationFailed
		}
		logrus.WithError(err).WithField("user_id", userID).Error("Failed to resolve current user")
		return nil, ErrInternalServer
	}
	if !user.IsActive {
		// 停用立即使已签发的令牌失效
		return nil, ErrAccountDisabled
	}
	return user, nil
}

// --- 私有辅助函数 ---

// hashPassword 使用 bcrypt 对密码进行哈希处理
func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to generate hash from password: %w", err)
	}
	return string(bytes), nil
}

// checkPassword 验证提供的密码是否与存储的哈希匹配
func checkPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// generateJWT 为指定用户 ID 生成 JWT Token。
// 令牌只携带用户 ID；角色在每次请求时由服务端重新解析。
func (s *AuthService) generateJWT(userID uint) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(s.jwtExpiry).Unix(),
		"iat":     time.Now().Unix(),
	})
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}
