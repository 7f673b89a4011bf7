package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"wall/db"
	"wall/models"

	"golang.org/x/crypto/argon2"
	"gorm.io/gorm"
)

type UserService struct{}

func NewUserService() *UserService {
	return &UserService{}
}

// Register создает пользователя с ролью. Пароль хешируется argon2id,
// соль и хеш хранятся вместе через разделитель.
func (us *UserService) Register(ctx context.Context, nickname, password, firstName, lastName string, role models.Role) (*models.User, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" || password == "" {
		return nil, fmt.Errorf("%w: nickname and password are required", ErrValidation)
	}
	if role == "" {
		role = models.ROLE_STUDENT
	}

	var alreadyExists int64
	err := db.GetReadOnlyDB(ctx).Model(&models.User{}).Where("nickname = ?", nickname).Count(&alreadyExists).Error
	if err != nil {
		return nil, fmt.Errorf("error checking user: %w", err)
	}
	if alreadyExists > 0 {
		return nil, fmt.Errorf("%w: user already exists", ErrValidation)
	}

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	hash := argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)

	user := &models.User{
		Nickname:  nickname,
		FirstName: firstName,
		LastName:  lastName,
		Password:  hex.EncodeToString(salt) + "$" + hex.EncodeToString(hash),
		Role:      role,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := db.GetWriteDB(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// Login проверяет пароль и выдает bearer токен
func (us *UserService) Login(ctx context.Context, nickname, password string) (string, *models.User, error) {
	var user models.User
	err := db.GetReadOnlyDB(ctx).Where("nickname = ?", nickname).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil, fmt.Errorf("%w: unknown user", ErrAuth)
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to load user: %w", err)
	}

	parts := strings.SplitN(user.Password, "$", 2)
	if len(parts) != 2 {
		return "", nil, fmt.Errorf("%w: corrupt password record", ErrAuth)
	}
	salt, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", nil, fmt.Errorf("%w: corrupt password record", ErrAuth)
	}
	hash := argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)
	if hex.EncodeToString(hash) != parts[1] {
		return "", nil, fmt.Errorf("%w: wrong password", ErrAuth)
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", nil, err
	}
	token := hex.EncodeToString(tokenBytes)

	record := &models.UserTokens{UserID: user.ID, Token: token}
	if err := db.GetWriteDB(ctx).Create(record).Error; err != nil {
		return "", nil, fmt.Errorf("failed to store token: %w", err)
	}
	return token, &user, nil
}

// Logout отзывает токен
func (us *UserService) Logout(ctx context.Context, token string) error {
	return db.GetWriteDB(ctx).Where("token = ?", token).Delete(&models.UserTokens{}).Error
}

// ValidateToken возвращает пользователя по bearer токену
func (us *UserService) ValidateToken(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrAuth)
	}

	var record models.UserTokens
	err := db.GetReadOnlyDB(ctx).Where("token = ?", token).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: invalid token", ErrAuth)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check token: %w", err)
	}

	var user models.User
	if err := db.GetReadOnlyDB(ctx).First(&user, record.UserID).Error; err != nil {
		return nil, fmt.Errorf("%w: token owner missing", ErrAuth)
	}
	return &user, nil
}
