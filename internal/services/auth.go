package services

import (
	"errors"

	"gorm.io/gorm"

	"github.com/mergewise/mergewise/internal/models"
	"github.com/mergewise/mergewise/internal/utils"
	"github.com/mergewise/mergewise/pkg/logger"
	"github.com/mergewise/mergewise/pkg/response"
)

// AuthService handles login and account bootstrap.
type AuthService struct {
	db          *gorm.DB
	expireHours int
}

func NewAuthService(db *gorm.DB, expireHours int) *AuthService {
	return &AuthService{db: db, expireHours: expireHours}
}

// Login verifies credentials and returns a signed token with the user.
func (s *AuthService) Login(username, password string) (string, *models.User, error) {
	var user models.User
	if err := s.db.Where("username = ?", username).First(&user).Error; err != nil {
		return "", nil, response.NewUnauthorized("invalid username or password")
	}
	if !utils.CheckPassword(password, user.Password) {
		return "", nil, response.NewUnauthorized("invalid username or password")
	}

	token, err := utils.GenerateToken(user.ID, user.Username, user.Role, s.expireHours)
	if err != nil {
		return "", nil, err
	}
	return token, &user, nil
}

func (s *AuthService) GetByID(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// ChangePassword verifies the old password before storing the new hash.
func (s *AuthService) ChangePassword(userID uint, oldPassword, newPassword string) error {
	user, err := s.GetByID(userID)
	if err != nil {
		return err
	}
	if !utils.CheckPassword(oldPassword, user.Password) {
		return response.NewBadRequest("old password is incorrect")
	}
	if len(newPassword) < 8 {
		return response.NewBadRequest("password must be at least 8 characters")
	}

	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.db.Model(user).Update("password", hash).Error
}

// EnsureAdmin seeds the initial admin account on an empty install.
func (s *AuthService) EnsureAdmin() error {
	var existing models.User
	err := s.db.Where("username = ?", "admin").First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hash, err := utils.HashPassword("admin")
	if err != nil {
		return err
	}
	if err := s.db.Create(&models.User{Username: "admin", Password: hash, Role: "admin"}).Error; err != nil {
		return err
	}
	logger.Warnf("[Auth] created default admin account, change its password immediately")
	return nil
}
