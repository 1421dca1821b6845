package services

import (
	"gorm.io/gorm"

	"github.com/mergewise/mergewise/internal/models"
	"github.com/mergewise/mergewise/pkg/response"
)

// ModelConfigService owns the stored model endpoint configurations.
type ModelConfigService struct {
	db *gorm.DB
}

func NewModelConfigService(db *gorm.DB) *ModelConfigService {
	return &ModelConfigService{db: db}
}

// List returns all configs with masked credentials.
func (s *ModelConfigService) List() ([]models.ModelConfig, error) {
	var configs []models.ModelConfig
	if err := s.db.Order("is_default DESC, id").Find(&configs).Error; err != nil {
		return nil, err
	}
	for i := range configs {
		configs[i].APIKeyMask = configs[i].MaskAPIKey()
	}
	return configs, nil
}

func (s *ModelConfigService) GetByID(id uint) (*models.ModelConfig, error) {
	var mc models.ModelConfig
	if err := s.db.First(&mc, id).Error; err != nil {
		return nil, err
	}
	mc.APIKeyMask = mc.MaskAPIKey()
	return &mc, nil
}

func (s *ModelConfigService) Create(mc *models.ModelConfig) error {
	if mc.Name == "" || mc.Model == "" {
		return response.NewBadRequest("name and model are required")
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if mc.IsDefault {
			if err := clearDefault(tx); err != nil {
				return err
			}
		}
		return tx.Create(mc).Error
	})
}

// Update applies a partial update; an empty api_key means "keep current".
func (s *ModelConfigService) Update(id uint, updates map[string]interface{}) (*models.ModelConfig, error) {
	mc, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	if key, ok := updates["api_key"].(string); ok && key == "" {
		delete(updates, "api_key")
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if isDefault, ok := updates["is_default"].(bool); ok && isDefault {
			if err := clearDefault(tx); err != nil {
				return err
			}
		}
		return tx.Model(mc).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

func (s *ModelConfigService) Delete(id uint) error {
	var count int64
	if err := s.db.Model(&models.Repository{}).Where("model_config_id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return response.NewConflict("model config is referenced by repositories")
	}

	res := s.db.Delete(&models.ModelConfig{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetDefault makes one config the global default.
func (s *ModelConfigService) SetDefault(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := clearDefault(tx); err != nil {
			return err
		}
		res := tx.Model(&models.ModelConfig{}).Where("id = ?", id).Update("is_default", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func clearDefault(tx *gorm.DB) error {
	return tx.Model(&models.ModelConfig{}).
		Where("is_default = ?", true).
		Update("is_default", false).Error
}
