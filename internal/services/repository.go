package services

import (
	"errors"

	"gorm.io/gorm"

	"github.com/mergewise/mergewise/internal/models"
	"github.com/mergewise/mergewise/internal/vcs"
	"github.com/mergewise/mergewise/pkg/response"
)

// RepositoryService owns the watched-repository CRUD surface.
type RepositoryService struct {
	db *gorm.DB
}

func NewRepositoryService(db *gorm.DB) *RepositoryService {
	return &RepositoryService{db: db}
}

type RepositoryListParams struct {
	Page     int
	PageSize int
	Keyword  string
	Active   *bool
}

func (s *RepositoryService) List(params RepositoryListParams) ([]models.Repository, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 100 {
		params.PageSize = 20
	}

	query := s.db.Model(&models.Repository{})
	if params.Keyword != "" {
		query = query.Where("name LIKE ? OR url LIKE ?", "%"+params.Keyword+"%", "%"+params.Keyword+"%")
	}
	if params.Active != nil {
		query = query.Where("active = ?", *params.Active)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var repos []models.Repository
	offset := (params.Page - 1) * params.PageSize
	err := query.Order("id DESC").Offset(offset).Limit(params.PageSize).Find(&repos).Error
	return repos, total, err
}

func (s *RepositoryService) GetByID(id uint) (*models.Repository, error) {
	var repo models.Repository
	if err := s.db.First(&repo, id).Error; err != nil {
		return nil, err
	}
	return &repo, nil
}

func (s *RepositoryService) Create(repo *models.Repository) error {
	if _, err := vcs.ParseProjectURL(repo.URL); err != nil {
		return response.NewBadRequest(err.Error())
	}
	if repo.GitLabProjectID <= 0 {
		return response.NewBadRequest("gitlab_project_id is required")
	}

	var existing models.Repository
	err := s.db.Where("gitlab_project_id = ?", repo.GitLabProjectID).First(&existing).Error
	if err == nil {
		return response.NewConflict("repository with this project id already exists")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if repo.PromptMode == "" {
		repo.PromptMode = models.PromptModeExtend
	}
	return s.db.Create(repo).Error
}

// Update applies a partial update. The credential fields are only
// touched when a non-empty value is supplied.
func (s *RepositoryService) Update(id uint, updates map[string]interface{}) (*models.Repository, error) {
	repo, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	if u, ok := updates["url"].(string); ok {
		if _, err := vcs.ParseProjectURL(u); err != nil {
			return nil, response.NewBadRequest(err.Error())
		}
	}
	if mode, ok := updates["prompt_mode"].(string); ok {
		if mode != models.PromptModeExtend && mode != models.PromptModeReplace {
			return nil, response.NewBadRequest("prompt_mode must be extend or replace")
		}
	}
	if token, ok := updates["access_token"].(string); ok && token == "" {
		delete(updates, "access_token")
	}
	if secret, ok := updates["webhook_secret"].(string); ok && secret == "" {
		delete(updates, "webhook_secret")
	}

	if err := s.db.Model(repo).Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

func (s *RepositoryService) Delete(id uint) error {
	res := s.db.Delete(&models.Repository{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
