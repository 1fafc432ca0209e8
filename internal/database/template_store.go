package database

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/codyseavey/tcg-inventory/internal/models"
)

var ErrAlreadyImported = errors.New("template already imported")

type TemplateStore struct {
	db *gorm.DB
}

func NewTemplateStore(db *gorm.DB) *TemplateStore {
	return &TemplateStore{db: db}
}

// Create stores tmpl and its entries. When a template with the same hash already
// exists, that template is returned instead and created is false. A public tmpl
// publishes an existing private one.
func (s *TemplateStore) Create(ctx context.Context, tmpl *models.CollectionTemplate) (stored *models.CollectionTemplate, created bool, err error) {
	if existing, err := s.FindByHash(ctx, tmpl.TemplateHash); err == nil {
		if tmpl.IsPublic && !existing.IsPublic {
			if err := s.db.WithContext(ctx).Model(existing).Update("is_public", true).Error; err != nil {
				return nil, false, err
			}
		}
		return existing, false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	tmpl.EntryCount = len(tmpl.Entries)
	err = s.db.WithContext(ctx).Create(tmpl).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		existing, findErr := s.FindByHash(ctx, tmpl.TemplateHash)
		return existing, false, findErr
	}
	if err != nil {
		return nil, false, err
	}
	return tmpl, true, nil
}

func (s *TemplateStore) FindByHash(ctx context.Context, hash string) (*models.CollectionTemplate, error) {
	var tmpl models.CollectionTemplate
	err := s.db.WithContext(ctx).Where("template_hash = ?", hash).First(&tmpl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &tmpl, err
}

// GetVisible loads a template with its entries if ownerID created it or it is public
func (s *TemplateStore) GetVisible(ctx context.Context, ownerID string, id uint) (*models.CollectionTemplate, error) {
	var tmpl models.CollectionTemplate
	err := s.db.WithContext(ctx).
		Preload("Entries", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("created_by = ? OR is_public = ?", ownerID, true).
		First(&tmpl, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tmpl, nil
}

// ListVisible returns ownerID's templates and every public template, newest first
func (s *TemplateStore) ListVisible(ctx context.Context, ownerID string) ([]models.CollectionTemplate, error) {
	templates := []models.CollectionTemplate{}
	err := s.db.WithContext(ctx).
		Where("created_by = ? OR is_public = ?", ownerID, true).
		Order("created_at DESC").
		Order("id DESC").
		Find(&templates).Error
	return templates, err
}

// RecordInstance marks tmpl as imported by ownerID. A second import returns ErrAlreadyImported.
func (s *TemplateStore) RecordInstance(ctx context.Context, ownerID string, tmpl *models.CollectionTemplate) (*models.TemplateInstance, error) {
	instance := &models.TemplateInstance{
		OwnerID:      ownerID,
		TemplateID:   tmpl.ID,
		InstanceName: tmpl.Name,
		ImportedAt:   time.Now(),
	}
	err := s.db.WithContext(ctx).Create(instance).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, ErrAlreadyImported
	}
	if err != nil {
		return nil, err
	}
	return instance, nil
}

// DeleteInstance undoes RecordInstance, used when copying the entries fails
func (s *TemplateStore) DeleteInstance(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Delete(&models.TemplateInstance{}, id).Error
}
