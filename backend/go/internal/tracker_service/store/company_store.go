package store

import (
	"JobPilot/backend/go/pkg/models"
	"context"
	"errors"

	"gorm.io/gorm"
)

// ErrCompanyNotFound is returned when no company row matches the given name.
var ErrCompanyNotFound = errors.New("company not found")

// CompanyStore defines the interface for company persistence.
type CompanyStore interface {
	List(ctx context.Context) ([]models.Company, error)
	GetByName(ctx context.Context, name string) (*models.Company, error)
	Create(ctx context.Context, company *models.Company) error
	Update(ctx context.Context, company *models.Company) error
}

// GormCompanyStore is an implementation of CompanyStore backed by MySQL via GORM.
type GormCompanyStore struct {
	db *gorm.DB
}

// NewGormCompanyStore creates a new GormCompanyStore.
func NewGormCompanyStore(db *gorm.DB) *GormCompanyStore {
	return &GormCompanyStore{db: db}
}

// List returns all companies ordered by name.
func (s *GormCompanyStore) List(ctx context.Context) ([]models.Company, error) {
	var companies []models.Company
	if err := s.db.WithContext(ctx).Order("name asc").Find(&companies).Error; err != nil {
		return nil, err
	}
	return companies, nil
}

// GetByName looks a company up by its unique name.
func (s *GormCompanyStore) GetByName(ctx context.Context, name string) (*models.Company, error) {
	var company models.Company
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&company).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCompanyNotFound
		}
		return nil, err
	}
	return &company, nil
}

// Create inserts a new company row.
func (s *GormCompanyStore) Create(ctx context.Context, company *models.Company) error {
	return s.db.WithContext(ctx).Create(company).Error
}

// Update saves the full company row.
func (s *GormCompanyStore) Update(ctx context.Context, company *models.Company) error {
	return s.db.WithContext(ctx).Save(company).Error
}
