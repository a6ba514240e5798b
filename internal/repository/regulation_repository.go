package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"workdocs-ai/internal/model"
)

type RegulationRepository struct {
	db *gorm.DB
}

func NewRegulationRepository(db *gorm.DB) *RegulationRepository {
	return &RegulationRepository{db: db}
}

func (r *RegulationRepository) List() ([]model.Regulation, error) {
	var regs []model.Regulation
	if err := r.db.Order("title ASC").Find(&regs).Error; err != nil {
		return nil, fmt.Errorf("list regulations failed: %w", err)
	}
	return regs, nil
}

// GetByVectorFileID is deliberately unscoped: regulations are public
// reference material and carry no owner.
func (r *RegulationRepository) GetByVectorFileID(vectorFileID string) (*model.Regulation, error) {
	var reg model.Regulation
	if err := r.db.Where("vector_file_id = ?", vectorFileID).First(&reg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get regulation by vector file failed: %w", err)
	}
	return &reg, nil
}
