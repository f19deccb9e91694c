package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/tdhoang/Talaria/internal/model"
)

// ErrDuplicateResult means a submission with the same checksum was already
// stored; redelivery after a lost acknowledgement lands here.
var ErrDuplicateResult = errors.New("duplicate test result")

type ResultRepository interface {
	// Save persists a synced test result. On a checksum collision it returns
	// ErrDuplicateResult; callers can then fetch the existing row.
	Save(result *model.TestResult) error
	FindByChecksum(checksum string) (*model.TestResult, error)
	FindByID(id int64) (*model.TestResult, error)
}

type resultRepository struct {
	db *gorm.DB
}

func NewResultRepository(db *gorm.DB) ResultRepository {
	return &resultRepository{db: db}
}

func (r *resultRepository) Save(result *model.TestResult) error {
	if err := r.db.Create(result).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateResult
		}
		return err
	}
	return nil
}

func (r *resultRepository) FindByChecksum(checksum string) (*model.TestResult, error) {
	var result model.TestResult
	if err := r.db.Where("checksum = ?", checksum).First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &result, nil
}

func (r *resultRepository) FindByID(id int64) (*model.TestResult, error) {
	var result model.TestResult
	if err := r.db.First(&result, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &result, nil
}
