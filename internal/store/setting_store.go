package store

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/licensegate/backend/internal/models"
)

// GormSettingStore is the gorm/Postgres implementation of SettingStore
type GormSettingStore struct {
	db *gorm.DB
}

func NewGormSettingStore(db *gorm.DB) *GormSettingStore {
	return &GormSettingStore{db: db}
}

func (s *GormSettingStore) Value(key string) (string, error) {
	var setting models.Setting
	err := s.db.Where("key = ?", key).First(&setting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	return setting.Value, nil
}

func (s *GormSettingStore) Values(keys []string) (map[string]string, error) {
	var settings []models.Setting
	if err := s.db.Where("key IN ?", keys).Find(&settings).Error; err != nil {
		return nil, err
	}
	values := make(map[string]string, len(settings))
	for _, setting := range settings {
		values[setting.Key] = setting.Value
	}
	return values, nil
}

func (s *GormSettingStore) Upsert(key, value, valueType string) error {
	if valueType == "" {
		valueType = "string"
	}
	setting := models.Setting{Key: key, Value: value, ValueType: valueType}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "value_type", "updated_at"}),
	}).Create(&setting).Error
}

func (s *GormSettingStore) Delete(key string) error {
	return s.db.Where("key = ?", key).Delete(&models.Setting{}).Error
}

func (s *GormSettingStore) All() ([]models.Setting, error) {
	var settings []models.Setting
	err := s.db.Order("key").Find(&settings).Error
	return settings, err
}
