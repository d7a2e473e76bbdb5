package repository

import (
	"github.com/agnosto/autoposter/core"
	"github.com/agnosto/autoposter/db/models"
	"gorm.io/gorm"
)

// ConfigRepository holds the single active ScheduleConfig.
type ConfigRepository interface {
	Get() (*core.ScheduleConfig, error)
	Save(cfg *core.ScheduleConfig) error
}

type GormConfigRepository struct {
	db *gorm.DB
}

func NewConfigRepository(db *gorm.DB) ConfigRepository {
	return &GormConfigRepository{db: db}
}

func (r *GormConfigRepository) Get() (*core.ScheduleConfig, error) {
	var row models.ScheduleConfig
	if err := r.db.Where("id = ?", models.ActiveConfigID).First(&row).Error; err != nil {
		return nil, dbError(err, "get schedule config")
	}
	return row.ToDomain()
}

// Save replaces the active config wholesale.
func (r *GormConfigRepository) Save(cfg *core.ScheduleConfig) error {
	row := models.ScheduleConfigFromDomain(cfg)
	return dbError(r.db.Save(&row).Error, "save schedule config")
}
