package repository

import (
	"github.com/agnosto/autoposter/core"
	"github.com/agnosto/autoposter/db/models"
	"gorm.io/gorm"
)

// TemplateRepository defines the interface for template operations
type TemplateRepository interface {
	Create(tmpl *core.Template) error
	Get(key string) (*core.Template, error)
	Save(tmpl *core.Template) error
	Delete(key string) (bool, error)
	List(enabledOnly bool) ([]core.Template, error)
	Count() (int64, error)
}

// GormTemplateRepository implements TemplateRepository using GORM
type GormTemplateRepository struct {
	db *gorm.DB
}

// NewTemplateRepository creates a new template repository
func NewTemplateRepository(db *gorm.DB) TemplateRepository {
	return &GormTemplateRepository{db: db}
}

func (r *GormTemplateRepository) Create(tmpl *core.Template) error {
	row := models.TemplateFromDomain(tmpl)
	return dbError(r.db.Create(&row).Error, "create template")
}

func (r *GormTemplateRepository) Get(key string) (*core.Template, error) {
	var row models.Template
	if err := r.db.Where("template_key = ?", key).First(&row).Error; err != nil {
		return nil, dbError(err, "get template "+key)
	}
	return row.ToDomain()
}

// Save overwrites an existing template; it does not create one.
func (r *GormTemplateRepository) Save(tmpl *core.Template) error {
	row := models.TemplateFromDomain(tmpl)
	res := r.db.Model(&models.Template{}).Where("template_key = ?", tmpl.Key).
		Select("*").Omit("created_at").
		Updates(&row)
	if res.Error != nil {
		return dbError(res.Error, "save template")
	}
	if res.RowsAffected == 0 {
		return dbError(gorm.ErrRecordNotFound, "save template "+tmpl.Key)
	}
	return nil
}

func (r *GormTemplateRepository) Delete(key string) (bool, error) {
	res := r.db.Where("template_key = ?", key).Delete(&models.Template{})
	if res.Error != nil {
		return false, dbError(res.Error, "delete template")
	}
	return res.RowsAffected > 0, nil
}

// List returns templates ordered by key.
func (r *GormTemplateRepository) List(enabledOnly bool) ([]core.Template, error) {
	q := r.db.Model(&models.Template{})
	if enabledOnly {
		q = q.Where("enabled = ?", true)
	}
	var rows []models.Template
	if err := q.Order("template_key").Find(&rows).Error; err != nil {
		return nil, dbError(err, "list templates")
	}
	out := make([]core.Template, 0, len(rows))
	for i := range rows {
		t, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, nil
}

func (r *GormTemplateRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Template{}).Count(&count).Error
	return count, dbError(err, "count templates")
}
