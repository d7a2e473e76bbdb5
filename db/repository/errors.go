package repository

import (
	"errors"
	"fmt"

	"github.com/agnosto/autoposter/core"
	"gorm.io/gorm"
)

// dbError maps gorm failures onto the core error kinds.
func dbError(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	return fmt.Errorf("%s: %w: %v", op, core.ErrPersistence, err)
}

// versionMiss explains a versioned update that touched no row.
func versionMiss(db *gorm.DB, model any, id string, op string) error {
	var count int64
	if err := db.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return dbError(err, op)
	}
	if count == 0 {
		return fmt.Errorf("%s %s: %w", op, id, core.ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", op, id, core.ErrConflict)
}
