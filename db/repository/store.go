package repository

import (
	"errors"
	"fmt"

	"github.com/agnosto/autoposter/core"
	"gorm.io/gorm"
)

// Store bundles the repositories that share one connection or transaction.
type Store struct {
	db        *gorm.DB
	Posts     PostRepository
	Schedules ScheduleRepository
	Templates TemplateRepository
	Config    ConfigRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:        db,
		Posts:     NewPostRepository(db),
		Schedules: NewScheduleRepository(db),
		Templates: NewTemplateRepository(db),
		Config:    NewConfigRepository(db),
	}
}

// Atomic runs fn inside one SQL transaction. Everything fn does through tx
// commits together or not at all. fn must not use the outer Store.
func (s *Store) Atomic(fn func(tx *Store) error) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
	if err == nil || isDomainError(err) {
		return err
	}
	return fmt.Errorf("transaction: %w: %v", core.ErrPersistence, err)
}

func isDomainError(err error) bool {
	for _, kind := range []error{core.ErrNotFound, core.ErrValidation, core.ErrPublish, core.ErrPersistence, core.ErrConflict} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
