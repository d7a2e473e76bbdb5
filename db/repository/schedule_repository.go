package repository

import (
	"time"

	"github.com/agnosto/autoposter/core"
	"github.com/agnosto/autoposter/db/models"
	"gorm.io/gorm"
)

type ScheduleFilter struct {
	Status core.ScheduleStatus
	PostID string
	Limit  int
}

// ScheduleRepository defines the interface for schedule operations
type ScheduleRepository interface {
	Create(schedule *core.Schedule) error
	Get(id string) (*core.Schedule, error)
	Update(schedule *core.Schedule) error
	List(filter ScheduleFilter) ([]core.Schedule, error)
	Due(now time.Time) ([]core.Schedule, error)
	HasPending(postID string) (bool, error)
}

// GormScheduleRepository implements ScheduleRepository using GORM
type GormScheduleRepository struct {
	db *gorm.DB
}

// NewScheduleRepository creates a new schedule repository
func NewScheduleRepository(db *gorm.DB) ScheduleRepository {
	return &GormScheduleRepository{db: db}
}

func (r *GormScheduleRepository) Create(schedule *core.Schedule) error {
	schedule.Version = 1
	row := models.ScheduleFromDomain(schedule)
	return dbError(r.db.Create(&row).Error, "create schedule")
}

func (r *GormScheduleRepository) Get(id string) (*core.Schedule, error) {
	var row models.Schedule
	if err := r.db.Where("id = ?", id).First(&row).Error; err != nil {
		return nil, dbError(err, "get schedule "+id)
	}
	return row.ToDomain()
}

// Update is version checked like GormPostRepository.Update.
func (r *GormScheduleRepository) Update(schedule *core.Schedule) error {
	row := models.ScheduleFromDomain(schedule)
	row.Version = schedule.Version + 1
	res := r.db.Model(&models.Schedule{}).
		Where("id = ? AND version = ?", schedule.ID, schedule.Version).
		Select("*").
		Updates(&row)
	if res.Error != nil {
		return dbError(res.Error, "update schedule")
	}
	if res.RowsAffected == 0 {
		return versionMiss(r.db, &models.Schedule{}, schedule.ID, "update schedule")
	}
	schedule.Version = row.Version
	return nil
}

// List returns schedules with the latest scheduled time first.
func (r *GormScheduleRepository) List(filter ScheduleFilter) ([]core.Schedule, error) {
	q := r.db.Model(&models.Schedule{})
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	if filter.PostID != "" {
		q = q.Where("post_id = ?", filter.PostID)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	return r.find(q.Order("scheduled_time DESC").Order("id"), "list schedules")
}

// Due returns pending schedules whose time is at or before now, earliest first.
func (r *GormScheduleRepository) Due(now time.Time) ([]core.Schedule, error) {
	q := r.db.Model(&models.Schedule{}).
		Where("status = ? AND scheduled_time <= ?", string(core.ScheduleStatusPending), now.UTC()).
		Order("scheduled_time ASC").
		Order("created_at ASC").
		Order("id")
	return r.find(q, "due schedules")
}

func (r *GormScheduleRepository) HasPending(postID string) (bool, error) {
	var count int64
	err := r.db.Model(&models.Schedule{}).
		Where("post_id = ? AND status = ?", postID, string(core.ScheduleStatusPending)).
		Count(&count).Error
	return count > 0, dbError(err, "count pending schedules")
}

func (r *GormScheduleRepository) find(q *gorm.DB, op string) ([]core.Schedule, error) {
	var rows []models.Schedule
	if err := q.Find(&rows).Error; err != nil {
		return nil, dbError(err, op)
	}
	out := make([]core.Schedule, 0, len(rows))
	for i := range rows {
		s, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, nil
}
