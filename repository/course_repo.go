package repository

import (
	"context"
	"time"

	"github.com/dancehub/marketplace/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CourseFilter struct {
	CoachID    *uuid.UUID
	DanceStyle string
}

type CourseRepository interface {
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Course, error)
	List(ctx context.Context, filter CourseFilter) ([]models.Course, error)
	CreateSchedule(ctx context.Context, schedule *models.CourseSchedule) error
	FindSchedule(ctx context.Context, id uuid.UUID) (*models.CourseSchedule, error)
	SetBoost(ctx context.Context, courseID uuid.UUID, until time.Time) error
	ClearExpiredBoosts(ctx context.Context, now time.Time) (int64, error)
}

type courseRepository struct {
	db *gorm.DB
}

func NewCourseRepository(db *gorm.DB) CourseRepository {
	return &courseRepository{db: db}
}

func (r *courseRepository) Create(ctx context.Context, course *models.Course) error {
	return translate(r.db.WithContext(ctx).Omit("Coach", "Schedules").Create(course).Error)
}

// Update saves editable fields only; CurrentStudents is owned by the
// booking flow and never overwritten here.
func (r *courseRepository) Update(ctx context.Context, course *models.Course) error {
	return translate(r.db.WithContext(ctx).Model(course).
		Select("Title", "Description", "DanceStyle", "Location", "ImageURL", "Price", "Sessions", "TotalPrice", "MaxStudents").
		Updates(course).Error)
}

func (r *courseRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	var course models.Course
	if err := r.db.WithContext(ctx).Preload("Coach").First(&course, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &course, nil
}

func (r *courseRepository) List(ctx context.Context, filter CourseFilter) ([]models.Course, error) {
	var courses []models.Course
	q := r.db.WithContext(ctx).Preload("Coach")
	if filter.CoachID != nil {
		q = q.Where("coach_id = ?", *filter.CoachID)
	}
	if filter.DanceStyle != "" {
		q = q.Where("dance_style = ?", filter.DanceStyle)
	}
	if err := q.Order("is_boosted DESC, created_at DESC").Find(&courses).Error; err != nil {
		return nil, err
	}
	return courses, nil
}

func (r *courseRepository) CreateSchedule(ctx context.Context, schedule *models.CourseSchedule) error {
	return translate(r.db.WithContext(ctx).Omit("Course").Create(schedule).Error)
}

func (r *courseRepository) FindSchedule(ctx context.Context, id uuid.UUID) (*models.CourseSchedule, error) {
	var schedule models.CourseSchedule
	if err := r.db.WithContext(ctx).Preload("Course.Coach").First(&schedule, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &schedule, nil
}

func (r *courseRepository) SetBoost(ctx context.Context, courseID uuid.UUID, until time.Time) error {
	return requireRow(r.db.WithContext(ctx).Model(&models.Course{}).
		Where("id = ?", courseID).
		Updates(map[string]interface{}{"is_boosted": true, "boosted_until": until}))
}

func (r *courseRepository) ClearExpiredBoosts(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Course{}).
		Where("is_boosted = ? AND boosted_until < ?", true, now).
		Updates(map[string]interface{}{"is_boosted": false, "boosted_until": nil})
	return result.RowsAffected, result.Error
}
