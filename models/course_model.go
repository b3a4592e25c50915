package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Course struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	CoachID     uuid.UUID `gorm:"not null;index" json:"coachId"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	DanceStyle  string    `gorm:"size:100" json:"danceStyle"`
	Location    string    `gorm:"size:255" json:"location"`
	ImageURL    *string   `gorm:"size:255" json:"imageUrl,omitempty"`

	Price      float64 `gorm:"type:numeric(10,2);not null" json:"price"`
	Sessions   int     `gorm:"not null;default:1" json:"sessions"`
	TotalPrice float64 `gorm:"type:numeric(10,2);not null" json:"totalPrice"`

	MaxStudents     int `gorm:"not null;default:1" json:"maxStudents"`
	CurrentStudents int `gorm:"not null;default:0" json:"currentStudents"`

	IsBoosted    bool       `gorm:"default:false;index" json:"isBoosted"`
	BoostedUntil *time.Time `json:"boostedUntil,omitempty"`

	Coach     User             `gorm:"foreignkey:CoachID" json:"coach,omitempty"`
	Schedules []CourseSchedule `gorm:"foreignkey:CourseID" json:"schedules,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (c *Course) BeforeSave(tx *gorm.DB) error {
	if c.Sessions < 1 {
		c.Sessions = 1
	}
	c.TotalPrice = c.Price * float64(c.Sessions)
	return nil
}

func (c Course) IsFull() bool {
	return c.CurrentStudents >= c.MaxStudents
}

// CourseSchedule is one dated occurrence of a course.
type CourseSchedule struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	CourseID  uuid.UUID `gorm:"not null;index" json:"courseId"`
	StartTime time.Time `gorm:"not null" json:"startTime"`
	EndTime   time.Time `gorm:"not null" json:"endTime"`
	Location  string    `gorm:"size:255" json:"location"`

	Course Course `gorm:"foreignkey:CourseID" json:"-"`

	CreatedAt time.Time `json:"createdAt"`
}
