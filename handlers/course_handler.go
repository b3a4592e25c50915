package handlers

import (
	"time"

	"github.com/dancehub/marketplace/repository"
	"github.com/dancehub/marketplace/services"
	"github.com/gofiber/fiber/v2"
)

type CourseRequest struct {
	Title       string  `json:"title" validate:"required,max=255"`
	Description string  `json:"description,omitempty"`
	DanceStyle  string  `json:"danceStyle,omitempty" validate:"max=100"`
	Location    string  `json:"location,omitempty" validate:"max=255"`
	ImageURL    *string `json:"imageUrl,omitempty" validate:"omitempty,url"`
	Price       float64 `json:"price" validate:"gte=0"`
	Sessions    int     `json:"sessions" validate:"gte=0"`
	MaxStudents int     `json:"maxStudents" validate:"required,gte=1"`
}

type ScheduleRequest struct {
	StartTime time.Time `json:"startTime" validate:"required"`
	EndTime   time.Time `json:"endTime" validate:"required"`
	Location  string    `json:"location,omitempty"`
}

type BoostRequest struct {
	Days          int    `json:"days" validate:"required,gte=1,lte=90"`
	PaymentMethod string `json:"paymentMethod,omitempty" validate:"omitempty,oneof=twint card both"`
}

func (r CourseRequest) input() services.CourseInput {
	return services.CourseInput{
		Title:       r.Title,
		Description: r.Description,
		DanceStyle:  r.DanceStyle,
		Location:    r.Location,
		ImageURL:    r.ImageURL,
		Price:       r.Price,
		Sessions:    r.Sessions,
		MaxStudents: r.MaxStudents,
	}
}

func (h *Handler) ListCourses(c *fiber.Ctx) error {
	filter := repository.CourseFilter{DanceStyle: c.Query("danceStyle")}
	coachID, err := optionalID(c.Query("coachId"))
	if err != nil {
		return h.respondError(c, err)
	}
	filter.CoachID = coachID

	courses, err := h.Courses.List(c.UserContext(), filter)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(courses)
}

func (h *Handler) GetCourse(c *fiber.Ctx) error {
	courseID, err := paramID(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	course, err := h.Courses.Get(c.UserContext(), courseID)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(course)
}

func (h *Handler) CreateCourse(c *fiber.Ctx) error {
	coachID, err := currentUser(c)
	if err != nil {
		return h.respondError(c, err)
	}
	var req CourseRequest
	if err := bind(c, &req); err != nil {
		return h.respondError(c, err)
	}
	course, err := h.Courses.Create(c.UserContext(), coachID, req.input())
	if err != nil {
		return h.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(course)
}

func (h *Handler) UpdateCourse(c *fiber.Ctx) error {
	coachID, err := currentUser(c)
	if err != nil {
		return h.respondError(c, err)
	}
	courseID, err := paramID(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	var req CourseRequest
	if err := bind(c, &req); err != nil {
		return h.respondError(c, err)
	}
	course, err := h.Courses.Update(c.UserContext(), coachID, courseID, req.input())
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(course)
}

func (h *Handler) AddCourseSchedule(c *fiber.Ctx) error {
	coachID, err := currentUser(c)
	if err != nil {
		return h.respondError(c, err)
	}
	courseID, err := paramID(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	var req ScheduleRequest
	if err := bind(c, &req); err != nil {
		return h.respondError(c, err)
	}
	schedule, err := h.Courses.AddSchedule(c.UserContext(), coachID, courseID, services.ScheduleInput{
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Location:  req.Location,
	})
	if err != nil {
		return h.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(schedule)
}

func (h *Handler) BoostCourse(c *fiber.Ctx) error {
	coachID, err := currentUser(c)
	if err != nil {
		return h.respondError(c, err)
	}
	courseID, err := paramID(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	var req BoostRequest
	if err := bind(c, &req); err != nil {
		return h.respondError(c, err)
	}
	session, err := h.Courses.PurchaseBoost(c.UserContext(), coachID, courseID, req.Days, req.PaymentMethod)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(session)
}
