package schedule

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/klinik/klinik/internal/platform/apperror"
	"github.com/klinik/klinik/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/schedules", h.List)
	api.POST("/schedules", h.Create)
	api.GET("/schedules/:id", h.Get)
	api.PUT("/schedules/:id", h.Update)
	api.DELETE("/schedules/:id", h.Delete)
}

type scheduleRequest struct {
	DoctorID  uuid.UUID `json:"doctor_id"`
	Date      string    `json:"date"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	Available *bool     `json:"available"`
}

func (r scheduleRequest) toModel() (*Schedule, error) {
	date, err := time.Parse("2006-01-02", r.Date)
	if err != nil {
		return nil, apperror.Validation("date must be YYYY-MM-DD")
	}
	s := &Schedule{
		DoctorID:  r.DoctorID,
		Date:      date,
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
		Available: true,
	}
	if r.Available != nil {
		s.Available = *r.Available
	}
	return s, nil
}

func (h *Handler) Create(c echo.Context) error {
	var req scheduleRequest
	if err := c.Bind(&req); err != nil {
		return apperror.Validation("invalid request body")
	}
	s, err := req.toModel()
	if err != nil {
		return err
	}
	if err := h.svc.Create(c.Request().Context(), s); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{"data": s})
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	s, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"data": s})
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	var f Filter
	if v := c.QueryParam("doctor_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return apperror.Validation("invalid doctor_id")
		}
		f.DoctorID = &id
	}
	if v := c.QueryParam("date"); v != "" {
		d, err := time.Parse("2006-01-02", v)
		if err != nil {
			return apperror.Validation("date must be YYYY-MM-DD")
		}
		f.Date = &d
	}
	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	var req scheduleRequest
	if err := c.Bind(&req); err != nil {
		return apperror.Validation("invalid request body")
	}
	s, err := req.toModel()
	if err != nil {
		return err
	}
	s.ID = id
	if err := h.svc.Update(c.Request().Context(), s); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"data": s})
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
