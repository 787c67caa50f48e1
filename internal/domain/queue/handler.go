package queue

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
	api.GET("/queue", h.List)
	api.POST("/queue", h.Create)
	api.GET("/queue/:id", h.Get)
	api.POST("/queue/:id/call", h.Call)
	api.POST("/queue/:id/start", h.Start)
	api.POST("/queue/:id/complete", h.Complete)
	api.POST("/queue/:id/cancel", h.Cancel)
	api.PUT("/queue/:id/status", h.SetStatus)

	api.POST("/queue/:id/vitals", h.RecordVitals)
	api.GET("/queue/:id/vitals", h.GetVitals)
	api.PUT("/queue/:id/vitals", h.UpdateVitals)
	api.DELETE("/queue/:id/vitals", h.DeleteVitals)
}

type createRequest struct {
	PatientID uuid.UUID `json:"patient_id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	VisitDate string    `json:"visit_date"`
	Priority  Priority  `json:"priority"`
	Complaint *string   `json:"complaint"`
}

func (h *Handler) Create(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return apperror.Validation("invalid request body")
	}
	visitDate, err := time.Parse("2006-01-02", req.VisitDate)
	if err != nil {
		return apperror.Validation("visit_date must be YYYY-MM-DD")
	}
	e := &Entry{
		PatientID: req.PatientID,
		DoctorID:  req.DoctorID,
		VisitDate: visitDate,
		Priority:  req.Priority,
		Complaint: req.Complaint,
	}
	if err := h.svc.Create(c.Request().Context(), e); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{"data": e})
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	e, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"data": e})
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
	if v := c.QueryParam("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return apperror.Validation("invalid patient_id")
		}
		f.PatientID = &id
	}
	if v := c.QueryParam("visit_date"); v != "" {
		d, err := time.Parse("2006-01-02", v)
		if err != nil {
			return apperror.Validation("visit_date must be YYYY-MM-DD")
		}
		f.VisitDate = &d
	}
	if v := c.QueryParam("status"); v != "" {
		st := Status(v)
		if !st.Valid() {
			return apperror.Validation("unknown status %q", v)
		}
		f.Status = &st
	}
	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) transition(c echo.Context, fn func(ctx echo.Context, id uuid.UUID) (*Entry, error)) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	e, err := fn(c, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"data": e})
}

func (h *Handler) Call(c echo.Context) error {
	return h.transition(c, func(c echo.Context, id uuid.UUID) (*Entry, error) {
		return h.svc.Call(c.Request().Context(), id)
	})
}

func (h *Handler) Start(c echo.Context) error {
	return h.transition(c, func(c echo.Context, id uuid.UUID) (*Entry, error) {
		return h.svc.Start(c.Request().Context(), id)
	})
}

func (h *Handler) Complete(c echo.Context) error {
	return h.transition(c, func(c echo.Context, id uuid.UUID) (*Entry, error) {
		return h.svc.Complete(c.Request().Context(), id)
	})
}

func (h *Handler) Cancel(c echo.Context) error {
	return h.transition(c, func(c echo.Context, id uuid.UUID) (*Entry, error) {
		return h.svc.Cancel(c.Request().Context(), id)
	})
}

func (h *Handler) SetStatus(c echo.Context) error {
	var req struct {
		Status Status `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return apperror.Validation("invalid request body")
	}
	return h.transition(c, func(c echo.Context, id uuid.UUID) (*Entry, error) {
		return h.svc.SetStatus(c.Request().Context(), id, req.Status)
	})
}

func (h *Handler) RecordVitals(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	var v VitalSign
	if err := c.Bind(&v); err != nil {
		return apperror.Validation("invalid request body")
	}
	v.QueueEntryID = id
	if err := h.svc.RecordVitals(c.Request().Context(), &v); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{"data": v})
}

func (h *Handler) GetVitals(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	v, err := h.svc.GetVitals(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"data": v})
}

func (h *Handler) UpdateVitals(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	var v VitalSign
	if err := c.Bind(&v); err != nil {
		return apperror.Validation("invalid request body")
	}
	v.QueueEntryID = id
	if err := h.svc.UpdateVitals(c.Request().Context(), &v); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"data": v})
}

func (h *Handler) DeleteVitals(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	if err := h.svc.DeleteVitals(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
