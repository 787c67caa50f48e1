package medrecord

import (
	"net/http"

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
	api.GET("/medical-records", h.List)
	api.POST("/medical-records", h.Create)
	api.GET("/medical-records/:id", h.Get)
	api.PUT("/medical-records/:id", h.Update)

	api.GET("/medical-records/:id/addendums", h.ListAddendums)
	api.POST("/medical-records/:id/addendums", h.AddAddendum)
	api.PUT("/addendums/:id", h.UpdateAddendum)
	api.DELETE("/addendums/:id", h.DeleteAddendum)
}

func (h *Handler) Create(c echo.Context) error {
	var rec Record
	if err := c.Bind(&rec); err != nil {
		return apperror.Validation("invalid request body")
	}
	if err := h.svc.Create(c.Request().Context(), &rec); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{"data": rec})
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	rec, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rec})
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	var f Filter
	if v := c.QueryParam("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return apperror.Validation("invalid patient_id")
		}
		f.PatientID = &id
	}
	if v := c.QueryParam("doctor_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return apperror.Validation("invalid doctor_id")
		}
		f.DoctorID = &id
	}
	switch c.QueryParam("locked") {
	case "":
	case "true":
		t := true
		f.Locked = &t
	case "false":
		fv := false
		f.Locked = &fv
	default:
		return apperror.Validation("locked must be true or false")
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
	var rec Record
	if err := c.Bind(&rec); err != nil {
		return apperror.Validation("invalid request body")
	}
	rec.ID = id
	if err := h.svc.Update(c.Request().Context(), &rec); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rec})
}

func (h *Handler) AddAddendum(c echo.Context) error {
	recordID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	var a Addendum
	if err := c.Bind(&a); err != nil {
		return apperror.Validation("invalid request body")
	}
	a.RecordID = recordID
	if err := h.svc.AddAddendum(c.Request().Context(), &a); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{"data": a})
}

func (h *Handler) ListAddendums(c echo.Context) error {
	recordID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	items, err := h.svc.ListAddendums(c.Request().Context(), recordID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"data": items})
}

func (h *Handler) UpdateAddendum(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	var a Addendum
	if err := c.Bind(&a); err != nil {
		return apperror.Validation("invalid request body")
	}
	a.ID = id
	if err := h.svc.UpdateAddendum(c.Request().Context(), &a); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"data": a})
}

func (h *Handler) DeleteAddendum(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	if err := h.svc.DeleteAddendum(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
