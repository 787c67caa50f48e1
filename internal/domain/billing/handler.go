package billing

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
	api.GET("/services", h.ListServices)
	api.POST("/services", h.CreateService)
	api.GET("/services/:id", h.GetService)
	api.PUT("/services/:id", h.UpdateService)
	api.DELETE("/services/:id", h.DeleteService)

	api.GET("/invoices", h.ListInvoices)
	api.POST("/invoices", h.CreateInvoice)
	api.GET("/invoices/:id", h.GetInvoice)
	api.PUT("/invoices/:id", h.UpdateInvoice)
	api.POST("/invoices/:id/cancel", h.CancelInvoice)
	api.GET("/invoices/:id/payments", h.ListPayments)
	api.POST("/invoices/:id/payments", h.AddPayment)
}

func (h *Handler) CreateService(c echo.Context) error {
	var item ServiceItem
	if err := c.Bind(&item); err != nil {
		return apperror.Validation("invalid request body")
	}
	if err := h.svc.CreateServiceItem(c.Request().Context(), &item); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{"data": item})
}

func (h *Handler) GetService(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	item, err := h.svc.GetServiceItem(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"data": item})
}

func (h *Handler) ListServices(c echo.Context) error {
	pg := pagination.FromContext(c)
	activeOnly := c.QueryParam("active") == "true"
	items, total, err := h.svc.ListServiceItems(c.Request().Context(), activeOnly, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateService(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	var item ServiceItem
	if err := c.Bind(&item); err != nil {
		return apperror.Validation("invalid request body")
	}
	item.ID = id
	if err := h.svc.UpdateServiceItem(c.Request().Context(), &item); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"data": item})
}

func (h *Handler) DeleteService(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	if err := h.svc.DeleteServiceItem(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) CreateInvoice(c echo.Context) error {
	var inv Invoice
	if err := c.Bind(&inv); err != nil {
		return apperror.Validation("invalid request body")
	}
	if err := h.svc.CreateInvoice(c.Request().Context(), &inv); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{"data": inv})
}

func (h *Handler) GetInvoice(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	inv, err := h.svc.GetInvoice(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"data": inv})
}

func (h *Handler) ListInvoices(c echo.Context) error {
	pg := pagination.FromContext(c)
	var f InvoiceFilter
	if v := c.QueryParam("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return apperror.Validation("invalid patient_id")
		}
		f.PatientID = &id
	}
	if v := c.QueryParam("status"); v != "" {
		st := InvoiceStatus(v)
		switch st {
		case StatusPending, StatusPartial, StatusPaid, StatusCancelled:
			f.Status = &st
		default:
			return apperror.Validation("unknown status %q", v)
		}
	}
	items, total, err := h.svc.ListInvoices(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateInvoice(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	var inv Invoice
	if err := c.Bind(&inv); err != nil {
		return apperror.Validation("invalid request body")
	}
	inv.ID = id
	if err := h.svc.UpdateInvoice(c.Request().Context(), &inv); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"data": inv})
}

func (h *Handler) CancelInvoice(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	inv, err := h.svc.CancelInvoice(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"data": inv})
}

func (h *Handler) AddPayment(c echo.Context) error {
	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	var p Payment
	if err := c.Bind(&p); err != nil {
		return apperror.Validation("invalid request body")
	}
	p.InvoiceID = invoiceID
	inv, err := h.svc.AddPayment(c.Request().Context(), &p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{"data": inv})
}

func (h *Handler) ListPayments(c echo.Context) error {
	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.Validation("invalid id")
	}
	items, err := h.svc.ListPayments(c.Request().Context(), invoiceID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"data": items})
}
