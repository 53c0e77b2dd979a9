package invoice

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medichannel/channeling/internal/platform/apperr"
	"github.com/medichannel/channeling/internal/platform/auth"
	"github.com/medichannel/channeling/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	billing := api.Group("", auth.RequireRole(auth.RoleHospitalAdmin, auth.RoleCashier))
	billing.GET("/invoices", h.List)
	billing.GET("/invoices/:id", h.Get)
	billing.GET("/appointments/:id/invoice", h.GetForAppointment)
	billing.POST("/appointments/:id/invoice", h.Issue)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	out, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) GetForAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	out, err := h.svc.ForAppointment(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, out)
}

// Issue answers 201 when it creates the invoice and 200 when one exists.
func (h *Handler) Issue(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	out, created, err := h.svc.Issue(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	if created {
		return c.JSON(http.StatusCreated, out)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) List(c echo.Context) error {
	p := pagination.FromContext(c)
	f := Filter{PatientEmail: c.QueryParam("patient_email")}
	for param, dst := range map[string]**time.Time{"issued_from": &f.IssuedFrom, "issued_to": &f.IssuedTo} {
		if v := c.QueryParam(param); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid "+param+", expected RFC 3339")
			}
			*dst = &t
		}
	}
	items, total, err := h.svc.List(c.Request().Context(), f, p.Limit, p.Offset)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p, c.Request().URL))
}
