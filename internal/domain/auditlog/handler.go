package auditlog

import (
	"net/http"
	"time"

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
	adminGroup := api.Group("", auth.RequireRole(auth.RoleHospitalAdmin))
	adminGroup.GET("/audit-logs", h.List)
}

func (h *Handler) List(c echo.Context) error {
	p := pagination.FromContext(c)
	f := Filter{
		Entity:  c.QueryParam("entity"),
		ActorID: c.QueryParam("actor_id"),
		Action:  c.QueryParam("action"),
	}
	if v := c.QueryParam("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid since, expected RFC 3339")
		}
		f.Since = &t
	}
	items, total, err := h.svc.List(c.Request().Context(), f, p.Limit, p.Offset)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p, c.Request().URL))
}
