package appointment

import (
	"net/http"

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
	// Patients book and read their own appointments; staff see everything.
	readGroup := api.Group("", auth.RequireRole(auth.AnyRole...))
	readGroup.POST("/appointments", h.Create)
	readGroup.GET("/appointments", h.List)
	readGroup.GET("/appointments/:id", h.Get)

	clinicalGroup := api.Group("", auth.RequireRole(auth.RoleHospitalAdmin, auth.RoleDoctor, auth.RoleNurse))
	clinicalGroup.PATCH("/appointments/:id/status", h.UpdateStatus)
	clinicalGroup.GET("/sessions/:id/queue", h.Queue)

	cashierGroup := api.Group("", auth.RequireRole(auth.RoleHospitalAdmin, auth.RoleCashier))
	cashierGroup.PATCH("/appointments/:id/payment", h.UpdatePaymentStatus)
}

func isPatientOnly(c echo.Context) bool {
	return !auth.HasRole(c.Request().Context(), auth.StaffRoles...)
}

// callerID is the signed-in user's id when the token subject is a UUID.
func callerID(c echo.Context) *uuid.UUID {
	id, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return nil
	}
	return &id
}

func (h *Handler) Create(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if isPatientOnly(c) {
		// patients book online for themselves at the doctor's fee
		in.BookingType = BookingOnline
		in.BookedByID = callerID(c)
		in.Status = ""
		in.PaymentStatus = ""
		in.ConsultationFee = nil
		in.TotalAmount = nil
		in.IsNewPatient = nil
		in.EstimatedWaitTime = nil
	}
	out, err := h.svc.CreateAppointment(c.Request().Context(), in)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	out, err := h.svc.GetAppointment(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	if isPatientOnly(c) {
		if me := callerID(c); me == nil || out.BookedByID == nil || *out.BookedByID != *me {
			return apperr.HTTPError(apperr.NotFound("appointment", id.String()))
		}
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) List(c echo.Context) error {
	p := pagination.FromContext(c)
	f := Filter{
		PatientEmail: c.QueryParam("patient_email"),
		Status:       Status(c.QueryParam("status")),
	}
	for param, dst := range map[string]**uuid.UUID{
		"session_id":   &f.SessionID,
		"booked_by_id": &f.BookedByID,
		"hospital_id":  &f.HospitalID,
	} {
		if v := c.QueryParam(param); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid "+param)
			}
			*dst = &id
		}
	}
	if isPatientOnly(c) {
		me := callerID(c)
		if me == nil {
			return echo.NewHTTPError(http.StatusForbidden, "patient token has no account id")
		}
		f.BookedByID = me
	}

	items, total, err := h.svc.ListAppointments(c.Request().Context(), f, p.Limit, p.Offset)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p, c.Request().URL))
}

type statusRequest struct {
	Status Status `json:"status"`
	Reason string `json:"reason"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Status == "" {
		return apperr.HTTPError(apperr.Invalid("status", "is required"))
	}
	out, err := h.svc.UpdateStatus(c.Request().Context(), id, req.Status, req.Reason)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, out)
}

type paymentRequest struct {
	PaymentStatus PaymentStatus `json:"payment_status"`
}

func (h *Handler) UpdatePaymentStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req paymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.PaymentStatus == "" {
		return apperr.HTTPError(apperr.Invalid("payment_status", "is required"))
	}
	out, err := h.svc.UpdatePaymentStatus(c.Request().Context(), id, req.PaymentStatus)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) Queue(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	out, err := h.svc.QueueForSession(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	if out == nil {
		out = []*Appointment{}
	}
	return c.JSON(http.StatusOK, map[string]any{"session_id": id, "queue": out})
}
