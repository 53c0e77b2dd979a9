package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Staff and patient roles carried in the token's roles claim.
const (
	RoleAdmin         = "admin"
	RoleHospitalAdmin = "hospital_admin"
	RoleDoctor        = "doctor"
	RoleNurse         = "nurse"
	RoleCashier       = "cashier"
	RolePatient       = "patient"
)

// Front-desk roles allowed to book and manage appointments on behalf of patients.
var StaffRoles = []string{RoleHospitalAdmin, RoleDoctor, RoleNurse, RoleCashier}

// AnyRole admits every signed-in caller.
var AnyRole = []string{RoleHospitalAdmin, RoleDoctor, RoleNurse, RoleCashier, RolePatient}

// HasRole reports whether the caller holds any of roles. Admin holds every role.
func HasRole(ctx context.Context, roles ...string) bool {
	for _, has := range RolesFromContext(ctx) {
		if has == RoleAdmin {
			return true
		}
		for _, required := range roles {
			if has == required {
				return true
			}
		}
	}
	return false
}

// RequireRole rejects callers holding none of roles with 403.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if HasRole(c.Request().Context(), roles...) {
				return next(c)
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}
