package identity

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carelink/carelink/internal/platform/auth"
	"github.com/carelink/carelink/internal/platform/httpx"
	"github.com/carelink/carelink/pkg/pagination"
)

type Handler struct {
	svc *Service
	// otpLimit guards the code request endpoint; nil disables it.
	otpLimit echo.MiddlewareFunc
}

func NewHandler(svc *Service, otpLimit echo.MiddlewareFunc) *Handler {
	return &Handler{svc: svc, otpLimit: otpLimit}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	var otpMW []echo.MiddlewareFunc
	if h.otpLimit != nil {
		otpMW = append(otpMW, h.otpLimit)
	}
	api.POST("/auth/otp/request", h.RequestOTP, otpMW...)
	api.POST("/auth/otp/verify", h.VerifyOTP, otpMW...)

	api.GET("/me", h.GetMe)
	api.PUT("/me", h.UpdateMe)

	admin := api.Group("/admin", auth.RequireRole(auth.RoleAdmin))
	admin.GET("/users", h.ListUsers)
	admin.PATCH("/users/:id/active", h.SetActive)
}

func (h *Handler) RequestOTP(c echo.Context) error {
	var req OTPRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ttl, err := h.svc.RequestOTP(c.Request().Context(), req.Phone)
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.OK(c, http.StatusOK, map[string]interface{}{
		"sent":      true,
		"expiresIn": int(ttl.Seconds()),
	})
}

func (h *Handler) VerifyOTP(c echo.Context) error {
	var req VerifyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	sess, err := h.svc.VerifyOTP(c.Request().Context(), req)
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.OK(c, http.StatusOK, sess)
}

func (h *Handler) GetMe(c echo.Context) error {
	u, err := h.svc.GetUser(c.Request().Context(), auth.UserUUID(c.Request().Context()))
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.OK(c, http.StatusOK, u)
}

func (h *Handler) UpdateMe(c echo.Context) error {
	var upd ProfileUpdate
	if err := c.Bind(&upd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	u, err := h.svc.UpdateProfile(c.Request().Context(), auth.UserUUID(c.Request().Context()), upd)
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.OK(c, http.StatusOK, u)
}

func (h *Handler) ListUsers(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListUsers(c.Request().Context(), UserFilter{
		Role:   c.QueryParam("role"),
		Search: c.QueryParam("search"),
		Limit:  pg.Limit,
		Offset: pg.Offset(),
	})
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.Paged(c, items, total, pg)
}

func (h *Handler) SetActive(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		IsActive *bool `json:"is_active"`
	}
	if err := c.Bind(&body); err != nil || body.IsActive == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "is_active is required")
	}
	u, err := h.svc.SetActive(c.Request().Context(), auth.UserUUID(c.Request().Context()), id, *body.IsActive)
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.OK(c, http.StatusOK, u)
}
