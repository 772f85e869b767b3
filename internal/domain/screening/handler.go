package screening

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
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/screening", auth.RequireRole(auth.RolePatient))
	g.POST("/start", h.Start)
	g.POST("/answer", h.Answer)
	g.GET("/sessions", h.List)
	g.GET("/sessions/:id", h.Get)
}

func (h *Handler) Start(c echo.Context) error {
	var req StartRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	sess, err := h.svc.Start(ctx, auth.UserUUID(ctx), req)
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.OK(c, http.StatusCreated, sess)
}

func (h *Handler) Answer(c echo.Context) error {
	var req AnswerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.SessionID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "session_id is required")
	}
	ctx := c.Request().Context()
	sess, err := h.svc.Answer(ctx, auth.UserUUID(ctx), req)
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.OK(c, http.StatusOK, sess)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	ctx := c.Request().Context()
	items, total, err := h.svc.List(ctx, ListFilter{
		PatientID: auth.UserUUID(ctx),
		Status:    c.QueryParam("status"),
		Limit:     pg.Limit,
		Offset:    pg.Offset(),
	})
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.Paged(c, items, total, pg)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	sess, err := h.svc.Get(ctx, auth.UserUUID(ctx), auth.RoleFromContext(ctx), id)
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.OK(c, http.StatusOK, sess)
}
