package teleconsult

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
	g := api.Group("/video/rooms", auth.RequireRole(auth.RoleDoctor, auth.RolePatient))
	g.POST("", h.Create, auth.RequireRole(auth.RoleDoctor))
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.POST("/:id/token", h.Token)
	g.PATCH("/:id/status", h.UpdateStatus, auth.RequireRole(auth.RoleDoctor))
}

func caller(c echo.Context) Caller {
	ctx := c.Request().Context()
	return Caller{ID: auth.UserUUID(ctx), Role: auth.RoleFromContext(ctx)}
}

func pathID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) Create(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	rm, err := h.svc.CreateRoom(c.Request().Context(), caller(c).ID, req)
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.OK(c, http.StatusCreated, rm)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	rooms, total, err := h.svc.List(c.Request().Context(), caller(c), ListFilter{
		Status: c.QueryParam("status"),
		Limit:  pg.Limit,
		Offset: pg.Offset(),
	})
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.Paged(c, rooms, total, pg)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	rm, err := h.svc.Get(c.Request().Context(), caller(c), id)
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.OK(c, http.StatusOK, rm)
}

func (h *Handler) Token(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	tok, err := h.svc.Token(c.Request().Context(), caller(c), id)
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.OK(c, http.StatusOK, tok)
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req StatusUpdate
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	rm, err := h.svc.UpdateStatus(c.Request().Context(), caller(c), id, req.Status)
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.OK(c, http.StatusOK, rm)
}
