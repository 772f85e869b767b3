package assessment

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
	g := api.Group("/assessments", auth.RequireRole(auth.RolePatient))
	g.POST("/heart", h.Heart)
	g.POST("/lung", h.Lung)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
}

func (h *Handler) Heart(c echo.Context) error {
	var in HeartInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	a, err := h.svc.AssessHeart(ctx, auth.UserUUID(ctx), in)
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.OK(c, http.StatusCreated, a)
}

func (h *Handler) Lung(c echo.Context) error {
	var in LungInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	a, err := h.svc.AssessLung(ctx, auth.UserUUID(ctx), in)
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.OK(c, http.StatusCreated, a)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	ctx := c.Request().Context()
	items, total, err := h.svc.List(ctx, ListFilter{
		PatientID: auth.UserUUID(ctx),
		Type:      c.QueryParam("type"),
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
	a, err := h.svc.Get(ctx, auth.UserUUID(ctx), auth.RoleFromContext(ctx), id)
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.OK(c, http.StatusOK, a)
}
