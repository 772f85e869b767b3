package prescription

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
	g := api.Group("/prescriptions")
	g.POST("", h.Create, auth.RequireRole(auth.RoleDoctor))
	g.GET("", h.List, auth.RequireRole(auth.RoleDoctor, auth.RolePatient))
	g.GET("/:id", h.Get, auth.RequireRole(auth.RoleDoctor, auth.RolePatient))
	g.PATCH("/:id/status", h.UpdateStatus, auth.RequireRole(auth.RoleDoctor))
	g.POST("/:id/pdf", h.GeneratePDF, auth.RequireRole(auth.RoleDoctor))
	g.GET("/:id/pdf", h.DownloadPDF, auth.RequireRole(auth.RoleDoctor, auth.RolePatient))
}

func caller(c echo.Context) Caller {
	ctx := c.Request().Context()
	return Caller{ID: auth.UserUUID(ctx), Role: auth.RoleFromContext(ctx)}
}

func (h *Handler) Create(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, err := h.svc.Create(c.Request().Context(), caller(c).ID, req)
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.OK(c, http.StatusCreated, p)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := ListFilter{Status: c.QueryParam("status"), Limit: pg.Limit, Offset: pg.Offset()}
	if v := c.QueryParam("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		f.PatientID = &id
	}
	items, total, err := h.svc.List(c.Request().Context(), caller(c), f)
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
	p, err := h.svc.Get(c.Request().Context(), caller(c), id)
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.OK(c, http.StatusOK, p)
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req StatusUpdate
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, err := h.svc.UpdateStatus(c.Request().Context(), caller(c), id, req.Status)
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.OK(c, http.StatusOK, p)
}

func (h *Handler) GeneratePDF(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	url, err := h.svc.GeneratePDF(c.Request().Context(), caller(c), id)
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.OK(c, http.StatusOK, map[string]string{"pdf_url": url})
}

// DownloadPDF streams a freshly rendered PDF inline.
func (h *Handler) DownloadPDF(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	_, doc, err := h.svc.RenderPDF(c.Request().Context(), caller(c), id)
	if err != nil {
		return httpx.Error(err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `inline; filename="prescription-`+id.String()[:8]+`.pdf"`)
	return c.Blob(http.StatusOK, "application/pdf", doc)
}
