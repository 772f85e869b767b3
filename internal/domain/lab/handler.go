package lab

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carelink/carelink/internal/platform/auth"
	"github.com/carelink/carelink/internal/platform/httpx"
	"github.com/carelink/carelink/internal/platform/storage"
	"github.com/carelink/carelink/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	patient := api.Group("/lab-orders", auth.RequireRole(auth.RolePatient))
	patient.POST("", h.Book)
	patient.GET("/mine", h.Mine)
	patient.GET("/:id", h.Get)
	patient.POST("/:id/cancel", h.Cancel)

	lab := api.Group("/lab", auth.RequireRole(auth.RoleLab))
	lab.GET("/orders", h.LabOrders)
	lab.GET("/orders/:id", h.Get)
	lab.PATCH("/orders/:id/status", h.UpdateStatus)
	lab.POST("/orders/:id/report", h.UploadReport)
	lab.GET("/dashboard", h.Dashboard)
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

func (h *Handler) Book(c echo.Context) error {
	var req BookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	o, err := h.svc.Book(c.Request().Context(), caller(c).ID, req)
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.OK(c, http.StatusCreated, o)
}

func (h *Handler) Mine(c echo.Context) error {
	pg := pagination.FromContext(c)
	id := caller(c).ID
	items, total, err := h.svc.List(c.Request().Context(), ListFilter{
		PatientID: &id,
		Status:    c.QueryParam("status"),
		Limit:     pg.Limit,
		Offset:    pg.Offset(),
	})
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.Paged(c, items, total, pg)
}

func (h *Handler) LabOrders(c echo.Context) error {
	pg := pagination.FromContext(c)
	id := caller(c).ID
	items, total, err := h.svc.List(c.Request().Context(), ListFilter{
		LabID:  &id,
		Status: c.QueryParam("status"),
		Search: c.QueryParam("search"),
		Limit:  pg.Limit,
		Offset: pg.Offset(),
	})
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.Paged(c, items, total, pg)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	o, err := h.svc.Get(c.Request().Context(), caller(c), id)
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.OK(c, http.StatusOK, o)
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
	o, err := h.svc.UpdateStatus(c.Request().Context(), caller(c), id, req.Status)
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.OK(c, http.StatusOK, o)
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	o, err := h.svc.UpdateStatus(c.Request().Context(), caller(c), id, StatusCancelled)
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.OK(c, http.StatusOK, o)
}

func (h *Handler) UploadReport(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	fh, err := c.FormFile(FileReport)
	if err != nil {
		fh = nil
	}
	f, err := storage.ReadMultipart(FileReport, fh)
	if err != nil {
		return httpx.Error(err)
	}
	o, err := h.svc.UploadReport(c.Request().Context(), caller(c), id, f)
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.OK(c, http.StatusOK, o)
}

func (h *Handler) Dashboard(c echo.Context) error {
	d, err := h.svc.Dashboard(c.Request().Context(), caller(c).ID)
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.OK(c, http.StatusOK, d)
}
