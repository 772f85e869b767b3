package bpl

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carelink/carelink/internal/platform/apperr"
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
	patient := api.Group("/bpl-requests", auth.RequireRole(auth.RolePatient))
	patient.POST("", h.Submit)
	patient.GET("/mine", h.Mine)

	admin := api.Group("/admin/bpl-requests", auth.RequireRole(auth.RoleAdmin))
	admin.GET("", h.List)
	admin.GET("/stats", h.Stats)
	admin.GET("/:id", h.Get)
	admin.PATCH("/:id/status", h.UpdateStatus)
	admin.POST("/bulk-delete", h.BulkDelete)
}

func formFile(c echo.Context, field string) (*storage.File, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		fh = nil
	}
	return storage.ReadMultipart(field, fh)
}

func parseSubmission(c echo.Context) (*Submission, error) {
	sub := &Submission{
		ApplicantName: c.FormValue("applicant_name"),
		BPLCardNumber: c.FormValue("bpl_card_number"),
		AadhaarNumber: c.FormValue("aadhaar_number"),
		Address:       c.FormValue("address"),
		District:      c.FormValue("district"),
		State:         c.FormValue("state"),
	}

	if v := strings.TrimSpace(c.FormValue("annual_income")); v != "" {
		income, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, apperr.Validation("annual_income must be a number")
		}
		sub.AnnualIncome = income
	}
	size, err := strconv.Atoi(strings.TrimSpace(c.FormValue("family_size")))
	if err != nil {
		return nil, apperr.Validation("family_size must be a number")
	}
	sub.FamilySize = size

	if sub.IncomeCertificate, err = formFile(c, FileIncomeCertificate); err != nil {
		return nil, err
	}
	if sub.BPLCard, err = formFile(c, FileBPLCard); err != nil {
		return nil, err
	}
	return sub, nil
}

func (h *Handler) Submit(c echo.Context) error {
	sub, err := parseSubmission(c)
	if err != nil {
		return httpx.Error(err)
	}
	ctx := c.Request().Context()
	req, err := h.svc.Submit(ctx, auth.UserUUID(ctx), sub)
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.OK(c, http.StatusCreated, req)
}

func (h *Handler) Mine(c echo.Context) error {
	pg := pagination.FromContext(c)
	ctx := c.Request().Context()
	items, total, err := h.svc.Mine(ctx, auth.UserUUID(ctx), pg.Limit, pg.Offset())
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.Paged(c, items, total, pg)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), ListFilter{
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
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	req, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.OK(c, http.StatusOK, req)
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var u StatusUpdate
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	req, err := h.svc.UpdateStatus(ctx, id, auth.UserUUID(ctx), u)
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.OK(c, http.StatusOK, req)
}

func (h *Handler) BulkDelete(c echo.Context) error {
	var body BulkDeleteRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	n, err := h.svc.BulkDelete(c.Request().Context(), body.IDs)
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.OK(c, http.StatusOK, map[string]int{"deleted": n})
}

func (h *Handler) Stats(c echo.Context) error {
	st, err := h.svc.Stats(c.Request().Context())
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.OK(c, http.StatusOK, st)
}
