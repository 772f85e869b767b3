package onboarding

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
	// Submission is public: the provider has no account yet.
	api.POST("/onboarding/:kind", h.Submit)
	api.GET("/onboarding/status", h.Status, auth.RequireRole(KindDoctor, KindHospital, KindChemist, KindLab))

	admin := api.Group("/admin/onboarding", auth.RequireRole(auth.RoleAdmin))
	admin.GET("/:kind", h.List)
	admin.GET("/:kind/:id", h.Get)
	admin.POST("/:kind/:id/review", h.Review)
}

func formInt(c echo.Context, field string) (int, error) {
	v := strings.TrimSpace(c.FormValue(field))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperr.Validation("%s must be a number", field)
	}
	return n, nil
}

// parseSubmission reads the multipart form for kind.
func parseSubmission(c echo.Context, kind string) (*Submission, error) {
	sub := &Submission{
		Kind:     kind,
		Phone:    c.FormValue("phone"),
		FullName: c.FormValue("full_name"),
		Email:    c.FormValue("email"),
		Files:    map[string]*storage.File{},
	}

	switch kind {
	case KindDoctor:
		years, err := formInt(c, "experience_years")
		if err != nil {
			return nil, err
		}
		sub.Doctor = &DoctorProfile{
			RegistrationNumber: c.FormValue("registration_number"),
			Specialization:     c.FormValue("specialization"),
			Qualification:      c.FormValue("qualification"),
			ExperienceYears:    years,
		}
		if hid := strings.TrimSpace(c.FormValue("hospital_id")); hid != "" {
			id, err := uuid.Parse(hid)
			if err != nil {
				return nil, apperr.Validation("hospital_id is not a valid id")
			}
			sub.Doctor.HospitalID = &id
		}
	case KindHospital:
		beds, err := formInt(c, "bed_count")
		if err != nil {
			return nil, err
		}
		sub.Hospital = &HospitalProfile{
			HospitalName:       c.FormValue("hospital_name"),
			RegistrationNumber: c.FormValue("registration_number"),
			Address:            c.FormValue("address"),
			City:               c.FormValue("city"),
			State:              c.FormValue("state"),
			Pincode:            c.FormValue("pincode"),
			BedCount:           beds,
		}
	case KindChemist:
		sub.Chemist = &ChemistProfile{
			StoreName:         c.FormValue("store_name"),
			DrugLicenseNumber: c.FormValue("drug_license_number"),
			Address:           c.FormValue("address"),
			City:              c.FormValue("city"),
			Pincode:           c.FormValue("pincode"),
		}
	case KindLab:
		sub.Lab = &LabProfile{
			LabName:             c.FormValue("lab_name"),
			AccreditationNumber: c.FormValue("accreditation_number"),
			Address:             c.FormValue("address"),
			City:                c.FormValue("city"),
			Pincode:             c.FormValue("pincode"),
		}
	default:
		return nil, apperr.NotFound("onboarding kind " + kind)
	}

	for _, field := range RequiredFiles(kind) {
		fh, err := c.FormFile(field)
		if err != nil {
			fh = nil
		}
		f, err := storage.ReadMultipart(field, fh)
		if err != nil {
			return nil, err
		}
		sub.Files[field] = f
	}
	return sub, nil
}

func (h *Handler) Submit(c echo.Context) error {
	sub, err := parseSubmission(c, c.Param("kind"))
	if err != nil {
		return httpx.Error(err)
	}
	app, err := h.svc.Submit(c.Request().Context(), sub)
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.OK(c, http.StatusCreated, app)
}

func (h *Handler) Status(c echo.Context) error {
	ctx := c.Request().Context()
	app, err := h.svc.Status(ctx, auth.RoleFromContext(ctx), auth.UserUUID(ctx))
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.OK(c, http.StatusOK, app)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), c.Param("kind"), ListFilter{
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
	app, err := h.svc.Get(c.Request().Context(), c.Param("kind"), id)
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.OK(c, http.StatusOK, app)
}

func (h *Handler) Review(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req ReviewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	app, err := h.svc.Review(ctx, c.Param("kind"), id, auth.UserUUID(ctx), req)
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.OK(c, http.StatusOK, app)
}
