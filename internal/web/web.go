// Package web serves the public landing page.
package web

import (
	"embed"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

//go:embed templates/*.html
var templateFS embed.FS

// Renderer executes the embedded templates for echo's c.Render.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses every embedded template.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"year": func() int { return time.Now().Year() },
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Renderer{tmpl: tmpl}, nil
}

func (r *Renderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	return r.tmpl.ExecuteTemplate(w, name, data)
}

// Feature is one card on the landing page.
type Feature struct {
	Title string
	Body  string
}

// Page is the landing page view model.
type Page struct {
	Title    string
	APIBase  string
	Features []Feature
	Roles    []string
}

var features = []Feature{
	{"BPL welfare support", "Apply for below-poverty-line assistance with your income certificate and BPL card, and track the review online."},
	{"Digital prescriptions", "Doctors issue prescriptions that patients can download as a signed PDF and send straight to a chemist."},
	{"AI symptom screening", "A five-question conversational triage suggests likely conditions, urgency and the right specialist."},
	{"Heart and lung checks", "Quick risk assessments give a health score with clear next steps."},
	{"Medicines and lab tests", "Order from nearby chemists and book lab tests with live status updates and reports."},
	{"Video consultations", "Meet your doctor over secure video rooms without leaving home."},
}

// Handler renders the landing page.
type Handler struct {
	page Page
}

// NewHandler returns a handler whose auth modal talks to apiBase.
func NewHandler(apiBase string) *Handler {
	return &Handler{page: Page{
		Title:    "CareLink - healthcare for every household",
		APIBase:  apiBase,
		Features: features,
		Roles:    []string{"Patients", "Doctors", "Hospitals", "Chemists", "Labs"},
	}}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.Landing)
}

func (h *Handler) Landing(c echo.Context) error {
	return c.Render(http.StatusOK, "landing", h.page)
}
