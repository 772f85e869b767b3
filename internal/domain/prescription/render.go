package prescription

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/prescription.html
var templateFS embed.FS

var pdfTemplate = template.Must(template.New("prescription.html").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).ParseFS(templateFS, "templates/prescription.html"))

const dateLayout = "02 Jan 2006"

type templateData struct {
	Prescription *Prescription
	ShortID      string
	Date         string
	FollowUp     string
}

// RenderHTML fills the printable prescription template.
func RenderHTML(p *Prescription) (string, error) {
	data := templateData{
		Prescription: p,
		ShortID:      p.ID.String()[:8],
		Date:         p.CreatedAt.Format(dateLayout),
	}
	if p.FollowUpDate != nil {
		data.FollowUp = p.FollowUpDate.Format(dateLayout)
	}
	var buf bytes.Buffer
	if err := pdfTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prescription template: %w", err)
	}
	return buf.String(), nil
}
