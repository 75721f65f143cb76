package reporting

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/lcalzada-xor/venuechat/internal/core/domain"
)

// DirectoryMetadata describes a venue directory export.
type DirectoryMetadata struct {
	Title       string
	GeneratedAt time.Time
	GeneratedBy string
}

// PDFExporter exports the venue directory to PDF format
type PDFExporter struct{}

// NewPDFExporter creates a new PDF exporter instance
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// ExportVenueDirectory renders venues as a printable directory.
func (e *PDFExporter) ExportVenueDirectory(meta DirectoryMetadata, venues []domain.Venue) ([]byte, error) {
	if meta.Title == "" {
		meta.Title = "Venue Directory"
	}
	if meta.GeneratedAt.IsZero() {
		meta.GeneratedAt = time.Now()
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFooterFunc(func() {
		e.addFooter(pdf, tr, meta)
	})
	pdf.AddPage()

	e.addHeader(pdf, tr, meta, len(venues))
	e.addStatistics(pdf, venues)
	e.addVenueTable(pdf, tr, venues)
	e.addActivities(pdf, tr, venues)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *PDFExporter) addHeader(pdf *gofpdf.Fpdf, tr func(string) string, meta DirectoryMetadata, count int) {
	pdf.SetFont("Arial", "B", 24)
	pdf.SetTextColor(0, 51, 102) // Dark blue
	pdf.CellFormat(0, 15, tr(meta.Title), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(120, 120, 120)
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated: %s", meta.GeneratedAt.Format("2006-01-02 15:04")), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Venues: %d", count), "", 1, "L", false, 0, "")
	pdf.Ln(8)
}

func (e *PDFExporter) addStatistics(pdf *gofpdf.Fpdf, venues []domain.Venue) {
	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 10, "Overview", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	var free int
	var total float64
	maxPrice := 0.0
	for _, v := range venues {
		if v.EntryPrice == 0 {
			free++
		}
		total += v.EntryPrice
		if v.EntryPrice > maxPrice {
			maxPrice = v.EntryPrice
		}
	}
	avg := 0.0
	if len(venues) > 0 {
		avg = total / float64(len(venues))
	}

	stats := []struct {
		label string
		value string
	}{
		{"Total Venues", fmt.Sprintf("%d", len(venues))},
		{"Free Entry", fmt.Sprintf("%d", free)},
		{"Average Price", fmt.Sprintf("%.2f", avg)},
		{"Highest Price", fmt.Sprintf("%.2f", maxPrice)},
	}

	// Display in 2 columns
	colWidth := 85.0
	for i, stat := range stats {
		x := 20.0
		if i%2 == 1 {
			x = 105.0
		}
		pdf.SetXY(x, pdf.GetY())

		pdf.SetFont("Arial", "", 10)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(50, 7, stat.label+":", "", 0, "L", false, 0, "")

		pdf.SetFont("Arial", "B", 11)
		pdf.SetTextColor(0, 102, 204)
		pdf.CellFormat(colWidth-50, 7, stat.value, "", 0, "R", false, 0, "")

		if i%2 == 1 {
			pdf.Ln(7)
		}
	}
	pdf.Ln(10)
}

func (e *PDFExporter) addVenueTable(pdf *gofpdf.Fpdf, tr func(string) string, venues []domain.Venue) {
	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 10, "Venues", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	if len(venues) == 0 {
		pdf.SetFont("Arial", "I", 10)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(0, 7, "No venues registered", "", 1, "L", false, 0, "")
		pdf.Ln(5)
		return
	}

	header := func() {
		pdf.SetFillColor(240, 240, 240)
		pdf.SetFont("Arial", "B", 10)
		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(55, 8, "Name", "1", 0, "L", true, 0, "")
		pdf.CellFormat(35, 8, "Activity", "1", 0, "L", true, 0, "")
		pdf.CellFormat(20, 8, "Price", "1", 0, "R", true, 0, "")
		pdf.CellFormat(50, 8, "Coordinates", "1", 0, "C", true, 0, "")
		pdf.CellFormat(25, 8, "Created", "1", 1, "C", true, 0, "")
	}
	header()

	pdf.SetFont("Arial", "", 9)
	pdf.SetTextColor(60, 60, 60)
	for _, v := range venues {
		if pdf.GetY() > 270 {
			pdf.AddPage()
			header()
			pdf.SetFont("Arial", "", 9)
			pdf.SetTextColor(60, 60, 60)
		}

		price := "Free"
		if v.EntryPrice > 0 {
			price = fmt.Sprintf("%.2f", v.EntryPrice)
		}
		created := ""
		if !v.CreatedAt.IsZero() {
			created = v.CreatedAt.Format("2006-01-02")
		}

		pdf.CellFormat(55, 7, tr(truncate(v.Name, 32)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 7, tr(truncate(v.ActivityType, 20)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(20, 7, price, "1", 0, "R", false, 0, "")
		pdf.CellFormat(50, 7, fmt.Sprintf("%.4f, %.4f", v.Coordinates.Latitude, v.Coordinates.Longitude), "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 7, created, "1", 1, "C", false, 0, "")
	}
	pdf.Ln(8)
}

func (e *PDFExporter) addActivities(pdf *gofpdf.Fpdf, tr func(string) string, venues []domain.Venue) {
	counts := ActivityCounts(venues)
	if len(counts) == 0 {
		return
	}

	if pdf.GetY() > 240 {
		pdf.AddPage()
	}
	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 10, "Popular Activities", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(60, 60, 60)
	for i, c := range counts {
		if i >= 10 {
			break
		}
		pdf.CellFormat(5, 6, "", "", 0, "L", false, 0, "")
		pdf.CellFormat(80, 6, tr("- "+c.Activity), "", 0, "L", false, 0, "")
		pdf.CellFormat(20, 6, fmt.Sprintf("%d", c.Venues), "", 1, "R", false, 0, "")
	}
}

func (e *PDFExporter) addFooter(pdf *gofpdf.Fpdf, tr func(string) string, meta DirectoryMetadata) {
	pdf.SetY(-20)

	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(20, pdf.GetY(), 190, pdf.GetY())
	pdf.Ln(3)

	pdf.SetFont("Arial", "I", 8)
	pdf.SetTextColor(120, 120, 120)
	text := fmt.Sprintf("Page %d", pdf.PageNo())
	if meta.GeneratedBy != "" {
		text = fmt.Sprintf("Generated by %s | %s", meta.GeneratedBy, text)
	}
	pdf.CellFormat(0, 5, tr(text), "", 1, "C", false, 0, "")
}

// ActivityCount is the number of venues offering an activity.
type ActivityCount struct {
	Activity string
	Venues   int
}

// ActivityCounts tallies activities case-insensitively, most common first.
func ActivityCounts(venues []domain.Venue) []ActivityCount {
	byKey := make(map[string]*ActivityCount)
	for _, v := range venues {
		seen := make(map[string]bool)
		for _, a := range v.Activities {
			key := strings.ToLower(a)
			if seen[key] {
				continue
			}
			seen[key] = true
			if c, ok := byKey[key]; ok {
				c.Venues++
			} else {
				byKey[key] = &ActivityCount{Activity: a, Venues: 1}
			}
		}
	}

	out := make([]ActivityCount, 0, len(byKey))
	for _, c := range byKey {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Venues != out[j].Venues {
			return out[i].Venues > out[j].Venues
		}
		return strings.ToLower(out[i].Activity) < strings.ToLower(out[j].Activity)
	})
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
