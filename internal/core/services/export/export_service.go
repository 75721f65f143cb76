package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/lcalzada-xor/venuechat/internal/core/domain"
)

// ExportVenuesJSON writes venues as an indented JSON array
func ExportVenuesJSON(w io.Writer, venues []domain.Venue) error {
	if venues == nil {
		venues = []domain.Venue{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(venues)
}

// ExportVenuesCSV writes venues as CSV with headers. Activities are joined
// with "; " so the column stays a single field.
func ExportVenuesCSV(w io.Writer, venues []domain.Venue) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	// Header row
	headers := []string{
		"ID", "Name", "Description", "Latitude", "Longitude",
		"EntryPrice", "ActivityType", "Activities", "ImageURL",
		"CreatedBy", "CreatedAt",
	}
	if err := writer.Write(headers); err != nil {
		return err
	}

	// Data rows
	for _, v := range venues {
		row := []string{
			v.ID,
			v.Name,
			v.Description,
			fmt.Sprintf("%.6f", v.Coordinates.Latitude),
			fmt.Sprintf("%.6f", v.Coordinates.Longitude),
			strconv.FormatFloat(v.EntryPrice, 'f', 2, 64),
			v.ActivityType,
			strings.Join(v.Activities, "; "),
			v.ImageURL,
			v.CreatedBy,
			v.CreatedAt.Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// ExportAuditCSV writes audit entries as CSV
func ExportAuditCSV(w io.Writer, logs []domain.AuditLog) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	// Header
	headers := []string{"ID", "Timestamp", "UserID", "Username", "Action", "Target", "Details", "IPAddress"}
	if err := writer.Write(headers); err != nil {
		return err
	}

	// Data
	for _, l := range logs {
		row := []string{
			strconv.FormatUint(uint64(l.ID), 10),
			l.Timestamp.Format(time.RFC3339),
			l.UserID,
			l.Username,
			string(l.Action),
			l.Target,
			l.Details,
			l.IPAddress,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
