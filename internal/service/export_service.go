package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/export"
)

var timetableColumns = []string{"subject", "day", "time", "teacher", "room"}

type timetableReader interface {
	Current(ctx context.Context) (*models.Timetable, error)
	Grid() Grid
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	Parse(r io.Reader, required []string) (export.Dataset, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title, subtitle string) ([]byte, error)
}

// ExportFile is a rendered timetable ready to be served as an attachment.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportService renders the current timetable and parses uploaded timetables.
type ExportService struct {
	timetables timetableReader
	csv        csvRenderer
	pdf        pdfRenderer
	logger     *zap.Logger
	now        func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers fall back to the pkg/export defaults.
func NewExportService(timetables timetableReader, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		timetables: timetables,
		csv:        csv,
		pdf:        pdf,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Export renders the current timetable in the requested format.
func (s *ExportService) Export(ctx context.Context, format dto.ExportFormat) (*ExportFile, error) {
	tt, err := s.timetables.Current(ctx)
	if err != nil {
		return nil, err
	}

	var (
		body        []byte
		contentType string
	)
	switch format {
	case dto.ExportCSV, "":
		format = dto.ExportCSV
		contentType = "text/csv"
		body, err = s.csv.Render(entriesDataset(tt.Entries))
	case dto.ExportPDF:
		contentType = "application/pdf"
		body, err = s.pdf.Render(s.gridDataset(tt), "Weekly Timetable", s.subtitle(tt))
	case dto.ExportJSON:
		contentType = "application/json"
		body, err = json.MarshalIndent(tt, "", "  ")
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %s", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render timetable")
	}

	s.logger.Debug("timetable exported", zap.String("format", string(format)), zap.Int("entries", len(tt.Entries)))
	return &ExportFile{
		Filename:    fmt.Sprintf("timetable_%s.%s", s.now().Format("20060102_150405"), format),
		ContentType: contentType,
		Body:        body,
	}, nil
}

// ParseCSV turns an uploaded CSV into an import request. Headers are matched case-insensitively;
// the room column is optional.
func (s *ExportService) ParseCSV(r io.Reader) (dto.ImportTimetableRequest, error) {
	data, err := s.csv.Parse(r, []string{"subject", "day", "time", "teacher"})
	if err != nil {
		return dto.ImportTimetableRequest{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	req := dto.ImportTimetableRequest{Entries: make([]dto.ImportEntryRequest, 0, len(data.Rows))}
	for _, row := range data.Rows {
		req.Entries = append(req.Entries, dto.ImportEntryRequest{
			Subject: row["subject"],
			Day:     row["day"],
			Time:    row["time"],
			Teacher: row["teacher"],
			Room:    row["room"],
		})
	}
	return req, nil
}

func entriesDataset(entries []models.TimetableEntry) export.Dataset {
	rows := make([]map[string]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, map[string]string{
			"subject": e.Subject,
			"day":     e.Day,
			"time":    e.TimeSlot,
			"teacher": e.Teacher,
			"room":    e.Room,
		})
	}
	return export.Dataset{Headers: timetableColumns, Rows: rows}
}

// gridDataset lays entries out as one row per time slot and one column per day.
func (s *ExportService) gridDataset(tt *models.Timetable) export.Dataset {
	grid := s.timetables.Grid()
	headers := append([]string{"Time"}, grid.Days...)

	cells := make(map[string][]string)
	for _, e := range tt.Entries {
		key := e.Day + "|" + e.TimeSlot
		cells[key] = append(cells[key], formatCell(e))
	}

	rows := make([]map[string]string, 0, len(grid.Slots))
	for _, slot := range grid.Slots {
		row := map[string]string{"Time": slot}
		for _, day := range grid.Days {
			row[day] = strings.Join(cells[day+"|"+slot], " / ")
		}
		rows = append(rows, row)
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func formatCell(e models.TimetableEntry) string {
	var details []string
	if e.Teacher != "" {
		details = append(details, e.Teacher)
	}
	if e.Room != "" {
		details = append(details, e.Room)
	}
	if len(details) == 0 {
		return e.Subject
	}
	return fmt.Sprintf("%s (%s)", e.Subject, strings.Join(details, ", "))
}

func (s *ExportService) subtitle(tt *models.Timetable) string {
	status := "Draft"
	switch {
	case tt.Approved:
		status = "Approved"
	case tt.Finalized:
		status = "Finalized"
	}
	parts := []string{"Status: " + status}
	if tt.GeneratedAt != nil {
		parts = append(parts, "Generated: "+tt.GeneratedAt.UTC().Format("02 Jan 2006 15:04 MST"))
	}
	parts = append(parts, "Exported: "+s.now().Format("02 Jan 2006 15:04 MST"))
	return strings.Join(parts, " | ")
}
