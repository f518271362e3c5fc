// Package report exports reservations of a business to an XLSX workbook.
package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"slotbook/internal/models"

	"github.com/rs/zerolog"
)

// Source lists reservations visible to an actor.
type Source interface {
	ListForBusiness(ctx context.Context, actor models.Actor, businessID int64, from, to time.Time) ([]models.Reservation, error)
}

// Directory resolves business and menu names.
type Directory interface {
	Business(id int64) (*models.Business, error)
	Menu(id int64) (*models.Menu, error)
}

// Request selects what to export.
type Request struct {
	Actor      models.Actor
	BusinessID int64
	From       time.Time
	To         time.Time
}

var reservationColumns = []string{
	"ID", "Date", "Start", "Duration (min)", "Service", "Order type",
	"Customer", "Status", "Price", "Created", "Cancelled", "Completed",
}

var statusOrder = []models.ReservationStatus{
	models.StatusPending, models.StatusConfirmed, models.StatusCompleted, models.StatusCancelled,
}

// Exporter builds reservation workbooks.
type Exporter struct {
	source    Source
	directory Directory
	logger    zerolog.Logger
}

// NewExporter creates a new exporter.
func NewExporter(source Source, directory Directory, logger *zerolog.Logger) *Exporter {
	return &Exporter{
		source:    source,
		directory: directory,
		logger:    logger.With().Str("component", "report").Logger(),
	}
}

// Export writes the workbook for req to w and returns the number of reservations in it.
func (e *Exporter) Export(ctx context.Context, req Request, w io.Writer) (int, error) {
	business, err := e.directory.Business(req.BusinessID)
	if err != nil {
		return 0, err
	}
	reservations, err := e.source.ListForBusiness(ctx, req.Actor, req.BusinessID, req.From, req.To)
	if err != nil {
		return 0, err
	}

	loc := business.Location
	if loc == nil {
		loc = time.UTC
	}

	sw := newSheetWriter()
	defer func() { _ = sw.close() }()

	if err := sw.addSheet("Reservations"); err != nil {
		return 0, err
	}
	if err := sw.writeHeader(reservationColumns); err != nil {
		return 0, err
	}

	menuNames := make(map[int64]string)
	counts := make(map[models.ReservationStatus]int)
	var revenue int64
	for i := range reservations {
		r := &reservations[i]
		name, ok := menuNames[r.MenuID]
		if !ok {
			if m, err := e.directory.Menu(r.MenuID); err == nil {
				name = m.Name
			}
			menuNames[r.MenuID] = name
		}

		counts[r.Status]++
		if r.Status == models.StatusCompleted {
			revenue += r.PriceCents
		}

		if err := sw.writeRow([]any{
			r.ID,
			models.FormatDate(r.Date),
			r.Start.String(),
			r.DurationMinutes,
			name,
			r.OrderType,
			r.CustomerID,
			string(r.Status),
			formatPrice(r.PriceCents),
			r.CreatedAt.In(loc).Format("2006-01-02 15:04"),
			formatOptional(r.CancelledAt, loc),
			formatOptional(r.CompletedAt, loc),
		}); err != nil {
			return 0, fmt.Errorf("write reservation %s: %w", r.ID, err)
		}
	}

	if err := sw.addSheet("Summary"); err != nil {
		return 0, err
	}
	if err := sw.writeHeader([]string{"Business", business.Name}); err != nil {
		return 0, err
	}
	rows := [][]any{
		{"From", models.FormatDate(req.From)},
		{"To", models.FormatDate(req.To)},
		{"Total", len(reservations)},
	}
	for _, st := range statusOrder {
		rows = append(rows, []any{string(st), counts[st]})
	}
	rows = append(rows, []any{"Completed revenue", formatPrice(revenue)})
	for _, row := range rows {
		if err := sw.writeRow(row); err != nil {
			return 0, err
		}
	}

	if err := sw.save(w); err != nil {
		return 0, fmt.Errorf("save workbook: %w", err)
	}

	e.logger.Info().
		Int64("business_id", req.BusinessID).
		Int("reservations", len(reservations)).
		Msg("reservations exported")
	return len(reservations), nil
}

// ExportToFile writes the workbook to path, creating its directory.
func (e *Exporter) ExportToFile(ctx context.Context, req Request, path string) (int, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("create export directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create export file: %w", err)
	}

	n, err := e.Export(ctx, req, f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return 0, err
	}
	return n, nil
}

func formatPrice(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

func formatOptional(t *time.Time, loc *time.Location) string {
	if t == nil {
		return ""
	}
	return t.In(loc).Format("2006-01-02 15:04")
}
