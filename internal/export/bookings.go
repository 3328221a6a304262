// Package export renders bookings as an XLSX workbook.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"bookinggate/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	SheetName   = "Bookings"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	timeLayout  = "2006-01-02 15:04"
)

var headers = []string{
	"Booking ID", "Resource ID", "Service ID", "Location ID",
	"Starts at", "Ends at", "Price", "Customer", "Temporary", "Canceled",
}

// FileName builds the attachment name for an export generated at t.
func FileName(t time.Time) string {
	return fmt.Sprintf("bookings_%s.xlsx", t.Format("2006-01-02_150405"))
}

// WriteBookings writes one row per booking to w. Times are shown in loc; values that
// cannot be parsed are written verbatim.
func WriteBookings(w io.Writer, bookings []models.Booking, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	styles, err := newRowStyles(f)
	if err != nil {
		return err
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(SheetName, cell, h)
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	_ = f.SetCellStyle(SheetName, "A1", last, styles.header)

	for i, b := range bookings {
		row := i + 2
		values := []any{
			b.ID, b.ResourceID, b.ServiceID, b.LocationID,
			displayTime(b.StartsAt, loc), displayTime(b.EndsAt, loc),
			price(b.Price), customerName(b.Metadata), yesNo(b.IsTemporary), yesNo(b.IsCanceled),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(SheetName, cell, v); err != nil {
				return fmt.Errorf("error writing cell %s: %w", cell, err)
			}
		}
		first, _ := excelize.CoordinatesToCellName(1, row)
		end, _ := excelize.CoordinatesToCellName(len(headers), row)
		_ = f.SetCellStyle(SheetName, first, end, styles.forBooking(b))
	}

	_ = f.SetColWidth(SheetName, "A", "D", 24)
	_ = f.SetColWidth(SheetName, "E", "F", 20)
	_ = f.SetColWidth(SheetName, "G", "J", 14)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

type rowStyles struct {
	header    int
	active    int
	temporary int
	canceled  int
}

func newRowStyles(f *excelize.File) (*rowStyles, error) {
	fill := func(color string, bold bool) (int, error) {
		return f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
			Font: &excelize.Font{Bold: bold},
		})
	}
	var (
		s   rowStyles
		err error
	)
	if s.header, err = fill("#DDEBF7", true); err != nil {
		return nil, fmt.Errorf("error creating header style: %w", err)
	}
	if s.active, err = fill("#C6EFCE", false); err != nil {
		return nil, fmt.Errorf("error creating row style: %w", err)
	}
	if s.temporary, err = fill("#FFEB9C", false); err != nil {
		return nil, fmt.Errorf("error creating row style: %w", err)
	}
	if s.canceled, err = fill("#FFC7CE", false); err != nil {
		return nil, fmt.Errorf("error creating row style: %w", err)
	}
	return &s, nil
}

func (s *rowStyles) forBooking(b models.Booking) int {
	switch {
	case b.IsCanceled:
		return s.canceled
	case b.IsTemporary:
		return s.temporary
	default:
		return s.active
	}
}

func displayTime(raw string, loc *time.Location) string {
	t, err := models.ParseBookingTime(raw)
	if err != nil {
		return raw
	}
	return t.In(loc).Format(timeLayout)
}

func price(p *float64) any {
	if p == nil {
		return ""
	}
	return *p
}

func customerName(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var meta models.BookingMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return ""
	}
	return meta.CustomerName
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
