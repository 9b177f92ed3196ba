package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"camrent/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	SheetName   = "Đơn thuê"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	dateLayout  = "02/01/2006 15:04"
)

var headers = []string{
	"Mã đơn", "Người thuê", "Thiết bị", "Trạng thái", "Tổng tiền",
	"Ngày tạo", "Ngày nhận", "Tỉnh/Thành", "Quận/Huyện",
}

// Filename names an export taken at now.
func Filename(now time.Time) string {
	return fmt.Sprintf("bookings_%s.xlsx", now.Format("20060102_150405"))
}

// Bookings writes the given rows, in order, as an XLSX workbook to w.
// Timestamps are rendered in loc.
func Bookings(w io.Writer, bookings []models.Booking, loc *time.Location) error {
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

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(SheetName, cell, h)
		_ = f.SetCellStyle(SheetName, cell, cell, headerStyle)
	}

	styles := statusStyles(f)
	for i, b := range bookings {
		row := i + 2
		values := []any{
			b.ID,
			renter(b),
			itemNames(b.Items),
			b.StatusLabel,
			b.TotalPrice,
			formatTime(b.CreatedAt, loc),
			formatTime(b.PickupAt, loc),
			b.Province,
			b.District,
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("error writing row %d: %w", row, err)
		}
		if style, ok := styles[b.Status()]; ok {
			statusCell, _ := excelize.CoordinatesToCellName(4, row)
			_ = f.SetCellStyle(SheetName, statusCell, statusCell, style)
		}
	}

	_ = f.SetColWidth(SheetName, "A", "A", 14)
	_ = f.SetColWidth(SheetName, "B", "C", 30)
	_ = f.SetColWidth(SheetName, "D", "I", 18)
	_ = f.SetPanes(SheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	if err := f.Write(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

func statusStyles(f *excelize.File) map[models.Status]int {
	colors := map[models.Status]string{
		models.StatusPending:    "#FFF2CC",
		models.StatusConfirmed:  "#E2EFDA",
		models.StatusInProgress: "#DDEBF7",
		models.StatusCompleted:  "#C6EFCE",
		models.StatusCancelled:  "#F8CBAD",
		models.StatusRejected:   "#F8CBAD",
	}
	out := make(map[models.Status]int, len(colors))
	for s, c := range colors {
		id, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{c}, Pattern: 1},
		})
		if err == nil {
			out[s] = id
		}
	}
	return out
}

func renter(b models.Booking) string {
	if b.RenterName != "" {
		return b.RenterName
	}
	return b.RenterID
}

func itemNames(items []models.RentedItem) string {
	names := make([]string, 0, len(items))
	for _, it := range items {
		names = append(names, it.Name)
	}
	return strings.Join(names, ", ")
}

func formatTime(t *time.Time, loc *time.Location) string {
	if t == nil {
		return ""
	}
	return t.In(loc).Format(dateLayout)
}
