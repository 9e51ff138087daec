package sheets

import "strings"

// Production worksheet contract. The sheet name and column layout are
// producer-owned; only these columns matter here.
const (
	WorksheetName = "Página1"
	ReadRange     = WorksheetName + "!A:O"

	colTitle       = 0  // A
	colDescription = 1  // B
	colStatus      = 9  // J
	colScheduled   = 10 // K
	colDriveURL    = 12 // M
	colUploadMark  = 14 // O

	statusDone = "done"
)

// Row is one production spreadsheet row. Number is the absolute
// 1-indexed row in the worksheet. Title and Description are kept
// verbatim; they travel byte-for-byte into the YouTube metadata.
type Row struct {
	Number      int
	Title       string
	Description string
	Status      string
	Scheduled   string
	DriveURL    string
	UploadMark  string
}

// Ready reports whether the row satisfies the producible predicate:
// named, marked done, not scheduled, has a Drive asset, and no upload
// record yet.
func (r Row) Ready() bool {
	if strings.TrimSpace(r.Title) == "" {
		return false
	}
	if strings.TrimSpace(r.Status) != statusDone {
		return false
	}
	if strings.TrimSpace(r.Scheduled) != "" {
		return false
	}
	if strings.TrimSpace(r.DriveURL) == "" {
		return false
	}
	if strings.TrimSpace(r.UploadMark) != "" {
		return false
	}
	return true
}

// RowsFromValues converts the raw Sheets API value grid into rows,
// assigning absolute row numbers starting at 1.
func RowsFromValues(values [][]any) []Row {
	rows := make([]Row, 0, len(values))
	for i, cells := range values {
		rows = append(rows, Row{
			Number:      i + 1,
			Title:       cellAt(cells, colTitle),
			Description: cellAt(cells, colDescription),
			Status:      cellAt(cells, colStatus),
			Scheduled:   cellAt(cells, colScheduled),
			DriveURL:    cellAt(cells, colDriveURL),
			UploadMark:  cellAt(cells, colUploadMark),
		})
	}
	return rows
}

// Tail returns the last n rows; ready rows are produced sequentially at
// the bottom of the sheet, so only the tail is worth scanning.
func Tail(rows []Row, n int) []Row {
	if n <= 0 || len(rows) <= n {
		return rows
	}
	return rows[len(rows)-n:]
}

func cellAt(cells []any, idx int) string {
	if idx >= len(cells) {
		return ""
	}
	if s, ok := cells[idx].(string); ok {
		return s
	}
	return ""
}
