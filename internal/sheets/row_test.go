package sheets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func readyRow() Row {
	return Row{
		Number:   42,
		Title:    "Daily video",
		Status:   "done",
		DriveURL: "https://drive.google.com/file/d/abc123/view",
	}
}

func TestRowReady(t *testing.T) {
	assert.True(t, readyRow().Ready())

	tests := []struct {
		name   string
		mutate func(*Row)
	}{
		{"empty title", func(r *Row) { r.Title = "  " }},
		{"status not done", func(r *Row) { r.Status = "editing" }},
		{"status cased differently", func(r *Row) { r.Status = "Done" }},
		{"scheduled set", func(r *Row) { r.Scheduled = "2026-09-02" }},
		{"no drive url", func(r *Row) { r.DriveURL = "" }},
		{"already uploaded", func(r *Row) { r.UploadMark = "2026-08-30 11:02" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := readyRow()
			tt.mutate(&row)
			assert.False(t, row.Ready())
		})
	}
}

func TestRowReadyTrimsWhitespaceOnlyCells(t *testing.T) {
	row := readyRow()
	row.Scheduled = "   "
	row.UploadMark = "\t"
	assert.True(t, row.Ready())
}

func TestRowsFromValues(t *testing.T) {
	values := [][]any{
		{"First", "desc one", nil, nil, nil, nil, nil, nil, nil, "done", "", nil, "url-1", nil, ""},
		{"Second"},
		{},
	}

	rows := RowsFromValues(values)
	assert.Len(t, rows, 3)

	assert.Equal(t, 1, rows[0].Number)
	assert.Equal(t, "First", rows[0].Title)
	assert.Equal(t, "desc one", rows[0].Description)
	assert.Equal(t, "done", rows[0].Status)
	assert.Equal(t, "url-1", rows[0].DriveURL)

	// Short rows read as empty cells, never panic.
	assert.Equal(t, 2, rows[1].Number)
	assert.Equal(t, "Second", rows[1].Title)
	assert.Empty(t, rows[1].Status)

	assert.Equal(t, 3, rows[2].Number)
	assert.Empty(t, rows[2].Title)
}

func TestRowsFromValuesKeepsTitleVerbatim(t *testing.T) {
	values := [][]any{{"  Título com acentuação!  "}}
	rows := RowsFromValues(values)
	assert.Equal(t, "  Título com acentuação!  ", rows[0].Title)
}

func TestTail(t *testing.T) {
	rows := RowsFromValues([][]any{
		{"a"}, {"b"}, {"c"}, {"d"}, {"e"},
	})

	tail := Tail(rows, 2)
	assert.Len(t, tail, 2)
	assert.Equal(t, 4, tail[0].Number)
	assert.Equal(t, 5, tail[1].Number)

	assert.Len(t, Tail(rows, 10), 5)
	assert.Len(t, Tail(rows, 0), 5)
}
