package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:   "Schedule 2024-09-02 to 2024-09-08",
		Headers: []string{"Date", "Start", "End", "Course"},
		Rows: []map[string]string{
			{"Date": "2024-09-02", "Start": "07:00", "End": "09:30", "Course": "Algorithms"},
			{"Date": "2024-09-04", "Start": "13:00", "End": "14:00", "Course": "Literatur, \"Bahasa\""},
		},
	}
}

func TestCSVExporter(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)

	text := strings.TrimPrefix(string(out), "\ufeff")
	lines := strings.Split(strings.TrimSpace(text), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Date,Start,End,Course", lines[0])
	assert.Equal(t, "2024-09-02,07:00,09:30,Algorithms", lines[1])
	assert.Equal(t, `2024-09-04,13:00,14:00,"Literatur, ""Bahasa"""`, lines[2])
}

func TestPDFExporterPaginates(t *testing.T) {
	data := sampleDataset()
	for i := 0; i < 60; i++ {
		data.Rows = append(data.Rows, map[string]string{"Date": "2024-09-05", "Course": "Filler"})
	}
	out, err := NewPDFExporter().Render(data)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestXLSXExporter(t *testing.T) {
	out, err := NewXLSXExporter().Render(sampleDataset())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(xlsxSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Schedule 2024-09-02 to 2024-09-08", rows[0][0])
	assert.Equal(t, []string{"Date", "Start", "End", "Course"}, rows[1])
	assert.Equal(t, "Algorithms", rows[2][3])
}

func TestRenderersRejectEmptyHeaders(t *testing.T) {
	for _, format := range []string{"csv", "pdf", "xlsx"} {
		r, err := ForFormat(format)
		require.NoError(t, err)
		_, err = r.Render(Dataset{})
		assert.Error(t, err, format)
		assert.Equal(t, format, r.Extension())
	}
	_, err := ForFormat("docx")
	assert.Error(t, err)
}
