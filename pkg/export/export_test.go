package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Headers: []string{"subject", "cfd"},
		Rows: []map[string]string{
			{"subject": "Português", "cfd": "15"},
			{"subject": "Matemática A", "cfd": "17"},
		},
		Notes: []string{"CFS: 16.0", "DGES: 160"},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.Equal(t, "subject,cfd\nPortuguês,15\nMatemática A,17\nCFS: 16.0\nDGES: 160\n", string(out))

	_, err = NewCSVExporter().Render(Dataset{})
	assert.ErrorIs(t, err, ErrNoHeaders)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset(), "Classificação Final")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))

	_, err = NewPDFExporter().Render(Dataset{}, "")
	assert.ErrorIs(t, err, ErrNoHeaders)
}

func TestPDFExporterPaginatesLongTables(t *testing.T) {
	data := Dataset{Headers: []string{"subject", "cfd"}}
	for i := 0; i < 80; i++ {
		data.Rows = append(data.Rows, map[string]string{"subject": "Filosofia", "cfd": "14"})
	}
	out, err := NewPDFExporter().Render(data, "")
	require.NoError(t, err)
	assert.Greater(t, bytes.Count(out, []byte("/Type /Page")), 2)
}

func TestColumnWidthsFavourFirstColumn(t *testing.T) {
	widths := columnWidths(3)
	assert.InDelta(t, 95.0, widths[0], 0.001)
	assert.InDelta(t, 47.5, widths[1], 0.001)
	assert.Equal(t, []float64{pageWidth}, columnWidths(1))
	assert.True(t, isNumeric("15.2"))
	assert.False(t, isNumeric("Matemática A"))
}
