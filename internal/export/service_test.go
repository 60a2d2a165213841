package export

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/inspection-verifier/constants"
	"github.com/joseph-ayodele/inspection-verifier/internal/analysis"
	"github.com/joseph-ayodele/inspection-verifier/internal/async"
	"github.com/joseph-ayodele/inspection-verifier/internal/fields"
)

func TestExportJobXLSX(t *testing.T) {
	job := async.Job{
		ID: "k3j9x2m1q",
		Results: []async.FileResult{
			{
				File: async.FileInfo{OriginalName: "cert.pdf"},
				Analysis: &analysis.Result{
					Type:        constants.PDF,
					Status:      constants.StatusValid,
					Confidence:  92,
					IsAuthentic: true,
					Issues:      []string{},
					ExtractedData: fields.ExtractedData{
						Plate:            "ABCD12",
						IssueDate:        "15/03/2024",
						Make:             "TOYOTA",
						InspectionResult: "APROBADO",
					},
				},
			},
			{
				File:  async.FileInfo{OriginalName: "photo.jpg"},
				Error: "text extraction failed: photo.jpg",
			},
		},
	}

	raw, err := NewService(nil).ExportJobXLSX(context.Background(), job)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, headers, rows[0])

	first := rows[1]
	assert.Equal(t, "cert.pdf", first[0])
	assert.Equal(t, "PDF", first[1])
	assert.Equal(t, "valid", first[2])
	assert.Equal(t, "92", first[3])
	assert.Equal(t, "Sí", first[4])
	assert.Equal(t, "ABCD12", first[5])
	assert.Equal(t, "TOYOTA", first[8])
	assert.Equal(t, "APROBADO", first[11])

	second := rows[2]
	assert.Equal(t, "photo.jpg", second[0])
	assert.Equal(t, "text extraction failed: photo.jpg", second[len(second)-1])
	assert.Len(t, second, 14)
}

func TestExportJobXLSX_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewService(nil).ExportJobXLSX(ctx, async.Job{})
	assert.ErrorIs(t, err, context.Canceled)
}
