package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/inspection-verifier/internal/async"
)

// SheetName is the worksheet holding one row per file result.
const SheetName = "Resultados"

var headers = []string{
	"Archivo",
	"Tipo",
	"Estado",
	"Confianza",
	"Auténtico",
	"Patente",
	"Fecha emisión",
	"Fecha vencimiento",
	"Marca",
	"Modelo",
	"Propietario",
	"Resultado",
	"Problemas",
	"Error",
}

// Service produces XLSX bytes for job exports.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// ExportJobXLSX returns a workbook with one row per file result, in input order.
func (s *Service) ExportJobXLSX(ctx context.Context, job async.Job) ([]byte, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if _, err := f.NewSheet(SheetName); err != nil {
		return nil, err
	}
	idx, _ := f.GetSheetIndex(SheetName)
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(SheetName, cell, h)
	}

	row := 2
	for _, res := range job.Results {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(SheetName, cell, v)
		}

		write(1, res.File.OriginalName)
		if a := res.Analysis; a != nil {
			d := a.ExtractedData
			write(2, string(a.Type))
			write(3, string(a.Status))
			write(4, a.Confidence)
			write(5, yesNo(a.IsAuthentic))
			write(6, d.Plate)
			write(7, d.IssueDate)
			write(8, d.ExpiryDate)
			write(9, d.Make)
			write(10, d.Model)
			write(11, d.OwnerName)
			write(12, d.InspectionResult)
			write(13, strings.Join(a.Issues, "; "))
		}
		write(14, res.Error)
		row++
	}

	_ = f.SetColWidth(SheetName, "A", "A", 32)
	_ = f.SetColWidth(SheetName, "B", "E", 12)
	_ = f.SetColWidth(SheetName, "F", "L", 18)
	_ = f.SetColWidth(SheetName, "M", "M", 60)
	_ = f.SetColWidth(SheetName, "N", "N", 40)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"job_id", job.ID,
		"rows", len(job.Results),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func yesNo(b bool) string {
	if b {
		return "Sí"
	}
	return "No"
}
