package httpapi

import (
	"bytes"
	"fmt"

	"github.com/unitedhospital222-cmyk/UnitedHospitalPRM/internal/domain"

	"github.com/xuri/excelize/v2"
)

const (
	exportSheetName   = "Referrals"
	xlsxContentType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	exportFilePattern = "referrals-%s.xlsx"
)

// 导出列宽，与 domain.PatientHeader 顺序一致
var exportColumnWidths = []float64{
	10, // RefID
	24, // Name
	14, // Mobile
	12, // Referred
	14, // RefType
	22, // DrName
	12, // Status
	16, // Sponsor
	14, // CreatedBy
	32, // Comment
	20, // CreatedAt
}

// GeneratePatientsExport 生成转诊记录导出 Excel（带样式表头、冻结首行）
// patients 为空时只生成表头
func GeneratePatientsExport(patients []domain.Patient) ([]byte, error) {
	f := excelize.NewFile()
	// WriteTo 之前不能 Close

	index, err := f.NewSheet(exportSheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	header := domain.PatientHeader
	if err := f.SetSheetRow(exportSheetName, "A1", &header); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(domain.PatientHeader))
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := f.SetCellStyle(exportSheetName, "A1", lastCol+"1", headerStyle); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to set header style: %w", err)
	}

	for i, width := range exportColumnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(exportSheetName, col, col, width); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, p := range patients {
		row := i + 2 // 第1行是表头
		for col, value := range p.Row() {
			if value == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				f.Close()
				return nil, err
			}
			// 全部写成文本，保留手机号前导零
			if err := f.SetCellStr(exportSheetName, cell, value); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
		}
	}

	if err := f.SetPanes(exportSheetName, &excelize.Panes{
		Freeze:      true,
		Split:       false,
		XSplit:      0,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}
