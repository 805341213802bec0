package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"unicode/utf8"

	"github.com/unitedhospital222-cmyk/UnitedHospitalPRM/internal/domain"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ExcelPatientsRepository keeps all records in one sheet of an .xlsx workbook.
//
// Every operation reads the whole file and every mutation rewrites the whole file. The mutex only
// serialises cycles inside this process: two processes sharing the file can still lose updates or
// hand out the same RefID.
type ExcelPatientsRepository struct {
	path   string
	mu     sync.RWMutex
	logger *zap.Logger
}

func NewExcelPatientsRepository(path string, logger *zap.Logger) *ExcelPatientsRepository {
	return &ExcelPatientsRepository{path: path, logger: logger}
}

// Path 存储文件路径
func (r *ExcelPatientsRepository) Path() string {
	return r.path
}

// EnsureStore creates the workbook with only the header row if it does not exist yet.
func (r *ExcelPatientsRepository) EnsureStore() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := os.Stat(r.path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to stat store %s: %w", r.path, err)
	}

	f, sheet := newStoreWorkbook()
	defer f.Close()
	if err := writeHeader(f, sheet); err != nil {
		return err
	}
	if err := r.save(f); err != nil {
		return err
	}
	r.logger.Info("Created patient store", zap.String("path", r.path))
	return nil
}

func (r *ExcelPatientsRepository) ListPatients(ctx context.Context) (patients []domain.Patient, err error) {
	defer func() { observeOp(BackendExcel, "list", err) }()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	f, sheet, err := r.open(false)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return []domain.Patient{}, nil
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return decodeRows(rows), nil
}

func (r *ExcelPatientsRepository) AppendPatient(ctx context.Context, p domain.Patient) (refID string, err error) {
	defer func() { observeOp(BackendExcel, "append", err) }()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := checkRow(p.Row()); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	f, sheet, err := r.open(true)
	if err != nil {
		return "", err
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return "", fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) == 0 {
		// header went missing (empty sheet); restore it before the first data row
		if err := writeHeader(f, sheet); err != nil {
			return "", err
		}
		rows = [][]string{domain.PatientHeader}
	}

	p.ID = domain.NextRefID(decodeRows(rows))
	row := p.Row()
	cell, err := excelize.CoordinatesToCellName(1, len(rows)+1)
	if err != nil {
		return "", fmt.Errorf("failed to convert coordinates: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &row); err != nil {
		return "", fmt.Errorf("failed to write row %s: %w", cell, err)
	}
	if err := r.save(f); err != nil {
		return "", err
	}

	r.logger.Debug("Appended patient", zap.String("ref_id", p.ID), zap.Int("row", len(rows)+1))
	return p.ID, nil
}

func (r *ExcelPatientsRepository) UpdatePatientStatus(ctx context.Context, refID, status string) (updated bool, err error) {
	defer func() { observeOp(BackendExcel, "update_status", err) }()
	if err := ctx.Err(); err != nil {
		return false, err
	}

	if err := CheckCellText("Status", status); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	f, sheet, err := r.open(false)
	if err != nil {
		return false, err
	}
	if f == nil {
		return false, nil
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return false, fmt.Errorf("failed to read rows: %w", err)
	}

	for i := 1; i < len(rows); i++ {
		if len(rows[i]) == 0 || rows[i][0] != refID {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(domain.StatusColumn, i+1)
		if err != nil {
			return false, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellStr(sheet, cell, status); err != nil {
			return false, fmt.Errorf("failed to set status cell %s: %w", cell, err)
		}
		if err := r.save(f); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// open loads the workbook and resolves the sheet holding the records (the active one).
// A missing file returns a nil *File, unless create is set, in which case a fresh header-only
// workbook is returned (not yet saved).
func (r *ExcelPatientsRepository) open(create bool) (*excelize.File, string, error) {
	f, err := excelize.OpenFile(r.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, "", fmt.Errorf("failed to open store %s: %w", r.path, err)
		}
		if !create {
			return nil, "", nil
		}
		f, sheet := newStoreWorkbook()
		if err := writeHeader(f, sheet); err != nil {
			f.Close()
			return nil, "", err
		}
		return f, sheet, nil
	}

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if sheet == "" {
		list := f.GetSheetList()
		if len(list) == 0 {
			f.Close()
			return nil, "", fmt.Errorf("store %s has no sheets", r.path)
		}
		sheet = list[0]
	}
	return f, sheet, nil
}

// save writes the workbook next to the store and renames it into place, so readers never see a
// half-written file and a crash mid-write keeps the previous version.
func (r *ExcelPatientsRepository) save(f *excelize.File) error {
	dir, base := filepath.Split(r.path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, base+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	renamed := false
	defer func() {
		if !renamed {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := f.WriteTo(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync workbook: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	mode := os.FileMode(0o640)
	if st, err := os.Stat(r.path); err == nil {
		mode = st.Mode().Perm()
	}
	_ = os.Chmod(tmpPath, mode)

	if err := os.Rename(tmpPath, r.path); err != nil {
		return fmt.Errorf("failed to replace store %s: %w", r.path, err)
	}
	renamed = true
	return nil
}

func newStoreWorkbook() (*excelize.File, string) {
	f := excelize.NewFile()
	return f, f.GetSheetName(f.GetActiveSheetIndex())
}

func writeHeader(f *excelize.File, sheet string) error {
	header := domain.PatientHeader
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	return nil
}

// decodeRows skips the header row and blank rows.
func decodeRows(rows [][]string) []domain.Patient {
	patients := make([]domain.Patient, 0, len(rows))
	for i, row := range rows {
		if i == 0 || domain.IsBlankRow(row) {
			continue
		}
		patients = append(patients, domain.PatientFromRow(row))
	}
	return patients
}

// ErrUnstorableText marks a value a cell cannot hold unchanged.
var ErrUnstorableText = errors.New("text cannot be stored in a cell")

// CheckCellText rejects values excelize would silently alter on write: text longer than
// excelize.TotalCellChars is truncated and characters outside the XML character range are
// replaced with U+FFFD.
func CheckCellText(column, v string) error {
	if !utf8.ValidString(v) {
		return fmt.Errorf("%w: %s is not valid UTF-8", ErrUnstorableText, column)
	}
	if n := utf8.RuneCountInString(v); n > excelize.TotalCellChars {
		return fmt.Errorf("%w: %s has %d characters, limit is %d", ErrUnstorableText, column, n, excelize.TotalCellChars)
	}
	for _, c := range v {
		if !isXMLChar(c) {
			return fmt.Errorf("%w: %s contains control character %U", ErrUnstorableText, column, c)
		}
	}
	return nil
}

func checkRow(row []string) error {
	for i, v := range row {
		column := fmt.Sprintf("column %d", i+1)
		if i < len(domain.PatientHeader) {
			column = domain.PatientHeader[i]
		}
		if err := CheckCellText(column, v); err != nil {
			return err
		}
	}
	return nil
}

// isXMLChar reports whether c is in the XML 1.0 Char production.
func isXMLChar(c rune) bool {
	switch {
	case c == '\t' || c == '\n' || c == '\r':
		return true
	case c >= 0x20 && c <= 0xD7FF:
		return true
	case c >= 0xE000 && c <= 0xFFFD:
		return true
	case c >= 0x10000 && c <= utf8.MaxRune:
		return true
	}
	return false
}
