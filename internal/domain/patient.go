package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Patient 转诊患者记录（对应记录表中的一行，固定 11 列）
type Patient struct {
	ID        string `json:"id" db:"ref_id"` // RefID, e.g. Ref001, immutable
	Name      string `json:"name" db:"name"`
	Mobile    string `json:"mobile" db:"mobile"`
	Referred  string `json:"referred" db:"referred"` // Doctor / Self / Other
	RefType   string `json:"reftype" db:"reftype"`
	DrName    string `json:"drname" db:"drname"` // required when Referred == Doctor
	Status    string `json:"status" db:"status"` // the only mutable field
	Sponsor   string `json:"sponsor" db:"sponsor"`
	CreatedBy string `json:"created_by" db:"created_by"`
	Comment   string `json:"comment" db:"comment"`
	CreatedAt string `json:"created_at" db:"created_at"` // 2006-01-02 15:04:05
}

// PatientHeader is the fixed first row of the record store.
var PatientHeader = []string{
	"RefID",
	"Name",
	"Mobile",
	"Referred",
	"RefType",
	"DrName",
	"Status",
	"Sponsor",
	"CreatedBy",
	"Comment",
	"CreatedAt",
}

// FieldCount 列数
const FieldCount = 11

// StatusColumn is the 1-based column of Status in the header.
const StatusColumn = 7

const (
	StatusNew      = "New"
	StatusOngoing  = "On-going"
	StatusCleared  = "Cleared"
	StatusNoShow   = "No-show"
	StatusVerified = "Verified"
)

// KnownStatuses in dashboard order.
var KnownStatuses = []string{StatusNew, StatusOngoing, StatusCleared, StatusNoShow, StatusVerified}

const (
	ReferredDoctor = "Doctor"
	ReferredSelf   = "Self"
	ReferredOther  = "Other"
)

// ReferredOptions 转诊来源选项
var ReferredOptions = []string{ReferredDoctor, ReferredSelf, ReferredOther}

// TimeLayout is the created_at format.
const TimeLayout = "2006-01-02 15:04:05"

const refIDPrefix = "Ref"

// FormatRefID formats sequence n as Ref001, Ref002, ... (Ref1000 past 999).
func FormatRefID(n int) string {
	return fmt.Sprintf("%s%03d", refIDPrefix, n)
}

// ParseRefID returns the sequence number of a RefID, or false if id is not of the form Ref<digits>.
func ParseRefID(id string) (int, bool) {
	digits, ok := strings.CutPrefix(id, refIDPrefix)
	if !ok || digits == "" {
		return 0, false
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

// NextRefID returns the id the next appended record receives.
// It is count+1 for an untouched store; if ids were ever skipped it continues after the highest one.
func NextRefID(existing []Patient) string {
	next := len(existing)
	for _, p := range existing {
		if n, ok := ParseRefID(p.ID); ok && n > next {
			next = n
		}
	}
	return FormatRefID(next + 1)
}

// Row returns the record in header order.
func (p Patient) Row() []string {
	return []string{
		p.ID,
		p.Name,
		p.Mobile,
		p.Referred,
		p.RefType,
		p.DrName,
		p.Status,
		p.Sponsor,
		p.CreatedBy,
		p.Comment,
		p.CreatedAt,
	}
}

// PatientFromRow decodes a positional row. Missing trailing cells become "", extra cells are ignored.
func PatientFromRow(row []string) Patient {
	var cells [FieldCount]string
	copy(cells[:], row)
	return Patient{
		ID:        cells[0],
		Name:      cells[1],
		Mobile:    cells[2],
		Referred:  cells[3],
		RefType:   cells[4],
		DrName:    cells[5],
		Status:    cells[6],
		Sponsor:   cells[7],
		CreatedBy: cells[8],
		Comment:   cells[9],
		CreatedAt: cells[10],
	}
}

// IsBlankRow reports whether every cell is empty or whitespace.
func IsBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
