package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/unitedhospital222-cmyk/UnitedHospitalPRM/internal/domain"
	"github.com/unitedhospital222-cmyk/UnitedHospitalPRM/internal/events"
	"github.com/unitedhospital222-cmyk/UnitedHospitalPRM/internal/repository"

	"go.uber.org/zap"
)

// 校验错误提示（直接展示给用户）
const (
	MsgNameMobileRequired = "Name and valid mobile no. are mandatory."
	MsgDoctorNameRequired = "Doctor name required for referrals."
	MsgRefIDRequired      = "Reference id is required."
	MsgTextNotStorable    = "Text is too long or contains invalid characters."
)

const minMobileLength = 10

// DefaultPublishTimeout bounds how long a write waits for event sinks.
const DefaultPublishTimeout = 2 * time.Second

// ValidationError 用户输入校验失败，不会产生写入
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// IsValidationError reports whether err is (or wraps) a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// PatientService 转诊患者服务
type PatientService struct {
	repo      repository.PatientsRepository
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time

	publishTimeout time.Duration
}

// NewPatientService 创建患者服务；publisher 为 nil 时不发布事件
func NewPatientService(repo repository.PatientsRepository, publisher events.Publisher, logger *zap.Logger) *PatientService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &PatientService{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,

		publishTimeout: DefaultPublishTimeout,
	}
}

// SetPublishTimeout changes the publication bound; d <= 0 restores the default.
func (s *PatientService) SetPublishTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultPublishTimeout
	}
	s.publishTimeout = d
}

// ListPatientsRequest 查询患者列表请求
type ListPatientsRequest struct {
	Search string
}

// ListPatientsResponse 查询患者列表响应
type ListPatientsResponse struct {
	Items  []domain.Patient `json:"items"`
	Total  int              `json:"total"`
	Search string           `json:"search,omitempty"`
}

// ListPatients 查询患者列表（按姓名不区分大小写或手机号子串过滤，保持原顺序）
func (s *PatientService) ListPatients(ctx context.Context, req ListPatientsRequest) (*ListPatientsResponse, error) {
	patients, err := s.repo.ListPatients(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}

	items := FilterPatients(patients, req.Search)
	return &ListPatientsResponse{
		Items:  items,
		Total:  len(items),
		Search: req.Search,
	}, nil
}

// FilterPatients returns the records whose name contains search (case-insensitive)
// or whose mobile contains search. An empty search matches everything.
func FilterPatients(patients []domain.Patient, search string) []domain.Patient {
	if search == "" {
		return patients
	}
	needle := strings.ToLower(search)
	out := make([]domain.Patient, 0, len(patients))
	for _, p := range patients {
		if strings.Contains(strings.ToLower(p.Name), needle) || strings.Contains(p.Mobile, search) {
			out = append(out, p)
		}
	}
	return out
}

// CreatePatientRequest 新建转诊记录请求
type CreatePatientRequest struct {
	Name      string `json:"name"`
	Mobile    string `json:"mobile"`
	Referred  string `json:"referred"`
	RefType   string `json:"reftype"`
	DrName    string `json:"drname"`
	Status    string `json:"status"`
	Sponsor   string `json:"sponsor"`
	CreatedBy string `json:"created_by"`
	Comment   string `json:"comment"`
}

// CreatePatientResponse 新建转诊记录响应
type CreatePatientResponse struct {
	RefID string `json:"ref_id"`
}

// CreatePatient 新建转诊记录
func (s *PatientService) CreatePatient(ctx context.Context, req CreatePatientRequest) (*CreatePatientResponse, error) {
	name := strings.TrimSpace(req.Name)
	mobile := strings.TrimSpace(req.Mobile)

	if name == "" || !isDigits(mobile) || len(mobile) < minMobileLength {
		return nil, &ValidationError{Message: MsgNameMobileRequired}
	}
	if req.Referred == domain.ReferredDoctor && req.DrName == "" {
		return nil, &ValidationError{Message: MsgDoctorNameRequired}
	}

	status := req.Status
	if status == "" {
		status = domain.StatusNew
	}

	p := domain.Patient{
		Name:      name,
		Mobile:    mobile,
		Referred:  req.Referred,
		RefType:   req.RefType,
		DrName:    req.DrName,
		Status:    status,
		Sponsor:   req.Sponsor,
		CreatedBy: req.CreatedBy,
		Comment:   req.Comment,
		CreatedAt: s.now().Format(domain.TimeLayout),
	}

	if err := checkText(p.Row()...); err != nil {
		return nil, err
	}

	refID, err := s.repo.AppendPatient(ctx, p)
	if err != nil {
		if errors.Is(err, repository.ErrUnstorableText) {
			return nil, &ValidationError{Message: MsgTextNotStorable}
		}
		return nil, fmt.Errorf("failed to create patient: %w", err)
	}

	s.logger.Info("Patient referral created",
		zap.String("ref_id", refID),
		zap.String("referred", p.Referred),
		zap.String("created_by", p.CreatedBy),
	)
	s.publish(ctx, events.NewEvent(events.TypePatientCreated, refID, p.Status, p.CreatedBy, s.now()))

	return &CreatePatientResponse{RefID: refID}, nil
}

// UpdateStatusRequest 更新状态请求
type UpdateStatusRequest struct {
	RefID  string `json:"ref_id"`
	Status string `json:"status"`
}

// UpdateStatus 更新转诊状态；ref_id 不存在时静默忽略
func (s *PatientService) UpdateStatus(ctx context.Context, req UpdateStatusRequest) error {
	if req.RefID == "" {
		return &ValidationError{Message: MsgRefIDRequired}
	}
	if err := checkText(req.Status); err != nil {
		return err
	}

	updated, err := s.repo.UpdatePatientStatus(ctx, req.RefID, req.Status)
	if err != nil {
		if errors.Is(err, repository.ErrUnstorableText) {
			return &ValidationError{Message: MsgTextNotStorable}
		}
		return fmt.Errorf("failed to update status: %w", err)
	}
	if !updated {
		s.logger.Debug("Status update ignored, ref_id not found", zap.String("ref_id", req.RefID))
		return nil
	}

	s.logger.Info("Patient status updated",
		zap.String("ref_id", req.RefID),
		zap.String("status", req.Status),
	)
	s.publish(ctx, events.NewEvent(events.TypePatientStatusUpdated, req.RefID, req.Status, "", s.now()))
	return nil
}

// StatusCount 单个状态计数
type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// StatusCountsResponse 仪表盘统计
type StatusCountsResponse struct {
	Counts []StatusCount `json:"counts"`
	Total  int           `json:"total"`
}

// StatusCounts 按已知状态统计记录数（顺序固定）
func (s *PatientService) StatusCounts(ctx context.Context) (*StatusCountsResponse, error) {
	patients, err := s.repo.ListPatients(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count patients: %w", err)
	}

	byStatus := make(map[string]int, len(domain.KnownStatuses))
	for _, p := range patients {
		byStatus[p.Status]++
	}

	counts := make([]StatusCount, 0, len(domain.KnownStatuses))
	for _, st := range domain.KnownStatuses {
		counts = append(counts, StatusCount{Status: st, Count: byStatus[st]})
	}
	return &StatusCountsResponse{Counts: counts, Total: len(patients)}, nil
}

// publish runs detached from request cancellation but never longer than publishTimeout.
func (s *PatientService) publish(ctx context.Context, ev events.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()

	if err := s.publisher.Publish(ctx, ev); err != nil {
		// 不失败整个操作，只记录警告
		s.logger.Warn("Failed to publish referral event",
			zap.String("event_type", ev.Type),
			zap.String("ref_id", ev.RefID),
			zap.Error(err),
		)
	}
}

// checkText applies the cell limits to every backend so records stay exportable.
func checkText(values ...string) error {
	for _, v := range values {
		if err := repository.CheckCellText("field", v); err != nil {
			return &ValidationError{Message: MsgTextNotStorable}
		}
	}
	return nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
