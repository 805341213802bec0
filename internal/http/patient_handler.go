package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/unitedhospital222-cmyk/UnitedHospitalPRM/internal/service"

	"go.uber.org/zap"
)

const patientsPath = "/api/v1/patients"

// PatientHandler 转诊记录 JSON API
type PatientHandler struct {
	patientService *service.PatientService
	logger         *zap.Logger
	now            func() time.Time
}

// NewPatientHandler 创建转诊记录 Handler
func NewPatientHandler(patientService *service.PatientService, logger *zap.Logger) *PatientHandler {
	return &PatientHandler{
		patientService: patientService,
		logger:         logger,
		now:            time.Now,
	}
}

// ServeHTTP 实现 http.Handler 接口
func (h *PatientHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// 路由分发
	switch {
	case r.URL.Path == patientsPath && r.Method == http.MethodGet:
		h.ListPatients(w, r)
	case r.URL.Path == patientsPath && r.Method == http.MethodPost:
		h.CreatePatient(w, r)
	case r.URL.Path == patientsPath+"/export" && r.Method == http.MethodGet:
		h.ExportPatients(w, r)
	case strings.HasPrefix(r.URL.Path, patientsPath+"/") && strings.HasSuffix(r.URL.Path, "/status"):
		if r.Method != http.MethodPut && r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		refID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, patientsPath+"/"), "/status")
		if refID == "" || strings.Contains(refID, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.UpdateStatus(w, r, refID)
	case r.URL.Path == patientsPath || r.URL.Path == patientsPath+"/export":
		w.WriteHeader(http.StatusMethodNotAllowed)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// ListPatients 查询转诊记录（?search=）
func (h *PatientHandler) ListPatients(w http.ResponseWriter, r *http.Request) {
	resp, err := h.patientService.ListPatients(r.Context(), service.ListPatientsRequest{
		Search: r.URL.Query().Get("search"),
	})
	if err != nil {
		h.logger.Error("ListPatients failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to read records"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

// CreatePatient 新建转诊记录（JSON 或表单）
func (h *PatientHandler) CreatePatient(w http.ResponseWriter, r *http.Request) {
	var req service.CreatePatientRequest
	if isFormRequest(r) {
		if err := parseForm(r); err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid form body"))
			return
		}
		req = createRequestFromForm(r)
	} else if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid JSON body"))
		return
	}

	resp, err := h.patientService.CreatePatient(r.Context(), req)
	if err != nil {
		if service.IsValidationError(err) {
			writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
			return
		}
		h.logger.Error("CreatePatient failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to save record"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

// UpdateStatus 更新转诊状态；未知 ref_id 静默忽略
func (h *PatientHandler) UpdateStatus(w http.ResponseWriter, r *http.Request, refID string) {
	var body struct {
		Status string `json:"status"`
	}
	if isFormRequest(r) {
		if err := parseForm(r); err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid form body"))
			return
		}
		body.Status = r.FormValue("status")
	} else if err := readBodyJSON(r, maxBodyBytes, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid JSON body"))
		return
	}

	req := service.UpdateStatusRequest{RefID: refID, Status: body.Status}
	if err := h.patientService.UpdateStatus(r.Context(), req); err != nil {
		if service.IsValidationError(err) {
			writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
			return
		}
		h.logger.Error("UpdateStatus failed", zap.String("ref_id", refID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to save record"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(req))
}

// GetDashboard 状态统计
func (h *PatientHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	resp, err := h.patientService.StatusCounts(r.Context())
	if err != nil {
		h.logger.Error("StatusCounts failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to read records"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

// ExportPatients 导出 Excel（?search= 过滤）
func (h *PatientHandler) ExportPatients(w http.ResponseWriter, r *http.Request) {
	resp, err := h.patientService.ListPatients(r.Context(), service.ListPatientsRequest{
		Search: r.URL.Query().Get("search"),
	})
	if err != nil {
		h.logger.Error("ExportPatients failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to read records"))
		return
	}

	data, err := GeneratePatientsExport(resp.Items)
	if err != nil {
		h.logger.Error("GeneratePatientsExport failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to generate export"))
		return
	}

	filename := fmt.Sprintf(exportFilePattern, h.now().Format("20060102-150405"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func createRequestFromForm(r *http.Request) service.CreatePatientRequest {
	return service.CreatePatientRequest{
		Name:      r.FormValue("name"),
		Mobile:    r.FormValue("mobile"),
		Referred:  r.FormValue("referred"),
		RefType:   r.FormValue("reftype"),
		DrName:    r.FormValue("drname"),
		Status:    r.FormValue("status"),
		Sponsor:   r.FormValue("sponsor"),
		CreatedBy: r.FormValue("created_by"),
		Comment:   r.FormValue("comment"),
	}
}
