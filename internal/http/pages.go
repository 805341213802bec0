package httpapi

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/unitedhospital222-cmyk/UnitedHospitalPRM/internal/domain"
	"github.com/unitedhospital222-cmyk/UnitedHospitalPRM/internal/service"

	"go.uber.org/zap"
)

//go:embed templates/*.html
var templatesFS embed.FS

const (
	pageDashboard  = "dashboard.html"
	pageRecords    = "records.html"
	pageAddPatient = "add_patient.html"
)

var templateFuncs = template.FuncMap{
	"statusClass": func(status string) string {
		return strings.ReplaceAll(strings.ToLower(status), " ", "-")
	},
}

// PagesHandler 服务端渲染页面（dashboard / records / add / edit）
type PagesHandler struct {
	patientService *service.PatientService
	logger         *zap.Logger
	pages          map[string]*template.Template
}

// NewPagesHandler parses the embedded templates.
func NewPagesHandler(patientService *service.PatientService, logger *zap.Logger) (*PagesHandler, error) {
	pages := make(map[string]*template.Template)
	for _, name := range []string{pageDashboard, pageRecords, pageAddPatient} {
		t, err := template.New(name).Funcs(templateFuncs).
			ParseFS(templatesFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		pages[name] = t
	}
	return &PagesHandler{
		patientService: patientService,
		logger:         logger,
		pages:          pages,
	}, nil
}

type dashboardView struct {
	Title  string
	Counts []service.StatusCount
	Total  int
}

type recordsView struct {
	Title    string
	Patients []domain.Patient
	Search   string
	Statuses []string
}

type addPatientView struct {
	Title           string
	Error           string
	Form            service.CreatePatientRequest
	ReferredOptions []string
	Statuses        []string
}

// Dashboard GET /
func (h *PagesHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	resp, err := h.patientService.StatusCounts(r.Context())
	if err != nil {
		h.serverError(w, "StatusCounts failed", err)
		return
	}
	h.render(w, http.StatusOK, pageDashboard, dashboardView{
		Title:  "Dashboard",
		Counts: resp.Counts,
		Total:  resp.Total,
	})
}

// Records GET|POST /records
func (h *PagesHandler) Records(w http.ResponseWriter, r *http.Request) {
	var search string
	switch r.Method {
	case http.MethodGet:
		search = r.URL.Query().Get("search")
	case http.MethodPost:
		if err := parseForm(r); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
		search = r.PostFormValue("search")
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	resp, err := h.patientService.ListPatients(r.Context(), service.ListPatientsRequest{Search: search})
	if err != nil {
		h.serverError(w, "ListPatients failed", err)
		return
	}
	h.render(w, http.StatusOK, pageRecords, recordsView{
		Title:    "Records",
		Patients: resp.Items,
		Search:   search,
		Statuses: domain.KnownStatuses,
	})
}

// AddPatient GET|POST /add
func (h *PagesHandler) AddPatient(w http.ResponseWriter, r *http.Request) {
	view := addPatientView{
		Title:           "Add Patient",
		Form:            service.CreatePatientRequest{Referred: domain.ReferredSelf, Status: domain.StatusNew},
		ReferredOptions: domain.ReferredOptions,
		Statuses:        domain.KnownStatuses,
	}

	switch r.Method {
	case http.MethodGet:
		h.render(w, http.StatusOK, pageAddPatient, view)
	case http.MethodPost:
		if err := parseForm(r); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
		req := createRequestFromForm(r)
		if _, err := h.patientService.CreatePatient(r.Context(), req); err != nil {
			if service.IsValidationError(err) {
				view.Error = err.Error()
				view.Form = req
				h.render(w, http.StatusOK, pageAddPatient, view)
				return
			}
			h.serverError(w, "CreatePatient failed", err)
			return
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// EditStatus POST /edit/{ref_id}
func (h *PagesHandler) EditStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	refID := strings.TrimPrefix(r.URL.Path, "/edit/")
	if refID == "" || strings.Contains(refID, "/") {
		http.NotFound(w, r)
		return
	}
	if err := parseForm(r); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	statuses, ok := r.PostForm["status"]
	if !ok || len(statuses) == 0 {
		http.Error(w, "missing status", http.StatusBadRequest)
		return
	}

	req := service.UpdateStatusRequest{RefID: refID, Status: statuses[0]}
	if err := h.patientService.UpdateStatus(r.Context(), req); err != nil {
		if service.IsValidationError(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.serverError(w, "UpdateStatus failed", err)
		return
	}
	http.Redirect(w, r, "/records", http.StatusSeeOther)
}

func (h *PagesHandler) render(w http.ResponseWriter, status int, page string, data any) {
	var buf bytes.Buffer
	if err := h.pages[page].ExecuteTemplate(&buf, "layout", data); err != nil {
		h.serverError(w, "render "+page+" failed", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (h *PagesHandler) serverError(w http.ResponseWriter, msg string, err error) {
	h.logger.Error(msg, zap.Error(err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
