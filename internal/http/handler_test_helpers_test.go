package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/unitedhospital222-cmyk/UnitedHospitalPRM/internal/domain"
	"github.com/unitedhospital222-cmyk/UnitedHospitalPRM/internal/repository"
	"github.com/unitedhospital222-cmyk/UnitedHospitalPRM/internal/service"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// brokenRepo 模拟存储 I/O 失败
type brokenRepo struct{}

var errStoreBroken = errors.New("store unavailable")

func (brokenRepo) ListPatients(context.Context) ([]domain.Patient, error) { return nil, errStoreBroken }
func (brokenRepo) AppendPatient(context.Context, domain.Patient) (string, error) {
	return "", errStoreBroken
}
func (brokenRepo) UpdatePatientStatus(context.Context, string, string) (bool, error) {
	return false, errStoreBroken
}

func newTestRouter(t *testing.T, repo repository.PatientsRepository) http.Handler {
	t.Helper()
	logger := zap.NewNop()
	svc := service.NewPatientService(repo, nil, logger)

	pages, err := NewPagesHandler(svc, logger)
	require.NoError(t, err)

	r := NewRouter(logger)
	r.RegisterPageRoutes(pages)
	r.RegisterPatientRoutes(NewPatientHandler(svc, logger))
	r.RegisterOpsRoutes()
	return r.Handler()
}

func seedPatients(t *testing.T, repo repository.PatientsRepository, names ...string) {
	t.Helper()
	for _, name := range names {
		_, err := repo.AppendPatient(context.Background(), domain.Patient{
			Name: name, Mobile: "9876543210", Referred: domain.ReferredSelf, Status: domain.StatusNew,
		})
		require.NoError(t, err)
	}
}

func postForm(h http.Handler, path string, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func doRequest(h http.Handler, method, path, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}
