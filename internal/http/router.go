package httpapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

// HandleHandler 支持 http.Handler 接口（用于 /metrics 等）
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Handler returns the router wrapped with access logging and metrics.
func (r *Router) Handler() http.Handler {
	return withObservability(r.mux, r.logger)
}

// RegisterPageRoutes 注册 HTML 页面路由
func (r *Router) RegisterPageRoutes(p *PagesHandler) {
	// "/" 兜底匹配，Dashboard 内部对非根路径返回 404
	r.Handle("/", p.Dashboard)
	r.Handle("/records", p.Records)
	r.Handle("/add", p.AddPatient)
	r.Handle("/edit/", p.EditStatus)
}

// RegisterPatientRoutes 注册 JSON API 路由
func (r *Router) RegisterPatientRoutes(h *PatientHandler) {
	r.HandleHandler(patientsPath, h)
	r.HandleHandler(patientsPath+"/", h)
	r.Handle("/api/v1/dashboard", h.GetDashboard)
}

// RegisterOpsRoutes 健康检查与 Prometheus 指标
func (r *Router) RegisterOpsRoutes() {
	r.Handle("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet && req.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.HandleHandler("/metrics", promhttp.Handler())
}
