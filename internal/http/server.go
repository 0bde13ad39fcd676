package http

import (
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"mahjong/internal/app"
	"mahjong/internal/core"
	"mahjong/internal/log"
	"mahjong/internal/middleware/ratelimit"
	"mahjong/internal/middleware/security"
	"mahjong/internal/middleware/trace"
	"mahjong/internal/records"
	appweb "mahjong/web"
)

// Dashboards is the read side the pages and the JSON API render from.
type Dashboards interface {
	State() app.State
	DashboardFor(month core.YearMonth) app.Dashboard
	Loaded() <-chan struct{}
}

// RecordWriter creates and deletes records.
type RecordWriter interface {
	CreateRecord(ctx context.Context, form records.FormInput) (core.Record, error)
	DeleteRecord(ctx context.Context, id string) error
}

// Options configures NewServer.
type Options struct {
	Addr               string
	RateLimitPerMinute int
	Logger             *log.Logger
	Now                func() time.Time
}

type Server struct {
	http.Server
	templates  *template.Template
	dashboards Dashboards
	writer     RecordWriter
	logger     *log.Logger
	now        func() time.Time
	startedAt  time.Time

	limiter  *ratelimit.Limiter
	tracer   *trace.Middleware
	detector *security.Detector

	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run http.Server.
func NewServer(dashboards Dashboards, writer RecordWriter, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	detector := security.NewDetector()
	s := &Server{
		dashboards: dashboards,
		writer:     writer,
		logger:     opts.Logger.WithComponent(log.ComponentHTTP),
		now:        opts.Now,
		startedAt:  opts.Now(),
		limiter:    ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		tracer:     trace.NewMiddleware(detector.ExtractClientIP).WithLogger(opts.Logger),
		detector:   detector,
	}

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Warn("Failed parsing templates", log.FieldError, err)
	}
	s.templates = t

	mux := http.NewServeMux()

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /records", s.handleCreateRecordForm)
	mux.HandleFunc("POST /records/{id}/delete", s.handleDeleteRecordForm)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/records", s.handleListRecords)
	mux.HandleFunc("POST /api/records", s.handleCreateRecord)
	mux.HandleFunc("DELETE /api/records/{id}", s.handleDeleteRecord)
	mux.HandleFunc("GET /api/stakes", s.handleStakes)
	mux.HandleFunc("GET /export.xlsx", s.handleExport)
	mux.HandleFunc("GET /chart.png", s.handleChart)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.middleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelError),
	}
	return s
}

// middleware wraps h, outermost first: tracing, request-scoped logger,
// probe rejection, security headers, rate limiting on writes.
func (s *Server) middleware(h http.Handler) http.Handler {
	h = s.limiter.Middleware(s.detector.ExtractClientIP, ratelimit.WritesOnly, s.onRateLimited)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.detector.Middleware(h)
	h = log.RequestIDMiddleware(trace.RequestID)(h)
	h = log.Middleware(s.logger)(h)
	return s.tracer.Middleware(h)
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	writeError(w, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
}

// Shutdown stops the limiter's cleanup loop and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
