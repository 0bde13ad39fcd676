package http

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"mahjong/internal/app"
	"mahjong/internal/core"
	"mahjong/internal/log"
	"mahjong/internal/records"
	"mahjong/internal/report"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"uptime":    s.now().Sub(s.startedAt).Round(time.Second).String(),
	})
}

// handleReady reports ready once templates are parsed and the first record
// snapshot has arrived.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]string{}

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	select {
	case <-s.dashboards.Loaded():
		checks["records"] = "ok"
	default:
		msg := "waiting for first snapshot"
		if err := s.dashboards.State().LoadError; err != nil {
			msg = "failed: " + err.Error()
		}
		checks["records"] = msg
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"checks":    checks,
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
}

// pageData feeds index.html.
type pageData struct {
	app.Dashboard
	Form    records.FormInput
	Error   string
	Presets []string
	Other   string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	month := ParseMonthParams(r.URL.Query(), s.dashboards.State().Month)
	form := records.DefaultForm(core.DateOf(s.now()))
	s.renderIndex(w, r, http.StatusOK, month, form, "")
}

func (s *Server) renderIndex(w http.ResponseWriter, r *http.Request, status int, month core.YearMonth, form records.FormInput, errMsg string) {
	logger := log.FromContext(r.Context())
	if s.templates == nil {
		logger.ErrorContext(r.Context(), "Templates not loaded", log.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	data := pageData{
		Dashboard: s.dashboards.DashboardFor(month),
		Form:      form,
		Error:     errMsg,
		Presets:   core.StakePresets,
		Other:     core.OtherStake,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		logger.ErrorContext(r.Context(), "Index template execution failed", log.FieldError, err, "template", "index.html")
	}
}

// handleCreateRecordForm is the browser form submit: redirect to the
// record's month on success, re-render with the input kept on failure.
func (s *Server) handleCreateRecordForm(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	form := p.FormInput()

	rec, err := s.writer.CreateRecord(r.Context(), form)
	if err != nil {
		month := s.dashboards.State().Month
		if d, perr := core.ParseDate(form.Date); perr == nil {
			month = core.YearMonthOf(d.Time)
		}
		s.renderIndex(w, r, statusFor(err), month, form, userMessage(err))
		return
	}

	http.Redirect(w, r, monthURL(core.YearMonthOf(rec.Date.Time)), http.StatusSeeOther)
}

func (s *Server) handleDeleteRecordForm(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	month := s.dashboards.State().Month
	if p.formData != nil {
		month = ParseMonthParams(p.formData, month)
	}

	if err := s.writer.DeleteRecord(r.Context(), r.PathValue("id")); err != nil {
		http.Error(w, userMessage(err), statusFor(err))
		return
	}
	http.Redirect(w, r, monthURL(month), http.StatusSeeOther)
}

func monthURL(m core.YearMonth) string {
	q := url.Values{}
	q.Set("year", strconv.Itoa(m.Year))
	q.Set("month", strconv.Itoa(m.Month))
	return "/?" + q.Encode()
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	month := ParseMonthParams(r.URL.Query(), s.dashboards.State().Month)
	writeJSON(w, http.StatusOK, s.dashboards.DashboardFor(month))
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	rs := s.dashboards.State().Records
	if rs == nil {
		rs = []core.Record{}
	}
	writeJSON(w, http.StatusOK, rs)
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rec, err := s.writer.CreateRecord(r.Context(), p.FormInput())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.Header().Set("Location", "/api/records/"+rec.ID)
	writeJSON(w, http.StatusCreated, rec)
}

// handleDeleteRecord succeeds for ids that do not exist.
func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	if err := s.writer.DeleteRecord(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStakes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"presets": core.StakePresets,
		"default": core.DefaultStake,
		"other":   core.OtherStake,
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	b, err := report.Workbook(s.dashboards.State().Records)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Workbook export failed", log.FieldError, err, log.FieldOperation, log.OpExport)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	name := fmt.Sprintf("mahjong-records-%s.xlsx", s.now().Format("20060102"))
	w.Header().Set("Content-Type", report.ContentTypeXLSX)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	_, _ = w.Write(b)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	year := s.dashboards.State().Month.Year
	if v := r.URL.Query().Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 || y > 9999 {
			writeError(w, http.StatusBadRequest, "invalid year")
			return
		}
		year = y
	}

	png, err := report.RenderYearChart(s.dashboards.State().Records, year)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Chart rendering failed", log.FieldError, err, log.FieldYear, year)
		writeError(w, http.StatusInternalServerError, "chart rendering failed")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}
