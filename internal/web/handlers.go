package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/KaramelBytes/edaloom/internal/analysis"
	"github.com/KaramelBytes/edaloom/internal/artifacts"
	"github.com/KaramelBytes/edaloom/internal/eda"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// ErrMissingUpload is returned when the request carries no "file" part.
var ErrMissingUpload = errors.New("no file part in the request")

// errEmptyFilename marks a form submitted without choosing a file.
var errEmptyFilename = errors.New("no file selected")

// report is one finished analysis.
type report struct {
	ID     string
	Result *eda.Result
	Plots  []plotLink
}

type plotLink struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type pageData struct {
	Error       string
	Report      *report
	MaxUploadMB int
}

type analyzeResponse struct {
	ReportID string `json:"report_id"`
	*eda.Result
	Plots []plotLink `json:"plots"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, http.StatusOK, pageData{})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	rep, err := s.process(w, r)
	if errors.Is(err, errEmptyFilename) {
		s.renderPage(w, http.StatusOK, pageData{})
		return
	}
	if err != nil {
		status, msg := s.classify(r, err)
		s.renderPage(w, status, pageData{Error: msg})
		return
	}
	s.renderPage(w, http.StatusOK, pageData{Report: rep})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	rep, err := s.process(w, r)
	if errors.Is(err, errEmptyFilename) {
		err = ErrMissingUpload
	}
	if err != nil {
		status, msg := s.classify(r, err)
		s.respondJSON(w, status, map[string]string{"error": msg})
		return
	}
	s.respondJSON(w, http.StatusOK, analyzeResponse{ReportID: rep.ID, Result: rep.Result, Plots: rep.Plots})
}

func (s *Server) handlePlot(w http.ResponseWriter, r *http.Request) {
	id, name := chi.URLParam(r, "reportID"), chi.URLParam(r, "name")
	f, err := s.store.Open(id, name)
	if err != nil {
		if !errors.Is(err, artifacts.ErrNotFound) {
			s.logger.Error("open plot", zap.String("report", id), zap.String("name", name), zap.Error(err))
		}
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	// report directories are immutable once written
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// process runs the upload pipeline: save, parse, analyse, render, prune.
func (s *Server) process(w http.ResponseWriter, r *http.Request) (*report, error) {
	limit := s.cfg.MaxUploadBytes()
	if r.ContentLength > limit {
		return nil, &http.MaxBytesError{Limit: limit}
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			// a part without a filename is stored as a plain form value
			if r.MultipartForm != nil && len(r.MultipartForm.Value["file"]) > 0 {
				return nil, errEmptyFilename
			}
			return nil, ErrMissingUpload
		}
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, fmt.Errorf("%w: %v", ErrMissingUpload, err)
		}
		return nil, fmt.Errorf("read upload: %w", err)
	}
	defer file.Close()
	if hdr.Filename == "" {
		return nil, errEmptyFilename
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	path, err := artifacts.SaveUpload(s.cfg.UploadDir, hdr.Filename, data)
	if err != nil {
		return nil, err
	}
	ds, err := analysis.LoadCSV(bytes.NewReader(data), filepath.Base(path), s.load)
	if err != nil {
		s.countReport("rejected")
		return nil, err
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout())
	defer cancel()

	rep, err := s.store.NewReport()
	if err != nil {
		return nil, err
	}
	stored := false
	defer func() {
		if !stored {
			_ = os.RemoveAll(rep.Dir())
		}
	}()
	start := time.Now()
	res, err := s.agent.Analyze(ctx, ds, rep)
	if err != nil {
		s.countReport("failed")
		return nil, err
	}
	files, err := rep.Files()
	if err != nil {
		s.countReport("failed")
		return nil, err
	}
	stored = true
	removed, err := s.store.Prune(rep.ID)
	if err != nil {
		// retention is best effort
		s.logger.Warn("prune reports", zap.Error(err))
	}
	if s.metrics != nil {
		s.metrics.Reports.WithLabelValues("ok").Inc()
		s.metrics.AnalysisDuration.Observe(time.Since(start).Seconds())
		s.metrics.QualityScore.Observe(float64(res.Score))
		s.metrics.PlotsRendered.Add(float64(len(files)))
		s.metrics.ReportsPruned.Add(float64(removed))
	}
	s.logger.Info("report stored",
		zap.String("report", rep.ID),
		zap.String("upload", path),
		zap.Int("plots", len(files)),
		zap.String("request_id", middleware.GetReqID(r.Context())),
	)

	out := &report{ID: rep.ID, Result: res}
	for _, f := range files {
		out.Plots = append(out.Plots, plotLink{Name: f, URL: "/plots/" + rep.ID + "/" + url.PathEscape(f)})
	}
	return out, nil
}

func (s *Server) countReport(outcome string) {
	if s.metrics != nil {
		s.metrics.Reports.WithLabelValues(outcome).Inc()
	}
}

// classify maps a pipeline error to an HTTP status and a user-facing message.
func (s *Server) classify(r *http.Request, err error) (int, string) {
	var (
		maxErr   *http.MaxBytesError
		parseErr *analysis.ParseError
		plotErr  *eda.PlotError
	)
	switch {
	case errors.Is(err, ErrMissingUpload), errors.Is(err, artifacts.ErrBadName):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds the %d MB limit", s.cfg.MaxUploadMB)
	case errors.As(err, &parseErr), errors.Is(err, analysis.ErrEmptyInput):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "analysis timed out"
	}
	fields := []zap.Field{zap.Error(err), zap.String("request_id", middleware.GetReqID(r.Context()))}
	if errors.As(err, &plotErr) {
		fields = append(fields, zap.String("visual", string(plotErr.Visual.Kind)), zap.String("column", plotErr.Visual.Column))
	}
	s.logger.Error("analysis failed", fields...)
	return http.StatusInternalServerError, "internal error while analysing the dataset"
}

func (s *Server) renderPage(w http.ResponseWriter, status int, data pageData) {
	data.MaxUploadMB = s.cfg.MaxUploadMB
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, "index.html", data); err != nil {
		s.logger.Error("render page", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("encode response", zap.Error(err))
	}
}
