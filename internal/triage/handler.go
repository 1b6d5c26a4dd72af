package triage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/schema"

	"vein-assessment/internal/assessment"
	"vein-assessment/internal/export"
	"vein-assessment/internal/platform/apierr"
	"vein-assessment/internal/platform/logger"
	"vein-assessment/internal/platform/storage"
)

// ReportRenderer renders the printable report for a record.
type ReportRenderer interface {
	Render(rec assessment.AssessmentRecord) ([]byte, error)
}

type Handler struct {
	svc     Service
	reports ReportRenderer
	log     *logger.Logger
	decoder *schema.Decoder
}

func NewHandler(svc Service, reports ReportRenderer, log *logger.Logger) *Handler {
	dec := schema.NewDecoder()
	dec.IgnoreUnknownKeys(true)
	return &Handler{svc: svc, reports: reports, log: log.With("component", "TriageHandler"), decoder: dec}
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Get("/cities", h.Cities)
	r.Get("/questions", h.Questions)

	r.Route("/assessments", func(r chi.Router) {
		r.Post("/", h.Start)
		r.Get("/{id}", h.Get)
		r.Post("/{id}/answers", h.Answer)
		r.Post("/{id}/photo", h.Photo)
		r.Post("/{id}/skip", h.Skip)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Get("/assessments", h.ListRecords)
		r.Get("/assessments/export", h.Export)
		r.Get("/assessments/{id}", h.GetRecord)
		r.Get("/assessments/{id}/report.pdf", h.Report)
		r.Get("/stats", h.Stats)
	})
}

func (h *Handler) Cities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"cities": h.svc.Cities()})
}

func (h *Handler) Questions(w http.ResponseWriter, r *http.Request) {
	set := h.svc.Questions()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"variant":   set.Variant,
		"questions": set.Questions,
	})
}

type startRequest struct {
	Name     string `json:"name"`
	Age      int    `json:"age"`
	Location string `json:"location"`
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, apierr.BadRequest(apierr.CodeInvalidPatient, fmt.Errorf("invalid request body: %w", err)))
		return
	}
	v, err := h.svc.Start(r.Context(), assessment.PatientInfo{Name: req.Name, Age: req.Age, Location: req.Location})
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type answerRequest struct {
	Key    string   `json:"key"`
	Value  string   `json:"value"`
	Values []string `json:"values"`
}

func (h *Handler) Answer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, apierr.BadRequest(apierr.CodeInvalidAnswer, fmt.Errorf("invalid request body: %w", err)))
		return
	}
	values := req.Values
	if req.Value != "" {
		values = append([]string{req.Value}, values...)
	}
	v, err := h.svc.Answer(r.Context(), chi.URLParam(r, "id"), req.Key, values)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) Photo(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxImageBytes+(1<<20))
	if err := r.ParseMultipartForm(storage.MaxImageBytes); err != nil {
		h.fail(w, apierr.BadRequest(apierr.CodeInvalidImage, fmt.Errorf("invalid upload: %w", err)))
		return
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		h.fail(w, apierr.BadRequest(apierr.CodeInvalidImage, errors.New("missing image file")))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.fail(w, apierr.BadRequest(apierr.CodeInvalidImage, fmt.Errorf("read image: %w", err)))
		return
	}

	v, err := h.svc.SubmitPhoto(r.Context(), chi.URLParam(r, "id"), data)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) Skip(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.SkipPhoto(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) filter(r *http.Request) (ListFilter, error) {
	var f ListFilter
	if err := h.decoder.Decode(&f, r.URL.Query()); err != nil {
		return f, apierr.BadRequest("invalid_filter", err)
	}
	return f, nil
}

func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	f, err := h.filter(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	recs, err := h.svc.Records(r.Context(), f)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"assessments": recs, "count": len(recs)})
}

func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Record(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Record(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	pdf, err := h.reports.Render(*rec)
	if err != nil {
		h.fail(w, fmt.Errorf("render report: %w", err))
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="assessment_%s.pdf"`, rec.ID))
	_, _ = w.Write(pdf)
}

func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	format, err := export.FormatFor(r.URL.Query().Get("format"))
	if err != nil {
		h.fail(w, apierr.BadRequest("invalid_format", err))
		return
	}
	f, err := h.filter(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	recs, err := h.svc.Records(r.Context(), f)
	if err != nil {
		h.fail(w, err)
		return
	}

	name := fmt.Sprintf("vein_assessments_%s%s", time.Now().Format("2006-01-02"), format.Extension())
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	if err := export.Write(w, format, recs); err != nil {
		h.log.Error("Export failed mid-stream", "format", string(format), "error", err.Error())
	}
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type errorBody struct {
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	ae := apierr.As(err)
	msg := ae.Error()
	if ae.Status >= 500 {
		h.log.Error("Request failed", "code", ae.Code, "error", err.Error())
		msg = http.StatusText(ae.Status)
	}
	writeJSON(w, ae.Status, errorBody{Error: msg, Code: ae.Code, Fields: ae.Fields})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
