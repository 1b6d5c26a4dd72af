package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"vein-assessment/internal/assessment"
	"vein-assessment/internal/platform/logger"
)

const defaultExternalURL = "https://varicose-veins.vercel.app/api/analyze"

// externalDefaultConfidence applies when the service omits confidence.
const externalDefaultConfidence = 0.5

type ExternalAnalyzer struct {
	log        *logger.Logger
	url        string
	maxRetries int
	httpClient *http.Client
	now        func() time.Time
}

// NewExternalAnalyzer posts the photo and context as multipart form data to a
// third-party analysis service.
func NewExternalAnalyzer(cfg Config, log *logger.Logger) *ExternalAnalyzer {
	url := cfg.BaseURL
	if url == "" {
		url = defaultExternalURL
	}
	return &ExternalAnalyzer{
		log:        log.With("service", "ExternalAnalyzer"),
		url:        url,
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		now:        time.Now,
	}
}

func (e *ExternalAnalyzer) NeedsImageURL() bool { return false }

type externalResponse struct {
	Severity        *float64 `json:"severity"`
	Findings        []string `json:"findings"`
	Recommendations []string `json:"recommendations"`
	Confidence      *float64 `json:"confidence"`
	ReportURL       string   `json:"report_url"`
	AnalysisID      string   `json:"analysis_id"`

	SeverityAdjustment *float64 `json:"severity_adjustment"`
}

func (e *ExternalAnalyzer) Analyze(ctx context.Context, req PhotoRequest) (*assessment.PhotoAnalysisResult, error) {
	body, contentType, err := e.form(req)
	if err != nil {
		return nil, err
	}

	var out externalResponse
	err = withRetry(ctx, e.log, "external", e.maxRetries, func() error {
		return e.send(ctx, body, contentType, &out)
	})
	if err != nil {
		return nil, err
	}

	if out.Severity == nil {
		return nil, fmt.Errorf("%w: response has no numeric severity", assessment.ErrInvalidAnalysis)
	}
	conf := externalDefaultConfidence
	if out.Confidence != nil && *out.Confidence > 0 {
		conf = *out.Confidence
	}
	return finish(&assessment.PhotoAnalysisResult{
		Severity:        assessment.SeverityPtr(assessment.Severity(int(*out.Severity))),
		Findings:        out.Findings,
		Recommendations: out.Recommendations,
		Confidence:      conf,
		ReportURL:       out.ReportURL,
		AnalysisID:      out.AnalysisID,

		SeverityAdjustment: reportedAdjustment(out.SeverityAdjustment),
	}, assessment.SourceExternal)
}

func (e *ExternalAnalyzer) form(req PhotoRequest) ([]byte, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	ct := req.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="image"; filename="leg-photo"`)
	h.Set("Content-Type", ct)
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(req.Image); err != nil {
		return nil, "", err
	}

	patient, err := json.Marshal(map[string]string{
		"name":     req.Patient.Name,
		"age":      fmt.Sprint(req.Patient.Age),
		"location": req.Patient.Location,
	})
	if err != nil {
		return nil, "", err
	}
	symptoms, err := json.Marshal(symptomPayload(req.Answers))
	if err != nil {
		return nil, "", err
	}
	fields := [][2]string{
		{"patientInfo", string(patient)},
		{"symptoms", string(symptoms)},
		{"timestamp", e.now().UTC().Format(time.RFC3339)},
	}
	for _, f := range fields {
		if err := writer.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body.Bytes(), writer.FormDataContentType(), nil
}

func (e *ExternalAnalyzer) send(ctx context.Context, body []byte, contentType string, out *externalResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return &httpError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode external analysis: %w", err)
	}
	return nil
}
