package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"vein-assessment/internal/assessment"
	"vein-assessment/internal/platform/logger"
)

// EdgeAnalyzer calls a hosted function that fetches the stored photo by URL.
type EdgeAnalyzer struct {
	log        *logger.Logger
	url        string
	apiKey     string
	maxRetries int
	httpClient *http.Client
}

func NewEdgeAnalyzer(cfg Config, log *logger.Logger) *EdgeAnalyzer {
	return &EdgeAnalyzer{
		log:        log.With("service", "EdgeAnalyzer"),
		url:        cfg.BaseURL,
		apiKey:     cfg.APIKey,
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (e *EdgeAnalyzer) NeedsImageURL() bool { return true }

type edgeRequest struct {
	ImageURL string                 `json:"imageUrl"`
	Context  map[string]interface{} `json:"context"`
}

type edgeFindings struct {
	VaricoseVeins     bool `json:"varicoseVeins"`
	SpiderVeins       bool `json:"spiderVeins"`
	SkinDiscoloration bool `json:"skinDiscoloration"`
	Ulcers            bool `json:"ulcers"`
	Swelling          bool `json:"swelling"`
}

func (f edgeFindings) list() []string {
	var out []string
	for _, x := range []struct {
		on      bool
		finding string
	}{
		{f.VaricoseVeins, "Varicose veins detected"},
		{f.SpiderVeins, "Spider veins present"},
		{f.SkinDiscoloration, "Skin discoloration observed"},
		{f.Swelling, "Swelling detected"},
		{f.Ulcers, "Ulcers or wounds present"},
	} {
		if x.on {
			out = append(out, x.finding)
		}
	}
	return out
}

type edgeResponse struct {
	Confidence      float64         `json:"confidence"`
	Findings        edgeFindings    `json:"findings"`
	Severity        json.RawMessage `json:"severity"`
	Recommendations []string        `json:"recommendations"`
	RawAnalysis     string          `json:"rawAnalysis"`

	SeverityAdjustment *float64 `json:"severityAdjustment"`
}

func (e *EdgeAnalyzer) Analyze(ctx context.Context, req PhotoRequest) (*assessment.PhotoAnalysisResult, error) {
	if e.url == "" {
		return nil, fmt.Errorf("edge analysis: no function url configured")
	}
	if req.ImageURL == "" {
		return nil, fmt.Errorf("edge analysis: image url is required")
	}
	payload, err := json.Marshal(edgeRequest{
		ImageURL: req.ImageURL,
		Context: map[string]interface{}{
			"patientAge":      req.Patient.Age,
			"patientLocation": req.Patient.Location,
			"symptoms":        symptomPayload(req.Answers),
		},
	})
	if err != nil {
		return nil, err
	}

	var out edgeResponse
	err = withRetry(ctx, e.log, "edge", e.maxRetries, func() error {
		return e.send(ctx, payload, &out)
	})
	if err != nil {
		return nil, err
	}

	sev, err := edgeSeverity(out.Severity)
	if err != nil {
		return nil, err
	}
	return finish(&assessment.PhotoAnalysisResult{
		Severity:         assessment.SeverityPtr(sev),
		Findings:         out.Findings.list(),
		Recommendations:  out.Recommendations,
		Confidence:       out.Confidence,
		DetailedAnalysis: out.RawAnalysis,
		TreatmentUrgency: assessment.UrgencyFor(sev),
		ImageURL:         req.ImageURL,

		SeverityAdjustment: reportedAdjustment(out.SeverityAdjustment),
	}, assessment.SourceEdge)
}

// edgeSeverity accepts a number or a label. The function counts boolean
// findings, so a count above the scale is capped at the top level.
func edgeSeverity(raw json.RawMessage) (assessment.Severity, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, fmt.Errorf("%w: response has no severity", assessment.ErrInvalidAnalysis)
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("%w: negative severity %v", assessment.ErrInvalidAnalysis, n)
		}
		if n > float64(assessment.MaxSeverity) {
			n = float64(assessment.MaxSeverity)
		}
		return assessment.Severity(int(n)), nil
	}
	var label string
	if err := json.Unmarshal(raw, &label); err == nil {
		return assessment.ParseSeverityLabel(label), nil
	}
	return 0, fmt.Errorf("%w: unreadable severity %s", assessment.ErrInvalidAnalysis, string(raw))
}

func (e *EdgeAnalyzer) send(ctx context.Context, payload []byte, out *edgeResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &httpError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode edge analysis: %w", err)
	}
	return nil
}
