package agent

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"vein-assessment/internal/assessment"
	"vein-assessment/internal/platform/logger"
)

const (
	defaultVisionBaseURL = "https://api.openai.com"
	defaultVisionModel   = "gpt-4o"

	// textExtractionConfidence is reported when the model ignored the JSON
	// format and findings were pulled from prose.
	textExtractionConfidence = 0.75

	visionSystemPrompt = "You are a specialized AI medical assistant trained in vascular medicine and varicose vein analysis. Analyze medical images with high precision and provide detailed, actionable insights."
)

type VisionAnalyzer struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	maxRetries int
	httpClient *http.Client
}

// NewVisionAnalyzer calls an OpenAI-compatible chat completions endpoint with
// the photo inlined as a data URL.
func NewVisionAnalyzer(cfg Config, log *logger.Logger) *VisionAnalyzer {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultVisionBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultVisionModel
	}
	return &VisionAnalyzer{
		log:        log.With("service", "VisionAnalyzer"),
		baseURL:    base,
		apiKey:     cfg.APIKey,
		model:      model,
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (v *VisionAnalyzer) NeedsImageURL() bool { return false }

type chatContentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// visionReply mirrors the JSON the prompt asks for.
type visionReply struct {
	Severity         *float64 `json:"severity"`
	Findings         []string `json:"findings"`
	Recommendations  []string `json:"recommendations"`
	Confidence       *float64 `json:"confidence"`
	DetailedAnalysis string   `json:"detailed_analysis"`
	RiskFactors      []string `json:"risk_factors"`
	TreatmentUrgency string   `json:"treatment_urgency"`

	// SeverityAdjustment is optional.
	SeverityAdjustment *float64 `json:"severity_adjustment"`
}

func (v *VisionAnalyzer) Analyze(ctx context.Context, req PhotoRequest) (*assessment.PhotoAnalysisResult, error) {
	if len(req.Image) == 0 {
		return nil, fmt.Errorf("vision analysis: empty image")
	}
	ct := req.ContentType
	if ct == "" {
		ct = "image/jpeg"
	}
	dataURL := "data:" + ct + ";base64," + base64.StdEncoding.EncodeToString(req.Image)

	body := chatRequest{
		Model: v.model,
		Messages: []chatMessage{
			{Role: "system", Content: visionSystemPrompt},
			{Role: "user", Content: []chatContentPart{
				{Type: "text", Text: visionPrompt(req.Patient, req.Answers)},
				{Type: "image_url", ImageURL: &chatImageURL{URL: dataURL, Detail: "high"}},
			}},
		},
		MaxTokens:   1000,
		Temperature: 0.1,
	}

	var resp chatResponse
	err := withRetry(ctx, v.log, "vision", v.maxRetries, func() error {
		return v.post(ctx, "/v1/chat/completions", body, &resp)
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, fmt.Errorf("vision analysis: empty reply")
	}

	res, err := parseVisionReply(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	return finish(res, assessment.SourceVision)
}

func (v *VisionAnalyzer) post(ctx context.Context, path string, body, out interface{}) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+v.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &httpError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("vision decode error: %w", err)
	}
	return nil
}

var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

// parseVisionReply prefers the embedded JSON object and falls back to reading
// the reply as prose when there is none or it does not parse. Parsed JSON
// without a severity is an error.
func parseVisionReply(text string) (*assessment.PhotoAnalysisResult, error) {
	if m := jsonObject.FindString(text); m != "" {
		var r visionReply
		if err := json.Unmarshal([]byte(m), &r); err == nil {
			return r.toResult()
		}
	}
	return extractFromText(text), nil
}

func (r visionReply) toResult() (*assessment.PhotoAnalysisResult, error) {
	if r.Severity == nil {
		return nil, fmt.Errorf("%w: reply has no severity", assessment.ErrInvalidAnalysis)
	}
	sev := *r.Severity
	if sev != float64(int(sev)) {
		return nil, fmt.Errorf("%w: non-integer severity %v", assessment.ErrInvalidAnalysis, sev)
	}
	conf := 0.0
	if r.Confidence != nil {
		conf = *r.Confidence
	}
	return &assessment.PhotoAnalysisResult{
		Severity:         assessment.SeverityPtr(assessment.Severity(int(sev))),
		Findings:         r.Findings,
		Recommendations:  r.Recommendations,
		Confidence:       conf,
		DetailedAnalysis: r.DetailedAnalysis,
		RiskFactors:      r.RiskFactors,
		TreatmentUrgency: assessment.Urgency(strings.ToLower(strings.TrimSpace(r.TreatmentUrgency))),

		SeverityAdjustment: reportedAdjustment(r.SeverityAdjustment),
	}, nil
}

func extractFromText(text string) *assessment.PhotoAnalysisResult {
	sev := assessment.ParseSeverityLabel(text)
	findings := assessment.FindingsFromText(text)
	if len(findings) == 0 {
		findings = []string{"Visual analysis completed"}
	}
	return &assessment.PhotoAnalysisResult{
		Severity:         assessment.SeverityPtr(sev),
		Findings:         findings,
		Recommendations:  assessment.RecommendationsFor(sev),
		Confidence:       textExtractionConfidence,
		DetailedAnalysis: text,
		TreatmentUrgency: assessment.UrgencyFor(sev),
	}
}

func visionPrompt(p assessment.PatientInfo, a assessment.SymptomAnswers) string {
	s := symptomPayload(a)
	join := func(key string) string { return strings.Join(s[key].([]string), ", ") }

	var b strings.Builder
	b.WriteString("Please analyze this medical image of legs for varicose veins and related vascular conditions.\n\n")
	fmt.Fprintf(&b, "PATIENT CONTEXT:\n- Name: %s\n- Age: %d\n- Location: %s\n\n", p.Name, p.Age, p.Location)
	b.WriteString("REPORTED SYMPTOMS:\n")
	for _, row := range []struct{ label, key string }{
		{"Visible veins", "visibleVeins"},
		{"Spider veins", "spiderVeins"},
		{"Pain and heaviness", "painAndHeaviness"},
		{"Bulging veins", "bulgingVeins"},
		{"Skin discoloration", "skinDiscoloration"},
		{"Ulcers", "ulcers"},
		{"Duration", "duration"},
		{"Long hours standing/sitting", "longHours"},
		{"DVT history", "dvtHistory"},
		{"Family history", "familyHistory"},
		{"Previous treatment", "previousTreatment"},
	} {
		if v := s[row.key].(string); v != "" {
			fmt.Fprintf(&b, "- %s: %s\n", row.label, v)
		}
	}
	for _, row := range []struct{ label, key string }{
		{"Previous treatments", "previousTreatments"},
		{"Existing conditions", "existingConditions"},
		{"Current medications", "medications"},
	} {
		if v := join(row.key); v != "" {
			fmt.Fprintf(&b, "- %s: %s\n", row.label, v)
		}
	}
	b.WriteString(`
ANALYSIS REQUIREMENTS:
1. Examine the image for:
   - Varicose veins (enlarged, twisted veins)
   - Spider veins (small, web-like veins)
   - Skin discoloration or pigmentation changes
   - Swelling or edema
   - Ulcers or open wounds
   - Overall vein health

2. Provide your response in this exact JSON format:
{
  "severity": [0-4 integer scale],
  "findings": ["list of specific visual findings"],
  "recommendations": ["list of treatment recommendations"],
  "confidence": [0.0-1.0 confidence score],
  "detailed_analysis": "comprehensive analysis text",
  "risk_factors": ["identified risk factors"],
  "treatment_urgency": "low|medium|high|urgent",
  "severity_adjustment": [integer -1..1, how the photo shifts the reported-symptom severity]
}

SEVERITY SCALE:
- 0: No visible signs
- 1: Mild spider veins or early symptoms
- 2: Moderate symptoms with visible veins
- 3: Advanced varicose veins with complications
- 4: Severe condition with ulcers or major complications

Focus on accuracy and provide actionable medical insights while correlating visual findings with reported symptoms.
`)
	return b.String()
}
