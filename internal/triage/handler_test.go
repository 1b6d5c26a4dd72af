package triage

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vein-assessment/internal/assessment"
	"vein-assessment/internal/platform/logger"
)

type stubRenderer struct{}

func (stubRenderer) Render(rec assessment.AssessmentRecord) ([]byte, error) {
	return []byte("%PDF-1.4 " + rec.ID), nil
}

func newTestServer(t *testing.T, analyzer Analyzer) (*httptest.Server, Service) {
	t.Helper()
	f := newFixture(t, Options{PhotoStep: true}, analyzer)
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		RegisterRoutes(r, NewHandler(f.svc, stubRenderer{}, logger.Nop()))
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, f.svc
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHandlerFullFlow(t *testing.T) {
	srv, svc := newTestServer(t, &fakeAnalyzer{res: &assessment.PhotoAnalysisResult{
		Severity:   assessment.SeverityPtr(3),
		Findings:   []string{"Bulging varicose veins"},
		Confidence: 0.8,
		Source:     assessment.SourceVision,
	}})
	api := srv.URL + "/api"

	resp, err := http.Get(api + "/cities")
	require.NoError(t, err)
	var cities map[string][]string
	decode(t, resp, &cities)
	assert.Contains(t, cities["cities"], "Mumbai")

	resp = postJSON(t, api+"/assessments", map[string]interface{}{"name": "Asha", "age": 45, "location": "Mumbai"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var v View
	decode(t, resp, &v)
	require.NotEmpty(t, v.ID)

	for _, key := range []string{assessment.KeyVisibleVeins, assessment.KeyUlcers, assessment.KeyPreviousTreatment} {
		resp = postJSON(t, api+"/assessments/"+v.ID+"/answers", map[string]interface{}{"key": key, "value": "No"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		decode(t, resp, &v)
	}
	require.Equal(t, PhasePhoto, v.Phase)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "leg.png")
	require.NoError(t, err)
	_, _ = part.Write(pngImage)
	require.NoError(t, mw.Close())
	resp, err = http.Post(api+"/assessments/"+v.ID+"/photo", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &v)
	require.Equal(t, PhaseResults, v.Phase)
	assert.Equal(t, assessment.Severity(3), v.Result.Severity)

	svc.Close()
	recordID := v.Result.RecordID

	resp, err = http.Get(api + "/admin/assessments?min_severity=3&limit=10")
	require.NoError(t, err)
	var list struct {
		Assessments []assessment.AssessmentRecord `json:"assessments"`
		Count       int                           `json:"count"`
	}
	decode(t, resp, &list)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, recordID, list.Assessments[0].ID)

	resp, err = http.Get(api + "/admin/assessments/" + recordID + "/report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	resp.Body.Close()

	resp, err = http.Get(api + "/admin/assessments/export?format=csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
	rows, err := csv.NewReader(resp.Body).ReadAll()
	resp.Body.Close()
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	resp, err = http.Get(api + "/admin/stats")
	require.NoError(t, err)
	var st Stats
	decode(t, resp, &st)
	assert.Equal(t, Stats{TotalAssessments: 1, HighSeverity: 1, AverageAge: 45, WithImages: 1}, st)
}

func TestHandlerErrors(t *testing.T) {
	srv, _ := newTestServer(t, &fakeAnalyzer{})
	api := srv.URL + "/api"

	resp := postJSON(t, api+"/assessments", map[string]interface{}{"name": "", "age": 200, "location": "Mumbai"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var eb errorBody
	decode(t, resp, &eb)
	assert.Equal(t, "invalid_patient", eb.Code)
	assert.Contains(t, eb.Fields, "name")
	assert.Contains(t, eb.Fields, "age")

	resp, err := http.Post(api+"/assessments", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(api + "/assessments/unknown")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	decode(t, resp, &eb)
	assert.Equal(t, "not_found", eb.Code)

	resp = postJSON(t, api+"/assessments", map[string]interface{}{"name": "Asha", "age": 45, "location": "Pune"})
	var v View
	decode(t, resp, &v)

	resp, err = http.Post(api+"/assessments/"+v.ID+"/skip", "application/json", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	decode(t, resp, &eb)
	assert.Equal(t, "wrong_phase", eb.Code)

	resp, err = http.Post(api+"/assessments/"+v.ID+"/photo", "text/plain", strings.NewReader("nope"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(api + "/admin/assessments/export?format=doc")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(api + "/admin/assessments?min_severity=high")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}
