package report

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vein-assessment/internal/assessment"
	"vein-assessment/internal/platform/logger"
)

func sampleRecord() assessment.AssessmentRecord {
	set := assessment.DetailedSet()
	a := assessment.SymptomAnswers{}
	a.Set(assessment.KeyUlcers, assessment.Answer{Value: "Yes"})
	a.Set(assessment.KeyFamilyHistory, assessment.Answer{Value: "Yes"})
	a.Set(assessment.KeyExistingConditions, assessment.Answer{Values: []string{"Diabetes"}})
	sev := assessment.CalculateSeverity(set, a)
	photo := assessment.SynthesizeFallback(set, a, assessment.ReasonSkipped)
	b, _ := assessment.Resolve(sev, photo)
	return assessment.Assemble(assessment.AssembleInput{
		ID:        "rec-42",
		CreatedAt: time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC),
		Patient:   assessment.PatientInfo{Name: "Priya", Age: 63, Location: "Delhi"},
		Set:       set,
		Answers:   a,
		Severity:  sev,
		Bundle:    b,
		Photo:     photo,
	})
}

func availableFont(t *testing.T) string {
	t.Helper()
	for _, p := range DefaultFontPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	t.Skip("DejaVuSans.ttf not installed")
	return ""
}

func TestRender(t *testing.T) {
	font := availableFont(t)
	data, err := NewRenderer([]string{"/nonexistent/font.ttf", font}).Render(sampleRecord())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestRenderWithoutFont(t *testing.T) {
	_, err := NewRenderer([]string{"/nonexistent/font.ttf"}).Render(sampleRecord())
	assert.ErrorIs(t, err, ErrNoFont)
}

type fakeRenderer struct {
	data []byte
	err  error
}

func (f fakeRenderer) Render(assessment.AssessmentRecord) ([]byte, error) { return f.data, f.err }

type sentDoc struct {
	chatID   int64
	filename string
	data     []byte
	caption  string
}

type fakeTelegram struct {
	docs     []sentDoc
	messages []string
	err      error
}

func (f *fakeTelegram) SendMessage(_ context.Context, chatID int64, text string) error {
	f.messages = append(f.messages, text)
	return f.err
}

func (f *fakeTelegram) SendDocument(_ context.Context, chatID int64, filename string, data []byte, caption string) error {
	f.docs = append(f.docs, sentDoc{chatID, filename, data, caption})
	return f.err
}

func TestSendUrgentReport(t *testing.T) {
	tg := &fakeTelegram{}
	svc := NewService(logger.Nop(), fakeRenderer{data: []byte("%PDF-1.4")}, tg, 777)

	rec := sampleRecord()
	require.NoError(t, svc.SendUrgentReport(context.Background(), rec))
	require.Len(t, tg.docs, 1)
	assert.Equal(t, int64(777), tg.docs[0].chatID)
	assert.Equal(t, "assessment_rec-42.pdf", tg.docs[0].filename)
	assert.Contains(t, tg.docs[0].caption, "Severity: 4")
	assert.Contains(t, tg.docs[0].caption, "Priya, 63, Delhi")
	assert.Empty(t, tg.messages)
}

func TestSendUrgentReportFallsBackToText(t *testing.T) {
	tg := &fakeTelegram{}
	svc := NewService(logger.Nop(), fakeRenderer{err: ErrNoFont}, tg, 777)

	require.NoError(t, svc.SendUrgentReport(context.Background(), sampleRecord()))
	assert.Empty(t, tg.docs)
	require.Len(t, tg.messages, 1)
	assert.Contains(t, tg.messages[0], "Urgent vein assessment")
}

func TestSendUrgentReportError(t *testing.T) {
	tg := &fakeTelegram{err: errors.New("bot blocked")}
	svc := NewService(logger.Nop(), fakeRenderer{data: []byte("%PDF-1.4")}, tg, 1)
	assert.Error(t, svc.SendUrgentReport(context.Background(), sampleRecord()))
}
