package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/signintech/gopdf"

	"vein-assessment/internal/assessment"
	"vein-assessment/internal/platform/logger"
)

// DefaultFontPaths are tried in order until one loads. They cover the Alpine,
// Debian and Fedora DejaVu packages.
var DefaultFontPaths = []string{
	"/usr/share/fonts/ttf-dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
}

var ErrNoFont = errors.New("no usable report font")

const (
	fontFamily = "DejaVu"
	textWidth  = 500.0
)

// Renderer produces the clinician PDF for an assessment record.
type Renderer struct {
	fontPaths []string
}

func NewRenderer(fontPaths []string) *Renderer {
	if len(fontPaths) == 0 {
		fontPaths = DefaultFontPaths
	}
	return &Renderer{fontPaths: fontPaths}
}

func (r *Renderer) loadFont(pdf *gopdf.GoPdf) error {
	var lastErr error
	for _, path := range r.fontPaths {
		err := pdf.AddTTFFont(fontFamily, path)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("%w (install ttf-dejavu): %v", ErrNoFont, lastErr)
}

func (r *Renderer) Render(rec assessment.AssessmentRecord) ([]byte, error) {
	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()
	if err := r.loadFont(&pdf); err != nil {
		return nil, err
	}

	w := &pageWriter{pdf: &pdf}
	w.heading(20, "Vein Health Assessment Report")
	w.br(10)

	w.font(12)
	w.line(fmt.Sprintf("Date: %s", rec.CreatedAt.Format("02 Jan 2006 15:04 MST")))
	w.line(fmt.Sprintf("Assessment ID: %s", rec.ID))
	w.line(fmt.Sprintf("Patient: %s, %d, %s", rec.PatientName, rec.PatientAge, rec.PatientLocation))
	w.line(fmt.Sprintf("Questionnaire: %s", rec.Variant))
	w.br(10)

	w.heading(14, "Result")
	w.font(11)
	w.line(fmt.Sprintf("Severity level: %d (%s)", rec.SeverityLevel, rec.StageTitle))
	w.line(fmt.Sprintf("Urgency: %s", rec.Urgency))
	w.line(fmt.Sprintf("Risk level: %s (confidence %.2f)", rec.RiskLevel, rec.AIConfidence))
	w.paragraph(rec.Recommendation)
	w.br(10)

	w.heading(14, "Reported symptoms")
	w.font(11)
	for _, k := range assessment.RecordSymptomKeys() {
		v := rec.Symptom(k)
		if v == assessment.NotAsked {
			continue
		}
		w.line(fmt.Sprintf("- %s: %s", humanize(k), v))
	}
	w.list("Previous treatments", rec.PreviousTreatments)
	w.list("Existing conditions", rec.ExistingConditions)
	w.list("Medications", rec.Medications)
	w.br(10)

	if p := rec.PhotoAnalysis; p != nil {
		title := "Photo analysis"
		if p.IsFallback() {
			title = "Symptom-based analysis"
		}
		w.heading(14, title)
		w.font(11)
		if len(p.Findings) == 0 {
			w.line("- No findings.")
		}
		for _, f := range p.Findings {
			w.paragraph("- " + f)
		}
		if rec.PhotoAnalyzed {
			w.line(fmt.Sprintf("Image confidence: %.2f", rec.ImageAnalysisConfidence))
		}
		if rec.ImageURL != "" {
			w.paragraph("Image: " + rec.ImageURL)
		}
		if p.DetailedAnalysis != "" {
			w.paragraph(p.DetailedAnalysis)
		}
		w.br(10)
	}

	w.heading(14, "Suggested treatments")
	w.font(11)
	for _, t := range rec.Treatments {
		w.paragraph("- " + t)
	}
	w.line(fmt.Sprintf("Follow-up: %s", rec.TreatmentPlan.FollowUpSchedule))

	w.font(9)
	pdf.SetY(800)
	w.line("Generated automatically. This report does not replace a clinical examination.")

	if w.err != nil {
		return nil, w.err
	}
	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// pageWriter keeps the first error so the layout code reads top to bottom.
type pageWriter struct {
	pdf *gopdf.GoPdf
	err error
}

func (w *pageWriter) font(size int) {
	if w.err == nil {
		w.err = w.pdf.SetFont(fontFamily, "", size)
	}
}

func (w *pageWriter) br(h float64) { w.pdf.Br(h) }

func (w *pageWriter) line(s string) {
	if w.err != nil {
		return
	}
	w.err = w.pdf.Cell(nil, s)
	w.pdf.Br(15)
}

func (w *pageWriter) heading(size int, s string) {
	w.font(size)
	w.line(s)
}

func (w *pageWriter) paragraph(s string) {
	if w.err != nil || strings.TrimSpace(s) == "" {
		return
	}
	for _, para := range strings.Split(s, "\n") {
		if strings.TrimSpace(para) == "" {
			w.pdf.Br(6)
			continue
		}
		lines, err := w.pdf.SplitText(para, textWidth)
		if err != nil {
			w.err = err
			return
		}
		for _, l := range lines {
			if w.err = w.pdf.Cell(nil, l); w.err != nil {
				return
			}
			w.pdf.Br(13)
		}
	}
}

func (w *pageWriter) list(label string, items []string) {
	if len(items) == 0 {
		return
	}
	w.paragraph(fmt.Sprintf("- %s: %s", label, strings.Join(items, ", ")))
}

func humanize(key string) string {
	s := strings.ReplaceAll(key, "_", " ")
	return strings.ToUpper(s[:1]) + s[1:]
}

// TelegramClient is the subset of the bot API the report sender needs.
type TelegramClient interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendDocument(ctx context.Context, chatID int64, filename string, data []byte, caption string) error
}

// PDFRenderer is satisfied by *Renderer.
type PDFRenderer interface {
	Render(rec assessment.AssessmentRecord) ([]byte, error)
}

// Service sends urgent assessments to the clinic chat.
type Service struct {
	log      *logger.Logger
	renderer PDFRenderer
	tg       TelegramClient
	chatID   int64
}

func NewService(log *logger.Logger, renderer PDFRenderer, tg TelegramClient, clinicChatID int64) *Service {
	return &Service{
		log:      log.With("service", "ReportService"),
		renderer: renderer,
		tg:       tg,
		chatID:   clinicChatID,
	}
}

// SendUrgentReport sends the PDF, or a text summary when the PDF cannot be
// rendered.
func (s *Service) SendUrgentReport(ctx context.Context, rec assessment.AssessmentRecord) error {
	caption := Summary(rec)

	data, err := s.renderer.Render(rec)
	if err != nil {
		s.log.Warn("PDF render failed, sending text summary", "record_id", rec.ID, "error", err.Error())
		if err := s.tg.SendMessage(ctx, s.chatID, caption); err != nil {
			return fmt.Errorf("send summary: %w", err)
		}
		return nil
	}

	fileName := fmt.Sprintf("assessment_%s.pdf", rec.ID)
	if err := s.tg.SendDocument(ctx, s.chatID, fileName, data, caption); err != nil {
		return fmt.Errorf("send report: %w", err)
	}
	s.log.Info("Urgent report sent", "record_id", rec.ID, "chat_id", s.chatID, "severity", int(rec.SeverityLevel))
	return nil
}

// Summary is the short chat text attached to a report.
func Summary(rec assessment.AssessmentRecord) string {
	return fmt.Sprintf("Urgent vein assessment\nPatient: %s, %d, %s\nSeverity: %d (%s)\nUrgency: %s\nRisk: %s",
		rec.PatientName, rec.PatientAge, rec.PatientLocation,
		rec.SeverityLevel, rec.StageTitle, rec.Urgency, rec.RiskLevel)
}
