package triage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"vein-assessment/internal/agent"
	"vein-assessment/internal/assessment"
	"vein-assessment/internal/platform/apierr"
	"vein-assessment/internal/platform/logger"
	"vein-assessment/internal/platform/storage"
)

// Analyzer is the photo-analysis collaborator.
type Analyzer interface {
	Analyze(ctx context.Context, req agent.PhotoRequest) (*assessment.PhotoAnalysisResult, error)
	NeedsImageURL() bool
}

// Notifier is told about finished assessments at or above the alert level.
type Notifier interface {
	SendUrgentReport(ctx context.Context, rec assessment.AssessmentRecord) error
}

type Service interface {
	Questions() assessment.QuestionSet
	Cities() []string
	Start(ctx context.Context, p assessment.PatientInfo) (*View, error)
	Get(ctx context.Context, id string) (*View, error)
	Answer(ctx context.Context, id, key string, values []string) (*View, error)
	SubmitPhoto(ctx context.Context, id string, image []byte) (*View, error)
	SkipPhoto(ctx context.Context, id string) (*View, error)

	Record(ctx context.Context, id string) (*assessment.AssessmentRecord, error)
	Records(ctx context.Context, f ListFilter) ([]assessment.AssessmentRecord, error)
	Stats(ctx context.Context) (Stats, error)

	// Close waits for background persistence and notifications.
	Close()
}

type Options struct {
	Set                   assessment.QuestionSet
	Merge                 assessment.MergeStrategy
	PhotoStep             bool
	Cities                []string
	FreeTextLocation      bool
	StrictRecommendations bool
	AnalysisTimeout       time.Duration
	BackgroundTimeout     time.Duration
	AlertMinSeverity      assessment.Severity

	Now   func() time.Time
	NewID func() string
}

type service struct {
	log      *logger.Logger
	opts     Options
	sessions SessionStore
	repo     Repository
	analyzer Analyzer
	photos   storage.PhotoStore
	notifier Notifier

	// Sessions hash onto a fixed set of mutexes so the set never grows.
	locks [lockStripes]sync.Mutex

	inflightMu sync.Mutex
	inflight   map[string]context.CancelFunc

	wg sync.WaitGroup
}

// NewService wires the flow. analyzer, photos and notifier may be nil: a nil
// analyzer or store disables the photo step and a nil notifier disables alerts.
func NewService(log *logger.Logger, opts Options, sessions SessionStore, repo Repository, analyzer Analyzer, photos storage.PhotoStore, notifier Notifier) Service {
	if opts.Merge == nil {
		opts.Merge = assessment.OverrideMerge{}
	}
	if len(opts.Cities) == 0 {
		opts.Cities = DefaultCities
	}
	if opts.AnalysisTimeout <= 0 {
		opts.AnalysisTimeout = 60 * time.Second
	}
	if opts.BackgroundTimeout <= 0 {
		opts.BackgroundTimeout = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if analyzer == nil || photos == nil {
		opts.PhotoStep = false
	}
	return &service{
		log:      log.With("service", "TriageService"),
		opts:     opts,
		sessions: sessions,
		repo:     repo,
		analyzer: analyzer,
		photos:   photos,
		notifier: notifier,
		inflight: map[string]context.CancelFunc{},
	}
}

func (s *service) Questions() assessment.QuestionSet { return s.opts.Set }

func (s *service) Cities() []string { return append([]string(nil), s.opts.Cities...) }

const lockStripes = 64

func (s *service) sessionMutex(id string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &s.locks[h.Sum32()%lockStripes]
}

func (s *service) lock(id string) func() {
	mu := s.sessionMutex(id)
	mu.Lock()
	return mu.Unlock
}

func (s *service) Start(ctx context.Context, p assessment.PatientInfo) (*View, error) {
	patient, err := ValidatePatient(p, s.opts.Cities, s.opts.FreeTextLocation)
	if err != nil {
		var fe FieldErrors
		ae := apierr.BadRequest(apierr.CodeInvalidPatient, err)
		if errors.As(err, &fe) {
			ae.Fields = fe
		}
		return nil, ae
	}

	seq := assessment.NewSequencer(s.opts.Set, s.opts.PhotoStep)
	seq.Start(patient)

	now := s.opts.Now()
	sess := &Session{
		ID:        s.opts.NewID(),
		Patient:   patient,
		Variant:   s.opts.Set.Variant,
		PhotoStep: s.opts.PhotoStep,
		Phase:     PhaseQuestionnaire,
		Sequence:  seq.Snapshot(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.sessions.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	s.log.Info("Assessment started", "session_id", sess.ID, "variant", sess.Variant, "patient_name", patient.Name)
	return s.view(sess), nil
}

func (s *service) Get(ctx context.Context, id string) (*View, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(sess), nil
}

func (s *service) Answer(ctx context.Context, id, key string, values []string) (*View, error) {
	unlock := s.lock(id)
	defer unlock()

	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Phase != PhaseQuestionnaire {
		return nil, apierr.Conflict(apierr.CodeWrongPhase, fmt.Errorf("session is in %s phase", sess.Phase))
	}

	seq := s.sequencer(sess)
	progress, err := seq.Submit(key, values...)
	if err != nil {
		if errors.Is(err, assessment.ErrSequenceComplete) {
			return nil, apierr.Conflict(apierr.CodeWrongPhase, err)
		}
		return nil, apierr.BadRequest(apierr.CodeInvalidAnswer, err)
	}

	switch progress {
	case assessment.ProgressReadyForPhoto:
		sess.Phase = PhasePhoto
	case assessment.ProgressReadyForScoring:
		sess.Sequence = seq.Snapshot()
		if err := s.finalize(ctx, sess, nil, assessment.ReasonDisabled); err != nil {
			return nil, err
		}
		return s.view(sess), nil
	}

	sess.Sequence = seq.Snapshot()
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	return s.view(sess), nil
}

type analysisOutcome struct {
	result   *assessment.PhotoAnalysisResult
	imageURL string
	err      error
}

// SubmitPhoto stores and analyzes the photo. The session lock is released
// while the analyzer runs so SkipPhoto can abandon it.
func (s *service) SubmitPhoto(ctx context.Context, id string, image []byte) (*View, error) {
	contentType, err := storage.ValidateImage(image)
	if err != nil {
		return nil, apierr.BadRequest(apierr.CodeInvalidImage, err)
	}

	unlock := s.lock(id)
	sess, err := s.load(ctx, id)
	if err != nil {
		unlock()
		return nil, err
	}
	if sess.Phase != PhasePhoto {
		unlock()
		return nil, apierr.Conflict(apierr.CodeWrongPhase, fmt.Errorf("session is in %s phase", sess.Phase))
	}
	sess.Phase = PhaseAnalyzing
	if err := s.save(ctx, sess); err != nil {
		unlock()
		return nil, err
	}
	actx, cancel := context.WithTimeout(ctx, s.opts.AnalysisTimeout)
	s.setInflight(id, cancel)
	unlock()

	req := agent.PhotoRequest{
		Image:       image,
		ContentType: contentType,
		Patient:     sess.Patient,
		Answers:     s.sequencer(sess).Answers(),
	}
	done := make(chan analysisOutcome, 1)
	go func() {
		res, url, err := s.analyze(actx, id, req)
		done <- analysisOutcome{result: res, imageURL: url, err: err}
	}()
	var out analysisOutcome
	select {
	case out = <-done:
	case <-actx.Done():
		out = analysisOutcome{err: actx.Err()}
	}
	s.clearInflight(id)
	cancel()

	// The request may be gone; the session still has to be finished.
	fctx := context.WithoutCancel(ctx)
	unlock = s.lock(id)
	defer unlock()

	sess, err = s.load(fctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Phase != PhaseAnalyzing {
		// skipped while analyzing
		return s.view(sess), nil
	}
	sess.ImageURL = out.imageURL

	seq := s.sequencer(sess)
	if out.err != nil {
		reason := assessment.ReasonFailed
		if errors.Is(out.err, context.Canceled) || errors.Is(out.err, context.DeadlineExceeded) {
			reason = assessment.ReasonAbandoned
		}
		s.log.Warn("Photo analysis failed, using questionnaire fallback", "session_id", id, "reason", reason, "error", out.err.Error())
		seq.Say(assessment.AnalysisFailedMsg)
		sess.Sequence = seq.Snapshot()
		if err := s.finalize(fctx, sess, nil, reason); err != nil {
			return nil, err
		}
		return s.view(sess), nil
	}

	out.result.ImageURL = out.imageURL
	if err := s.finalize(fctx, sess, out.result, ""); err != nil {
		return nil, err
	}
	return s.view(sess), nil
}

// analyze uploads and analyzes concurrently unless the analyzer needs the
// stored URL, in which case the upload goes first. When the analyzer works
// from the bytes, a failed upload only costs the image URL.
func (s *service) analyze(ctx context.Context, id string, req agent.PhotoRequest) (*assessment.PhotoAnalysisResult, string, error) {
	key := storage.PhotoKey(id, req.ContentType)

	if s.analyzer.NeedsImageURL() {
		url, err := s.photos.Put(ctx, key, req.ContentType, bytes.NewReader(req.Image))
		if err != nil {
			return nil, "", fmt.Errorf("store photo: %w", err)
		}
		req.ImageURL = url
		res, err := s.analyzer.Analyze(ctx, req)
		return res, url, err
	}

	var (
		url string
		res *assessment.PhotoAnalysisResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := s.photos.Put(gctx, key, req.ContentType, bytes.NewReader(req.Image))
		if err != nil {
			s.log.Error("Failed to store photo", "session_id", id, "error", err.Error())
			return nil
		}
		url = u
		return nil
	})
	g.Go(func() error {
		r, err := s.analyzer.Analyze(gctx, req)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, url, err
	}
	return res, url, nil
}

func (s *service) SkipPhoto(ctx context.Context, id string) (*View, error) {
	unlock := s.lock(id)
	defer unlock()

	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	reason := assessment.ReasonSkipped
	switch sess.Phase {
	case PhasePhoto:
	case PhaseAnalyzing:
		reason = assessment.ReasonAbandoned
		s.cancelInflight(id)
	default:
		return nil, apierr.Conflict(apierr.CodeWrongPhase, fmt.Errorf("session is in %s phase", sess.Phase))
	}

	seq := s.sequencer(sess)
	seq.Say(assessment.SkipPhotoMessage)
	sess.Sequence = seq.Snapshot()
	if err := s.finalize(ctx, sess, nil, reason); err != nil {
		return nil, err
	}
	return s.view(sess), nil
}

// finalize scores the session, stores the result and hands the record to the
// background workers. A nil photo means the answer-only fallback is used.
func (s *service) finalize(ctx context.Context, sess *Session, photo *assessment.PhotoAnalysisResult, reason string) error {
	seq := s.sequencer(sess)
	answers := seq.Answers()
	if photo == nil {
		photo = assessment.SynthesizeFallback(s.opts.Set, answers, reason)
	}

	sev := assessment.EffectiveSeverity(s.opts.Set, answers, photo, s.opts.Merge)
	var (
		bundle assessment.RecommendationBundle
		err    error
	)
	if s.opts.StrictRecommendations {
		bundle, err = assessment.Resolve(sev, photo)
	} else {
		var clamped bool
		bundle, clamped, err = assessment.ResolveNearest(sev, photo)
		if clamped {
			s.log.Error("Severity outside recommendation table, clamped", "session_id", sess.ID, "severity", int(sev), "used", int(bundle.Level))
			sev = bundle.Level
		}
	}
	if err != nil {
		return apierr.New(http.StatusInternalServerError, apierr.CodeInternalConsistency, err)
	}

	rec := assessment.Assemble(assessment.AssembleInput{
		ID:        s.opts.NewID(),
		CreatedAt: s.opts.Now(),
		Patient:   sess.Patient,
		Set:       s.opts.Set,
		Answers:   answers,
		Severity:  sev,
		Bundle:    bundle,
		Photo:     photo,
	})
	if rec.ImageURL == "" {
		rec.ImageURL = sess.ImageURL
	}

	seq.Say(fmt.Sprintf("Thank you, %s! Your assessment is complete. %s", sess.Patient.Name, bundle.Title))
	sess.Sequence = seq.Snapshot()
	sess.Phase = PhaseResults
	sess.Result = &Result{
		RecordID:      rec.ID,
		Severity:      sev,
		Bundle:        bundle,
		Photo:         photo,
		Risk:          assessment.ClassifyRisk(answers),
		TreatmentPlan: rec.TreatmentPlan,
	}
	if err := s.save(ctx, sess); err != nil {
		return err
	}

	s.log.Info("Assessment completed",
		"session_id", sess.ID,
		"record_id", rec.ID,
		"severity", int(sev),
		"source", photo.Source,
		"risk_level", string(rec.RiskLevel),
	)
	s.dispatch(rec)
	return nil
}

// dispatch persists and alerts in the background. Failures are logged only.
func (s *service) dispatch(rec assessment.AssessmentRecord) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.BackgroundTimeout)
		defer cancel()

		if s.repo != nil {
			if err := s.repo.Save(ctx, rec); err != nil {
				s.log.Error("Failed to persist assessment", "record_id", rec.ID, "error", err.Error())
			}
		}
		if s.notifier != nil && rec.SeverityLevel >= s.opts.AlertMinSeverity {
			if err := s.notifier.SendUrgentReport(ctx, rec); err != nil {
				s.log.Error("Failed to send urgent report", "record_id", rec.ID, "error", err.Error())
			}
		}
	}()
}

func (s *service) Close() { s.wg.Wait() }

func (s *service) Record(ctx context.Context, id string) (*assessment.AssessmentRecord, error) {
	rec, err := s.repo.Get(ctx, id)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, apierr.NotFound(err)
	}
	return rec, err
}

func (s *service) Records(ctx context.Context, f ListFilter) ([]assessment.AssessmentRecord, error) {
	return s.repo.List(ctx, f)
}

func (s *service) Stats(ctx context.Context) (Stats, error) {
	recs, err := s.repo.List(ctx, ListFilter{})
	if err != nil {
		return Stats{}, err
	}
	return ComputeStats(recs), nil
}

func (s *service) load(ctx context.Context, id string) (*Session, error) {
	sess, err := s.sessions.Get(ctx, id)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, apierr.NotFound(err)
	}
	return sess, err
}

func (s *service) save(ctx context.Context, sess *Session) error {
	sess.UpdatedAt = s.opts.Now()
	if err := s.sessions.Put(ctx, sess); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (s *service) sequencer(sess *Session) *assessment.Sequencer {
	return assessment.RestoreSequencer(s.opts.Set, sess.PhotoStep, sess.Sequence)
}

func (s *service) view(sess *Session) *View {
	seq := s.sequencer(sess)
	v := &View{
		ID:         sess.ID,
		Phase:      sess.Phase,
		Patient:    sess.Patient,
		Variant:    sess.Variant,
		Transcript: seq.Transcript(),
		Answered:   seq.Index(),
		Total:      len(s.opts.Set.Questions),
		Result:     sess.Result,
	}
	if q, ok := seq.Current(); ok {
		v.CurrentQuestion = &q
	}
	return v
}

func (s *service) setInflight(id string, cancel context.CancelFunc) {
	s.inflightMu.Lock()
	s.inflight[id] = cancel
	s.inflightMu.Unlock()
}

func (s *service) clearInflight(id string) {
	s.inflightMu.Lock()
	delete(s.inflight, id)
	s.inflightMu.Unlock()
}

func (s *service) cancelInflight(id string) {
	s.inflightMu.Lock()
	cancel, ok := s.inflight[id]
	s.inflightMu.Unlock()
	if ok {
		cancel()
	}
}
