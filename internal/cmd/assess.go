package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"vein-assessment/internal/assessment"
	"vein-assessment/internal/triage"
)

func newAssessCommand(load loader) *cobra.Command {
	var save bool
	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Run the questionnaire interactively in the terminal",
		Long: `Walk through the configured questionnaire in the terminal and print the
severity stage, recommendation and risk level. Photo analysis is not
available here; the result is symptom-based.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			defer log.Sync()

			opts, err := cfg.TriageOptions()
			if err != nil {
				return err
			}
			w := &wizard{
				in:       bufio.NewScanner(cmd.InOrStdin()),
				out:      cmd.OutOrStdout(),
				set:      opts.Set,
				merge:    opts.Merge,
				cities:   opts.Cities,
				freeText: opts.FreeTextLocation,
				now:      time.Now,
			}
			rec, err := w.run()
			if err != nil {
				return err
			}
			if !save {
				return nil
			}

			repo, db, err := openRepository(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := repo.Save(cmd.Context(), *rec); err != nil {
				return err
			}
			fmt.Fprintf(w.out, "\nSaved assessment %s\n", rec.ID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "Store the finished assessment in the record store")
	return cmd
}

var errInputClosed = errors.New("input closed before the assessment finished")

type wizard struct {
	in       *bufio.Scanner
	out      io.Writer
	set      assessment.QuestionSet
	merge    assessment.MergeStrategy
	cities   []string
	freeText bool
	now      func() time.Time
}

func (w *wizard) ask(prompt string) (string, error) {
	fmt.Fprint(w.out, prompt)
	if !w.in.Scan() {
		if err := w.in.Err(); err != nil {
			return "", err
		}
		return "", errInputClosed
	}
	return strings.TrimSpace(w.in.Text()), nil
}

func (w *wizard) patient() (assessment.PatientInfo, error) {
	red := color.New(color.FgRed)
	cities := w.cities
	if len(cities) == 0 {
		cities = triage.DefaultCities
	}
	for {
		name, err := w.ask("Name: ")
		if err != nil {
			return assessment.PatientInfo{}, err
		}
		ageText, err := w.ask("Age: ")
		if err != nil {
			return assessment.PatientInfo{}, err
		}
		city, err := w.ask("City: ")
		if err != nil {
			return assessment.PatientInfo{}, err
		}
		age, _ := strconv.Atoi(ageText)

		p, err := triage.ValidatePatient(assessment.PatientInfo{Name: name, Age: age, Location: city}, cities, w.freeText)
		if err == nil {
			return p, nil
		}
		red.Fprintln(w.out, err.Error())
		if !w.freeText {
			fmt.Fprintf(w.out, "Cities: %s\n", strings.Join(cities, ", "))
		}
	}
}

// parseChoice accepts option numbers or option text, comma separated.
func parseChoice(q assessment.Question, line string) []string {
	var out []string
	for _, part := range strings.Split(line, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if n, err := strconv.Atoi(part); err == nil && n >= 1 && n <= len(q.Options) {
			out = append(out, q.Options[n-1])
			continue
		}
		out = append(out, part)
	}
	return out
}

func (w *wizard) run() (*assessment.AssessmentRecord, error) {
	cyan := color.New(color.FgCyan, color.Bold)
	gray := color.New(color.FgHiBlack)
	red := color.New(color.FgRed)

	p, err := w.patient()
	if err != nil {
		return nil, err
	}

	seq := assessment.NewSequencer(w.set, false)
	seq.Start(p)
	greeting := seq.Transcript()[0].Content
	fmt.Fprintln(w.out)
	cyan.Fprintln(w.out, strings.SplitN(greeting, "\n\n", 2)[0])

	for {
		q, ok := seq.Current()
		if !ok {
			break
		}
		fmt.Fprintf(w.out, "\n[%d/%d] %s\n", seq.Index()+1, len(w.set.Questions), q.Prompt)
		for i, o := range q.Options {
			gray.Fprintf(w.out, "  %d) %s\n", i+1, o)
		}
		hint := "> "
		if q.Kind == assessment.KindMulti {
			hint = "(comma separated) > "
		}
		line, err := w.ask(hint)
		if err != nil {
			return nil, err
		}
		if _, err := seq.Submit(q.Key, parseChoice(q, line)...); err != nil {
			red.Fprintln(w.out, "Please pick one of the listed options.")
		}
	}

	answers := seq.Answers()
	photo := assessment.SynthesizeFallback(w.set, answers, assessment.ReasonDisabled)
	sev := assessment.EffectiveSeverity(w.set, answers, photo, w.merge)
	bundle, _, err := assessment.ResolveNearest(sev, photo)
	if err != nil {
		return nil, err
	}
	rec := assessment.Assemble(assessment.AssembleInput{
		ID:        uuid.NewString(),
		CreatedAt: w.now(),
		Patient:   p,
		Set:       w.set,
		Answers:   answers,
		Severity:  bundle.Level,
		Bundle:    bundle,
		Photo:     photo,
	})
	w.printResult(rec, bundle)
	return &rec, nil
}

func stageColor(name string) *color.Color {
	switch name {
	case "green":
		return color.New(color.FgGreen, color.Bold)
	case "blue":
		return color.New(color.FgBlue, color.Bold)
	case "yellow":
		return color.New(color.FgYellow, color.Bold)
	case "orange":
		return color.New(color.FgHiYellow, color.Bold)
	case "red":
		return color.New(color.FgRed, color.Bold)
	default:
		return color.New(color.Bold)
	}
}

func (w *wizard) printResult(rec assessment.AssessmentRecord, b assessment.RecommendationBundle) {
	bold := color.New(color.Bold)

	fmt.Fprintln(w.out)
	stageColor(b.Color).Fprintln(w.out, b.Title)
	fmt.Fprintf(w.out, "Urgency: %s\n\n", b.Urgency)
	fmt.Fprintln(w.out, b.Description)

	fmt.Fprintln(w.out)
	bold.Fprintln(w.out, "Treatment options:")
	for _, t := range b.Treatments {
		fmt.Fprintf(w.out, "  - %s\n", t)
	}
	if a, ok := b.PrimaryAction(); ok {
		fmt.Fprintf(w.out, "\nNext step: %s\n", a.Label)
	}
	fmt.Fprintf(w.out, "Risk level: %s (follow-up in %s)\n", rec.RiskLevel, rec.TreatmentPlan.FollowUpSchedule)
}
