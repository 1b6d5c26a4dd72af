package assessment

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSequenceComplete   = errors.New("questionnaire already complete")
	ErrNotCurrentQuestion = errors.New("answer is not for the current question")
	ErrInvalidOption      = errors.New("answer is not one of the question's options")
)

type Role string

const (
	RoleBot  Role = "bot"
	RoleUser Role = "user"
)

// Message is one chat transcript entry. The transcript is for display only.
type Message struct {
	Role    Role     `json:"role"`
	Content string   `json:"content"`
	Options []string `json:"options,omitempty"`
}

type Progress string

const (
	ProgressAsking          Progress = "asking"
	ProgressReadyForPhoto   Progress = "ready_for_photo"
	ProgressReadyForScoring Progress = "ready_for_scoring"
)

// Snapshot is the serializable sequencer state.
type Snapshot struct {
	Index      int            `json:"index"`
	Answers    SymptomAnswers `json:"answers"`
	Transcript []Message      `json:"transcript"`
	Done       bool           `json:"done"`
}

// Sequencer walks a question set one answer at a time. It is not safe for
// concurrent use; each session owns its own sequencer.
type Sequencer struct {
	set        QuestionSet
	photoStep  bool
	index      int
	answers    SymptomAnswers
	transcript []Message
	done       bool
}

func NewSequencer(set QuestionSet, photoStep bool) *Sequencer {
	return &Sequencer{
		set:       set,
		photoStep: photoStep,
		answers:   SymptomAnswers{},
		done:      len(set.Questions) == 0,
	}
}

func RestoreSequencer(set QuestionSet, photoStep bool, snap Snapshot) *Sequencer {
	s := NewSequencer(set, photoStep)
	s.index = snap.Index
	s.done = snap.Done || snap.Index >= len(set.Questions)
	if snap.Answers != nil {
		s.answers = snap.Answers.Clone()
	}
	s.transcript = append([]Message(nil), snap.Transcript...)
	return s
}

func (s *Sequencer) Snapshot() Snapshot {
	return Snapshot{
		Index:      s.index,
		Answers:    s.answers.Clone(),
		Transcript: s.Transcript(),
		Done:       s.done,
	}
}

// Start greets the patient and asks the first question. It is a no-op once
// the transcript has content.
func (s *Sequencer) Start(p PatientInfo) {
	if len(s.transcript) > 0 || len(s.set.Questions) == 0 {
		return
	}
	first := s.set.Questions[0]
	s.transcript = append(s.transcript, Message{
		Role:    RoleBot,
		Content: greeting(p.Name, len(s.set.Questions), first),
		Options: first.Options,
	})
}

func (s *Sequencer) Current() (Question, bool) {
	if s.done || s.index >= len(s.set.Questions) {
		return Question{}, false
	}
	return s.set.Questions[s.index], true
}

func (s *Sequencer) Index() int { return s.index }

func (s *Sequencer) Done() bool { return s.done }

func (s *Sequencer) Progress() Progress {
	if !s.done {
		return ProgressAsking
	}
	if s.photoStep {
		return ProgressReadyForPhoto
	}
	return ProgressReadyForScoring
}

// Submit records the answer for the current question and advances.
func (s *Sequencer) Submit(key string, values ...string) (Progress, error) {
	q, ok := s.Current()
	if !ok {
		return s.Progress(), ErrSequenceComplete
	}
	if key != q.Key {
		return ProgressAsking, fmt.Errorf("%w: got %q, want %q", ErrNotCurrentQuestion, key, q.Key)
	}

	ans, err := buildAnswer(q, values)
	if err != nil {
		return ProgressAsking, err
	}
	s.answers.Set(q.Key, ans)

	shown := ans.Value
	if q.Kind == KindMulti {
		shown = strings.Join(ans.Values, ", ")
	}
	s.transcript = append(s.transcript, Message{Role: RoleUser, Content: shown})

	s.index++
	if next, ok := s.Current(); ok {
		s.transcript = append(s.transcript, Message{Role: RoleBot, Content: next.Prompt, Options: next.Options})
		return ProgressAsking, nil
	}

	s.done = true
	if s.photoStep {
		s.Say(PhotoPromptMessage)
	}
	return s.Progress(), nil
}

// Say appends a bot message to the transcript.
func (s *Sequencer) Say(content string) {
	s.transcript = append(s.transcript, Message{Role: RoleBot, Content: content})
}

func (s *Sequencer) Answers() SymptomAnswers { return s.answers.Clone() }

func (s *Sequencer) Transcript() []Message {
	out := make([]Message, len(s.transcript))
	copy(out, s.transcript)
	return out
}

func buildAnswer(q Question, values []string) (Answer, error) {
	if q.Kind == KindMulti {
		if len(values) == 0 {
			return Answer{}, fmt.Errorf("%w: %s needs at least one selection", ErrInvalidOption, q.Key)
		}
		canon := make([]string, 0, len(values))
		for _, v := range values {
			c, ok := q.HasOption(v)
			if !ok {
				return Answer{}, fmt.Errorf("%w: %q for %s", ErrInvalidOption, v, q.Key)
			}
			canon = append(canon, c)
		}
		return Answer{Values: NormalizeSelection(canon)}, nil
	}

	if len(values) != 1 {
		return Answer{}, fmt.Errorf("%w: %s takes exactly one value", ErrInvalidOption, q.Key)
	}
	c, ok := q.HasOption(values[0])
	if !ok {
		return Answer{}, fmt.Errorf("%w: %q for %s", ErrInvalidOption, values[0], q.Key)
	}
	return Answer{Value: c}, nil
}

// Toggle applies one multi-select click. Selecting None clears everything
// else; selecting anything else drops None. Selecting a present option
// deselects it.
func Toggle(current []string, option string) []string {
	for i, v := range current {
		if v == option {
			out := append([]string(nil), current[:i]...)
			return append(out, current[i+1:]...)
		}
	}
	if option == OptionNone {
		return []string{OptionNone}
	}
	out := make([]string, 0, len(current)+1)
	for _, v := range current {
		if v != OptionNone {
			out = append(out, v)
		}
	}
	return append(out, option)
}

// NormalizeSelection replays a submitted set as a sequence of selections, so
// the result never holds None next to another option. Duplicates collapse.
func NormalizeSelection(values []string) []string {
	var out []string
	for _, v := range values {
		if contains(out, v) {
			continue
		}
		out = Toggle(out, v)
	}
	return out
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
