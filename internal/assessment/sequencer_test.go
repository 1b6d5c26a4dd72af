package assessment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequencerSimplifiedFlow(t *testing.T) {
	seq := NewSequencer(SimplifiedSet(), true)
	seq.Start(PatientInfo{Name: "Asha", Age: 44, Location: "Pune"})

	tr := seq.Transcript()
	require.Len(t, tr, 1)
	assert.Contains(t, tr[0].Content, "Hi Asha!")
	assert.Contains(t, tr[0].Content, "just 3 simple questions")
	assert.Contains(t, tr[0].Content, "Do you see any veins visible on your legs?")
	assert.Equal(t, []string{"Yes", "No"}, tr[0].Options)

	p, err := seq.Submit(KeyVisibleVeins, "yes")
	require.NoError(t, err)
	assert.Equal(t, ProgressAsking, p)

	p, err = seq.Submit(KeyUlcers, "No")
	require.NoError(t, err)
	assert.Equal(t, ProgressAsking, p)

	p, err = seq.Submit(KeyPreviousTreatment, "Yes")
	require.NoError(t, err)
	assert.Equal(t, ProgressReadyForPhoto, p)
	assert.True(t, seq.Done())

	// canonical spelling is stored
	assert.Equal(t, "Yes", seq.Answers().Value(KeyVisibleVeins))

	tr = seq.Transcript()
	assert.Equal(t, RoleUser, tr[1].Role)
	assert.Equal(t, "Yes", tr[1].Content)
	assert.Equal(t, PhotoPromptMessage, tr[len(tr)-1].Content)

	_, err = seq.Submit(KeyPreviousTreatment, "No")
	assert.ErrorIs(t, err, ErrSequenceComplete)
}

func TestSequencerWithoutPhotoStep(t *testing.T) {
	seq := NewSequencer(SimplifiedSet(), false)
	seq.Start(PatientInfo{Name: "A"})
	for _, k := range []string{KeyVisibleVeins, KeyUlcers, KeyPreviousTreatment} {
		_, err := seq.Submit(k, "No")
		require.NoError(t, err)
	}
	assert.Equal(t, ProgressReadyForScoring, seq.Progress())
	tr := seq.Transcript()
	assert.NotEqual(t, PhotoPromptMessage, tr[len(tr)-1].Content)
}

func TestSequencerRejectsBadInput(t *testing.T) {
	seq := NewSequencer(DetailedSet(), true)
	seq.Start(PatientInfo{Name: "B"})

	_, err := seq.Submit(KeyUlcers, "Yes")
	assert.ErrorIs(t, err, ErrNotCurrentQuestion)

	_, err = seq.Submit(KeySpiderVeins, "Maybe")
	assert.ErrorIs(t, err, ErrInvalidOption)

	_, err = seq.Submit(KeySpiderVeins, "Yes", "No")
	assert.ErrorIs(t, err, ErrInvalidOption)

	_, err = seq.Submit(KeySpiderVeins)
	assert.ErrorIs(t, err, ErrInvalidOption)

	assert.Equal(t, 0, seq.Index())
	assert.Len(t, seq.Transcript(), 1)
}

func TestSequencerDetailedMultiSelect(t *testing.T) {
	set := DetailedSet()
	seq := NewSequencer(set, false)
	seq.Start(PatientInfo{Name: "C"})
	assert.Contains(t, seq.Transcript()[0].Content, "just 12 simple questions")

	for {
		q, ok := seq.Current()
		require.True(t, ok)
		if q.Key == KeyPreviousTreatments {
			break
		}
		_, err := seq.Submit(q.Key, q.Options[0])
		require.NoError(t, err)
	}

	_, err := seq.Submit(KeyPreviousTreatments)
	assert.ErrorIs(t, err, ErrInvalidOption)
	_, err = seq.Submit(KeyPreviousTreatments, "Sclerotherapy", "Acupuncture")
	assert.ErrorIs(t, err, ErrInvalidOption)

	_, err = seq.Submit(KeyPreviousTreatments, "Sclerotherapy", "None", "surgery")
	require.NoError(t, err)
	assert.Equal(t, []string{"Surgery"}, seq.Answers().Selected(KeyPreviousTreatments))

	_, err = seq.Submit(KeyExistingConditions, "Diabetes", "Obesity")
	require.NoError(t, err)
	p, err := seq.Submit(KeyMedications, "None")
	require.NoError(t, err)
	assert.Equal(t, ProgressReadyForScoring, p)
	assert.Equal(t, []string{"None"}, seq.Answers().Selected(KeyMedications))

	tr := seq.Transcript()
	assert.Equal(t, "None", tr[len(tr)-1].Content)
}

func TestSequencerSnapshotRoundTrip(t *testing.T) {
	set := SimplifiedSet()
	seq := NewSequencer(set, true)
	seq.Start(PatientInfo{Name: "D"})
	_, err := seq.Submit(KeyVisibleVeins, "Yes")
	require.NoError(t, err)

	restored := RestoreSequencer(set, true, seq.Snapshot())
	q, ok := restored.Current()
	require.True(t, ok)
	assert.Equal(t, KeyUlcers, q.Key)
	assert.Equal(t, seq.Transcript(), restored.Transcript())

	_, err = restored.Submit(KeyUlcers, "No")
	require.NoError(t, err)
	// the original is untouched
	assert.Equal(t, 1, seq.Index())
}

func TestToggleNoneExclusivity(t *testing.T) {
	sel := Toggle(nil, "Diabetes")
	sel = Toggle(sel, "Obesity")
	assert.Equal(t, []string{"Diabetes", "Obesity"}, sel)

	sel = Toggle(sel, OptionNone)
	assert.Equal(t, []string{OptionNone}, sel)

	sel = Toggle(sel, "Pregnancy")
	assert.Equal(t, []string{"Pregnancy"}, sel)

	sel = Toggle(sel, "Pregnancy")
	assert.Empty(t, sel)
}

func TestNoneNeverCoexists(t *testing.T) {
	options := []string{OptionNone, "A", "B", "C"}
	// all selection sequences of length 4 over the options
	var walk func(cur []string, depth int)
	walk = func(cur []string, depth int) {
		if contains(cur, OptionNone) {
			require.Len(t, cur, 1, "None alongside %v", cur)
		}
		if depth == 0 {
			return
		}
		for _, o := range options {
			walk(Toggle(cur, o), depth-1)
		}
	}
	walk(nil, 4)

	assert.Equal(t, []string{"B"}, NormalizeSelection([]string{"A", "None", "B"}))
	assert.Equal(t, []string{"None"}, NormalizeSelection([]string{"A", "B", "None"}))
	assert.Equal(t, []string{"A", "B"}, NormalizeSelection([]string{"A", "B", "A"}))
}
