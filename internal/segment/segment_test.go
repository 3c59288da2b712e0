package segment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/insurspeak/internal/domain"
)

func span(term string, start, end int) domain.TermAnnotation {
	return domain.TermAnnotation{Term: term, Category: "payment", StartIndex: start, EndIndex: end}
}

// assertCovers checks contiguity, full coverage and that concatenation
// reproduces the text.
func assertCovers(t *testing.T, text string, segs []domain.Segment) {
	t.Helper()
	cursor := 0
	var rebuilt strings.Builder
	for i, s := range segs {
		require.Equal(t, cursor, s.StartIndex, "segment %d not contiguous", i)
		require.Less(t, s.StartIndex, s.EndIndex, "segment %d is empty", i)
		if s.Kind == domain.SegmentAnnotated {
			require.NotNil(t, s.Annotation, "annotated segment %d has no annotation", i)
		} else {
			require.Nil(t, s.Annotation, "plain segment %d has an annotation", i)
		}
		rebuilt.WriteString(Text(text, s))
		cursor = s.EndIndex
	}
	require.Equal(t, len([]rune(text)), cursor)
	require.Equal(t, text, rebuilt.String())
}

func TestBuild_DeductibleScenario(t *testing.T) {
	text := "The deductible is $500."
	terms := []domain.TermAnnotation{{Term: "deductible", Category: "cost-sharing", StartIndex: 4, EndIndex: 14}}

	segs, err := Build(text, terms)
	require.NoError(t, err)
	require.Len(t, segs, 3)

	assert.Equal(t, domain.Segment{Kind: domain.SegmentPlain, StartIndex: 0, EndIndex: 4}, segs[0])
	assert.Equal(t, domain.SegmentAnnotated, segs[1].Kind)
	assert.Equal(t, 4, segs[1].StartIndex)
	assert.Equal(t, 14, segs[1].EndIndex)
	assert.Same(t, &terms[0], segs[1].Annotation)
	assert.Equal(t, domain.Segment{Kind: domain.SegmentPlain, StartIndex: 14, EndIndex: len(text)}, segs[2])

	assert.Equal(t, "deductible", Text(text, segs[1]))
	assertCovers(t, text, segs)
}

func TestBuild_EmptyInputs(t *testing.T) {
	segs, err := Build("", nil)
	require.NoError(t, err)
	assert.Empty(t, segs)

	segs, err = Build("No terms here.", nil)
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, domain.Segment{Kind: domain.SegmentPlain, StartIndex: 0, EndIndex: 14}, segs[0])
}

func TestBuild_EmptyTextWithAnnotations(t *testing.T) {
	_, err := Build("", []domain.TermAnnotation{span("x", 0, 1)})
	var dataErr *domain.DataIntegrityError
	require.ErrorAs(t, err, &dataErr)
}

func TestBuild_UnsortedAndAdjacent(t *testing.T) {
	text := "premium copay coinsurance"
	terms := []domain.TermAnnotation{
		span("coinsurance", 14, 25),
		span("premium", 0, 7),
		span("copay", 8, 13),
	}
	segs, err := Build(text, terms)
	require.NoError(t, err)
	assertCovers(t, text, segs)

	var got []string
	for _, s := range Annotated(segs) {
		got = append(got, Text(text, s))
	}
	assert.Equal(t, []string{"premium", "copay", "coinsurance"}, got)
	// Input order untouched.
	assert.Equal(t, "coinsurance", terms[0].Term)
}

func TestBuild_TouchingSpans(t *testing.T) {
	text := "abcdef"
	segs, err := Build(text, []domain.TermAnnotation{span("cd", 2, 4), span("ab", 0, 2), span("ef", 4, 6)})
	require.NoError(t, err)
	require.Len(t, segs, 3)
	for _, s := range segs {
		assert.Equal(t, domain.SegmentAnnotated, s.Kind)
	}
	assertCovers(t, text, segs)
}

func TestBuild_OverlapKeepsEarliestStart(t *testing.T) {
	text := strings.Repeat("x", 20)
	terms := []domain.TermAnnotation{span("late", 5, 15), span("early", 0, 10)}

	segs, err := Build(text, terms)
	require.NoError(t, err)
	assertCovers(t, text, segs)

	ann := Annotated(segs)
	require.Len(t, ann, 1)
	assert.Equal(t, "early", ann[0].Annotation.Term)

	skipped := Skipped(terms, segs)
	require.Len(t, skipped, 1)
	assert.Equal(t, "late", skipped[0].Term)
}

func TestBuild_TieKeepsShorter(t *testing.T) {
	text := "waiver of premium applies"
	terms := []domain.TermAnnotation{span("waiver of premium", 0, 17), span("waiver", 0, 6)}

	segs, err := Build(text, terms)
	require.NoError(t, err)
	assertCovers(t, text, segs)

	ann := Annotated(segs)
	require.Len(t, ann, 1)
	assert.Equal(t, "waiver", ann[0].Annotation.Term)
}

func TestBuild_NestedIsSkipped(t *testing.T) {
	text := "the waiver of premium rider"
	terms := []domain.TermAnnotation{span("premium", 14, 21), span("waiver of premium", 4, 21), span("rider", 22, 27)}

	segs, err := Build(text, terms)
	require.NoError(t, err)
	assertCovers(t, text, segs)

	var got []string
	for _, s := range Annotated(segs) {
		got = append(got, s.Annotation.Term)
	}
	assert.Equal(t, []string{"waiver of premium", "rider"}, got)
}

func TestBuild_ExactDuplicatesFirstWins(t *testing.T) {
	text := "copay due"
	first := span("copay", 0, 5)
	first.Explanation = "first"
	second := span("copay", 0, 5)
	second.Explanation = "second"

	segs, err := Build(text, []domain.TermAnnotation{first, second})
	require.NoError(t, err)
	ann := Annotated(segs)
	require.Len(t, ann, 1)
	assert.Equal(t, "first", ann[0].Annotation.Explanation)
}

func TestBuild_FullOverlapDense(t *testing.T) {
	text := "abcdefghij"
	var terms []domain.TermAnnotation
	for i := 0; i < 10; i++ {
		terms = append(terms, span("all", 0, 10))
	}
	segs, err := Build(text, terms)
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, domain.SegmentAnnotated, segs[0].Kind)
	assertCovers(t, text, segs)
}

func TestBuild_Deterministic(t *testing.T) {
	text := "premium deductible coinsurance out-of-pocket maximum"
	terms := []domain.TermAnnotation{
		span("deductible", 8, 18), span("premium", 0, 7), span("out-of-pocket", 31, 44),
		span("out-of-pocket maximum", 31, 52), span("coinsurance", 19, 30),
	}
	a, err := Build(text, terms)
	require.NoError(t, err)
	b, err := Build(text, terms)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestBuild_CodePointIndices(t *testing.T) {
	// The backend counts characters, so "é" and "€" are one index each.
	text := "Prime élevée: 500€ deductible"
	terms := []domain.TermAnnotation{span("deductible", 19, 29)}

	segs, err := Build(text, terms)
	require.NoError(t, err)
	assertCovers(t, text, segs)
	assert.Equal(t, "deductible", Text(text, Annotated(segs)[0]))
}

func TestBuild_MalformedSpans(t *testing.T) {
	text := "short text"
	tests := []struct {
		name string
		ann  domain.TermAnnotation
	}{
		{"negative start", span("x", -1, 3)},
		{"empty span", span("x", 3, 3)},
		{"inverted", span("x", 5, 2)},
		{"past end", span("x", 5, 11)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segs, err := Build(text, []domain.TermAnnotation{span("ok", 0, 5), tt.ann})
			require.Error(t, err)
			assert.Nil(t, segs)

			var dataErr *domain.DataIntegrityError
			require.ErrorAs(t, err, &dataErr)
			assert.Equal(t, 1, dataErr.Index)
		})
	}
}

func TestBuild_SpanEndingAtTextEnd(t *testing.T) {
	text := "pay the premium"
	segs, err := Build(text, []domain.TermAnnotation{span("premium", 8, 15)})
	require.NoError(t, err)
	require.Len(t, segs, 2)
	assert.Equal(t, domain.SegmentAnnotated, segs[1].Kind)
	assertCovers(t, text, segs)
}
