// Package segment partitions document text into plain and annotated runs.
package segment

import (
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/dgallion1/insurspeak/internal/domain"
)

// Build partitions text into display segments for the given annotations.
//
// The result is contiguous, non-overlapping and covers [0, len) in code
// points. Annotations are ordered by start then end; one that starts inside
// an already emitted annotated run is skipped, so the earliest-starting
// (then shortest) annotation wins a conflict. A malformed span fails the
// whole build with a DataIntegrityError.
//
// Annotated segments point into annotations; the slice itself is not
// reordered or modified.
func Build(text string, annotations []domain.TermAnnotation) ([]domain.Segment, error) {
	length := utf8.RuneCountInString(text)
	if length == 0 {
		if len(annotations) > 0 {
			return nil, &domain.DataIntegrityError{Index: -1, Reason: "annotations given for empty text"}
		}
		return []domain.Segment{}, nil
	}
	if err := Validate(annotations, length); err != nil {
		return nil, err
	}
	if len(annotations) == 0 {
		return []domain.Segment{{Kind: domain.SegmentPlain, StartIndex: 0, EndIndex: length}}, nil
	}

	ordered := sortedRefs(annotations)
	segments := make([]domain.Segment, 0, 2*len(ordered)+1)
	cursor := 0
	for _, a := range ordered {
		if a.StartIndex < cursor {
			continue
		}
		if a.StartIndex > cursor {
			segments = append(segments, domain.Segment{Kind: domain.SegmentPlain, StartIndex: cursor, EndIndex: a.StartIndex})
		}
		segments = append(segments, domain.Segment{
			Kind:       domain.SegmentAnnotated,
			StartIndex: a.StartIndex,
			EndIndex:   a.EndIndex,
			Annotation: a,
		})
		cursor = a.EndIndex
	}
	if cursor < length {
		segments = append(segments, domain.Segment{Kind: domain.SegmentPlain, StartIndex: cursor, EndIndex: length})
	}
	return segments, nil
}

// Validate checks every span against a text of length code points.
func Validate(annotations []domain.TermAnnotation, length int) error {
	for i, a := range annotations {
		switch {
		case a.StartIndex < 0:
			return &domain.DataIntegrityError{Index: i, Reason: fmt.Sprintf("start %d is negative", a.StartIndex)}
		case a.StartIndex >= a.EndIndex:
			return &domain.DataIntegrityError{Index: i, Reason: fmt.Sprintf("empty or inverted span [%d,%d)", a.StartIndex, a.EndIndex)}
		case a.EndIndex > length:
			return &domain.DataIntegrityError{Index: i, Reason: fmt.Sprintf("end %d past text length %d", a.EndIndex, length)}
		}
	}
	return nil
}

// Skipped returns the annotations the overlap policy leaves out of segments.
func Skipped(annotations []domain.TermAnnotation, segments []domain.Segment) []*domain.TermAnnotation {
	shown := make(map[*domain.TermAnnotation]bool, len(segments))
	for _, s := range segments {
		if s.Annotation != nil {
			shown[s.Annotation] = true
		}
	}
	var out []*domain.TermAnnotation
	for i := range annotations {
		if !shown[&annotations[i]] {
			out = append(out, &annotations[i])
		}
	}
	return out
}

// Text returns the slice of text covered by seg.
func Text(text string, seg domain.Segment) string {
	start, end := byteOffsets(text, seg.StartIndex, seg.EndIndex)
	return text[start:end]
}

// Annotated returns only the annotated segments, in order.
func Annotated(segments []domain.Segment) []domain.Segment {
	var out []domain.Segment
	for _, s := range segments {
		if s.Kind == domain.SegmentAnnotated {
			out = append(out, s)
		}
	}
	return out
}

func sortedRefs(annotations []domain.TermAnnotation) []*domain.TermAnnotation {
	refs := make([]*domain.TermAnnotation, len(annotations))
	for i := range annotations {
		refs[i] = &annotations[i]
	}
	sort.SliceStable(refs, func(i, j int) bool {
		if refs[i].StartIndex != refs[j].StartIndex {
			return refs[i].StartIndex < refs[j].StartIndex
		}
		return refs[i].EndIndex < refs[j].EndIndex
	})
	return refs
}

// byteOffsets converts code point offsets into byte offsets of text.
func byteOffsets(text string, start, end int) (int, int) {
	bs, be := len(text), len(text)
	n := 0
	for i := range text {
		if n == start {
			bs = i
		}
		if n == end {
			be = i
			break
		}
		n++
	}
	return bs, be
}
