package termview

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dgallion1/insurspeak/internal/domain"
	"github.com/dgallion1/insurspeak/internal/parser"
	"github.com/dgallion1/insurspeak/internal/selection"
	"github.com/dgallion1/insurspeak/internal/session"
)

const shellHelp = `Commands:
  :term N      show or hide the explanation for footnote N
  :close       hide the explanation
  :doc         show the document again
  :history     show answered questions, newest first
  :load FILE   analyze another file
  :type TYPE   set the insurance type (health, life, disability)
  :reset       discard the document
  :clear       clear the question history
  :quit        exit
Anything else is asked as a question about the document.`

// Shell is an interactive loop over one document session.
type Shell struct {
	Docs      *session.DocumentStore
	QA        *session.QAStore
	Selection *selection.Controller
	View      *Renderer

	// ReadSource loads a file for :load. Defaults to parser.ReadSource.
	ReadSource func(path string) (domain.Source, error)
}

// Submit processes src and shows the result.
func (s *Shell) Submit(ctx context.Context, src domain.Source) error {
	err := s.Docs.Submit(ctx, src)
	if err != nil {
		s.View.Error(domain.UserMessage(err))
		return err
	}
	s.Selection.Dismiss()
	s.ShowDocument()
	return nil
}

// ShowDocument renders the current document and the open explanation.
func (s *Shell) ShowDocument() {
	doc := s.Docs.Snapshot()
	if !doc.HasDocument() {
		fmt.Fprintln(s.View.out, "No document loaded. Use :load FILE.")
		return
	}
	s.View.Status(doc.Name, doc.InsuranceType, len(doc.Terms))
	open := s.Selection.Open()
	s.View.Document(doc.RawText, doc.Segments, open)
	if open != nil {
		fmt.Fprintln(s.View.out)
		s.View.Explanation(open)
	}
}

// Ask submits a question and shows the answer.
func (s *Shell) Ask(ctx context.Context, question string) error {
	s.QA.SetPendingQuestion(question)
	if err := s.QA.Submit(ctx); err != nil {
		if !errors.Is(err, session.ErrStale) {
			s.View.Error(domain.UserMessage(err))
		}
		return err
	}
	entries := s.QA.Snapshot().NewestFirst()
	s.View.History(entries[:1])
	return nil
}

// Run reads commands from in until EOF, :quit or ctx is done.
func (s *Shell) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 4096), 1024*1024)
	for {
		fmt.Fprint(s.View.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(s.View.out)
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, ":") {
			_ = s.Ask(ctx, line)
			continue
		}
		if quit := s.command(ctx, line); quit {
			return nil
		}
	}
}

func (s *Shell) command(ctx context.Context, line string) bool {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case ":quit", ":q", ":exit":
		return true
	case ":help", ":h":
		fmt.Fprintln(s.View.out, shellHelp)
	case ":term", ":t":
		n, err := strconv.Atoi(arg)
		notes := Footnotes(s.Docs.Snapshot().Segments)
		if err != nil || n < 1 || n > len(notes) {
			s.View.Error(fmt.Sprintf("no footnote %q; pick 1-%d", arg, len(notes)))
			return false
		}
		s.Selection.Activate(notes[n-1].Annotation)
		s.ShowDocument()
	case ":close":
		s.Selection.Dismiss()
		s.ShowDocument()
	case ":doc":
		s.ShowDocument()
	case ":history":
		s.View.History(s.QA.Snapshot().NewestFirst())
	case ":load":
		if arg == "" {
			s.View.Error("usage: :load FILE")
			return false
		}
		read := s.ReadSource
		if read == nil {
			read = parser.ReadSource
		}
		src, err := read(arg)
		if err != nil {
			s.View.Error(domain.UserMessage(err))
			return false
		}
		_ = s.Submit(ctx, src)
	case ":type":
		t, err := domain.ParseInsuranceType(arg)
		if err != nil {
			s.View.Error(domain.UserMessage(err))
			return false
		}
		s.Docs.SetCategory(t)
		fmt.Fprintf(s.View.out, "Insurance type set to %s for the next document.\n", t)
	case ":reset":
		s.Docs.Reset()
		s.Selection.Dismiss()
		fmt.Fprintln(s.View.out, "Document discarded.")
	case ":clear":
		s.QA.Clear()
		fmt.Fprintln(s.View.out, "Question history cleared.")
	default:
		s.View.Error(fmt.Sprintf("unknown command %s; try :help", name))
	}
	return false
}
