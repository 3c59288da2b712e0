package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dgallion1/insurspeak/internal/domain"
	"github.com/dgallion1/insurspeak/internal/parser"
	"github.com/dgallion1/insurspeak/internal/selection"
	"github.com/dgallion1/insurspeak/internal/session"
	"github.com/dgallion1/insurspeak/internal/termview"
)

// documentFlags selects the document for analyze and ask.
type documentFlags struct {
	file          string
	text          string
	insuranceType string
}

func (f *documentFlags) register(cmd *cobra.Command, withFile bool) {
	if withFile {
		cmd.Flags().StringVarP(&f.file, "file", "f", "", "document file (pdf, docx, html, md, csv, txt)")
	}
	cmd.Flags().StringVar(&f.text, "text", "", "document text instead of a file")
	cmd.Flags().StringVarP(&f.insuranceType, "type", "t", "", "insurance type: health, life or disability")
}

func (f *documentFlags) source() (domain.Source, error) {
	switch {
	case f.file != "" && strings.TrimSpace(f.text) != "":
		return domain.Source{}, errors.New("use either a file or --text, not both")
	case f.file != "":
		return parser.ReadSource(f.file)
	case strings.TrimSpace(f.text) != "":
		return domain.Source{PastedText: f.text}, nil
	}
	return domain.Source{}, errors.New("provide a document file or --text")
}

// newShell wires a terminal session against the configured backend.
func newShell(f *documentFlags) (*termview.Shell, func(), error) {
	cfg, log, err := setup("warn")
	if err != nil {
		return nil, nil, err
	}
	client := newClient(cfg, log)
	docs := session.NewDocumentStore(client, cfg.DefaultInsuranceType, log)
	if f.insuranceType != "" {
		t, err := domain.ParseInsuranceType(f.insuranceType)
		if err != nil {
			return nil, nil, err
		}
		docs.SetCategory(t)
	}

	sh := &termview.Shell{
		Docs:      docs,
		QA:        session.NewQAStore(docs, client, log),
		Selection: selection.New(),
		View:      termview.New(os.Stdout, !color.NoColor),
	}
	cleanup := func() {
		client.Close()
		log.Sync()
	}
	return sh, cleanup, nil
}

func analyzeCmd() *cobra.Command {
	var (
		flags documentFlags
		once  bool
	)

	cmd := &cobra.Command{
		Use:   "analyze [file]",
		Short: "Highlight the jargon in a document and answer questions about it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				flags.file = args[0]
			}
			src, err := flags.source()
			if err != nil {
				return err
			}

			sh, cleanup, err := newShell(&flags)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := sh.Submit(cmd.Context(), src); err != nil {
				return err
			}
			if once {
				for i, note := range termview.Footnotes(sh.Docs.Snapshot().Segments) {
					fmt.Printf("\n[%d] ", i+1)
					sh.View.Explanation(note.Annotation)
				}
				return nil
			}
			fmt.Println("\nType a question, or :help for commands.")
			return sh.Run(cmd.Context(), os.Stdin)
		},
	}

	flags.register(cmd, false)
	cmd.Flags().BoolVar(&once, "once", false, "print the document and every explanation, then exit")
	return cmd
}

func askCmd() *cobra.Command {
	var flags documentFlags

	cmd := &cobra.Command{
		Use:   "ask QUESTION...",
		Short: "Ask one question about a document",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := flags.source()
			if err != nil {
				return err
			}
			sh, cleanup, err := newShell(&flags)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := sh.Docs.Submit(cmd.Context(), src); err != nil {
				sh.View.Error(domain.UserMessage(err))
				return err
			}
			return sh.Ask(cmd.Context(), strings.Join(args, " "))
		},
	}

	flags.register(cmd, true)
	return cmd
}
