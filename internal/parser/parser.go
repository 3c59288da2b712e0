// Package parser turns local files into document submissions. The backend
// only extracts text from PDFs, so other formats are flattened to plain
// text here and sent as pasted content.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/insurspeak/internal/doctree"
	"github.com/dgallion1/insurspeak/internal/domain"
)

// Parser converts raw document bytes into a DocTree.
type Parser interface {
	Parse(r io.Reader, filename string) (*doctree.DocTree, error)
}

// SupportedExtensions lists file extensions that can be submitted.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the text parser for a filename. PDFs have none: they are
// uploaded as-is.
func ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %q", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// SourceForFile prepares a submission for the named file. PDFs are checked
// and passed through as file bytes; every other supported format is parsed
// and sent as text.
func SourceForFile(name string, data []byte) (domain.Source, error) {
	if len(data) == 0 {
		return domain.Source{}, &domain.ValidationError{Field: "file", Message: "The selected file is empty."}
	}
	if !IsSupportedExtension(name) {
		return domain.Source{}, &domain.ValidationError{
			Field:   "file",
			Message: fmt.Sprintf("Unsupported file type %q. Upload a PDF, Word, HTML, Markdown, CSV or text file.", filepath.Ext(name)),
		}
	}

	if strings.EqualFold(filepath.Ext(name), ".pdf") {
		if _, err := InspectPDF(data); err != nil {
			return domain.Source{}, &domain.ValidationError{Field: "file", Message: "The PDF could not be read: " + err.Error()}
		}
		return domain.Source{FileBytes: data, Filename: filepath.Base(name)}, nil
	}

	p, err := ForFile(name)
	if err != nil {
		return domain.Source{}, &domain.ValidationError{Field: "file", Message: err.Error()}
	}
	tree, err := p.Parse(bytes.NewReader(data), filepath.Base(name))
	if err != nil {
		return domain.Source{}, &domain.ValidationError{Field: "file", Message: "The file could not be read: " + err.Error()}
	}
	text := tree.PlainText()
	if strings.TrimSpace(text) == "" {
		return domain.Source{}, &domain.ValidationError{Field: "file", Message: "No text found in the selected file."}
	}
	return domain.Source{PastedText: text, Filename: filepath.Base(name)}, nil
}

func trimExt(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}

// ReadSource reads a local file and prepares it with SourceForFile.
func ReadSource(path string) (domain.Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Source{}, &domain.ValidationError{Field: "file", Message: fmt.Sprintf("Cannot read %s: %v", filepath.Base(path), errors.Unwrap(err))}
	}
	return SourceForFile(path, data)
}
