package parser

import (
	"bytes"
	"errors"
	"fmt"

	pdflib "github.com/ledongthuc/pdf"
)

// PDFInfo describes a PDF that passed preflight.
type PDFInfo struct {
	Pages int
}

// InspectPDF checks that data opens as a PDF with at least one page.
func InspectPDF(data []byte) (info PDFInfo, err error) {
	// The reader panics on some truncated inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return PDFInfo{}, fmt.Errorf("open pdf: %w", err)
	}
	pages := reader.NumPage()
	if pages < 1 {
		return PDFInfo{}, errors.New("pdf has no pages")
	}
	return PDFInfo{Pages: pages}, nil
}
