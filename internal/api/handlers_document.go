package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dgallion1/insurspeak/internal/domain"
	"github.com/dgallion1/insurspeak/internal/parser"
)

func (s *Server) handleSubmitDocument(w http.ResponseWriter, r *http.Request) {
	v := sessionFrom(r)
	src, err := s.readSource(w, r)
	if err == nil {
		err = s.applyCategory(v, r.FormValue("insurance_type"))
	}
	if err == nil {
		err = v.docs.Submit(r.Context(), src)
		if err == nil {
			v.sel.Dismiss()
		}
	}
	if r.MultipartForm != nil {
		r.MultipartForm.RemoveAll()
	}
	s.finish(w, r, v, err)
}

// readSource builds the submission from an uploaded file or pasted text.
// Non-PDF files are converted to text before sending.
func (s *Server) readSource(w http.ResponseWriter, r *http.Request) (domain.Source, error) {
	// Extra 1MB for form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024)
	if err := r.ParseMultipartForm(32 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return domain.Source{}, &domain.ValidationError{Field: "file", Message: fmt.Sprintf("The file exceeds the maximum size of %d bytes.", s.cfg.MaxUploadBytes)}
		}
		return domain.Source{}, &domain.ValidationError{Field: "document", Message: "Invalid form submission: " + err.Error()}
	}

	text := r.FormValue("text_content")
	file, header, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return domain.Source{PastedText: text}, nil
	case err != nil:
		return domain.Source{}, &domain.ValidationError{Field: "file", Message: "The uploaded file could not be read."}
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return domain.Source{}, &domain.ValidationError{Field: "file", Message: "The uploaded file could not be read."}
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return domain.Source{}, &domain.ValidationError{Field: "file", Message: fmt.Sprintf("The file exceeds the maximum size of %d bytes.", s.cfg.MaxUploadBytes)}
	}
	name := sanitizeFilename(header.Filename)
	if len(data) == 0 || strings.TrimSpace(text) != "" {
		// Left to the store to accept or reject.
		return domain.Source{FileBytes: data, Filename: name, PastedText: text}, nil
	}
	return parser.SourceForFile(name, data)
}

// applyCategory sets the insurance type when the form carries one.
func (s *Server) applyCategory(v *viewSession, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	t, err := domain.ParseInsuranceType(raw)
	if err != nil {
		return err
	}
	v.docs.SetCategory(t)
	return nil
}

func (s *Server) handleResetDocument(w http.ResponseWriter, r *http.Request) {
	v := sessionFrom(r)
	v.docs.Reset()
	v.sel.Dismiss()
	s.finish(w, r, v, nil)
}

func (s *Server) handleSetCategory(w http.ResponseWriter, r *http.Request) {
	v := sessionFrom(r)
	raw := r.FormValue("insurance_type")
	if strings.TrimSpace(raw) == "" {
		s.finish(w, r, v, &domain.ValidationError{Field: "insurance_type", Message: "Please choose an insurance type."})
		return
	}
	s.finish(w, r, v, s.applyCategory(v, raw))
}
