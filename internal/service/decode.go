package service

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/dgallion1/insurspeak/internal/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type processResponse struct {
	OriginalText  *string    `json:"original_text" validate:"required"`
	Terms         []wireTerm `json:"terms"`
	InsuranceType string     `json:"insurance_type"`
}

// wireTerm is a term record as sent by the backend. Extra fields such as
// original_text or insurance_type are ignored.
type wireTerm struct {
	Term         string  `json:"term" validate:"required"`
	Category     string  `json:"category"`
	StartIndex   *int    `json:"start_index" validate:"required,min=0"`
	EndIndex     *int    `json:"end_index" validate:"required,min=0"`
	Explanation  string  `json:"explanation"`
	Implications *string `json:"implications"`
	Context      string  `json:"context"`
	Source       string  `json:"source"`
}

type answerResponse struct {
	Question     string `json:"question"`
	Answer       string `json:"answer"`
	QuestionType string `json:"question_type"`
}

// decodeProcessed parses and checks a process-document response. Records
// that do not fit the annotation shape reject the whole response.
func decodeProcessed(raw []byte) (*domain.ProcessedDocument, error) {
	var resp processResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &domain.ServiceError{Op: opProcessDocument, StatusCode: http.StatusOK, Detail: "malformed document response from server"}
	}
	if err := validate.Struct(resp); err != nil {
		return nil, &domain.DataIntegrityError{Index: -1, Reason: "response has no original_text"}
	}

	terms := make([]domain.TermAnnotation, 0, len(resp.Terms))
	for i, wt := range resp.Terms {
		if err := validate.Struct(wt); err != nil {
			return nil, &domain.DataIntegrityError{Index: i, Reason: describe(err)}
		}
		ann := domain.TermAnnotation{
			Term:        wt.Term,
			Category:    wt.Category,
			StartIndex:  *wt.StartIndex,
			EndIndex:    *wt.EndIndex,
			Explanation: wt.Explanation,
			Context:     wt.Context,
			Source:      wt.Source,
		}
		if wt.Implications != nil {
			ann.Implications = *wt.Implications
		}
		terms = append(terms, ann)
	}

	return &domain.ProcessedDocument{
		Text:          *resp.OriginalText,
		Terms:         terms,
		InsuranceType: resp.InsuranceType,
	}, nil
}

func describe(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is missing"
	case "min":
		return fe.Field() + " is negative"
	}
	return fe.Field() + " failed " + fe.Tag()
}
