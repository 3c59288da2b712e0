package api

import (
	"html/template"
	"net/http"

	"go.uber.org/zap"

	"github.com/dgallion1/insurspeak/internal/domain"
	"github.com/dgallion1/insurspeak/internal/segment"
)

type pageView struct {
	Notice      string
	Types       []typeOption
	Document    documentView
	Loading     bool
	HasDocument bool
	Ready       bool
	Runs        []runView
	Open        *domain.TermAnnotation
	OpenStyle   string
	Questions   questionsView
	Asking      bool
	Suggestions []string
}

type typeOption struct {
	Value    domain.InsuranceType
	Selected bool
}

type runView struct {
	Text      string
	Annotated bool
	Start     int
	End       int
	Style     string
	Open      bool
	Term      string
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	v := sessionFrom(r)
	state := s.buildState(v)
	doc := v.docs.Snapshot()

	view := pageView{
		Notice:      v.takeNotice(),
		Document:    state.Document,
		Loading:     doc.Ingestion == domain.IngestionLoading,
		HasDocument: doc.HasDocument(),
		Ready:       doc.Ready(),
		Open:        state.Selection,
		Questions:   state.Questions,
		Asking:      state.Questions.State == domain.RequestLoading,
		Suggestions: domain.SuggestedQuestions(doc.InsuranceType),
	}
	for _, t := range domain.InsuranceTypes {
		view.Types = append(view.Types, typeOption{Value: t, Selected: t == doc.InsuranceType})
	}
	if view.Open != nil {
		view.OpenStyle = domain.CategoryStyle(view.Open.Category)
	}
	for _, seg := range doc.Segments {
		run := runView{Text: segment.Text(doc.RawText, seg), Start: seg.StartIndex, End: seg.EndIndex}
		if seg.Annotation != nil {
			run.Annotated = true
			run.Term = seg.Annotation.Term
			run.Style = domain.CategoryStyle(seg.Annotation.Category)
			run.Open = v.sel.IsOpen(seg.Annotation)
		}
		view.Runs = append(view.Runs, run)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.page.Execute(w, view); err != nil {
		s.log.Error("render page", zap.Error(err))
	}
}

var pageTemplate = template.Must(template.New("page").Parse(pageHTML))

const pageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>InsurSpeak</title>
<style>
body { font-family: sans-serif; max-width: 60rem; margin: 2rem auto; line-height: 1.5; }
.notice, .error { background: #fdecea; border: 1px solid #f5c2c0; padding: .5rem 1rem; }
.document { white-space: pre-wrap; border: 1px solid #ddd; padding: 1rem; }
.document form { display: inline; }
.term { border: none; padding: 0 .1rem; font: inherit; cursor: pointer; border-bottom: 2px solid; }
.term.open { outline: 2px solid #333; }
.term-payment { background: #fff3cd; }
.term-policy { background: #dbeafe; }
.term-process { background: #e9d5ff; }
.term-coverage { background: #dcfce7; }
.term-medical { background: #fee2e2; }
.term-legal { background: #e5e7eb; }
.term-benefit { background: #ccfbf1; }
.term-general { background: #f3f4f6; }
.explanation { border-left: 4px solid #333; padding: .5rem 1rem; margin: 1rem 0; }
.history li { margin-bottom: 1rem; }
</style>
</head>
<body>
<h1>InsurSpeak</h1>
{{if .Notice}}<p class="notice">{{.Notice}}</p>{{end}}

<section>
<h2>Document</h2>
<form method="post" action="/category">
<label>Insurance type
<select name="insurance_type">{{range .Types}}<option value="{{.Value}}"{{if .Selected}} selected{{end}}>{{.Value}}</option>{{end}}</select>
</label>
<button type="submit">Set</button>
</form>
<form method="post" action="/document" enctype="multipart/form-data">
<p><input type="file" name="file" accept=".pdf,.docx,.txt,.md,.markdown,.html,.htm,.csv"></p>
<p><textarea name="text_content" rows="6" cols="80" placeholder="Or paste the policy text here"></textarea></p>
<button type="submit"{{if .Loading}} disabled{{end}}>Analyze document</button>
</form>
{{if .Loading}}<p>Processing document&hellip;</p>{{end}}
{{if .Document.Error}}<p class="error">{{.Document.Error}}</p>{{end}}
{{if .HasDocument}}
<form method="post" action="/document/reset"><button type="submit">Start over</button></form>
<h3>{{.Document.Name}} ({{.Document.InsuranceType}})</h3>
<div class="document">{{range .Runs}}{{if .Annotated}}<form method="post" action="/terms/{{.Start}}-{{.End}}"><button type="submit" class="term term-{{.Style}}{{if .Open}} open{{end}}" title="{{.Term}}">{{.Text}}</button></form>{{else}}{{.Text}}{{end}}{{end}}</div>
{{end}}
{{with .Open}}
<div class="explanation term-{{$.OpenStyle}}">
<h3>{{.Term}}</h3>
<p><em>{{.Category}}</em></p>
<p>{{.Explanation}}</p>
{{if .Implications}}<h4>What this means for you</h4><p>{{.Implications}}</p>{{end}}
<form method="post" action="/terms/dismiss"><button type="submit">Close</button></form>
</div>
{{end}}
</section>

{{if .Ready}}
<section>
<h2>Ask a question</h2>
<form method="post" action="/questions">
<p><textarea name="question" rows="3" cols="80">{{.Questions.PendingQuestion}}</textarea></p>
<button type="submit"{{if .Asking}} disabled{{end}}>Ask</button>
</form>
{{if .Suggestions}}<p>Try asking:</p><ul>{{range .Suggestions}}<li><form method="post" action="/questions"><input type="hidden" name="question" value="{{.}}"><button type="submit">{{.}}</button></form></li>{{end}}</ul>{{end}}
{{if .Questions.Error}}<p class="error">{{.Questions.Error}}</p>{{end}}
{{if .Questions.History}}
<form method="post" action="/questions/clear"><button type="submit">Clear history</button></form>
<ol class="history">{{range .Questions.History}}<li><strong>{{.Question}}</strong>{{if .QuestionType}} <em>({{.QuestionType}})</em>{{end}}<p>{{.Answer}}</p></li>{{end}}</ol>
{{end}}
</section>
{{end}}
</body>
</html>
`
