package prompt

import (
	"context"
	"io"
	"text/template"

	"github.com/a-h/templ"
)

// ScorerData is the triple being classified.
type ScorerData struct {
	Question  string
	Reference string
	Answer    string
}

var scorerTemplate = template.Must(template.New("scorer").Parse(`You are comparing a submitted answer to an expert answer on a given question. Here is the data:
[BEGIN DATA]
************
[Question]: {{.Question}}
************
[Expert]: {{.Reference}}
************
[Submission]: {{.Answer}}
************
[END DATA]

Compare the factual content of the submitted answer with the expert answer. Ignore any differences in style, grammar, or punctuation.
The submitted answer may either be a subset or superset of the expert answer, or it may conflict with it. Determine which case applies. Answer the question by selecting one of the following options:
(A) The submitted answer is a subset of the expert answer and is fully consistent with it.
(B) The submitted answer is a superset of the expert answer and is fully consistent with it.
(C) The submitted answer contains all the same details as the expert answer.
(D) There is a disagreement between the submitted answer and the expert answer.
(E) The answers differ, but these differences don't matter from the perspective of factuality.

Call select_choice with your reasoning and the letter of the option.
`))

// ScorerPrompt renders the factuality classification prompt component.
func ScorerPrompt(data ScorerData) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		return scorerTemplate.Execute(w, data)
	})
}
