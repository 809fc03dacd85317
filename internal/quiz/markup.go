package quiz

import (
	"html/template"
	"io"
)

var questionTmpl = template.Must(template.New("question").Parse(
	`<div class="question" id="{{.ID}}">` + "\n" +
		`<p><strong>{{.Number}}. {{.Text}}</strong></p>` + "\n" +
		`{{range .Options}}<label><input type="radio" name="{{$.ID}}" value="{{.Letter}}"> {{.Letter}}) {{.Text}}</label>` +
		`<span class="feedback" data-option="{{.Letter}}"></span><br>` + "\n" +
		`{{end}}</div>` + "\n",
))

func renderQuestion(w io.Writer, q Question) error {
	return questionTmpl.Execute(w, q)
}
