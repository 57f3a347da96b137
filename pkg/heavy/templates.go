package heavy

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

const (
	defaultCompactTemplate = `{{if .Message}}{{.Message}} {{end}}Fonte: {{.URL}}`

	defaultFullTemplate = `{{.Message}}

O usuário acabou de te enviar um link ({{.URL}}), segue abaixo a transcrição completa do vídeo com título: "{{.Title}}", esta mesma pode conter erros de digitação ou falas misturadas caso o video possua mais de um narrador. Por favor, ignore quaisquer erros de digitação e foque na mensagem geral do conteúdo ao responder o usuário.

{{.Transcript}}

Agora, por favor, responda a mensagem do usuário considerando o conteúdo do vídeo acima, lembre-se de por personalidade e emoção em suas respostas!`
)

// DefaultMarkers identify a full rendering produced by the default template.
var DefaultMarkers = []string{
	"transcrição completa do vídeo",
	"responda a mensagem do usuário considerando o conteúdo do vídeo",
}

// Fields are available to both templates.
type Fields struct {
	Message    string
	URL        string
	Title      string
	Transcript string
}

// Templates render the two forms of a linked video message.
type Templates struct {
	compact *template.Template
	full    *template.Template
	markers []string
}

// DefaultTemplates returns the built-in Portuguese templates.
func DefaultTemplates() *Templates {
	t, err := NewTemplates(defaultCompactTemplate, defaultFullTemplate, DefaultMarkers)
	if err != nil {
		panic(err)
	}
	return t
}

// NewTemplates parses custom templates. markers are phrases only the full
// template produces; they let saved sessions be rescanned.
func NewTemplates(compact, full string, markers []string) (*Templates, error) {
	compactTmpl, err := template.New("compact").Option("missingkey=error").Parse(compact)
	if err != nil {
		return nil, fmt.Errorf("parsing compact template: %w", err)
	}
	fullTmpl, err := template.New("full").Option("missingkey=error").Parse(full)
	if err != nil {
		return nil, fmt.Errorf("parsing full template: %w", err)
	}
	return &Templates{compact: compactTmpl, full: fullTmpl, markers: markers}, nil
}

func (t *Templates) RenderCompact(fields Fields) (string, error) {
	return render(t.compact, fields)
}

func (t *Templates) RenderFull(fields Fields) (string, error) {
	return render(t.full, fields)
}

// HasMarker reports whether text contains any full-rendering marker.
func (t *Templates) HasMarker(text string) bool {
	for _, marker := range t.markers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

func render(tmpl *template.Template, fields Fields) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, fields); err != nil {
		return "", fmt.Errorf("rendering %s template: %w", tmpl.Name(), err)
	}
	return strings.TrimSpace(buf.String()), nil
}
