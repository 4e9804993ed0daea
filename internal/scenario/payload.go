package scenario

import (
	"bytes"
	"math/rand"
	"text/template"

	"github.com/google/uuid"
)

// PayloadEngine renders JSON body fixtures. Templates get per-request data
// plus a few randomization helpers so repeated runs never collide on unique
// fields like emails.
type PayloadEngine struct {
	funcMap template.FuncMap
}

// PayloadData is the per-request execution context.
type PayloadData struct {
	Seq   int    // position within the batch
	RunID string // short id unique to this run
	UUID  string
}

func NewPayloadEngine() *PayloadEngine {
	e := &PayloadEngine{}
	e.funcMap = template.FuncMap{
		"randomInt":    e.randomInt,
		"randomUUID":   e.randomUUID,
		"randomChoice": e.randomChoice,
		"uuid":         e.randomUUID,
	}
	return e
}

// Render parses and executes a payload template in one step. Fixture
// templates are small and rendered at batch-build time, so there is no parse
// cache. data is usually a PayloadData or a struct embedding one.
func (e *PayloadEngine) Render(name, text string, data any) (string, error) {
	t, err := template.New(name).Funcs(e.funcMap).Parse(text)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (e *PayloadEngine) randomInt(min, max int) int {
	return rand.Intn(max-min) + min
}

func (e *PayloadEngine) randomUUID() string {
	return uuid.New().String()
}

func (e *PayloadEngine) randomChoice(choices ...string) string {
	if len(choices) == 0 {
		return ""
	}
	return choices[rand.Intn(len(choices))]
}
