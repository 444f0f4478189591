package expr

import (
	"strings"

	"github.com/mraysmit/apex-sub000/internal/evalctx"
	"github.com/mraysmit/apex-sub000/internal/value"
)

// Template is a compiled message template: literal text interspersed with
// `{{expr}}` interpolations, per §4.1.
type Template struct {
	raw    string
	parts  []templatePart
}

type templatePart struct {
	literal string
	prog    *Program
}

// CompileTemplate parses a message template. Malformed `{{...}}`
// expressions are retained as compile errors; §7 requires template
// *evaluation* errors (not compile errors) to degrade gracefully.
func CompileTemplate(raw string) (*Template, error) {
	var parts []templatePart
	rest := raw
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			parts = append(parts, templatePart{literal: rest})
			break
		}
		if start > 0 {
			parts = append(parts, templatePart{literal: rest[:start]})
		}
		end := strings.Index(rest[start:], "}}")
		if end < 0 {
			parts = append(parts, templatePart{literal: rest[start:]})
			break
		}
		exprSrc := rest[start+2 : start+end]
		prog, err := Compile(strings.TrimSpace(exprSrc))
		if err != nil {
			return nil, err
		}
		parts = append(parts, templatePart{prog: prog})
		rest = rest[start+end+2:]
	}
	return &Template{raw: raw, parts: parts}, nil
}

// Render evaluates the template against ctx. Per §7, template evaluation
// errors never propagate: a failing interpolation degrades to the literal
// `{{expr}}` text, and the caller is informed via degraded=true so it can
// attach an InfoWarning annotation without failing the rule.
func (t *Template) Render(ctx *evalctx.Context) (rendered string, degraded bool) {
	var b strings.Builder
	for _, p := range t.parts {
		if p.prog == nil {
			b.WriteString(p.literal)
			continue
		}
		v, err := p.prog.Eval(ctx)
		if err != nil {
			degraded = true
			b.WriteString("{{" + p.prog.Source() + "}}")
			continue
		}
		b.WriteString(value.Format(v))
	}
	return b.String(), degraded
}

func (t *Template) Raw() string { return t.raw }
