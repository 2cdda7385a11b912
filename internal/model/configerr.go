package model

import (
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	cue "cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"
)

// CueErrorDetail is one humanized config validation failure tied to a
// position in the loaded file.
type CueErrorDetail struct {
	Path    string // stdin.path
	Code    string // unknown_field | missing_required | invalid_enum | conflict | type_mismatch
	Message string
	Pos     CueErrorPosition
	Raw     string // the full underlying error
}

type CueErrorPosition struct {
	Filename string
	Line     int
	Column   int
}

// Attr renders the detail as a single group attribute, ready for one
// log line per problem.
func (c CueErrorDetail) Attr(name string) slog.Attr {
	return slog.GroupAttrs(
		name,
		slog.String("code", c.Code),
		slog.String("path", c.Path),
		slog.String("message", c.Message),
		slog.String("file", c.Pos.Filename),
		slog.Int("line", c.Pos.Line),
		slog.Int("column", c.Pos.Column),
	)
}

// Classification rules over the raw CUE message, first match wins. The
// enum flag asks for the allowed values of the field to be spelled out.
var cueRules = []struct {
	re   *regexp.Regexp
	code string
	text string
	enum bool
}{
	{regexp.MustCompile(`(?i)not allowed|unknown field`), "unknown_field", "field %s is not allowed", false},
	{regexp.MustCompile(`(?i)incomplete value`), "missing_required", "field %s is required", false},
	{regexp.MustCompile(`(?i)must be one of|expected one of`), "invalid_enum", "field %s has an invalid value", true},
	{regexp.MustCompile(`(?i)conflicting values|cannot unify|incompatible|empty disjunction`), "conflict", "field %s does not match the schema", true},
	{regexp.MustCompile(`(?i)expected .* got .*`), "type_mismatch", "field %s has the wrong type", false},
}

// CueErrDetails flattens a LoadConfig error into loggable details, one
// per distinct position in the config file. A nil error yields nil.
func CueErrDetails(err error) []CueErrorDetail {
	var out []CueErrorDetail
	seen := map[CueErrorPosition]bool{}
	for _, e := range cueerrors.Errors(err) {
		pos, ok := errPosition(e)
		if !ok || seen[pos] {
			continue
		}
		seen[pos] = true

		path := fieldPath(e.Path())
		raw, _ := e.Msg()
		code, msg := describe(raw, path)
		out = append(out, CueErrorDetail{
			Path:    path,
			Code:    code,
			Message: msg,
			Pos:     pos,
			Raw:     err.Error(),
		})
	}
	return out
}

func describe(raw, path string) (code, msg string) {
	field := path
	if i := strings.LastIndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	for _, r := range cueRules {
		if !r.re.MatchString(raw) {
			continue
		}
		msg = fmt.Sprintf(r.text, field)
		if r.enum {
			if values := allowedValues(path); len(values) > 1 {
				msg += ", allowed: " + strings.Join(values, ", ")
			}
		}
		return r.code, msg
	}
	return "validation_error", raw
}

// allowedValues spells out a string disjunction found at path in the
// schema, the default value marked. Non-enum fields yield nothing.
func allowedValues(path string) []string {
	if path == "" {
		return nil
	}
	v := schema.LookupPath(cue.ParsePath(path))
	if v.Err() != nil || !v.Exists() {
		return nil
	}
	op, args := v.Expr()
	if op != cue.OrOp {
		return nil
	}

	var values []string
	for _, a := range args {
		if a.Kind() != cue.StringKind {
			continue
		}
		if s, err := a.String(); err == nil && !slices.Contains(values, s) {
			values = append(values, s)
		}
	}
	if d, ok := v.Default(); ok {
		if s, err := d.String(); err == nil {
			for i, val := range values {
				if val == s {
					values[i] = val + " (default)"
				}
			}
		}
	}
	return values
}

func errPosition(err cueerrors.Error) (CueErrorPosition, bool) {
	for _, p := range cueerrors.Positions(err) {
		if p.Filename() == "" {
			continue
		}
		return CueErrorPosition{
			Filename: p.Filename(),
			Line:     p.Line(),
			Column:   p.Column(),
		}, true
	}
	return CueErrorPosition{}, false
}

// fieldPath drops the schema definition prefix: an error at
// #Config.stdin.path is reported as stdin.path.
func fieldPath(parts []string) string {
	if len(parts) > 0 && strings.HasPrefix(parts[0], "#") {
		parts = parts[1:]
	}
	return strings.Join(parts, ".")
}
