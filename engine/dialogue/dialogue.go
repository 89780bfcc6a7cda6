// Package dialogue selects dialogue variants and fills in their templates.
package dialogue

import (
	"fmt"
	"math"
	"regexp"
	"strconv"

	"github.com/nathoo/petcore/engine/rng"
	"github.com/nathoo/petcore/types"
)

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.]+)\s*\}\}`)

// Pick selects one variant of a pool by priority.
// Returns nil, false for an empty pool.
func Pick(r *rng.RNG, pool []types.DialogueVariant) ([]types.DialogueLine, bool) {
	v, idx := rng.Select(r, pool)
	if idx < 0 {
		return nil, false
	}
	return v.Lines, true
}

// Render returns a copy of lines with {{key}} placeholders replaced from
// vars. Numbers are shown as absolute values, so "lost {{hp}}" reads
// naturally for a negative change. Unknown keys are left as written.
func Render(lines []types.DialogueLine, vars map[string]any) []types.DialogueLine {
	out := make([]types.DialogueLine, len(lines))
	for i, line := range lines {
		out[i] = types.DialogueLine{
			Portrait: line.Portrait,
			Text: placeholder.ReplaceAllStringFunc(line.Text, func(m string) string {
				key := placeholder.FindStringSubmatch(m)[1]
				v, ok := vars[key]
				if !ok {
					return m
				}
				return format(v)
			}),
		}
	}
	return out
}

// Narrate picks a variant and renders it.
func Narrate(r *rng.RNG, pool []types.DialogueVariant, vars map[string]any) []types.DialogueLine {
	lines, ok := Pick(r, pool)
	if !ok {
		return nil
	}
	return Render(lines, vars)
}

func format(v any) string {
	switch n := v.(type) {
	case int:
		if n < 0 {
			n = -n
		}
		return strconv.Itoa(n)
	case int64:
		if n < 0 {
			n = -n
		}
		return strconv.FormatInt(n, 10)
	case float64:
		return strconv.FormatFloat(math.Abs(n), 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
