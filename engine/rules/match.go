package rules

import (
	"slices"

	"github.com/nathoo/petcore/types"
)

// messageField returns a message field by its rule name.
func messageField(msg types.Message, field string) (string, bool) {
	switch field {
	case "sender":
		return msg.Sender, true
	case "text":
		return msg.Text, true
	default:
		return "", false
	}
}

// MatchesMessage checks whether every field a rule lists holds one of its
// candidate values. Membership is exact; a rule that lists no fields, or
// names a field messages do not have, never matches.
func MatchesMessage(rule types.MatchRule, msg types.Message) bool {
	if len(rule.Matches) == 0 {
		return false
	}
	for field, candidates := range rule.Matches {
		value, ok := messageField(msg, field)
		if !ok {
			return false
		}
		if !slices.Contains(candidates, value) {
			return false
		}
	}
	return true
}
