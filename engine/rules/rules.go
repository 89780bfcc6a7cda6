// Package rules resolves inbound messages to tasks and evaluates the
// conditions of auto-triggered actions.
package rules

import (
	"maps"

	"github.com/nathoo/petcore/types"
)

// Resolve returns the task built from the first rule matching msg, in
// declared order. The bool is false when no rule matches; the message is
// then simply dropped by the caller. Resolve has no state and no side effects.
func Resolve(msg types.Message, rules []types.MatchRule) (types.Task, bool) {
	for _, rule := range rules {
		if !MatchesMessage(rule, msg) {
			continue
		}
		return types.Task{
			Sender: msg.Sender,
			Action: rule.Action,
			Params: maps.Clone(rule.Params),
		}, true
	}
	return types.Task{}, false
}

// ResolveAll resolves a backlog of messages in order, skipping misses.
func ResolveAll(msgs []types.Message, rules []types.MatchRule) []types.Task {
	var tasks []types.Task
	for _, msg := range msgs {
		if task, ok := Resolve(msg, rules); ok {
			tasks = append(tasks, task)
		}
	}
	return tasks
}
