// Package rules implements the ordered rule matching engine.
package rules

import (
	"regexp"
	"strings"

	"cloudmon/internal/model"
)

var reAlnum = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// Result is the outcome of matching one candidate against the rule list.
type Result struct {
	RuleIndex int
	// Priority reports whether the rule's priority keywords appear in the
	// full message text. Used downstream for statistics bucketing only.
	Priority bool
}

// Match walks the rules in list order and returns the first rule whose
// keyword gates pass for the message text and whose exclusion gates pass for
// the candidate description. Later rules are not evaluated once a rule
// matches. ok is false when no rule matches.
func Match(desc, msgText string, rs []model.Rule) (res Result, ok bool) {
	for i, r := range rs {
		if !KeywordsPass(msgText, r) {
			continue
		}
		if !ExcludesPass(desc, r) {
			continue
		}
		return Result{RuleIndex: i, Priority: PriorityHit(msgText, r)}, true
	}
	return Result{}, false
}

// KeywordsPass applies a rule's keyword gates to the message text. A
// priority-keyword hit bypasses the required-keyword gate but not the
// optional-keyword gate. Empty keyword lists impose no constraint.
func KeywordsPass(text string, r model.Rule) bool {
	hitPriority := containsAny(text, r.PriorityKeywords)

	if !hitPriority {
		if len(r.RequiredKeywords) > 0 && !containsAll(text, r.RequiredKeywords) {
			return false
		}
	}
	if len(r.OptionalKeywords) > 0 && !containsAny(text, r.OptionalKeywords) {
		return false
	}
	return true
}

// ExcludesPass applies a rule's excluded keywords to the candidate
// description. Purely alphanumeric keywords reject on a case-insensitive
// word-boundary match where letters of any script, digits, and underscore
// all count as word characters, so "TS" rejects standalone "TS" but neither
// "TSUNAMI" nor "TS抢先版"; any other keyword rejects on plain substring
// containment.
func ExcludesPass(desc string, r model.Rule) bool {
	for _, kw := range r.ExcludedKeywords {
		if kw == "" {
			continue
		}
		if reAlnum.MatchString(kw) {
			re, err := regexp.Compile(`(?i)(?:^|[^\p{L}\p{N}_])` + regexp.QuoteMeta(kw) + `(?:[^\p{L}\p{N}_]|$)`)
			if err != nil {
				continue
			}
			if re.MatchString(desc) {
				return false
			}
		} else if strings.Contains(desc, kw) {
			return false
		}
	}
	return true
}

// PriorityHit reports whether any of the rule's priority keywords appears in
// the message text.
func PriorityHit(text string, r model.Rule) bool {
	return containsAny(text, r.PriorityKeywords)
}

func containsAny(text string, kws []string) bool {
	for _, kw := range kws {
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func containsAll(text string, kws []string) bool {
	for _, kw := range kws {
		if !strings.Contains(text, kw) {
			return false
		}
	}
	return true
}
