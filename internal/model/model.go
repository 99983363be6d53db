// Package model defines the domain types used across the application.
package model

import (
	"regexp"
	"time"
)

// DriveType identifies a supported cloud drive provider.
type DriveType string

// Supported drive types.
const (
	DriveTianyi DriveType = "tianyi"
	DriveUC     DriveType = "uc"
	Drive123    DriveType = "123"
	Drive115    DriveType = "115"
)

// DriveSpec carries everything needed to recognize one drive type's share
// links and forward them: the URL pattern with the share code as the first
// capture group, the canonical link prefix, and the numeric type code the
// sink expects.
type DriveSpec struct {
	Type      DriveType
	Pattern   *regexp.Regexp
	URLPrefix string
	SinkType  int
}

var driveSpecs = []DriveSpec{
	{
		Type:      DriveTianyi,
		Pattern:   regexp.MustCompile(`(?i)(?:https?://)?cloud\.189\.cn/t/([a-zA-Z0-9]{12})\b`),
		URLPrefix: "https://cloud.189.cn/t/",
		SinkType:  9,
	},
	{
		Type:      DriveUC,
		// The trailing groups swallow the query string so access-code
		// parameters stay inside the matched text.
		Pattern:   regexp.MustCompile(`(?i)drive\.uc\.cn/s/([a-zA-Z0-9\-_]+)([^#]*)?(?:#*/list/share/[^?\-]+)?`),
		URLPrefix: "https://drive.uc.cn/s/",
		SinkType:  7,
	},
	{
		Type:      Drive123,
		Pattern:   regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?(?:123[0-9]*|pan\.123)\.com/s/([a-zA-Z0-9\-_]+)`),
		URLPrefix: "https://www.123865.com/s/",
		SinkType:  3,
	},
	{
		Type:      Drive115,
		Pattern:   regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?(?:115cdn\.com|115\.com)/s/([a-zA-Z0-9]+)`),
		URLPrefix: "https://115cdn.com/s/",
		SinkType:  8,
	},
}

// Specs returns the drive specs for the enabled types, in the fixed
// recognition order (tianyi, uc, 123, 115).
func Specs(enabled []DriveType) []DriveSpec {
	on := make(map[DriveType]bool, len(enabled))
	for _, t := range enabled {
		on[t] = true
	}
	var out []DriveSpec
	for _, s := range driveSpecs {
		if on[s.Type] {
			out = append(out, s)
		}
	}
	return out
}

// ShareCandidate is a single extracted share link with its resolved access
// code and description, prior to rule matching.
type ShareCandidate struct {
	Drive       DriveType
	SinkType    int
	ShareCode   string
	Link        string
	AccessCode  string
	Description string
}

// Rule is a named classification policy. Rules form an ordered list and the
// first matching, non-excluded rule wins per candidate.
type Rule struct {
	Name             string   `mapstructure:"name"`
	FolderPrefix     string   `mapstructure:"folder_prefix"`
	PriorityKeywords []string `mapstructure:"priority_keywords"`
	RequiredKeywords []string `mapstructure:"required_keywords"`
	OptionalKeywords []string `mapstructure:"optional_keywords"`
	ExcludedKeywords []string `mapstructure:"excluded_keywords"`
	TryJoin          bool     `mapstructure:"try_join"`
}

// Entity is a text hyperlink embedded in a message. Offset and Length are in
// characters of the message text; URL is the link target.
type Entity struct {
	Offset int
	Length int
	URL    string
}

// Message is one channel message as delivered by the source.
type Message struct {
	ID       int64
	Date     time.Time
	Text     string
	Entities []Entity
}

// RuleStats holds the found/added counters for one rule bucket.
type RuleStats struct {
	Found int
	Added int
}

// StatsSnapshot is a point-in-time copy of a channel pass's per-rule
// counters, plus the synthetic priority bucket.
type StatsSnapshot struct {
	Rules    []RuleStats
	Priority RuleStats
}

// TotalFound sums the found counters across all rule buckets.
func (s StatsSnapshot) TotalFound() int {
	n := 0
	for _, r := range s.Rules {
		n += r.Found
	}
	return n
}

// TotalAdded sums the added counters across all rule buckets.
func (s StatsSnapshot) TotalAdded() int {
	n := 0
	for _, r := range s.Rules {
		n += r.Added
	}
	return n
}
