// Package extract implements the share-link mining step: one message in,
// zero or more share candidates out.
package extract

import (
	"regexp"
	"strings"

	"cloudmon/internal/model"
)

var (
	// Labelled access code somewhere in the message body, e.g. "提取码: ab12".
	// The code is 4-6 alphanumeric characters and must not be followed by
	// another alphanumeric character.
	reAccessCode = regexp.MustCompile(`(?i)(?:密码|提取码|验证码|访问码|分享密码|密钥|pwd|password|share_pwd|pass_code|#)[=:：\s]*([a-zA-Z0-9]{4,6})(?:[^a-zA-Z0-9]|$)`)

	// Access code carried as a URL query parameter. Takes precedence over a
	// labelled code when both are present.
	reURLParamCode = regexp.MustCompile(`(?i)[?&](?:pwd|password|access_code|code|sharepwd)=([a-zA-Z0-9]{4,6})`)

	// Explicit title marker, e.g. "名称：xxx" / "片名: xxx" / "Title: xxx".
	reNameMarker = regexp.MustCompile(`(?:资源|文件)?(?:名称|名|片名|Title)[：:]\s*(.+)`)

	// Contiguous runs of resolution/format tokens, stripped from the shared
	// base title in multi-link mode.
	reFormatRun = regexp.MustCompile(`(?i)\b(?:4K|1080[Pp]?|2160[Pp]?|SDR|HDR\d*\+?|DV|Dolby\s*Vision)(?:[\s&/+\\]+(?:4K|1080[Pp]?|2160[Pp]?|SDR|HDR\d*\+?|DV|Dolby\s*Vision))*\b`)

	reSpaces = regexp.MustCompile(`\s+`)
)

// Extractor mines share candidates for the enabled drive types.
type Extractor struct {
	specs []model.DriveSpec
}

// New creates an Extractor recognizing the given drive types.
func New(enabled []model.DriveType) *Extractor {
	return &Extractor{specs: model.Specs(enabled)}
}

// item is one raw pattern hit before per-code deduplication.
type item struct {
	code    string
	spec    model.DriveSpec
	fromEnt bool
	entText string // visible text of the hyperlink entity
	entURL  string
	start   int    // byte offset of the match in the message text
	matched string // full matched text, used for URL-parameter code lookup
}

// Extract returns the share candidates found in msg, one per distinct share
// code, in first-discovery order. It never fails: malformed text simply
// yields fewer or no candidates.
func (e *Extractor) Extract(msg model.Message) []model.ShareCandidate {
	text := normalize(msg.Text)

	smartTitle := deriveTitle(text)
	globalCode := ""
	if m := reAccessCode.FindStringSubmatch(text); m != nil {
		globalCode = m[1]
	}

	items := e.collect(text, msg.Entities)

	codes := make(map[string]bool)
	for _, it := range items {
		codes[it.code] = true
	}
	multiLink := len(codes) > 1

	baseTitle := smartTitle
	if multiLink {
		baseTitle = reFormatRun.ReplaceAllString(smartTitle, "")
		baseTitle = strings.TrimSpace(reSpaces.ReplaceAllString(baseTitle, " "))
	}

	var out []model.ShareCandidate
	seen := make(map[string]bool)
	for _, it := range items {
		if seen[it.code] {
			continue
		}
		seen[it.code] = true

		code := globalCode
		urlCheck := it.matched
		if it.fromEnt {
			urlCheck = it.entURL
		}
		if m := reURLParamCode.FindStringSubmatch(urlCheck); m != nil {
			code = m[1]
		}

		desc := smartTitle
		if multiLink {
			desc = baseTitle
			if localDesc := localDescription(it, text); localDesc != "" {
				desc = baseTitle + " " + localDesc
			}
		}

		out = append(out, model.ShareCandidate{
			Drive:       it.spec.Type,
			SinkType:    it.spec.SinkType,
			ShareCode:   it.code,
			Link:        it.spec.URLPrefix + it.code,
			AccessCode:  code,
			Description: desc,
		})
	}
	return out
}

// collect gathers pattern hits from the raw text first, then from hyperlink
// entity targets, preserving discovery order.
func (e *Extractor) collect(text string, entities []model.Entity) []item {
	var items []item
	for _, spec := range e.specs {
		for _, idx := range spec.Pattern.FindAllStringSubmatchIndex(text, -1) {
			items = append(items, item{
				code:    text[idx[2]:idx[3]],
				spec:    spec,
				start:   idx[0],
				matched: text[idx[0]:idx[1]],
			})
		}
	}
	for _, ent := range entities {
		if ent.URL == "" {
			continue
		}
		for _, spec := range e.specs {
			m := spec.Pattern.FindStringSubmatch(ent.URL)
			if m == nil {
				continue
			}
			items = append(items, item{
				code:    m[1],
				spec:    spec,
				fromEnt: true,
				entText: entityText(text, ent),
				entURL:  ent.URL,
			})
		}
	}
	return items
}

// localDescription resolves a per-candidate description fragment for
// multi-link messages: the entity's visible text for entity hits, or the
// nearest usable line above the match for raw-text hits.
func localDescription(it item, text string) string {
	if it.fromEnt {
		d := Clean(it.entText)
		if len([]rune(d)) > 1 {
			return d
		}
		return ""
	}

	lines := strings.Split(text[:it.start], "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		cleaned := Clean(line)
		if cleaned == "" || IsJunkLine(cleaned) {
			continue
		}
		return cleaned
	}
	return ""
}

// deriveTitle picks the message's smart title: an explicit name marker when
// present, otherwise the first non-junk line that survives cleaning.
func deriveTitle(text string) string {
	if m := reNameMarker.FindStringSubmatch(text); m != nil {
		return Clean(m[1])
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || IsJunkLine(line) {
			continue
		}
		cleaned := Clean(line)
		if len([]rune(cleaned)) > 2 {
			return cleaned
		}
	}
	return "Untitled"
}

// normalize undoes URL-encoded full-width parentheses seen in forwarded
// posts.
func normalize(text string) string {
	text = strings.ReplaceAll(text, "%EF%BC%88", "(")
	return strings.ReplaceAll(text, "%EF%BC%89", ")")
}

// entityText returns the visible span of a hyperlink entity, clamped to the
// message bounds.
func entityText(text string, ent model.Entity) string {
	r := []rune(text)
	start := ent.Offset
	end := ent.Offset + ent.Length
	if start < 0 || start >= len(r) {
		return ""
	}
	if end > len(r) {
		end = len(r)
	}
	return string(r[start:end])
}
