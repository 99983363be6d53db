package extract

import (
	"regexp"
	"strings"
)

// Titles and descriptions are capped at this many characters after cleaning.
const maxTitleLen = 195

// junkKeywords mark a whole line as channel boilerplate to be skipped when
// deriving a title.
var junkKeywords = []string{
	"福利", "频道", "关注", "置顶", "推荐", "via", "转自", "来源", "投稿", "小编", "整理", "失效", "补档",
	"禁言", "通知", "更新", "日更", "公众号", "加入", "点击", "领取",
}

// adPatterns strip site-specific promo phrases, hashtag labels, and bare
// links from a line before it is considered as a title.
var adPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)天翼云盘.*资源分享`),
	regexp.MustCompile(`(?i)via\s*🤖編號\s*9527`),
	regexp.MustCompile(`(?i)🏷?\s*标签\s*：.*`),
	regexp.MustCompile(`(?i)[🏷#]\s*\w+`),
	regexp.MustCompile(`(?i)UC网盘.*分享`),
	regexp.MustCompile(`(?i)资源编号：\d+`),
	regexp.MustCompile(`(?i)123网盘.*分享`),
	regexp.MustCompile(`(?i)https?://\S+`),
	regexp.MustCompile(`(?i)[a-zA-Z0-9]+\.(cn|com|net)/\S+`),
}

var (
	reBareURL    = regexp.MustCompile(`https?://\S+`)
	reTagToken   = regexp.MustCompile(`[@#]\S+`)
	reAstral     = regexp.MustCompile(`[\x{10000}-\x{10FFFF}]`)
	reDisallowed = regexp.MustCompile(`[^\x{4e00}-\x{9fa5}a-zA-Z0-9,，.。!！?？:：《》()（）【】+\-\s　&/_]`)
	reNumericRow = regexp.MustCompile(`^[\d\s.\-*]+$`)
)

// Clean normalizes noisy message text into a displayable title fragment:
// promo phrases, URLs, mentions/tags, and emoji are removed, any character
// outside the allow-list becomes a space, and the result is trimmed and
// truncated to maxTitleLen characters.
func Clean(text string) string {
	if text == "" {
		return ""
	}
	for _, p := range adPatterns {
		text = p.ReplaceAllString(text, "")
	}
	text = reBareURL.ReplaceAllString(text, "")
	text = reTagToken.ReplaceAllString(text, "")
	text = reAstral.ReplaceAllString(text, "")
	text = reDisallowed.ReplaceAllString(text, " ")
	return truncate(strings.TrimSpace(text), maxTitleLen)
}

// IsJunkLine reports whether a line is boilerplate that must never become a
// title: too short, containing a junk keyword, or digits/punctuation only.
func IsJunkLine(line string) bool {
	line = strings.TrimSpace(line)
	if len([]rune(line)) < 2 {
		return true
	}
	for _, kw := range junkKeywords {
		if strings.Contains(line, kw) {
			return true
		}
	}
	return reNumericRow.MatchString(line)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
