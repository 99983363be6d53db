package extract

import (
	"strings"
	"testing"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain title unchanged",
			in:   "Movie X 4K HDR",
			want: "Movie X 4K HDR",
		},
		{
			name: "strips bare url",
			in:   "新世界 https://example.com/abc",
			want: "新世界",
		},
		{
			name: "strips mention and tag tokens",
			in:   "新世界 @somechannel #电影",
			want: "新世界",
		},
		{
			name: "strips promo boilerplate",
			in:   "天翼云盘高清资源分享 新世界",
			want: "新世界",
		},
		{
			name: "strips resource number label",
			in:   "新世界 资源编号：1234",
			want: "新世界",
		},
		{
			name: "strips emoji",
			in:   "新世界 🔥🔥",
			want: "新世界",
		},
		{
			name: "disallowed characters become spaces",
			in:   "新世界|第一季",
			want: "新世界 第一季",
		},
		{
			name: "keeps technical symbols",
			in:   "S01E01 & 4K/HDR_remux+",
			want: "S01E01 & 4K/HDR_remux+",
		},
		{
			name: "empty input",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.in); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCleanTruncates(t *testing.T) {
	in := strings.Repeat("啊", 300)
	got := Clean(in)
	if n := len([]rune(got)); n != maxTitleLen {
		t.Errorf("Clean length = %d, want %d", n, maxTitleLen)
	}
}

func TestIsJunkLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want bool
	}{
		{name: "too short", line: "a", want: true},
		{name: "channel promo keyword", line: "关注我们的频道", want: true},
		{name: "digits and separators only", line: "1. - 2 *", want: true},
		{name: "real title", line: "新世界 第一季", want: false},
		{name: "english title", line: "Movie X", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsJunkLine(tt.line); got != tt.want {
				t.Errorf("IsJunkLine(%q) = %v, want %v", tt.line, got, tt.want)
			}
		})
	}
}
