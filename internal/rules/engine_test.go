package rules

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"cloudmon/internal/model"
)

func TestMatchFirstMatchWins(t *testing.T) {
	// Rules 0 and 2 both match on keywords; rule 2 carries an excluded
	// keyword that would reject the candidate if it were evaluated. The
	// walk must stop at rule 0.
	rs := []model.Rule{
		{Name: "first", OptionalKeywords: []string{"Beta"}},
		{Name: "never", OptionalKeywords: []string{"zzz"}},
		{Name: "conflicting", OptionalKeywords: []string{"Beta"}, ExcludedKeywords: []string{"Alpha"}},
	}

	res, ok := Match("Alpha Beta", "Alpha Beta release", rs)
	if !ok {
		t.Fatal("expected a match")
	}
	if diff := cmp.Diff(Result{RuleIndex: 0}, res); diff != "" {
		t.Errorf("Match mismatch (-want +got):\n%s", diff)
	}
}

func TestMatchNoRuleMatches(t *testing.T) {
	rs := []model.Rule{
		{Name: "a", OptionalKeywords: []string{"季"}},
		{Name: "b", RequiredKeywords: []string{"电影"}},
	}

	if _, ok := Match("desc", "完全无关的文本", rs); ok {
		t.Error("expected no match")
	}
}

func TestMatchReportsPriority(t *testing.T) {
	rs := []model.Rule{
		{Name: "shows", PriorityKeywords: []string{"权力的游戏"}},
	}

	res, ok := Match("desc", "权力的游戏 全八季", rs)
	if !ok {
		t.Fatal("expected a match")
	}
	if !res.Priority {
		t.Error("expected priority hit")
	}
}

func TestKeywordsPass(t *testing.T) {
	tests := []struct {
		name string
		text string
		rule model.Rule
		want bool
	}{
		{
			name: "empty rule passes everything",
			text: "anything",
			rule: model.Rule{},
			want: true,
		},
		{
			name: "all required present",
			text: "美剧 第一季 4K",
			rule: model.Rule{RequiredKeywords: []string{"美剧", "4K"}},
			want: true,
		},
		{
			name: "one required missing",
			text: "美剧 第一季",
			rule: model.Rule{RequiredKeywords: []string{"美剧", "4K"}},
			want: false,
		},
		{
			name: "priority bypasses required",
			text: "权力的游戏 第一季",
			rule: model.Rule{PriorityKeywords: []string{"权力的游戏"}, RequiredKeywords: []string{"4K"}},
			want: true,
		},
		{
			name: "priority does not bypass optional",
			text: "权力的游戏",
			rule: model.Rule{PriorityKeywords: []string{"权力的游戏"}, OptionalKeywords: []string{"季", "集"}},
			want: false,
		},
		{
			name: "priority with optional satisfied",
			text: "权力的游戏 第一季",
			rule: model.Rule{PriorityKeywords: []string{"权力的游戏"}, OptionalKeywords: []string{"季", "集"}},
			want: true,
		},
		{
			name: "any optional is enough",
			text: "美剧 合集",
			rule: model.Rule{OptionalKeywords: []string{"季", "集"}},
			want: true,
		},
		{
			name: "no optional present",
			text: "电影 原盘",
			rule: model.Rule{OptionalKeywords: []string{"季", "集"}},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KeywordsPass(tt.text, tt.rule); got != tt.want {
				t.Errorf("KeywordsPass(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestExcludesPass(t *testing.T) {
	tests := []struct {
		name string
		desc string
		rule model.Rule
		want bool
	}{
		{
			name: "no excludes passes",
			desc: "anything",
			rule: model.Rule{},
			want: true,
		},
		{
			name: "alnum keyword needs word boundary",
			desc: "TSUNAMI warning",
			rule: model.Rule{ExcludedKeywords: []string{"TS"}},
			want: true,
		},
		{
			name: "alnum keyword standalone rejects",
			desc: "Movie TS version",
			rule: model.Rule{ExcludedKeywords: []string{"TS"}},
			want: false,
		},
		{
			name: "alnum keyword is case insensitive",
			desc: "Movie ts version",
			rule: model.Rule{ExcludedKeywords: []string{"TS"}},
			want: false,
		},
		{
			name: "adjacent CJK counts as a word character",
			desc: "TS抢先版",
			rule: model.Rule{ExcludedKeywords: []string{"TS"}},
			want: true,
		},
		{
			name: "CJK stops the boundary on either side",
			desc: "电影TS",
			rule: model.Rule{ExcludedKeywords: []string{"TS"}},
			want: true,
		},
		{
			name: "space before CJK restores the boundary",
			desc: "TS 抢先版",
			rule: model.Rule{ExcludedKeywords: []string{"TS"}},
			want: false,
		},
		{
			name: "alnum keyword at string edges",
			desc: "TS",
			rule: model.Rule{ExcludedKeywords: []string{"TS"}},
			want: false,
		},
		{
			name: "non-alnum keyword uses substring",
			desc: "本片为枪版资源",
			rule: model.Rule{ExcludedKeywords: []string{"枪版"}},
			want: false,
		},
		{
			name: "non-alnum keyword absent",
			desc: "正式版资源",
			rule: model.Rule{ExcludedKeywords: []string{"枪版"}},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExcludesPass(tt.desc, tt.rule); got != tt.want {
				t.Errorf("ExcludesPass(%q) = %v, want %v", tt.desc, got, tt.want)
			}
		})
	}
}
