package ruleengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeReferrer(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"https://WWW.Shop.Vibe.ir:443/cart?x=1": "shop.vibe.ir",
		"http://vibe.ir":                        "vibe.ir",
		"vibe.ir/path":                          "vibe.ir",
		"//cdn.vibe.ir/a":                       "cdn.vibe.ir",
		"https://user:pw@vibe.ir/":              "vibe.ir",
		"  Vibe.IR.  ":                          "vibe.ir",
		"www.example.com:8080":                  "example.com",
		"":                                      "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeReferrer(in), "input %q", in)
	}
}

func TestMatchReferrer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		domains  []string
		mt       MatchType
		referrer string
		want     bool
	}{
		{"subdomain exact host", []string{"vibe.ir"}, MatchSubdomain, "https://vibe.ir/", true},
		{"subdomain child", []string{"vibe.ir"}, MatchSubdomain, "https://shop.vibe.ir/x", true},
		{"subdomain lookalike", []string{"vibe.ir"}, MatchSubdomain, "https://notvibe.ir", false},
		{"default is subdomain", []string{"vibe.ir"}, "", "shop.vibe.ir", true},
		{"exact rejects child", []string{"vibe.ir"}, MatchExact, "shop.vibe.ir", false},
		{"exact ignores www", []string{"www.vibe.ir"}, MatchExact, "https://vibe.ir", true},
		{"contains", []string{"vibe"}, MatchContains, "https://notvibe.ir", true},
		{"regex", []string{`^(shop|pay)\.vibe\.ir$`}, MatchRegex, "https://pay.vibe.ir", true},
		{"regex miss", []string{`^(shop|pay)\.vibe\.ir$`}, MatchRegex, "https://blog.vibe.ir", false},
		{"invalid regex never matches", []string{`(`}, MatchRegex, "vibe.ir", false},
		{"empty referrer", []string{"vibe.ir"}, MatchSubdomain, "", false},
		{"second domain", []string{"a.example", "vibe.ir"}, MatchSubdomain, "vibe.ir", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, MatchReferrer(tt.domains, tt.mt, tt.referrer))
		})
	}
}

func TestReferrerConditions_Unrestricted(t *testing.T) {
	t.Parallel()

	assert.True(t, ReferrerConditions{}.Matches(""))
	assert.True(t, ReferrerConditions{}.Matches("anywhere.example"))
	assert.False(t, ReferrerConditions{Domains: []string{"vibe.ir"}}.Matches(""))
}
