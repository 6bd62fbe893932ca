package browser

import (
	"testing"

	"github.com/nao1215/deskmaster/internal/model"
)

func TestNormalizeName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "ideographic space", in: "리뷰　1,234", want: "리뷰 1,234"},
		{name: "full width digits", in: "리뷰 １２０", want: "리뷰 120"},
		{name: "decomposed hangul", in: "리뷰", want: "리뷰"},
		{name: "surrounding whitespace", in: "  다음\n", want: "다음"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := NormalizeName(tt.in); got != tt.want {
				t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestQueryMatches(t *testing.T) {
	t.Parallel()

	link := &model.Element{ID: "1", Name: "리뷰 1,234", Role: "link"}
	text := &model.Element{ID: "2", Name: "2", Role: "StaticText"}

	tests := []struct {
		name string
		q    Query
		el   *model.Element
		want bool
	}{
		{name: "pattern", q: Named(`리뷰\s*[0-9,]+`), el: link, want: true},
		{name: "role mismatch", q: Named(`리뷰`, "button"), el: link, want: false},
		{name: "role case insensitive", q: Named(`리뷰`, "LINK"), el: link, want: true},
		{name: "exact match", q: Exact("2"), el: text, want: true},
		{name: "exact rejects substring", q: Exact("2"), el: &model.Element{Name: "12"}, want: false},
		{name: "any of", q: AnyOf([]string{"보안문자", "captcha"}), el: &model.Element{Name: "CAPTCHA 입력"}, want: true},
		{name: "nil element", q: Query{}, el: nil, want: false},
		{name: "empty query matches", q: Query{}, el: text, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.q.Matches(tt.el); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}
