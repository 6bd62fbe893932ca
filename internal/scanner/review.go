package scanner

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/nao1215/deskmaster/internal/browser"
)

// ExtractReviewCount returns the count captured by the first group of re in
// text, with thousands separators removed.
func ExtractReviewCount(re *regexp.Regexp, text string) (int, bool) {
	m := re.FindStringSubmatch(browser.NormalizeName(text))
	if len(m) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// ReviewCounts returns every count found in text, in order.
func ReviewCounts(re *regexp.Regexp, text string) []int {
	var out []int
	for _, m := range re.FindAllStringSubmatch(browser.NormalizeName(text), -1) {
		if n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", "")); err == nil {
			out = append(out, n)
		}
	}
	return out
}
