// Package parser extracts structured attendance reports from free-text
// messages of the form "<group> <total>/<present> <names> kelmadi".
package parser

import (
	"regexp"
	"strconv"
	"strings"
)

// UsageExample is shown whenever a message fails to parse.
const UsageExample = "7-b 20/19 bobur kelmadi"

var (
	reportRe    = regexp.MustCompile(`(?i)^(\d+-?[a-z]?)\s+(\d+)/(\d+)\s+(.+?)\s+kelmadi$`)
	separatorRe = regexp.MustCompile(`(?i)\s*,\s*|\s+va\s+`)
)

// Report is one parsed attendance line. Absent names are kept as typed,
// with only outer whitespace trimmed.
type Report struct {
	Group   string
	Total   int
	Present int
	Absent  []string
}

// Parse attempts to read an attendance report from text. It returns false on
// any structural or numeric violation; there are no partial results.
func Parse(text string) (*Report, bool) {
	m := reportRe.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return nil, false
	}

	total, err := strconv.Atoi(m[2])
	if err != nil {
		return nil, false
	}
	present, err := strconv.Atoi(m[3])
	if err != nil {
		return nil, false
	}
	if present > total {
		return nil, false
	}

	var absent []string
	for _, name := range separatorRe.Split(m[4], -1) {
		name = strings.TrimSpace(name)
		if name != "" {
			absent = append(absent, name)
		}
	}
	if len(absent) == 0 {
		return nil, false
	}

	return &Report{
		Group:   strings.TrimSpace(m[1]),
		Total:   total,
		Present: present,
		Absent:  absent,
	}, true
}
