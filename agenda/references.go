package agenda

import (
	"fmt"
	"regexp"
	"strings"
)

// References are the resolutions and decisions cited in an item's text.
type References struct {
	Resolutions []string `json:"resolutions"`
	Decisions   []string `json:"decisions"`
}

var (
	resolutionGroup = regexp.MustCompile(`\(resolutions?\s+([\d/,\s]+(?:and\s+[\d/,\s]+)?)\)`)
	resolutionSplit = regexp.MustCompile(`[,\s]+and\s+|,\s*`)
	resolutionToken = regexp.MustCompile(`^\d+/`)

	decisionGroup       = regexp.MustCompile(`\(decisions?\s+([^)]+)\)`)
	decisionRange       = regexp.MustCompile(`(\d+/\d+)\s+([A-Z])\s+to\s+([A-Z])`)
	decisionConjunction = regexp.MustCompile(`(\d+/\d+)\s+([A-Z])\s+and\s+([A-Z])`)
	decisionSplit       = regexp.MustCompile(`\s*,\s*(?:and\s+)?|\s+and\s+`)
	decisionToken       = regexp.MustCompile(`^(\d+/\d+)(?:\s+([A-Z]))?`)
)

// ExtractReferences finds "(resolution 78/124)" and "(decisions 78/528 A to D,
// 78/504 A and B)" style citations. Lettered ranges and conjunctions are
// expanded so every decision part is listed on its own.
func ExtractReferences(text string) References {
	refs := References{Resolutions: []string{}, Decisions: []string{}}

	for _, m := range resolutionGroup.FindAllStringSubmatch(text, -1) {
		for _, token := range resolutionSplit.Split(m[1], -1) {
			token = strings.TrimSpace(token)
			if token != "" && resolutionToken.MatchString(token) {
				refs.Resolutions = append(refs.Resolutions, token)
			}
		}
	}

	for _, m := range decisionGroup.FindAllStringSubmatch(text, -1) {
		refs.Decisions = append(refs.Decisions, expandDecisions(m[1])...)
	}

	return refs
}

func expandDecisions(list string) []string {
	var out []string

	for _, r := range decisionRange.FindAllStringSubmatch(list, -1) {
		base, from, to := r[1], r[2][0], r[3][0]
		for c := from; c <= to; c++ {
			out = append(out, fmt.Sprintf("%s %c", base, c))
		}
		list = strings.ReplaceAll(list, r[0], "")
	}

	for _, r := range decisionConjunction.FindAllStringSubmatch(list, -1) {
		out = append(out, r[1]+" "+r[2], r[1]+" "+r[3])
		list = strings.ReplaceAll(list, r[0], "")
	}

	for _, token := range decisionSplit.Split(list, -1) {
		m := decisionToken.FindStringSubmatch(strings.TrimSpace(token))
		if m == nil {
			continue
		}
		if m[2] != "" {
			out = append(out, m[1]+" "+m[2])
		} else {
			out = append(out, m[1])
		}
	}

	return out
}
