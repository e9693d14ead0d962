package crawler

import "strings"

// Block pages come back as a transport-level success, so the fetcher cannot
// tell them apart from real content. Detecting them is a content-inspection
// concern that lives here, in the caller.
var defaultBlockIndicators = []string{
	"access denied",
	"verify you are a human",
	"unusual activity",
	"captcha",
	"pardon our interruption",
	"request blocked",
}

// LooksBlocked reports whether the fetched content resembles a bot
// challenge or access-denied page. Substring heuristics only; false
// negatives are expected and tolerated.
func LooksBlocked(html string) bool {
	lower := strings.ToLower(html)
	for _, indicator := range defaultBlockIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}
