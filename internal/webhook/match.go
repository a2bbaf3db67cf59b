package webhook

import (
	"strings"

	"workhub/internal/model"
)

// Match returns, in rule order, every rule bound to the commented media
// whose keyword appears in the comment text. Matching is a case-insensitive
// substring check.
func Match(mediaID, text string, rules []model.AutomationRule) []model.AutomationRule {
	lower := strings.ToLower(text)
	var hits []model.AutomationRule
	for _, r := range rules {
		if r.PostID != mediaID {
			continue
		}
		if r.Keyword == "" || !strings.Contains(lower, strings.ToLower(r.Keyword)) {
			continue
		}
		hits = append(hits, r)
	}
	return hits
}

// RenderTemplate substitutes the commenter's handle into a rule response.
func RenderTemplate(tpl, username string) string {
	return strings.ReplaceAll(tpl, "{username}", username)
}
