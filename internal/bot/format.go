package bot

import (
	"fmt"
	"strings"

	"kmanga/internal/model"
	"kmanga/internal/search"
)

const timeFormat = "2006-01-02 15:04 UTC"

// recentIssues is how many issues FormatMangaInfo shows.
const recentIssues = 5

// FormatSearchResults formats one page of search hits out of total matches.
func FormatSearchResults(term string, hits []search.Hit, total int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d manga for \"%s\"", total, term)
	if len(hits) < total {
		fmt.Fprintf(&b, ", showing the top %d", len(hits))
	}
	b.WriteString(":\n")
	for _, h := range hits {
		writeMangaLine(&b, h.Manga)
	}
	return b.String()
}

// FormatSuggestions formats the reply to a search without hits.
func FormatSuggestions(term string, suggestions []model.Manga) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Nothing found for \"%s\".", term)
	if len(suggestions) == 0 {
		return b.String()
	}
	b.WriteString("\nDid you mean:\n")
	for _, m := range suggestions {
		writeMangaLine(&b, m)
	}
	return b.String()
}

// FormatLatest formats manga ordered by their latest issue.
func FormatLatest(list []model.Manga) string {
	if len(list) == 0 {
		return "The catalog is empty."
	}
	var b strings.Builder
	b.WriteString("Recently updated:\n")
	for _, m := range list {
		writeMangaLine(&b, m)
	}
	return b.String()
}

func writeMangaLine(b *strings.Builder, m model.Manga) {
	fmt.Fprintf(b, "\n#%d %s", m.ID, m.Name)
	if m.Status == model.MangaCompleted {
		b.WriteString(" [completed]")
	}
	b.WriteString("\n")
	if alts := m.AltNameStrings(); len(alts) > 0 {
		fmt.Fprintf(b, "   aka %s\n", strings.Join(alts, ", "))
	}
}

// FormatSubscriptionList formats the live subscriptions of a user.
func FormatSubscriptionList(subs []model.Subscription) string {
	if len(subs) == 0 {
		return "You have no subscriptions yet. Use /search <name> to find a manga."
	}
	var b strings.Builder
	b.WriteString("Your subscriptions:\n")
	for _, s := range subs {
		fmt.Fprintf(&b, "\n#%d %s [%s]\n", s.MangaID, s, s.State)
		if s.LastSentAt != nil {
			fmt.Fprintf(&b, "   last issue sent %s\n", s.LastSentAt.UTC().Format(timeFormat))
		} else {
			b.WriteString("   nothing sent yet\n")
		}
	}
	return b.String()
}

// FormatMangaInfo formats a manga with its latest issues and, when present,
// the user's subscription to it. Issues are expected oldest first.
func FormatMangaInfo(m *model.Manga, issues []model.Issue, sub *model.Subscription) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d %s [%s]\n", m.ID, m.Name, m.Status)
	if alts := m.AltNameStrings(); len(alts) > 0 {
		fmt.Fprintf(&b, "Also known as: %s\n", strings.Join(alts, ", "))
	}
	if m.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", m.Description)
	}

	b.WriteString("\n")
	if len(issues) == 0 {
		b.WriteString("No issues yet.\n")
	} else {
		fmt.Fprintf(&b, "Issues: %d, latest:\n", len(issues))
		for i := len(issues) - 1; i >= 0 && i >= len(issues)-recentIssues; i-- {
			fmt.Fprintf(&b, "  %s\n", issues[i].Name)
		}
	}

	b.WriteString("\n")
	if sub == nil {
		fmt.Fprintf(&b, "Not subscribed. Use /subscribe %d.", m.ID)
	} else {
		fmt.Fprintf(&b, "Subscribed: %d per day [%s]", sub.PerDay, sub.State)
	}
	return b.String()
}
