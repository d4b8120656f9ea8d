package audit

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

const separator = "──────────────────────────────────────────────────────────────────"

// FormatTimeline renders a ReplayResult as a text timeline.
func FormatTimeline(result *ReplayResult) string {
	if len(result.Entries) == 0 {
		return "No entries found.\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s – %s UTC\n", formatDate(result.Summary.FirstTimestamp), formatClock(result.Summary.LastTimestamp))
	b.WriteString(separator + "\n")

	for _, e := range result.Entries {
		target := e.Target.Login + "@" + e.Target.Host
		if e.Port != 0 {
			target = fmt.Sprintf("%s:%d", target, e.Port)
		}
		tag := ""
		if e.Simulated {
			tag = "  [sandbox]"
		}
		fmt.Fprintf(&b, "%-10s %-11s %-18s %-28s %-18s%s\n",
			formatClock(e.Timestamp), e.Event,
			truncate(e.Source.Login+"@"+e.Source.Host, 18),
			truncate(target, 28),
			strings.ToUpper(e.Outcome), tag)
	}

	b.WriteString(separator + "\n")
	b.WriteString(formatSummary(result.Summary))
	return b.String()
}

// FormatJSON renders a ReplayResult as indented JSON.
func FormatJSON(result *ReplayResult) (string, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal replay result: %w", err)
	}
	return string(data), nil
}

func formatDate(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatClock(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("15:04:05")
}

func formatSummary(s Summary) string {
	outcomes := make([]string, 0, len(s.ByOutcome))
	for o := range s.ByOutcome {
		outcomes = append(outcomes, o)
	}
	sort.Strings(outcomes)
	parts := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		parts = append(parts, fmt.Sprintf("%d %s", s.ByOutcome[o], o))
	}
	return fmt.Sprintf("Summary: %d entries | %s\n", s.Total, strings.Join(parts, ", "))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
