package report

import (
	"fmt"
	"io"
	"strings"
)

// WriteText writes r as a plain-text summary.
func WriteText(w io.Writer, r Report) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Analysis of %d users (%d enriched):\n", r.TotalRecords, r.EnrichedCount)
	fmt.Fprintf(&b, "Users with >%d followers: %d\n", r.Config.FollowerThreshold, r.HighFollowers.Count)
	fmt.Fprintf(&b, "  Average points: %.2f\n", r.HighFollowers.MeanScore)
	fmt.Fprintf(&b, "Users with <=%d followers: %d\n", r.Config.FollowerThreshold, r.LowFollowers.Count)
	fmt.Fprintf(&b, "  Average points: %.2f\n", r.LowFollowers.MeanScore)

	if len(r.Pairs) > 0 {
		fmt.Fprintf(&b, "\nPost engagement analysis (%d users):\n", len(r.Pairs))
		fmt.Fprintf(&b, "Top %d users by engagement vs points:\n", len(r.TopPairs))
		for _, p := range r.TopPairs {
			fmt.Fprintf(&b, "  %s engagement: %d -> points: %s\n", handleLabel(p.Handle), p.Engagement, formatScore(p.Score))
		}
		if r.HasCorrelation {
			fmt.Fprintf(&b, "  Pearson correlation: %.3f\n", r.Correlation)
		}
		b.WriteString("  " + engagementInsight(r) + "\n")
	}

	b.WriteString("\n" + followerInsight(r) + "\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func engagementInsight(r Report) string {
	if r.EngagementVerdict == EngagementCorrelates {
		return fmt.Sprintf("Insight: high post engagement (>%d) correlates with higher points (%.0f vs %.0f).",
			r.Config.EngagementThreshold, r.HighEngagement.MeanScore, r.LowEngagement.MeanScore)
	}
	return "Insight: post engagement does not seem to directly drive points."
}

func followerInsight(r Report) string {
	switch r.FollowerVerdict {
	case FollowerDisproportionate:
		return "Observation: larger accounts seem to have significantly higher points."
	case FollowerFair:
		return "Observation: scoring appears fair or favors activity over follower count."
	default:
		return "Observation: no large disparity detected based on follower count alone."
	}
}

func handleLabel(h string) string {
	if h == "" {
		return "(unknown)"
	}
	return "@" + h
}

func formatScore(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}
