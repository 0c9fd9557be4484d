package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"
)

// WriteMarkdown writes r as a markdown document.
func WriteMarkdown(w io.Writer, r Report) error {
	md := markdown.NewMarkdown(w)

	md.H1("Harvest Analysis")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Users", strconv.Itoa(r.TotalRecords)},
			{"Enriched", strconv.Itoa(r.EnrichedCount)},
			{"Engagement pairs", strconv.Itoa(len(r.Pairs))},
		},
	})
	md.PlainText("")

	md.H2("Followers vs Points")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Bucket", "Users", "Average points"},
		Rows: [][]string{
			{fmt.Sprintf("> %d followers", r.Config.FollowerThreshold), strconv.Itoa(r.HighFollowers.Count), fmt.Sprintf("%.2f", r.HighFollowers.MeanScore)},
			{fmt.Sprintf("<= %d followers", r.Config.FollowerThreshold), strconv.Itoa(r.LowFollowers.Count), fmt.Sprintf("%.2f", r.LowFollowers.MeanScore)},
		},
	})
	md.PlainText("")
	switch r.FollowerVerdict {
	case FollowerDisproportionate:
		md.Warningf("%s", followerInsight(r))
	case FollowerFair:
		md.Tip(followerInsight(r))
	default:
		md.Note(followerInsight(r))
	}
	md.PlainText("")

	md.H2("Engagement vs Points")
	md.PlainText("")
	if len(r.Pairs) == 0 {
		md.PlainText("No users with both engagement and points.")
		md.PlainText("")
		return md.Build()
	}
	rows := make([][]string, 0, len(r.TopPairs))
	for i, p := range r.TopPairs {
		rows = append(rows, []string{strconv.Itoa(i + 1), handleLabel(p.Handle), strconv.Itoa(p.Engagement), formatScore(p.Score)})
	}
	md.Table(markdown.TableSet{
		Header: []string{"#", "Handle", "Engagement", "Points"},
		Rows:   rows,
	})
	md.PlainText("")

	bullets := []string{
		fmt.Sprintf("High engagement (> %d): %d users, average points %.2f",
			r.Config.EngagementThreshold, r.HighEngagement.Count, r.HighEngagement.MeanScore),
		fmt.Sprintf("Low engagement (<= %d): %d users, average points %.2f",
			r.Config.EngagementThreshold, r.LowEngagement.Count, r.LowEngagement.MeanScore),
	}
	if r.HasCorrelation {
		bullets = append(bullets, fmt.Sprintf("Pearson correlation: %.3f", r.Correlation))
	}
	md.BulletList(bullets...)
	md.PlainText("")
	if r.EngagementVerdict == EngagementCorrelates {
		md.Importantf("%s", engagementInsight(r))
	} else {
		md.Note(engagementInsight(r))
	}
	md.PlainText("")
	return md.Build()
}
