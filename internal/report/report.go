// Package report aggregates enriched user records into the end-of-session
// analysis: mean score per follower bucket, the top engagement/score
// pairs and the qualitative verdicts derived from them.
package report

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/JakeFAU/infofi-harvester/internal/crawler"
)

// Config holds aggregation thresholds.
type Config struct {
	FollowerThreshold   int
	EngagementThreshold int
	TopN                int
	// DisparityRatio is how many times the low-follower mean the
	// high-follower mean must exceed to flag an advantage.
	DisparityRatio float64
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{FollowerThreshold: 10000, EngagementThreshold: 100, TopN: 5, DisparityRatio: 1.5}
}

// Verdict is a qualitative finding.
type Verdict string

// Engagement verdicts.
const (
	EngagementCorrelates Verdict = "correlates"
	EngagementNeutral    Verdict = "neutral"
	EngagementNoData     Verdict = "no_data"
)

// Follower verdicts.
const (
	FollowerDisproportionate Verdict = "disproportionate"
	FollowerFair             Verdict = "fair"
	FollowerNeutral          Verdict = "neutral"
)

// Bucket is the mean score over a partition of records.
type Bucket struct {
	Count     int     `json:"count"`
	MeanScore float64 `json:"mean_score"`
}

// Pair is one record's engagement score and parsed score.
type Pair struct {
	Handle     string  `json:"handle,omitempty"`
	Engagement int     `json:"engagement"`
	Score      float64 `json:"score"`
}

// Report is the aggregated analysis.
type Report struct {
	Config         Config  `json:"-"`
	TotalRecords   int     `json:"total_records"`
	EnrichedCount  int     `json:"enriched_records"`
	HighFollowers  Bucket  `json:"high_followers"`
	LowFollowers   Bucket  `json:"low_followers"`
	Pairs          []Pair  `json:"pairs"`
	TopPairs       []Pair  `json:"top_pairs"`
	HighEngagement Bucket  `json:"high_engagement"`
	LowEngagement  Bucket  `json:"low_engagement"`
	Correlation    float64 `json:"correlation"`
	HasCorrelation bool    `json:"has_correlation"`

	EngagementVerdict Verdict `json:"engagement_verdict"`
	FollowerVerdict   Verdict `json:"follower_verdict"`
}

var scoreReplacer = strings.NewReplacer(",", "", " XP", "", " Points", "")

// ParseScore parses a raw score such as "1,234 XP". Unparsable input
// yields zero.
func ParseScore(raw string) float64 {
	s := strings.TrimSpace(scoreReplacer.Replace(raw))
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Aggregate computes the report over records. Records without engagement
// data are left out of the follower buckets.
func Aggregate(records []crawler.UserRecord, cfg Config) Report {
	def := DefaultConfig()
	if cfg.TopN <= 0 {
		cfg.TopN = def.TopN
	}
	if cfg.DisparityRatio <= 0 {
		cfg.DisparityRatio = def.DisparityRatio
	}

	r := Report{Config: cfg, TotalRecords: len(records)}
	var high, low []float64
	for _, rec := range records {
		score := ParseScore(rec.ScoreRaw)
		followers, engagement := 0, 0
		if rec.Engagement != nil {
			r.EnrichedCount++
			followers = rec.Engagement.Followers
			engagement = rec.Engagement.EngagementScore
		}
		switch {
		case followers > cfg.FollowerThreshold:
			high = append(high, score)
		case followers > 0:
			low = append(low, score)
		}
		if engagement > 0 && score > 0 {
			handle := rec.HandleOrID
			if rec.Engagement.SocialHandle != "" {
				handle = rec.Engagement.SocialHandle
			}
			r.Pairs = append(r.Pairs, Pair{Handle: handle, Engagement: engagement, Score: score})
		}
	}
	r.HighFollowers = bucket(high)
	r.LowFollowers = bucket(low)

	sort.SliceStable(r.Pairs, func(i, j int) bool {
		return r.Pairs[i].Engagement > r.Pairs[j].Engagement
	})
	r.TopPairs = r.Pairs[:min(cfg.TopN, len(r.Pairs))]

	r.EngagementVerdict = EngagementNoData
	if len(r.Pairs) > 0 {
		var hi, lo []float64
		for _, p := range r.Pairs {
			if p.Engagement > cfg.EngagementThreshold {
				hi = append(hi, p.Score)
			} else {
				lo = append(lo, p.Score)
			}
		}
		r.HighEngagement = bucket(hi)
		r.LowEngagement = bucket(lo)
		r.EngagementVerdict = EngagementNeutral
		if r.HighEngagement.MeanScore > r.LowEngagement.MeanScore {
			r.EngagementVerdict = EngagementCorrelates
		}
		r.Correlation, r.HasCorrelation = correlation(r.Pairs)
	}

	switch {
	case r.HighFollowers.MeanScore > r.LowFollowers.MeanScore*cfg.DisparityRatio:
		r.FollowerVerdict = FollowerDisproportionate
	case r.HighFollowers.MeanScore < r.LowFollowers.MeanScore:
		r.FollowerVerdict = FollowerFair
	default:
		r.FollowerVerdict = FollowerNeutral
	}
	return r
}

func bucket(scores []float64) Bucket {
	if len(scores) == 0 {
		return Bucket{}
	}
	return Bucket{Count: len(scores), MeanScore: stat.Mean(scores, nil)}
}

// correlation is Pearson's r over the pairs; undefined for fewer than two
// pairs or a constant series.
func correlation(pairs []Pair) (float64, bool) {
	if len(pairs) < 2 {
		return 0, false
	}
	x := make([]float64, len(pairs))
	y := make([]float64, len(pairs))
	for i, p := range pairs {
		x[i] = float64(p.Engagement)
		y[i] = p.Score
	}
	c := stat.Correlation(x, y, nil)
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return 0, false
	}
	return c, true
}
