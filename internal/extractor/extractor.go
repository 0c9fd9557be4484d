// Package extractor turns reduced page content into user records. The
// language-model collaborator does the heavy lifting; everything it returns
// is decoded here into one crawler.ExtractionResult so nothing downstream
// ever looks at raw output shapes.
package extractor

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/infofi-harvester/internal/crawler"
)

// DefaultInstruction describes the target fields to the collaborator.
const DefaultInstruction = `Analyze the page content.
If it is a leaderboard, extract ALL user rows with their ranks, usernames, scores and wallet addresses.
If it is a single user profile, extract their details.
Look for Twitter or X engagement metrics if displayed (connected X account, tweet counts, referral counts) and put them in additional_info.
Look specifically for: Rank, Position, #, Points, Score, XP, Address, User.`

// Config configures an Extractor.
type Config struct {
	Instruction string
	// TableFallback enables table-derived records when the collaborator
	// finds nothing.
	TableFallback bool
}

// Extractor runs structured extraction for one page at a time.
type Extractor struct {
	cfg    Config
	client crawler.ExtractionClient
	schema map[string]any
	logger *zap.Logger
}

// New builds an Extractor. A nil client disables the collaborator; only
// table-derived records are produced then.
func New(cfg Config, client crawler.ExtractionClient, logger *zap.Logger) *Extractor {
	if strings.TrimSpace(cfg.Instruction) == "" {
		cfg.Instruction = DefaultInstruction
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		cfg:    cfg,
		client: client,
		schema: Schema(),
		logger: logger.Named("extractor"),
	}
}

// Extract returns the normalized result for reduced. A collaborator error
// is returned as *crawler.ExtractionError; a Raw result is not an error.
func (e *Extractor) Extract(ctx context.Context, pageURL string, reduced crawler.ReducedContent) (crawler.ExtractionResult, error) {
	result := crawler.EmptyResult("")
	if e.client != nil && strings.TrimSpace(reduced.Markdown) != "" {
		raw, err := e.client.Extract(ctx, reduced.Markdown, e.schema, e.cfg.Instruction)
		if err != nil {
			return crawler.RawResult(raw), &crawler.ExtractionError{URL: pageURL, Raw: raw, Err: err}
		}
		result = Decode(raw)
	}

	if result.Kind() == crawler.ResultEmpty && e.cfg.TableFallback {
		if records := TableRecords(reduced.Tables); len(records) > 0 {
			e.logger.Debug("using table-derived records",
				zap.String("url", pageURL),
				zap.Int("records", len(records)))
			result = crawler.RecordsResult(records, result.Summary())
		}
	}

	if result.Kind() == crawler.ResultRecords {
		records := result.Records()
		for i := range records {
			if records[i].SourceURL == "" {
				records[i].SourceURL = pageURL
			}
		}
	}
	return result, nil
}

// Schema returns the JSON schema sent with every extraction request.
func Schema() map[string]any {
	str := func(desc string) map[string]any {
		return map[string]any{"type": []string{"string", "null"}, "description": desc}
	}
	user := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"username":         str("The username or handle of the user."),
			"user_id":          str("The unique identifier or ID of the user."),
			"wallet_address":   str("The on-chain wallet address (e.g. starting with 0x)."),
			"points_or_score":  str("The user's score, points, XP or reputation."),
			"leaderboard_rank": str("The user's rank or position on a leaderboard (e.g. #1, 1st, 50)."),
			"twitter_handle":   str("The user's Twitter/X handle (e.g. @username) if found."),
			"additional_info": map[string]any{
				"type":        "object",
				"description": "Any other relevant metrics like level, quests completed, etc.",
			},
		},
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"users": map[string]any{
				"type":        "array",
				"items":       user,
				"description": "List of user profiles found on the page.",
			},
			"page_summary": str("Brief summary of what this page is (e.g. Leaderboard, User Profile, Quest Page)."),
		},
		"required": []string{"users"},
	}
}
