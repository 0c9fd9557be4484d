package extractor

import (
	"strings"

	"github.com/JakeFAU/infofi-harvester/internal/crawler"
)

type column int

const (
	colOther column = iota
	colHandle
	colScore
	colRank
	colSocial
	colWallet
)

var headerAliases = map[string]column{
	"user": colHandle, "username": colHandle, "name": colHandle, "handle": colHandle, "player": colHandle, "account": colHandle,
	"score": colScore, "points": colScore, "xp": colScore, "pts": colScore, "total points": colScore,
	"rank": colRank, "#": colRank, "position": colRank, "pos": colRank, "place": colRank,
	"twitter": colSocial, "x": colSocial, "twitter handle": colSocial, "x handle": colSocial,
	"wallet": colWallet, "address": colWallet, "wallet address": colWallet,
}

// TableRecords derives records from retained tables whose headers name a
// participant column and at least one of score or rank.
func TableRecords(tables []crawler.Table) []crawler.UserRecord {
	var out []crawler.UserRecord
	for _, t := range tables {
		out = append(out, tableRecords(t)...)
	}
	return out
}

func tableRecords(t crawler.Table) []crawler.UserRecord {
	if len(t.Headers) == 0 {
		return nil
	}
	cols := make([]column, len(t.Headers))
	seen := map[column]bool{}
	for i, h := range t.Headers {
		key := strings.ToLower(strings.TrimSpace(h))
		if c, ok := headerAliases[key]; ok && !seen[c] {
			cols[i] = c
			seen[c] = true
		}
	}
	hasParticipant := seen[colHandle] || seen[colWallet] || seen[colSocial]
	if !hasParticipant || !(seen[colScore] || seen[colRank]) {
		return nil
	}

	var out []crawler.UserRecord
	for _, row := range t.Rows {
		var rec crawler.UserRecord
		for i, cell := range row {
			if i >= len(cols) {
				break
			}
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			switch cols[i] {
			case colHandle:
				rec.HandleOrID = cell
			case colScore:
				rec.ScoreRaw = cell
			case colRank:
				rec.RankRaw = cell
			case colSocial:
				rec.SocialHandle = cell
			case colWallet:
				rec.WalletAddress = cell
			default:
				if rec.Extra == nil {
					rec.Extra = map[string]any{}
				}
				rec.Extra[t.Headers[i]] = cell
			}
		}
		if rec.HandleOrID == "" && rec.SocialHandle == "" && rec.WalletAddress == "" {
			continue
		}
		out = append(out, rec)
	}
	return out
}
