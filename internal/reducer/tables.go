package reducer

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/infofi-harvester/internal/crawler"
)

// retainTables scores every top-level table and detaches those that reach
// the threshold with enough data rows. Lower-scoring tables stay in the
// document and are flattened with the rest of the content.
func (r *Reducer) retainTables(doc *goquery.Document) []crawler.Table {
	var kept []crawler.Table
	doc.Find("table").Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered("table").Length() > 0 {
			return
		}
		table := ParseTable(s)
		if table.Score < r.cfg.TableScoreThreshold || len(table.Rows) < r.cfg.MinTableRows {
			return
		}
		kept = append(kept, table)
		s.Remove()
	})
	return kept
}

// ParseTable reads headers and data rows from a table and scores how much
// it looks like a data table rather than layout.
//
// Scoring: header cells +2, thead +1, caption +1, consistent column count
// across data rows +2, at least 80% non-empty cells +1, a mostly numeric
// column +1, three or more data rows +1, nested tables or a presentation
// role -3, a single column -2.
func ParseTable(s *goquery.Selection) crawler.Table {
	table := crawler.Table{Caption: collapseSpace(s.Find("caption").First().Text())}

	s.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		if tr.ParentsFiltered("table").First().Get(0) != s.Get(0) {
			return
		}
		var cells []string
		headerRow := true
		tr.ChildrenFiltered("th, td").Each(func(_ int, cell *goquery.Selection) {
			if goquery.NodeName(cell) == "td" {
				headerRow = false
			}
			cells = append(cells, collapseSpace(cell.Text()))
		})
		if len(cells) == 0 {
			return
		}
		if headerRow && table.Headers == nil {
			table.Headers = cells
			return
		}
		table.Rows = append(table.Rows, cells)
	})

	score := 0
	if s.Find("th").Length() > 0 {
		score += 2
	}
	if s.Find("thead").Length() > 0 {
		score++
	}
	if table.Caption != "" {
		score++
	}
	cols := consistentColumns(table.Rows)
	if cols >= 2 {
		score += 2
	}
	if fillRatio(table.Rows) >= 0.8 {
		score++
	}
	if hasNumericColumn(table.Rows) {
		score++
	}
	if len(table.Rows) >= 3 {
		score++
	}
	role, _ := s.Attr("role")
	if s.Find("table").Length() > 0 || strings.EqualFold(role, "presentation") {
		score -= 3
	}
	if maxColumns(table.Rows) == 1 {
		score -= 2
	}
	table.Score = score
	return table
}

func consistentColumns(rows [][]string) int {
	if len(rows) < 2 {
		return 0
	}
	n := len(rows[0])
	for _, row := range rows[1:] {
		if len(row) != n {
			return 0
		}
	}
	return n
}

func maxColumns(rows [][]string) int {
	n := 0
	for _, row := range rows {
		if len(row) > n {
			n = len(row)
		}
	}
	return n
}

func fillRatio(rows [][]string) float64 {
	total, filled := 0, 0
	for _, row := range rows {
		for _, cell := range row {
			total++
			if cell != "" {
				filled++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(filled) / float64(total)
}

var numericCleaner = strings.NewReplacer(",", "", "%", "", "#", "", "$", "", " ", "")

func isNumeric(cell string) bool {
	cell = strings.ToLower(numericCleaner.Replace(cell))
	cell = strings.TrimSuffix(strings.TrimSuffix(strings.TrimSuffix(cell, "xp"), "points"), "pts")
	if cell == "" {
		return false
	}
	_, err := strconv.ParseFloat(cell, 64)
	return err == nil
}

func hasNumericColumn(rows [][]string) bool {
	cols := maxColumns(rows)
	for c := 0; c < cols; c++ {
		numeric, present := 0, 0
		for _, row := range rows {
			if c >= len(row) {
				continue
			}
			present++
			if isNumeric(row[c]) {
				numeric++
			}
		}
		if present > 0 && numeric*2 >= present {
			return true
		}
	}
	return false
}

var cellEscaper = strings.NewReplacer("|", `\|`, "\n", " ")

// RenderTable writes t as a GitHub-flavored markdown table with cell text
// preserved.
func RenderTable(t crawler.Table) string {
	cols := len(t.Headers)
	if c := maxColumns(t.Rows); c > cols {
		cols = c
	}
	if cols == 0 {
		return ""
	}
	var b strings.Builder
	if t.Caption != "" {
		b.WriteString("**")
		b.WriteString(t.Caption)
		b.WriteString("**\n\n")
	}
	header := t.Headers
	if len(header) == 0 {
		header = make([]string, cols)
	}
	writeRow(&b, header, cols)
	b.WriteString("|")
	for i := 0; i < cols; i++ {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for _, row := range t.Rows {
		writeRow(&b, row, cols)
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeRow(b *strings.Builder, cells []string, cols int) {
	b.WriteString("|")
	for i := 0; i < cols; i++ {
		cell := ""
		if i < len(cells) {
			cell = cellEscaper.Replace(cells[i])
		}
		b.WriteString(" ")
		b.WriteString(cell)
		b.WriteString(" |")
	}
	b.WriteString("\n")
}
