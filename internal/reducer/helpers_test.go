package reducer

import "github.com/JakeFAU/infofi-harvester/internal/crawler"

func tableOf(headers []string, rows [][]string) crawler.Table {
	return crawler.Table{Headers: headers, Rows: rows}
}
