package mailer

import (
	"fmt"
	"html"
	"strings"

	"github.com/ternarybob/tenderwatch/internal/models"
)

// buildHTMLDigest renders the new-bid batch as an HTML table.
func buildHTMLDigest(bids []*models.BidRecord) string {
	var b strings.Builder

	b.WriteString("<html><body>")
	b.WriteString(fmt.Sprintf("<h2>发现 %d 条新的招标信息</h2>", len(bids)))
	b.WriteString(`<table border="1" cellpadding="6" cellspacing="0" style="border-collapse:collapse">`)
	b.WriteString("<tr><th>项目名称</th><th>预算金额</th><th>采购人</th><th>获取采购文件</th><th>来源</th></tr>")

	for _, bid := range bids {
		b.WriteString("<tr>")
		b.WriteString(fmt.Sprintf("<td>%s</td>", html.EscapeString(bid.ProjectName)))
		b.WriteString(fmt.Sprintf("<td>%s</td>", html.EscapeString(bid.Budget)))
		b.WriteString(fmt.Sprintf("<td>%s</td>", html.EscapeString(bid.Purchaser)))
		b.WriteString(fmt.Sprintf("<td>%s</td>", html.EscapeString(bid.DocTime)))
		if bid.SourceURL != "" {
			b.WriteString(fmt.Sprintf(`<td><a href="%s">%s</a></td>`,
				html.EscapeString(bid.SourceURL), html.EscapeString(bid.SourceTitle)))
		} else {
			b.WriteString(fmt.Sprintf("<td>%s</td>", html.EscapeString(bid.SourceTitle)))
		}
		b.WriteString("</tr>")
	}

	b.WriteString("</table></body></html>")
	return b.String()
}

// buildTextDigest renders the new-bid batch as plain text for clients
// that do not display HTML.
func buildTextDigest(bids []*models.BidRecord) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("发现 %d 条新的招标信息\n\n", len(bids)))
	for i, bid := range bids {
		b.WriteString(fmt.Sprintf("%d. 项目名称：%s\n", i+1, bid.ProjectName))
		b.WriteString(fmt.Sprintf("   预算金额：%s\n", bid.Budget))
		b.WriteString(fmt.Sprintf("   采购人：%s\n", bid.Purchaser))
		b.WriteString(fmt.Sprintf("   获取采购文件：%s\n", bid.DocTime))
		if bid.ProjectNumber != "" {
			b.WriteString(fmt.Sprintf("   项目编号：%s\n", bid.ProjectNumber))
		}
		if bid.SourceURL != "" {
			b.WriteString(fmt.Sprintf("   来源：%s\n", bid.SourceURL))
		}
		b.WriteString("\n")
	}

	return b.String()
}
