package alerting

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/shopspring/decimal"

	"cruise-price-tracker/internal/money"
	"cruise-price-tracker/internal/storage"
)

// BuildChangeMessage 生成价格变动邮件的主题与正文 (不含收件人)。
func BuildChangeMessage(previous, current storage.Snapshot) Message {
	direction, diff := Direction(previous, current)
	headline := fmt.Sprintf("The total price has %s: %s", direction, diff)
	tbl := comparisonTable(previous, current)

	text := strings.Builder{}
	text.WriteString(headline)
	text.WriteString("\n\n")
	text.WriteString(tbl.Render())
	text.WriteString("\n")

	html := strings.Builder{}
	html.WriteString("<p>")
	html.WriteString(headline)
	html.WriteString("</p>\n")
	html.WriteString(tbl.RenderHTML())
	html.WriteString("\n")

	return Message{
		Subject: fmt.Sprintf("Cruise price %s: %s", direction, diff),
		Text:    text.String(),
		HTML:    html.String(),
	}
}

func comparisonTable(previous, current storage.Snapshot) table.Writer {
	curSym, prevSym := symbolFor(current), symbolFor(previous)
	rows := []struct {
		label string
		cur   decimal.NullDecimal
		prev  decimal.NullDecimal
	}{
		{"Total price", current.TotalPrice, previous.TotalPrice},
		{"Subtotal", current.Subtotal, previous.Subtotal},
		{"Cruise fare", current.CruiseFare, previous.CruiseFare},
		{"Discounts", current.Discounts, previous.Discounts},
		{"Taxes & fees", current.TaxesAndFees, previous.TaxesAndFees},
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"", "Current", "Previous"})
	t.AppendRow(table.Row{"Scraped at", current.ScrapedAt.Format(time.RFC3339), previous.ScrapedAt.Format(time.RFC3339)})
	for _, r := range rows {
		t.AppendRow(table.Row{r.label, money.FormatNull(r.cur, curSym), money.FormatNull(r.prev, prevSym)})
	}
	return t
}
