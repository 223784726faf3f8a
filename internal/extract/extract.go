// Package extract turns a rendered provider detail page into a
// ProviderRecord.
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/sells-group/childcare-cli/internal/model"
)

// Table section ids on the detail page.
const (
	InspectionsID    = "inspections"
	ComplaintsID     = "complaints"
	LicenseHistoryID = "license_history"
)

// Parse extracts every section it can find. It never fails: a missing or
// malformed section leaves that field at its default.
func Parse(htmlContent, sourceURL string) *model.ProviderRecord {
	rec := model.NewProviderRecord(sourceURL)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		zap.L().Warn("extract: unparsable html", zap.String("url", sourceURL), zap.Error(err))
		return rec
	}

	section(sourceURL, "header", func() { extractHeader(doc, rec) })
	section(sourceURL, "contact", func() { extractContact(doc, rec) })
	section(sourceURL, "details", func() { extractDetails(doc, rec) })
	section(sourceURL, InspectionsID, func() { rec.Inspections = extractTable(doc, InspectionsID) })
	section(sourceURL, ComplaintsID, func() { rec.Complaints = extractTable(doc, ComplaintsID) })
	section(sourceURL, LicenseHistoryID, func() { rec.LicenseHistory = extractTable(doc, LicenseHistoryID) })

	rec.ApplyDefaults()
	return rec
}

// section runs fn and turns a panic into a logged, empty section.
func section(url, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Warn("extract: section failed",
				zap.String("url", url),
				zap.String("section", name),
				zap.Any("panic", r),
			)
		}
	}()
	fn()
}

func extractHeader(doc *goquery.Document, rec *model.ProviderRecord) {
	h1 := doc.Find("div.panel-heading").First().Find("h1").First()
	if h1.Length() == 0 {
		return
	}
	if name := cleanText(h1.Text()); name != "" {
		rec.ProviderName = name
	}
}

func extractContact(doc *goquery.Document, rec *model.ProviderRecord) {
	paras := doc.Find("div.panel-body").First().Find("div.col-xs-4").First().Find("p")
	if paras.Length() == 0 {
		return
	}
	rec.Address = cleanText(spacedText(paras.Eq(0)))
	if paras.Length() > 1 {
		rec.Phone = cleanText(paras.Eq(1).Text())
	}
}

func extractDetails(doc *goquery.Document, rec *model.ProviderRecord) {
	doc.Find("div.form-group").Each(func(_ int, group *goquery.Selection) {
		label := group.Find("label").First()
		value := group.Find("p.form-control-static").First()
		if label.Length() == 0 || value.Length() == 0 {
			return
		}
		key := strings.ReplaceAll(cleanText(label.Text()), ":", "")
		val := cleanText(value.Text())
		if key != "" && val != "" {
			rec.Details[key] = val
		}
	})
}

// extractTable reads the first table under the element with id. Rows are
// zipped against the th headers; cells past the last header are dropped.
func extractTable(doc *goquery.Document, id string) []model.TableRow {
	rows := []model.TableRow{}

	table := doc.Find("#" + id).First().Find("table").First()
	if table.Length() == 0 {
		return rows
	}

	var headers []string
	table.Find("th").Each(func(_ int, th *goquery.Selection) {
		headers = append(headers, cleanText(th.Text()))
	})

	table.Find("tbody").First().Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() == 0 {
			return
		}
		row := model.TableRow{}
		cells.Each(func(i int, td *goquery.Selection) {
			if i >= len(headers) {
				return
			}
			row[headers[i]] = cleanText(td.Text())
			if href, ok := td.Find("a[href]").First().Attr("href"); ok {
				row[model.DocumentURLKey] = href
			}
		})
		rows = append(rows, row)
	})
	return rows
}

// cleanText collapses runs of whitespace to single spaces and trims.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// spacedText joins the text nodes under sel with spaces so that
// <br>-separated address lines do not run together.
func spacedText(sel *goquery.Selection) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			parts = append(parts, n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return strings.Join(parts, " ")
}
