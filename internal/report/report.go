// Package report renders merged provider records as a plain-text
// knowledge base, one block per provider.
package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/childcare-cli/internal/model"
)

const (
	separator = "=================================================="
	na        = "N/A"
)

var money = message.NewPrinter(language.English)

// Write renders records to w.
func Write(w io.Writer, records []model.MergedRecord) error {
	bw := bufio.NewWriter(w)
	for i := range records {
		writeProvider(bw, &records[i])
	}
	return eris.Wrap(bw.Flush(), "report: write")
}

func writeProvider(w *bufio.Writer, p *model.MergedRecord) {
	fmt.Fprintln(w, separator)
	fmt.Fprintf(w, "PROVIDER: %s\n", clean(p.ProviderName))
	fmt.Fprintf(w, "ADDRESS: %s\n", clean(p.Address))
	fmt.Fprintf(w, "PHONE: %s\n", clean(p.Phone))

	if fin := p.Financials; fin != nil {
		fmt.Fprintf(w, "FINANCIAL_TOTAL_STATE_PAYMENTS: $%s\n", money.Sprintf("%.2f", fin.TotalAmount))
		fmt.Fprintf(w, "FINANCIAL_VENDOR_NAME: %s (Match Confidence: %d%%)\n",
			clean(fin.MatchedOnName), fin.MatchConfidence)
	} else {
		fmt.Fprintln(w, "FINANCIAL_TOTAL_STATE_PAYMENTS: $0.00")
		fmt.Fprintln(w, "FINANCIAL_VENDOR_NAME: "+model.NotFoundMarker)
	}

	fmt.Fprintf(w, "LICENSE_CAPACITY: %s\n", detail(p.Details, "Licensed Capacity"))
	fmt.Fprintf(w, "OPEN_SLOTS: %s\n", detail(p.Details, "Total Available Slots"))
	fmt.Fprintf(w, "AGES_SERVED: %s\n", detail(p.Details, "Ages"))
	fmt.Fprintf(w, "STATUS: %s\n", detail(p.Details, "License Status"))

	fmt.Fprintln(w, "\n--- COMPLAINTS & VIOLATIONS ---")
	if len(p.Complaints) == 0 {
		fmt.Fprintln(w, " • No complaints recorded in this dataset.")
	}
	for _, c := range p.Complaints {
		fmt.Fprintf(w, " • DATE: %s | STATUS: %s | DETAILS: %s\n",
			clean(lookup(c, "Unknown Date", "Complaint Date", "Date")),
			clean(lookup(c, "", "Status", "Outcome")),
			clean(lookup(c, "See report", "Description", "Complaint/Violation")),
		)
	}

	fmt.Fprintln(w, "\n--- INSPECTION HISTORY ---")
	if len(p.Inspections) == 0 {
		fmt.Fprintln(w, " • No inspections found.")
	}
	for _, in := range p.Inspections {
		fmt.Fprintf(w, " • %s [%s] -> REPORT LINK: %s\n",
			clean(lookup(in, "Unknown Date", "Inspections Date")),
			clean(lookup(in, "Regular", "Inspection Type")),
			clean(lookup(in, "No Link", model.DocumentURLKey)),
		)
	}

	fmt.Fprintln(w)
}

// lookup returns the value of the first key present in row, even if it is
// empty, or def when none is present.
func lookup(row model.TableRow, def string, keys ...string) string {
	for _, k := range keys {
		if v, ok := row[k]; ok {
			return v
		}
	}
	return def
}

func detail(details map[string]string, key string) string {
	return clean(lookup(details, na, key))
}

// clean flattens newlines and substitutes N/A for blank values.
func clean(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
	if s == "" {
		return na
	}
	return s
}
