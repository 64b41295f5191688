// Package pdf renders printable documents (invoices, purchase orders,
// credit notes) for download from the API.
package pdf

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// StoreInfo is the letterhead printed at the top of every document.
type StoreInfo struct {
	Name     string
	Address  string
	Phone    string
	Email    string
	Currency string
}

// Line is a single row in the document's item table.
type Line struct {
	Sku       string
	Name      string
	Quantity  int32
	UnitPrice string
	Subtotal  string
}

// Document holds everything needed to render one printable document.
type Document struct {
	Store        StoreInfo
	Title        string // "INVOICE", "PURCHASE ORDER", "CREDIT NOTE"
	Number       string
	Date         time.Time
	Counterparty string // customer or vendor display block
	Lines        []Line
	Subtotal     string
	Discount     string // empty = omit row
	Tax          string // empty = omit row
	Total        string
	AmountPaid   string // empty = omit row
	BalanceDue   string // empty = omit row
	Notes        string
}

const (
	marginLeft  = 15.0
	pageWidth   = 180.0 // A4 width minus margins
	rowHeight   = 7.0
	labelWidth  = 140.0
	amountWidth = 40.0
)

// Render lays the document out on A4 pages and returns the PDF bytes.
func Render(doc Document) ([]byte, error) {
	p := gofpdf.New("P", "mm", "A4", "")
	p.SetMargins(marginLeft, 15, 15)
	p.AddPage()

	// Letterhead
	p.SetFont("Helvetica", "B", 16)
	p.CellFormat(pageWidth, 8, doc.Store.Name, "", 1, "L", false, 0, "")
	p.SetFont("Helvetica", "", 9)
	for _, line := range []string{doc.Store.Address, doc.Store.Phone, doc.Store.Email} {
		if line != "" {
			p.CellFormat(pageWidth, 4.5, line, "", 1, "L", false, 0, "")
		}
	}
	p.Ln(4)

	// Document title + metadata
	p.SetFont("Helvetica", "B", 14)
	p.CellFormat(pageWidth, 8, doc.Title, "", 1, "R", false, 0, "")
	p.SetFont("Helvetica", "", 10)
	p.CellFormat(pageWidth, 5, fmt.Sprintf("No: %s", doc.Number), "", 1, "R", false, 0, "")
	p.CellFormat(pageWidth, 5, fmt.Sprintf("Date: %s", doc.Date.Format("2006-01-02")), "", 1, "R", false, 0, "")
	p.Ln(2)

	if doc.Counterparty != "" {
		p.SetFont("Helvetica", "B", 10)
		p.CellFormat(pageWidth, 5, "To:", "", 1, "L", false, 0, "")
		p.SetFont("Helvetica", "", 10)
		p.MultiCell(pageWidth, 5, doc.Counterparty, "", "L", false)
		p.Ln(2)
	}

	// Item table header
	p.SetFont("Helvetica", "B", 9)
	p.SetFillColor(235, 235, 235)
	p.CellFormat(30, rowHeight, "SKU", "1", 0, "L", true, 0, "")
	p.CellFormat(75, rowHeight, "Item", "1", 0, "L", true, 0, "")
	p.CellFormat(15, rowHeight, "Qty", "1", 0, "R", true, 0, "")
	p.CellFormat(30, rowHeight, "Unit Price", "1", 0, "R", true, 0, "")
	p.CellFormat(30, rowHeight, "Subtotal", "1", 1, "R", true, 0, "")

	p.SetFont("Helvetica", "", 9)
	for _, line := range doc.Lines {
		p.CellFormat(30, rowHeight, line.Sku, "1", 0, "L", false, 0, "")
		p.CellFormat(75, rowHeight, line.Name, "1", 0, "L", false, 0, "")
		p.CellFormat(15, rowHeight, fmt.Sprintf("%d", line.Quantity), "1", 0, "R", false, 0, "")
		p.CellFormat(30, rowHeight, money(doc.Store.Currency, line.UnitPrice), "1", 0, "R", false, 0, "")
		p.CellFormat(30, rowHeight, money(doc.Store.Currency, line.Subtotal), "1", 1, "R", false, 0, "")
	}
	p.Ln(2)

	// Totals block
	totalRow(p, false, "Subtotal", money(doc.Store.Currency, doc.Subtotal))
	if doc.Discount != "" {
		totalRow(p, false, "Discount", "-"+money(doc.Store.Currency, doc.Discount))
	}
	if doc.Tax != "" {
		totalRow(p, false, "Tax", money(doc.Store.Currency, doc.Tax))
	}
	totalRow(p, true, "Total", money(doc.Store.Currency, doc.Total))
	if doc.AmountPaid != "" {
		totalRow(p, false, "Paid", money(doc.Store.Currency, doc.AmountPaid))
	}
	if doc.BalanceDue != "" {
		totalRow(p, true, "Balance Due", money(doc.Store.Currency, doc.BalanceDue))
	}

	if doc.Notes != "" {
		p.Ln(6)
		p.SetFont("Helvetica", "I", 9)
		p.MultiCell(pageWidth, 5, doc.Notes, "", "L", false)
	}

	var buf bytes.Buffer
	if err := p.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func totalRow(p *gofpdf.Fpdf, bold bool, label, amount string) {
	if bold {
		p.SetFont("Helvetica", "B", 10)
	} else {
		p.SetFont("Helvetica", "", 10)
	}
	p.CellFormat(labelWidth, 6, label, "", 0, "R", false, 0, "")
	p.CellFormat(amountWidth, 6, amount, "", 1, "R", false, 0, "")
}

func money(currency, amount string) string {
	if currency == "" {
		return amount
	}
	return currency + " " + amount
}
