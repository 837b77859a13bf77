package invoice

import (
	"bytes"
	"fmt"
	"time"

	"shop/internal/domain/model"

	"github.com/go-pdf/fpdf"
)

// PDFRenderer は注文の請求書PDFを作る
type PDFRenderer struct {
	shopName string
	currency string
}

func NewPDFRenderer(shopName, currency string) *PDFRenderer {
	if currency == "" {
		currency = "BDT"
	}
	return &PDFRenderer{shopName: shopName, currency: currency}
}

var columnWidths = []float64{70, 35, 25, 20, 30}

func (r *PDFRenderer) Render(o model.Order, items []model.OrderItem) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Invoice #%d", o.ID), true)
	pdf.SetCreationDate(o.CreatedAt)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, tr(r.shopName))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 6, fmt.Sprintf("Invoice #%d", o.ID))
	pdf.Ln(6)
	pdf.Cell(0, 6, "Date: "+o.CreatedAt.Format(time.DateOnly))
	pdf.Ln(6)
	pdf.Cell(0, 6, "Payment: "+string(o.PaymentMethod))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.Cell(0, 6, "Ship to")
	pdf.Ln(6)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 6, tr(o.Name+" ("+o.Phone+")"))
	pdf.Ln(6)
	pdf.MultiCell(0, 6, tr(o.Address+", "+o.State), "", "L", false)
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range []string{"Product", "Variant", "Price", "Qty", "Total"} {
		pdf.CellFormat(columnWidths[i], 8, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, it := range items {
		variant := it.Color
		if it.Size != "" {
			if variant != "" {
				variant += " / "
			}
			variant += it.Size
		}
		pdf.CellFormat(columnWidths[0], 7, tr(it.ProductName), "1", 0, "L", false, 0, "")
		pdf.CellFormat(columnWidths[1], 7, tr(variant), "1", 0, "L", false, 0, "")
		pdf.CellFormat(columnWidths[2], 7, it.Price.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(columnWidths[3], 7, fmt.Sprintf("%d", it.Quantity), "1", 0, "R", false, 0, "")
		pdf.CellFormat(columnWidths[4], 7, it.Total.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.Ln(4)
	r.summaryLine(pdf, "Subtotal", o.Subtotal.StringFixed(2), false)
	r.summaryLine(pdf, "Delivery charge", o.DeliveryCharge.StringFixed(2), false)
	r.summaryLine(pdf, "Total", o.TotalAmount.StringFixed(2)+" "+r.currency, true)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render invoice: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *PDFRenderer) summaryLine(pdf *fpdf.Fpdf, label, value string, bold bool) {
	style := ""
	if bold {
		style = "B"
	}
	pdf.SetFont("Helvetica", style, 10)
	pdf.CellFormat(150, 7, label, "", 0, "R", false, 0, "")
	pdf.CellFormat(30, 7, value, "", 1, "R", false, 0, "")
}
