// internal/document/receipt_pdf.go
package document

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/tgggt66uhgg/stk-push/internal/domain"

	"github.com/go-pdf/fpdf"
)

// Color is an RGB triple.
type Color struct{ R, G, B int }

// StatusStyle is the header colour and watermark a receipt document carries.
type StatusStyle struct {
	HeaderColor    string
	Watermark      string
	WatermarkColor Color
}

var (
	watermarkGray  = Color{128, 128, 128}
	watermarkBlue  = Color{0, 0, 255}
	watermarkGreen = Color{0, 128, 0}
	watermarkRed   = Color{255, 0, 0}

	defaultStyle = StatusStyle{HeaderColor: "#2196F3", WatermarkColor: watermarkGreen}

	failedStyle = StatusStyle{HeaderColor: "#f44336", Watermark: "FAILED", WatermarkColor: watermarkRed}

	statusStyles = map[domain.ReceiptStatus]StatusStyle{
		domain.StatusPending:      {HeaderColor: "#ff9800", Watermark: "PENDING", WatermarkColor: watermarkGray},
		domain.StatusProcessing:   {HeaderColor: "#2196F3", Watermark: "PROCESSING - FUNDS RESERVED", WatermarkColor: watermarkBlue},
		domain.StatusLoanReleased: {HeaderColor: "#4caf50", Watermark: "RELEASED", WatermarkColor: watermarkGreen},
		domain.StatusCancelled:    failedStyle,
		domain.StatusError:        failedStyle,
		domain.StatusSTKFailed:    failedStyle,
	}
)

// StyleFor returns the style for status. Unknown statuses get a plain blue
// header and no watermark.
func StyleFor(status domain.ReceiptStatus) StatusStyle {
	if s, ok := statusStyles[status]; ok {
		return s
	}
	return defaultStyle
}

const (
	pageMargin   = 15.0
	headerHeight = 28.0
	timeLayout   = "02 Jan 2006, 15:04:05 MST"
)

// ReceiptRenderer draws a single-page A4 receipt.
type ReceiptRenderer struct {
	brand string
}

func NewReceiptRenderer() *ReceiptRenderer {
	return &ReceiptRenderer{brand: "SwiftLoan Kenya"}
}

func (rr *ReceiptRenderer) Render(r *domain.Receipt) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("render receipt: nil receipt")
	}
	style := StyleFor(r.Status)

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Receipt "+r.Reference, true)
	pdf.SetAuthor(rr.brand, true)
	pdf.SetCreationDate(r.Timestamp)
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(false, pageMargin)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pageW, _ := pdf.GetPageSize()

	// header band
	h := hexColor(style.HeaderColor)
	pdf.SetFillColor(h.R, h.G, h.B)
	pdf.Rect(0, 0, pageW, headerHeight, "F")
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 20)
	pdf.Text(pageMargin, 13, "SWIFTLOAN KENYA LOAN RECEIPT")
	pdf.SetFont("Helvetica", "", 11)
	pdf.Text(pageMargin, 21, "Loan & Payment Receipt")

	pdf.SetXY(pageMargin, headerHeight+14)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "BU", 14)
	pdf.CellFormat(0, 8, "Receipt Details", "", 1, "L", false, 0, "")
	pdf.Ln(3)

	for _, row := range detailRows(r) {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(45, 7, row[0]+":", "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 12)
		pdf.CellFormat(0, 7, tr(row[1]), "", 1, "L", false, 0, "")
	}

	if r.StatusNote != "" {
		pdf.Ln(4)
		pdf.SetTextColor(0x55, 0x55, 0x55)
		pdf.SetFont("Helvetica", "U", 12)
		pdf.CellFormat(0, 7, "Note:", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 12)
		pdf.MultiCell(0, 6, tr(r.StatusNote), "", "L", false)
	}

	if style.Watermark != "" {
		drawWatermark(pdf, style, pageW)
	}

	pdf.SetXY(pageMargin, 270)
	pdf.SetTextColor(128, 128, 128)
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("%s © %d", rr.brand, r.Timestamp.Year())), "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render receipt %s: %w", r.Reference, err)
	}
	return buf.Bytes(), nil
}

func drawWatermark(pdf *fpdf.Fpdf, style StatusStyle, pageW float64) {
	const (
		size  = 48.0
		angle = 30.0
		cy    = 150.0
	)
	c := style.WatermarkColor

	pdf.SetFont("Helvetica", "B", size)
	w := pdf.GetStringWidth(style.Watermark)
	cx := pageW / 2

	pdf.TransformBegin()
	pdf.SetAlpha(0.2, "Normal")
	pdf.SetTextColor(c.R, c.G, c.B)
	pdf.TransformRotate(angle, cx, cy)
	pdf.Text(cx-w/2, cy, style.Watermark)
	pdf.SetAlpha(1, "Normal")
	pdf.TransformEnd()
}

func detailRows(r *domain.Receipt) [][2]string {
	return [][2]string{
		{"Reference", r.Reference},
		{"Transaction ID", orNA(r.TransactionID)},
		{"Transaction Code", orNA(r.SettlementCode)},
		{"Fee Amount", "KSH " + strconv.FormatInt(r.FeeAmount, 10)},
		{"Loan Amount", "KSH " + r.LoanAmount},
		{"Phone", r.Phone},
		{"Customer Name", orNA(r.CustomerName)},
		{"Status", strings.ToUpper(string(r.Status))},
		{"Time", r.Timestamp.Format(timeLayout)},
	}
}

func orNA(s string) string {
	if s == "" {
		return domain.CustomerNamePlaceholder
	}
	return s
}

// hexColor parses "#rrggbb"; anything else is black.
func hexColor(s string) Color {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return Color{}
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return Color{}
	}
	return Color{int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)}
}
