package pdf

import (
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// ReceptionForm is the payload of the reception form template
type ReceptionForm struct {
	DocumentRef       string
	InspectionDate    time.Time
	PurchaseOrderCode string
	Client            string
	Others            string
	GeneratedBy       string
	GeneratedAt       time.Time
	Articles          []ReceptionFormArticle
}

// ReceptionFormArticle is one line of the reception form
type ReceptionFormArticle struct {
	ID               int64
	PartNumber       string
	ATACode          string
	Zone             string
	Manufacturer     string
	ConditionName    string
	HasDocumentation bool
}

var receptionColumns = []struct {
	label string
	width float64
}{
	{"#", 8},
	{"Part Number", 38},
	{"ATA", 16},
	{"Zone", 20},
	{"Manufacturer", 40},
	{"Condition", 36},
	{"Docs", 14},
}

type receptionFormWriter struct {
	pdf     *gofpdf.Fpdf
	options Options
	tr      func(string) string
}

func newReceptionFormWriter(doc *gofpdf.Fpdf, options Options) *receptionFormWriter {
	return &receptionFormWriter{
		pdf:     doc,
		options: options,
		tr:      doc.UnicodeTranslatorFromDescriptor(""),
	}
}

func (w *receptionFormWriter) write(form ReceptionForm) {
	w.pdf.SetTitle("Reception Form "+form.DocumentRef, true)
	w.pdf.SetFooterFunc(func() {
		w.pdf.SetY(-12)
		w.pdf.SetFont(w.options.FontFamily, "", 7)
		w.pdf.SetTextColor(128, 128, 128)
		w.pdf.CellFormat(0, 8, fmt.Sprintf("%s  -  Page %d/{nb}", form.DocumentRef, w.pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	w.pdf.AliasNbPages("")
	w.pdf.AddPage()

	w.addTitle()
	w.addHeaderFields(form)
	w.pdf.Ln(4)
	w.addArticleTable(form.Articles)
	w.pdf.Ln(10)
	w.addSignatures()
}

func (w *receptionFormWriter) addTitle() {
	w.pdf.SetFont(w.options.FontFamily, "B", w.options.TitleFontSize)
	w.pdf.SetTextColor(0, 0, 0)
	w.pdf.CellFormat(0, 10, "INCOMING ARTICLE RECEPTION FORM", "", 1, "C", false, 0, "")
	w.pdf.Ln(2)
}

func (w *receptionFormWriter) addHeaderFields(form ReceptionForm) {
	fields := []struct{ label, value string }{
		{"Document", form.DocumentRef},
		{"Inspection date", form.InspectionDate.Format(w.options.DateFormat)},
		{"Purchase order", form.PurchaseOrderCode},
		{"Client", form.Client},
		{"Others", form.Others},
		{"Generated by", form.GeneratedBy},
		{"Generated at", form.GeneratedAt.Format(w.options.DateFormat + " 15:04")},
		{"Articles", fmt.Sprintf("%d", len(form.Articles))},
	}

	for _, f := range fields {
		w.pdf.SetFont(w.options.FontFamily, "B", w.options.FontSize)
		w.pdf.CellFormat(38, 6, w.tr(f.label+":"), "", 0, "L", false, 0, "")
		w.pdf.SetFont(w.options.FontFamily, "", w.options.FontSize)
		w.pdf.CellFormat(0, 6, w.tr(f.value), "", 1, "L", false, 0, "")
	}
}

func (w *receptionFormWriter) addTableHeader() {
	w.pdf.SetFont(w.options.FontFamily, "B", w.options.HeaderFontSize)
	w.pdf.SetFillColor(w.options.HeaderColor.R, w.options.HeaderColor.G, w.options.HeaderColor.B)
	w.pdf.SetTextColor(255, 255, 255)
	for _, col := range receptionColumns {
		w.pdf.CellFormat(col.width, 7, col.label, "1", 0, "C", true, 0, "")
	}
	w.pdf.Ln(-1)
	w.pdf.SetFont(w.options.FontFamily, "", w.options.FontSize)
	w.pdf.SetTextColor(0, 0, 0)
}

func (w *receptionFormWriter) addArticleTable(articles []ReceptionFormArticle) {
	w.addTableHeader()

	_, pageHeight := w.pdf.GetPageSize()
	for i, a := range articles {
		if w.pdf.GetY()+7 > pageHeight-w.options.Margins.Bottom {
			w.pdf.AddPage()
			w.addTableHeader()
		}

		if i%2 == 1 {
			w.pdf.SetFillColor(w.options.AlternateColor.R, w.options.AlternateColor.G, w.options.AlternateColor.B)
		} else {
			w.pdf.SetFillColor(255, 255, 255)
		}

		docs := "No"
		if a.HasDocumentation {
			docs = "Yes"
		}
		values := []string{
			fmt.Sprintf("%d", i+1),
			a.PartNumber,
			a.ATACode,
			a.Zone,
			a.Manufacturer,
			a.ConditionName,
			docs,
		}
		for j, col := range receptionColumns {
			w.pdf.CellFormat(col.width, 7, w.fit(w.tr(values[j]), col.width), "1", 0, "L", true, 0, "")
		}
		w.pdf.Ln(-1)
	}
}

// fit truncates a value to the cell width
func (w *receptionFormWriter) fit(val string, width float64) string {
	if w.pdf.GetStringWidth(val) <= width-2 {
		return val
	}
	runes := []rune(val)
	for len(runes) > 0 && w.pdf.GetStringWidth(string(runes)+"...") > width-2 {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}

func (w *receptionFormWriter) addSignatures() {
	w.pdf.SetFont(w.options.FontFamily, "", w.options.FontSize)
	half := 85.0
	w.pdf.CellFormat(half, 6, "______________________________", "", 0, "C", false, 0, "")
	w.pdf.CellFormat(half, 6, "______________________________", "", 1, "C", false, 0, "")
	w.pdf.CellFormat(half, 6, "Inspector", "", 0, "C", false, 0, "")
	w.pdf.CellFormat(half, 6, "Warehouse", "", 1, "C", false, 0, "")
}
