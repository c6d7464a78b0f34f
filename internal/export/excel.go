// Package export writes tabular data to Excel workbooks.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

// ContentType is the MIME type of the workbooks produced here
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Options configures workbook output
type Options struct {
	FreezeHeader bool
	AutoFilter   bool
	AutoWidth    bool
	DateFormat   string
	HeaderStyle  *StyleConfig
	DataStyle    *StyleConfig
}

// StyleConfig defines style for cells
type StyleConfig struct {
	FontBold  bool
	FontSize  int
	FontColor string
	FillColor string
	Alignment string // left, center, right
	Border    bool
	WrapText  bool
}

func DefaultOptions() Options {
	return Options{
		FreezeHeader: true,
		AutoFilter:   true,
		AutoWidth:    true,
		DateFormat:   "yyyy-mm-dd hh:mm",
		HeaderStyle: &StyleConfig{
			FontBold:  true,
			FontSize:  11,
			FillColor: "1F4E79",
			FontColor: "FFFFFF",
			Alignment: "center",
			Border:    true,
		},
		DataStyle: &StyleConfig{
			FontSize:  11,
			Alignment: "left",
			Border:    true,
		},
	}
}

// Sheet is one tab of a workbook. Rows are keyed by column name.
type Sheet struct {
	Name    string
	Columns []string
	Rows    []map[string]interface{}
}

// Workbook collects sheets and writes them as a single xlsx file
type Workbook struct {
	file    *excelize.File
	options Options
	sheets  int

	headerStyle int
	dataStyle   int
	dateStyle   int
}

func NewWorkbook(options Options) (*Workbook, error) {
	w := &Workbook{file: excelize.NewFile(), options: options}

	var err error
	if options.HeaderStyle != nil {
		if w.headerStyle, err = w.createStyle(options.HeaderStyle, nil); err != nil {
			return nil, fmt.Errorf("failed to create header style: %w", err)
		}
	}
	if options.DataStyle != nil {
		if w.dataStyle, err = w.createStyle(options.DataStyle, nil); err != nil {
			return nil, fmt.Errorf("failed to create data style: %w", err)
		}
	}
	dateFormat := options.DateFormat
	if dateFormat == "" {
		dateFormat = "yyyy-mm-dd"
	}
	base := options.DataStyle
	if base == nil {
		base = &StyleConfig{}
	}
	if w.dateStyle, err = w.createStyle(base, &dateFormat); err != nil {
		return nil, fmt.Errorf("failed to create date style: %w", err)
	}
	return w, nil
}

// AddSheet appends a sheet with a header row followed by the data rows
func (w *Workbook) AddSheet(sheet Sheet) error {
	if w.sheets == 0 {
		// Rename the default sheet
		if err := w.file.SetSheetName("Sheet1", sheet.Name); err != nil {
			return fmt.Errorf("failed to rename sheet: %w", err)
		}
	} else if _, err := w.file.NewSheet(sheet.Name); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	w.sheets++

	if err := w.writeHeader(sheet.Name, sheet.Columns); err != nil {
		return err
	}
	return w.writeRows(sheet)
}

func (w *Workbook) writeHeader(name string, columns []string) error {
	for i, col := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := w.file.SetCellValue(name, cell, col); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		if w.headerStyle > 0 {
			w.file.SetCellStyle(name, cell, cell, w.headerStyle)
		}
	}

	if w.options.FreezeHeader {
		w.file.SetPanes(name, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		})
	}
	return nil
}

func (w *Workbook) writeRows(sheet Sheet) error {
	widths := make(map[int]float64, len(sheet.Columns))
	for i, col := range sheet.Columns {
		widths[i] = estimateWidth(col)
	}

	for rowIdx, row := range sheet.Rows {
		for colIdx, colName := range sheet.Columns {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return err
			}
			val := row[colName]
			if err := w.setCellValue(sheet.Name, cell, val); err != nil {
				return fmt.Errorf("failed to set cell value: %w", err)
			}
			if width := estimateWidth(val); width > widths[colIdx] {
				widths[colIdx] = width
			}
		}
	}

	if w.options.AutoFilter && len(sheet.Columns) > 0 && len(sheet.Rows) > 0 {
		lastCell, _ := excelize.CoordinatesToCellName(len(sheet.Columns), len(sheet.Rows)+1)
		if err := w.file.AutoFilter(sheet.Name, "A1:"+lastCell, nil); err != nil {
			return fmt.Errorf("failed to set auto filter: %w", err)
		}
	}

	if w.options.AutoWidth {
		for colIdx, width := range widths {
			colName, _ := excelize.ColumnNumberToName(colIdx + 1)
			// Min width 10, max width 60
			if width < 10 {
				width = 10
			}
			if width > 60 {
				width = 60
			}
			w.file.SetColWidth(sheet.Name, colName, colName, width)
		}
	}
	return nil
}

// WriteTo writes the workbook to a writer
func (w *Workbook) WriteTo(out io.Writer) (int64, error) {
	return w.file.WriteTo(out)
}

func (w *Workbook) Close() error {
	return w.file.Close()
}

func (w *Workbook) createStyle(config *StyleConfig, numFmt *string) (int, error) {
	style := &excelize.Style{
		Font: &excelize.Font{
			Bold:  config.FontBold,
			Size:  float64(config.FontSize),
			Color: config.FontColor,
		},
		CustomNumFmt: numFmt,
	}
	if config.FillColor != "" {
		style.Fill = excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{config.FillColor}}
	}
	if config.Alignment != "" || config.WrapText {
		style.Alignment = &excelize.Alignment{Horizontal: config.Alignment, WrapText: config.WrapText}
	}
	if config.Border {
		style.Border = []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		}
	}
	return w.file.NewStyle(style)
}

func (w *Workbook) setCellValue(sheet, cell string, val interface{}) error {
	switch v := val.(type) {
	case nil:
		return w.file.SetCellValue(sheet, cell, "")
	case *string:
		if v == nil {
			return w.file.SetCellValue(sheet, cell, "")
		}
		val = *v
	case time.Time:
		if v.IsZero() {
			return w.file.SetCellValue(sheet, cell, "")
		}
		if err := w.file.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
		return w.file.SetCellStyle(sheet, cell, cell, w.dateStyle)
	}

	if err := w.file.SetCellValue(sheet, cell, val); err != nil {
		return err
	}
	if w.dataStyle > 0 {
		return w.file.SetCellStyle(sheet, cell, cell, w.dataStyle)
	}
	return nil
}

// estimateWidth estimates the display width of a cell value
func estimateWidth(val interface{}) float64 {
	if val == nil {
		return 0
	}
	return float64(len(fmt.Sprintf("%v", val))) * 1.2
}
