package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"zebrabmd/domain/core"
	"zebrabmd/domain/doseresponse"
	"zebrabmd/internal"
	"zebrabmd/internal/errors"
	"zebrabmd/ports"

	"github.com/xuri/excelize/v2"
)

// DataReader reads tall dose-response tables from XLSX or CSV files
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	sheet    string
	logger   *internal.Logger
}

var _ ports.SeriesReader = (*DataReader)(nil)

// NewDataReader creates a reader; the file type follows the extension
func NewDataReader(filePath string, logger *internal.Logger) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &DataReader{filePath: filePath, fileType: fileType, sheet: "Sheet1", logger: logger}
}

// WithSheet selects the worksheet read from XLSX input
func (r *DataReader) WithSheet(sheet string) *DataReader {
	r.sheet = sheet
	return r
}

// ReadSeries implements ports.SeriesReader
func (r *DataReader) ReadSeries(ctx context.Context) ([]doseresponse.Series, error) {
	data, err := r.ReadData()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return GroupSeries(data)
}

// ReadData reads data from Excel or CSV files into structured format
func (r *DataReader) ReadData() (*ExcelData, error) {
	r.logger.Debug("[DataReader] reading %s file: %s", r.fileType, r.filePath)

	if _, err := os.Stat(r.filePath); err != nil {
		return nil, errors.IOError(r.filePath, err)
	}

	switch r.fileType {
	case "csv":
		return r.readCSVData()
	case "xlsx":
		return r.readExcelData()
	}
	return nil, errors.InvalidInput(fmt.Sprintf("unsupported file type: %s", r.fileType))
}

func (r *DataReader) readExcelData() (*ExcelData, error) {
	start := time.Now()
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, errors.IOError(r.filePath, err)
	}
	defer f.Close()

	rows, err := f.GetRows(r.sheet)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read sheet %s", r.sheet)
	}
	r.logger.Debug("[DataReader] %s read in %s (%d rows)", r.sheet, time.Since(start), len(rows))

	return r.processRows(rows)
}

func (r *DataReader) readCSVData() (*ExcelData, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, errors.IOError(r.filePath, err)
	}
	defer file.Close()

	return ReadCSV(file)
}

// ReadCSV parses a tall CSV table from any reader
func ReadCSV(in io.Reader) (*ExcelData, error) {
	reader := csv.NewReader(in)
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, fmt.Errorf("failed to read CSV: %w", err))
	}
	return (&DataReader{}).processRows(rows)
}

// processRows converts raw string rows into ExcelData format
func (r *DataReader) processRows(rows [][]string) (*ExcelData, error) {
	if len(rows) == 0 {
		return nil, errors.InvalidInput("input has no header row")
	}

	headerRow := rows[0]
	headers := make([]string, len(headerRow))
	for i, header := range headerRow {
		headers[i] = strings.ToLower(strings.TrimSpace(header))
	}

	var dataRows []RawRowData
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if isBlank(row) {
			continue
		}
		rowData := make(RawRowData)
		for j, cell := range row {
			if j < len(headers) {
				rowData[headers[j]] = strings.TrimSpace(cell)
			}
		}
		dataRows = append(dataRows, rowData)
	}

	return &ExcelData{Headers: headers, Rows: dataRows}, nil
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// GroupSeries splits a tall table into one series per (chemical, endpoint).
// Units keep the order of their first row; groups are sorted by dose and
// rows repeating a dose are pooled. The series are not validated here.
func GroupSeries(data *ExcelData) ([]doseresponse.Series, error) {
	for _, col := range RequiredColumns {
		if !hasColumn(data.Headers, col) {
			return nil, core.NewMissingColumnError(col)
		}
	}

	var order []doseresponse.UnitKey
	groups := make(map[doseresponse.UnitKey]map[float64]*doseresponse.DoseGroup)

	for i, row := range data.Rows {
		line := i + 2 // header is line 1
		key := doseresponse.UnitKey{ChemicalID: row[ColChemicalID], Endpoint: row[ColEndpoint]}
		if key.ChemicalID == "" || key.Endpoint == "" {
			return nil, errors.InvalidInput(fmt.Sprintf("line %d: empty %s or %s", line, ColChemicalID, ColEndpoint))
		}

		dose, err := strconv.ParseFloat(row[ColDose], 64)
		if err != nil {
			return nil, errors.InvalidInput(fmt.Sprintf("line %d: %s %q is not a number", line, ColDose, row[ColDose]))
		}
		affected, err := parseCount(row[ColNumAffected])
		if err != nil {
			return nil, errors.InvalidInput(fmt.Sprintf("line %d: %s: %v", line, ColNumAffected, err))
		}
		total, err := parseCount(row[ColNumTotal])
		if err != nil {
			return nil, errors.InvalidInput(fmt.Sprintf("line %d: %s: %v", line, ColNumTotal, err))
		}

		byDose, ok := groups[key]
		if !ok {
			byDose = make(map[float64]*doseresponse.DoseGroup)
			groups[key] = byDose
			order = append(order, key)
		}
		if g, ok := byDose[dose]; ok {
			g.NumAffected += affected
			g.NumTotal += total
			continue
		}
		byDose[dose] = &doseresponse.DoseGroup{Dose: dose, NumAffected: affected, NumTotal: total}
	}

	out := make([]doseresponse.Series, 0, len(order))
	for _, key := range order {
		s := doseresponse.Series{Key: key}
		for _, g := range groups[key] {
			s.Groups = append(s.Groups, *g)
		}
		sort.Slice(s.Groups, func(a, b int) bool { return s.Groups[a].Dose < s.Groups[b].Dose })
		out = append(out, s)
	}
	return out, nil
}

// parseCount accepts integer counts, including spreadsheet renderings like "12.0"
func parseCount(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("%q is not a whole number", s)
	}
	return int(f), nil
}

func hasColumn(headers []string, col string) bool {
	for _, h := range headers {
		if h == col {
			return true
		}
	}
	return false
}
