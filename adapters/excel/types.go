package excel

// RawRowData represents a row of raw Excel data as string key-value pairs
type RawRowData map[string]string

// ExcelData represents the complete Excel dataset
type ExcelData struct {
	Headers []string     // Column headers
	Rows    []RawRowData // Data rows
}

// Required columns of the tall dose-response layout
const (
	ColChemicalID  = "chemical_id"
	ColEndpoint    = "endpoint"
	ColDose        = "dose"
	ColNumAffected = "num_affected"
	ColNumTotal    = "num_total"
)

// RequiredColumns lists the tall-format header in canonical order
var RequiredColumns = []string{ColChemicalID, ColEndpoint, ColDose, ColNumAffected, ColNumTotal}
