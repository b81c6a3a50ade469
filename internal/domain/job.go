package domain

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusFailed }

type DatasetType string

const (
	DatasetAssets        DatasetType = "assets"
	DatasetScanLogs      DatasetType = "scan_logs"
	DatasetStatusHistory DatasetType = "status_history"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// TTL is how long a generated file stays downloadable after the job is
// created. It is fixed at submission, not at completion.
const TTL = 24 * time.Hour

// DateRange bounds a dataset query. Values are RFC3339 strings so the
// stored config round-trips byte for byte; parsing happens when the job
// runs.
type DateRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ExportConfig is the filter and output specification for one job. It is
// stored verbatim so a run is reproducible; defaulted values are derived
// per run and never written back.
type ExportConfig struct {
	Format        Format     `json:"format"`
	DateRange     *DateRange `json:"date_range,omitempty"`
	PlantCodes    []string   `json:"plant_codes,omitempty"`
	LocationCodes []string   `json:"location_codes,omitempty"`
	StatusCodes   []string   `json:"status_codes,omitempty"`
}

type ExportJob struct {
	ID           string       `json:"id"`
	Owner        string       `json:"owner"`
	DatasetType  DatasetType  `json:"dataset_type"`
	Status       Status       `json:"status"`
	Config       ExportConfig `json:"config"`
	TotalRecords *int64       `json:"total_records,omitempty"`
	FilePath     *string      `json:"-"`
	FileName     *string      `json:"file_name,omitempty"`
	FileSize     *int64       `json:"file_size,omitempty"`
	ErrorMessage *string      `json:"error_message,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	ExpiresAt    time.Time    `json:"expires_at"`
}

func (j *ExportJob) Expired(now time.Time) bool { return now.After(j.ExpiresAt) }

// Summary is what the submitter gets back; generation has not run yet.
func (j *ExportJob) Summary() JobSummary {
	return JobSummary{
		ID:          j.ID,
		DatasetType: j.DatasetType,
		Status:      j.Status,
		CreatedAt:   j.CreatedAt,
		ExpiresAt:   j.ExpiresAt,
	}
}

type JobSummary struct {
	ID          string      `json:"id"`
	DatasetType DatasetType `json:"dataset_type"`
	Status      Status      `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	ExpiresAt   time.Time   `json:"expires_at"`
}
