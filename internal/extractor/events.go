package extractor

import "time"

// ConversionEvent is emitted after a dataset has been converted.
type ConversionEvent struct {
	ID           string    `json:"id"`
	Extractor    string    `json:"extractor"`
	DatasetID    string    `json:"dataset_id"`
	DatasetName  string    `json:"dataset_name"`
	OutputDir    string    `json:"output_dir"`
	Uploaded     []string  `json:"uploaded"`
	FilesCreated []string  `json:"files_created"`
	Created      int       `json:"created"`
	Bytes        int64     `json:"bytes"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}
