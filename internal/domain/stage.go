package domain

import "time"

// Stage kinds.
const (
	StageKindLocal = "local"
	StageKindS3    = "s3"
	StageKindGCS   = "gcs"
	StageKindAzure = "azure"
)

// StagedObject describes a file copied into the stage.
type StagedObject struct {
	Name         string    // file name, the stage key suffix
	URI          string    // location the warehouse reads from (path, s3://, gs://, az://)
	Size         int64     // bytes
	LastModified time.Time // zero when the backend does not report it
}
