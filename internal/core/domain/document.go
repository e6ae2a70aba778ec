package domain

import "time"

// DocumentSubmission is owned by the pipeline for the duration of one run and never persisted.
type DocumentSubmission struct {
	Filename    string
	ContentType string
	Identity    string
	Body        []byte

	// ReuseIncoming marks a re-run of an artifact that already lives in the incoming bucket.
	ReuseIncoming bool
	IncomingKey   string
}

type ExtractionResult struct {
	Text           string `json:"extracted_text"`
	SourceFilename string `json:"source_filename"`
}

type Bucket string

const (
	BucketIncoming   Bucket = "incoming"
	BucketClassified Bucket = "classified"
)

// ArtifactRef locates a stored object. The zero value marks an artifact that was not written.
type ArtifactRef struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

func (r ArtifactRef) Written() bool {
	return r.Key != ""
}

func (r ArtifactRef) Location() string {
	if !r.Written() {
		return ""
	}
	return r.Bucket + "/" + r.Key
}

type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified"`
}
