package uploads

import "time"

// PublicPrefix is the URL path uploads are served under.
const PublicPrefix = "/uploads/"

// Blob describes a stored upload.
type Blob struct {
	Name         string    `json:"name"`
	Path         string    `json:"filePath"`
	OriginalName string    `json:"originalName,omitempty"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"contentType"`
	Digest       string    `json:"digest,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}
