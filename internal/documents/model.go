package documents

import "time"

// Document is an uploaded source file tracked through intake.
type Document struct {
	ID              string    `json:"id"`
	FileName        string    `json:"fileName"`
	MimeType        string    `json:"mimeType"`
	SizeBytes       int64     `json:"sizeBytes"`
	StorageProvider string    `json:"storageProvider"`
	StorageKey      string    `json:"storageKey,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}
