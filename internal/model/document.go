package model

import (
	"net/http"
	"strings"
)

// Document is an uploaded record image for the scan module
type Document struct {
	Name     string `json:"name"`
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"-"`
}

// DetectedMIMEType returns the declared MIME type, sniffing the content when absent
func (d Document) DetectedMIMEType() string {
	if d.MIMEType != "" {
		return d.MIMEType
	}
	mime := http.DetectContentType(d.Data)
	if idx := strings.Index(mime, ";"); idx > 0 {
		mime = mime[:idx]
	}
	return mime
}

// IsImage reports whether the document is an image
func (d Document) IsImage() bool {
	return strings.HasPrefix(d.DetectedMIMEType(), "image/")
}
