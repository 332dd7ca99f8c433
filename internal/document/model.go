package document

import (
	"path"
	"strings"
	"time"

	"github.com/goa-gov/sewa-connect/internal/shared/types"
)

// Document is one file attached to an application. Rows are written once
// and never updated.
type Document struct {
	ID            types.ID  `json:"id"`
	ApplicationID types.ID  `json:"application_id"`
	FileName      string    `json:"file_name"`
	FileURL       string    `json:"file_url"`
	StorageKey    string    `json:"-"`
	DocType       string    `json:"doc_type"`
	SHA256        string    `json:"sha256"`
	SizeBytes     int64     `json:"size_bytes"`
	UploadedAt    time.Time `json:"uploaded_at"`
}

// ObjectKey builds the storage key for a document:
// {user_id}/{application_id}/{doc_type}.{ext}. The doc type label is
// slugified so labels like "Aadhaar Card" produce stable keys.
func ObjectKey(userID, applicationID types.ID, docType, fileName string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(fileName), "."))
	if ext == "" {
		ext = "bin"
	}
	return userID.String() + "/" + applicationID.String() + "/" + SlugifyLabel(docType) + "." + ext
}

// SlugifyLabel lowercases a document label and replaces runs of
// non-alphanumeric characters with single underscores.
func SlugifyLabel(label string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(label) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
