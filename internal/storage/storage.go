// Package storage keeps receipt files in an object store addressed by key.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// ErrObjectNotFound is returned by Get when no object is stored under a key.
var ErrObjectNotFound = errors.New("object not found")

// Object describes a stored file.
type Object struct {
	URL         string
	Path        string
	ContentType string
	Size        int64
}

// ObjectStore defines the interface for receipt file storage.
type ObjectStore interface {
	// Put stores data under key and returns its public URL and path.
	Put(ctx context.Context, key, contentType string, data []byte) (Object, error)

	// Get retrieves an object and its content type.
	Get(ctx context.Context, key string) ([]byte, string, error)

	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ReceiptKey builds the key a receipt upload is stored under:
// expenses/<projectID>/<unix millis>_<filename>.
func ReceiptKey(projectID, filename string, now time.Time) string {
	return fmt.Sprintf("%s%d_%s", ProjectPrefix(projectID), now.UnixMilli(), SanitizeName(filename))
}

// ProjectPrefix is the key prefix shared by every receipt of a project.
func ProjectPrefix(projectID string) string {
	return "expenses/" + projectID + "/"
}

// SanitizeName reduces a client-supplied filename to a safe base name.
func SanitizeName(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	base = unsafeChars.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._")
	if base == "" {
		return "receipt"
	}
	return base
}

// CleanKey normalises a key and rejects keys escaping the store root.
func CleanKey(key string) (string, error) {
	cleaned := path.Clean("/" + strings.ReplaceAll(key, "\\", "/"))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return cleaned, nil
}

// DetectContentType returns the declared type unless it is missing or generic,
// in which case the type is sniffed from the content.
func DetectContentType(declared string, data []byte) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	return mimetype.Detect(data).String()
}

// PublicURL joins the public base URL with the file-serving route for key.
func PublicURL(baseURL, key string) string {
	return strings.TrimRight(baseURL, "/") + "/files/" + key
}
