package storage

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultMaxFileSize is the upload ceiling when none is configured.
const DefaultMaxFileSize int64 = 50 * 1024 * 1024

var (
	ErrEmptyFile           = errors.New("file is empty")
	ErrFileTooLarge        = errors.New("file exceeds maximum size")
	ErrExtensionNotAllowed = errors.New("file type not allowed")
)

var (
	defaultExtensions = []string{
		"pdf", "txt", "doc", "docx", "js", "html", "css", "md", "json", "xml",
		"py", "java", "cpp", "c", "php", "jpg", "jpeg", "png", "gif", "zip", "rar",
	}

	editableExtensions = map[string]struct{}{
		"txt": {}, "js": {}, "html": {}, "css": {}, "md": {}, "json": {},
		"xml": {}, "py": {}, "java": {}, "cpp": {}, "c": {}, "php": {},
	}

	previewableExtensions = map[string]struct{}{
		"pdf": {}, "jpg": {}, "jpeg": {}, "png": {}, "gif": {},
	}

	mimeByExtension = map[string]string{
		"pdf":  "application/pdf",
		"txt":  "text/plain",
		"doc":  "application/msword",
		"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"js":   "application/javascript",
		"html": "text/html",
		"css":  "text/css",
		"md":   "text/markdown",
		"json": "application/json",
		"xml":  "application/xml",
		"py":   "text/x-python",
		"java": "text/x-java-source",
		"cpp":  "text/x-c++src",
		"c":    "text/x-csrc",
		"php":  "application/x-httpd-php",
		"jpg":  "image/jpeg",
		"jpeg": "image/jpeg",
		"png":  "image/png",
		"gif":  "image/gif",
		"zip":  "application/zip",
		"rar":  "application/vnd.rar",
	}

	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9.\-_]`)
)

// UploadPolicy enforces extension and size limits on incoming report files.
type UploadPolicy struct {
	maxSize int64
	allowed map[string]struct{}
}

// NewUploadPolicy builds a policy; empty arguments fall back to the portal defaults.
func NewUploadPolicy(maxSize int64, extensions []string) *UploadPolicy {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	if len(extensions) == 0 {
		extensions = defaultExtensions
	}
	allowed := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		allowed[normalizeExt(ext)] = struct{}{}
	}
	return &UploadPolicy{maxSize: maxSize, allowed: allowed}
}

// MaxSize returns the configured ceiling in bytes.
func (p *UploadPolicy) MaxSize() int64 {
	return p.maxSize
}

// Check validates filename and size and returns the normalised extension.
func (p *UploadPolicy) Check(filename string, size int64) (string, error) {
	if size <= 0 {
		return "", ErrEmptyFile
	}
	if size > p.maxSize {
		return "", fmt.Errorf("%w (%d bytes)", ErrFileTooLarge, p.maxSize)
	}
	ext := Extension(filename)
	if _, ok := p.allowed[ext]; !ok || ext == "" {
		return "", fmt.Errorf("%w: %q", ErrExtensionNotAllowed, ext)
	}
	return ext, nil
}

// DetectMIME resolves the content type from the extension table, sniffing the
// content when the extension is unknown. The reader is rewound afterwards.
func DetectMIME(filename string, content io.ReadSeeker) (string, error) {
	if m, ok := mimeByExtension[Extension(filename)]; ok {
		return m, nil
	}
	if content == nil {
		return "application/octet-stream", nil
	}
	detected, err := mimetype.DetectReader(content)
	if _, seekErr := content.Seek(0, io.SeekStart); seekErr != nil {
		return "", fmt.Errorf("rewind upload: %w", seekErr)
	}
	if err != nil {
		return "", fmt.Errorf("detect mime: %w", err)
	}
	return detected.String(), nil
}

// IsText reports whether content sniffs as a text format.
func IsText(content []byte) bool {
	for m := mimetype.Detect(content); m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

// SanitizeFilename replaces every character outside [a-zA-Z0-9.-_] with an underscore.
func SanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		return "file"
	}
	return unsafeFilenameChars.ReplaceAllString(base, "_")
}

// Extension returns the lower-case extension without the dot.
func Extension(filename string) string {
	return normalizeExt(filepath.Ext(filename))
}

// IsEditable reports whether files with ext can be edited in place.
func IsEditable(ext string) bool {
	_, ok := editableExtensions[normalizeExt(ext)]
	return ok
}

// IsPreviewable reports whether files with ext render inline in a browser.
func IsPreviewable(ext string) bool {
	_, ok := previewableExtensions[normalizeExt(ext)]
	return ok
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}
