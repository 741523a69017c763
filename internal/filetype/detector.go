package filetype

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// ErrNotPDF is returned when an artifact is not a PDF.
var ErrNotPDF = errors.New("not a PDF document")

// FileTypeInfo contains detected file type information
type FileTypeInfo struct {
	MIMEType    string
	Extension   string
	IsPDF       bool
	IsHTML      bool
	Supported   bool
	Description string
}

// Detector handles file type detection using magic bytes
type Detector struct{}

// New creates a new file type detector
func New() *Detector {
	return &Detector{}
}

// Detect detects the actual file type using magic bytes, not filename
func (d *Detector) Detect(filePath string) (*FileTypeInfo, error) {
	mtype, err := mimetype.DetectFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to detect file type: %w", err)
	}

	info := &FileTypeInfo{
		MIMEType:  mtype.String(),
		Extension: mtype.Extension(),
	}

	// Fragments and templates without a doctype sniff as plain text.
	if strings.HasPrefix(info.MIMEType, "text/plain") {
		switch strings.ToLower(filepath.Ext(filePath)) {
		case ".html", ".htm", ".xhtml":
			log.Debug().Str("file", filePath).Msg("plain text with HTML extension, treating as HTML")
			info.MIMEType = "text/html; charset=utf-8"
			info.Extension = ".html"
		}
	}

	log.Debug().Str("mime", info.MIMEType).Str("ext", info.Extension).Str("file", filePath).Msg("detected file type")
	d.classify(info)
	return info, nil
}

// classify determines file characteristics
func (d *Detector) classify(info *FileTypeInfo) {
	mimeType := info.MIMEType

	switch {
	case mimeType == "application/pdf":
		info.IsPDF = true
		info.Supported = true
		info.Description = "PDF document"

	case strings.HasPrefix(mimeType, "text/html"), mimeType == "application/xhtml+xml":
		info.IsHTML = true
		info.Supported = true
		info.Description = "HTML document"

	default:
		info.Supported = false
		info.Description = fmt.Sprintf("Unsupported file type: %s", mimeType)
	}
}

// ValidatePDF checks that a backend artifact really is a PDF.
func (d *Detector) ValidatePDF(filePath string) error {
	info, err := d.Detect(filePath)
	if err != nil {
		return err
	}
	if !info.IsPDF {
		return fmt.Errorf("%w: %s is %s", ErrNotPDF, filepath.Base(filePath), info.MIMEType)
	}
	return nil
}

// IsHTML reports whether filePath is an HTML source document.
func (d *Detector) IsHTML(filePath string) bool {
	info, err := d.Detect(filePath)
	return err == nil && info.IsHTML
}
