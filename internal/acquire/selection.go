package acquire

import (
	"fmt"
	"mime"
	"net/http"
	"strings"
	"sync"

	"github.com/ndewijer/Finance-Insights/internal/apiclient"
)

// MaxStatements is the largest batch accepted by the upload endpoint.
const MaxStatements = 12

// WarningKind names why files were left out of a selection.
type WarningKind string

const (
	WarningTypeRejected WarningKind = "type-rejected"
	WarningCapExceeded  WarningKind = "cap-exceeded"
)

// Warning reports files dropped from a selection. The rest of the batch is kept.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Files   []string    `json:"files"`
	Message string      `json:"message"`
}

// Selection is the ordered set of statement files chosen for upload.
type Selection struct {
	mu    sync.Mutex
	files []apiclient.UploadFile
}

// NewSelection returns an empty selection.
func NewSelection() *Selection {
	return &Selection{}
}

// Add appends files, skipping anything that is not a PDF and anything past
// MaxStatements. It never rejects the whole batch.
func (s *Selection) Add(files ...apiclient.UploadFile) []Warning {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rejected, overflow []string
	for _, f := range files {
		if !IsPDF(f) {
			rejected = append(rejected, f.Name)
			continue
		}
		if len(s.files) >= MaxStatements {
			overflow = append(overflow, f.Name)
			continue
		}
		s.files = append(s.files, f)
	}

	var warnings []Warning
	if len(rejected) > 0 {
		warnings = append(warnings, Warning{
			Kind:    WarningTypeRejected,
			Files:   rejected,
			Message: fmt.Sprintf("Only PDF files are accepted. Skipped: %s", strings.Join(rejected, ", ")),
		})
	}
	if len(overflow) > 0 {
		warnings = append(warnings, Warning{
			Kind:    WarningCapExceeded,
			Files:   overflow,
			Message: fmt.Sprintf("Maximum %d statements. Only the first %d will be used.", MaxStatements, MaxStatements),
		})
	}
	return warnings
}

// Remove drops the file at index i. Out-of-range indexes are ignored.
func (s *Selection) Remove(i int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.files) {
		return false
	}
	s.files = append(s.files[:i:i], s.files[i+1:]...)
	return true
}

// Files returns a copy of the selected files in order.
func (s *Selection) Files() []apiclient.UploadFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]apiclient.UploadFile(nil), s.files...)
}

// Names returns the selected file names in order.
func (s *Selection) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.files))
	for i, f := range s.files {
		names[i] = f.Name
	}
	return names
}

func (s *Selection) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// CanSubmit reports whether the selection holds at least one file.
func (s *Selection) CanSubmit() bool {
	return s.Len() > 0
}

func (s *Selection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = nil
}

// IsPDF accepts files declared as application/pdf, and files with no
// specific declared type whose content sniffs as PDF.
func IsPDF(f apiclient.UploadFile) bool {
	mediaType := ""
	if f.ContentType != "" {
		mt, _, err := mime.ParseMediaType(f.ContentType)
		if err != nil {
			return false
		}
		mediaType = mt
	}

	switch mediaType {
	case "application/pdf":
		return true
	case "", "application/octet-stream":
		return http.DetectContentType(f.Data) == "application/pdf"
	}
	return false
}
