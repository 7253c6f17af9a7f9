package documents

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// allowedTypes maps accepted file extensions to the MIME type stored with the document.
var allowedTypes = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".ppt":  "application/vnd.ms-powerpoint",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".txt":  "text/plain",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
}

// sniffedTypes lists the detected content types accepted for each extension.
// Detection walks up the parent chain, so OOXML files that only sniff as zip
// and text subtypes such as csv still match.
var sniffedTypes = map[string][]string{
	".pdf":  {"application/pdf"},
	".doc":  {"application/msword", "application/x-ole-storage"},
	".docx": {"application/vnd.openxmlformats-officedocument.wordprocessingml.document", "application/zip"},
	".xls":  {"application/vnd.ms-excel", "application/x-ole-storage"},
	".xlsx": {"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "application/zip"},
	".ppt":  {"application/vnd.ms-powerpoint", "application/x-ole-storage"},
	".pptx": {"application/vnd.openxmlformats-officedocument.presentationml.presentation", "application/zip"},
	".txt":  {"text/plain"},
	".png":  {"image/png"},
	".jpg":  {"image/jpeg"},
	".jpeg": {"image/jpeg"},
}

var (
	ErrTypeNotAllowed  = errors.New("bu dosya türü yüklenemez")
	ErrContentMismatch = errors.New("dosya içeriği uzantısıyla uyuşmuyor")
)

// mimeFor returns the lowercased extension and MIME type of filename, or
// ErrTypeNotAllowed.
func mimeFor(filename string) (string, string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	mime, ok := allowedTypes[ext]
	if !ok {
		return "", "", ErrTypeNotAllowed
	}
	return ext, mime, nil
}

// checkContent sniffs the head of r and rewinds it. It returns
// ErrContentMismatch when the content does not belong to ext.
func checkContent(ext string, r io.ReadSeeker) error {
	detected, err := mimetype.DetectReader(r)
	if err != nil {
		return fmt.Errorf("dosya okunamadı: %w", err)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("dosya okunamadı: %w", err)
	}
	for m := detected; m != nil; m = m.Parent() {
		for _, want := range sniffedTypes[ext] {
			if m.Is(want) {
				return nil
			}
		}
	}
	return ErrContentMismatch
}

// Store keeps uploaded files in a single directory under generated names.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Save writes r to a new uuid-named file with the given extension and returns
// the stored name.
func (s *Store) Save(r io.Reader, ext string) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("klasör oluşturulamadı: %w", err)
	}
	name := uuid.NewString() + ext

	f, err := os.OpenFile(s.Path(name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("dosya oluşturulamadı: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(s.Path(name))
		return "", fmt.Errorf("dosya yazılamadı: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(s.Path(name))
		return "", fmt.Errorf("dosya yazılamadı: %w", err)
	}
	return name, nil
}

// Path returns the on-disk location of a stored name. Stored names never
// contain separators, so the result stays inside the store directory.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, filepath.Base(name))
}

// Remove deletes a stored file; a file that is already gone is not an error.
func (s *Store) Remove(name string) error {
	if err := os.Remove(s.Path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
