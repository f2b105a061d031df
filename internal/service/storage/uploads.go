package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode"

	"garbageapi/internal/config"
	"garbageapi/internal/dto"
	"garbageapi/internal/logger"
	"garbageapi/internal/model"
	"garbageapi/internal/repository"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/text/unicode/norm"
)

var (
	// ErrEmptyName is returned when a stored upload is addressed without a name.
	ErrEmptyName = errors.New("empty file name")
	// ErrInvalidName is returned for names that do not survive sanitising unchanged.
	ErrInvalidName = errors.New("invalid file name")
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SavedUpload describes a file written to the upload directory. Path is private to
// the request that saved it unless Kept is set.
type SavedUpload struct {
	Name   string
	Path   string
	Size   int64
	SHA256 string
	Kept   bool
}

// UploadStore owns the upload directory and the upload ledger.
type UploadStore struct {
	uploadDir     string
	retention     string
	maxAge        time.Duration
	maxDirSize    int64
	logger        *logger.Logger
	uploadRepo    repository.UploadRepository
	detectionRepo repository.DetectionRepository
	mu            sync.Mutex
}

// NewUploadStore creates an UploadStore. Both repositories may be nil to disable the ledger.
func NewUploadStore(config *config.Config, logger *logger.Logger, uploadRepo repository.UploadRepository, detectionRepo repository.DetectionRepository) *UploadStore {
	return &UploadStore{
		uploadDir:     config.UploadDirectory,
		retention:     config.UploadRetention,
		maxAge:        config.UploadMaxAge,
		maxDirSize:    config.MaxUploadDirSize,
		logger:        logger,
		uploadRepo:    uploadRepo,
		detectionRepo: detectionRepo,
	}
}

// Dir returns the upload directory.
func (s *UploadStore) Dir() string {
	return s.uploadDir
}

// Extension returns the lowercased text after the last dot of filename, or "".
func Extension(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		return ""
	}
	return strings.ToLower(filename[idx+1:])
}

// SecureFilename reduces a client supplied name to a flat ASCII name that is safe to
// join with the upload directory. The result may be empty.
func SecureFilename(filename string) string {
	var b strings.Builder
	for _, r := range norm.NFKD.String(filename) {
		if r <= unicode.MaxASCII {
			b.WriteRune(r)
		}
	}

	name := strings.ReplaceAll(b.String(), "/", " ")
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeChars.ReplaceAllString(name, "")
	return strings.Trim(name, "._")
}

// Save writes src under the sanitised form of filename, replacing any file of the same
// name. Under the delete retention policy the bytes stay in a temp file unique to this
// call, so concurrent uploads of one name never read or remove each other's data.
func (s *UploadStore) Save(filename string, src io.Reader) (*SavedUpload, error) {
	name := SecureFilename(filename)
	if name == "" {
		name = uuid.NewString()
		if ext := Extension(filename); ext != "" {
			name += "." + ext
		}
	}

	if err := os.MkdirAll(s.uploadDir, 0755); err != nil {
		return nil, errors.Wrap(err, "could not create upload directory")
	}

	tmp, err := os.CreateTemp(s.uploadDir, ".upload-*"+filepath.Ext(name))
	if err != nil {
		return nil, errors.Wrap(err, "could not create upload file")
	}
	saved := false
	defer func() {
		if !saved {
			os.Remove(tmp.Name())
		}
	}()

	hash := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, hash), src)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not write upload")
	}

	upload := &SavedUpload{
		Name:   name,
		Path:   tmp.Name(),
		Size:   size,
		SHA256: hex.EncodeToString(hash.Sum(nil)),
		Kept:   s.retention != config.RetentionDelete,
	}
	if upload.Kept {
		path := filepath.Join(s.uploadDir, name)
		if err := os.Rename(tmp.Name(), path); err != nil {
			return nil, errors.Wrap(err, "could not store upload")
		}
		upload.Path = path
	}

	saved = true
	return upload, nil
}

// Release applies the retention policy once the saved file has been decoded.
func (s *UploadStore) Release(upload *SavedUpload) {
	if upload.Kept {
		return
	}
	if err := os.Remove(upload.Path); err != nil && !os.IsNotExist(err) {
		s.logger.Warning("Could not remove upload %s: %v", upload.Name, err)
	}
}

// Record stores the upload and its detections in the ledger. Failures are only logged.
// An upload that was not kept is recorded without a file path.
func (s *UploadStore) Record(upload *SavedUpload, result *dto.DetectionResult) {
	if s.uploadRepo == nil {
		return
	}

	path := ""
	if upload.Kept {
		path = upload.Path
	}

	uploadID, err := s.uploadRepo.Save(&model.Upload{
		Filename:     upload.Name,
		FilePath:     path,
		FileSize:     upload.Size,
		SHA256:       upload.SHA256,
		TotalObjects: result.TotalObjects,
		Timestamp:    time.Now(),
	})
	if err != nil {
		s.logger.Error("Error saving upload %s to database: %v", upload.Name, err)
		return
	}

	if s.detectionRepo == nil || len(result.DetectedObjects) == 0 {
		return
	}

	detections := make([]model.Detection, 0, len(result.DetectedObjects))
	for _, obj := range result.DetectedObjects {
		detections = append(detections, model.Detection{
			UploadID:   uploadID,
			Label:      obj.Class,
			Confidence: obj.Confidence,
			X1:         obj.BBox[0],
			Y1:         obj.BBox[1],
			X2:         obj.BBox[2],
			Y2:         obj.BBox[3],
		})
	}
	if err := s.detectionRepo.InsertBatch(detections); err != nil {
		s.logger.Error("Error saving detections for %s to database: %v", upload.Name, err)
	}
}

// Inspect describes a file already present in the upload directory.
func (s *UploadStore) Inspect(name string) (*SavedUpload, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open %s", name)
	}
	defer f.Close()

	hash := sha256.New()
	size, err := io.Copy(hash, f)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read %s", name)
	}

	return &SavedUpload{
		Name:   name,
		Path:   path,
		Size:   size,
		SHA256: hex.EncodeToString(hash.Sum(nil)),
		Kept:   true,
	}, nil
}

// Path resolves a stored upload by name. The name must already be in sanitised form.
func (s *UploadStore) Path(name string) (string, error) {
	if name == "" {
		return "", ErrEmptyName
	}
	if SecureFilename(name) != name {
		return "", ErrInvalidName
	}
	return filepath.Join(s.uploadDir, name), nil
}

// Delete removes a stored upload from disk and from the ledger.
func (s *UploadStore) Delete(name string) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(path); err != nil {
		if !os.IsNotExist(err) {
			return errors.Wrapf(err, "could not remove %s", name)
		}
		s.logger.Warning("Upload %s already gone from disk", name)
	}

	if s.uploadRepo != nil {
		if err := s.uploadRepo.DeleteByFilename(name); err != nil {
			return errors.Wrapf(err, "could not remove %s from ledger", name)
		}
	}
	return nil
}
