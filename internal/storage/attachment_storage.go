package storage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/h2non/filetype"
)

var (
	ErrTooLarge        = errors.New("storage: размер файла превышает лимит")
	ErrEmptyFile       = errors.New("storage: файл пустой")
	ErrUnsupportedType = errors.New("storage: неподдерживаемый тип файла")
)

// allowedMimeTypes фото объекта, планы помещений и короткие видео.
var allowedMimeTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"image/heif":      true,
	"application/pdf": true,
	"video/mp4":       true,
	"video/quicktime": true,
}

// StoredFile результат сохранения вложения.
type StoredFile struct {
	Path     string
	Name     string
	MimeType string
	Size     int64
}

// AttachmentStorage файловое хранилище вложений к заказам.
type AttachmentStorage struct {
	rootPath       string
	maxUploadBytes int64
	now            func() time.Time
}

// NewAttachmentStorage создаёт файловое хранилище.
func NewAttachmentStorage(rootPath string, maxUploadMB int64) (*AttachmentStorage, error) {
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: не удалось создать каталог %s: %w", rootPath, err)
	}

	return &AttachmentStorage{
		rootPath:       rootPath,
		maxUploadBytes: maxUploadMB * 1024 * 1024,
		now:            time.Now,
	}, nil
}

// Detect определяет тип по магическим байтам. Расширение файла не учитывается.
func Detect(head []byte) (mime, ext string, err error) {
	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		return "", "", ErrUnsupportedType
	}
	if !allowedMimeTypes[kind.MIME.Value] {
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedType, kind.MIME.Value)
	}
	return kind.MIME.Value, kind.Extension, nil
}

// Save сохраняет файл в каталог заказа и возвращает относительный путь.
func (s *AttachmentStorage) Save(ctx context.Context, jobID uuid.UUID, originalName string, r io.Reader) (*StoredFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	br := bufio.NewReaderSize(r, 512)
	head, err := br.Peek(261)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("storage: не удалось прочитать файл: %w", err)
	}
	if len(head) == 0 {
		return nil, ErrEmptyFile
	}
	mime, ext, err := Detect(head)
	if err != nil {
		return nil, err
	}

	fileName := fmt.Sprintf("%s_%d.%s", uuid.NewString(), s.now().UnixNano(), ext)
	jobDir := filepath.Join(s.rootPath, jobID.String())
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: не удалось создать каталог заказа: %w", err)
	}

	targetPath := filepath.Join(jobDir, fileName)
	tempPath := targetPath + ".tmp"

	f, err := os.Create(tempPath)
	if err != nil {
		return nil, fmt.Errorf("storage: не удалось создать файл: %w", err)
	}
	defer f.Close()

	limited := io.LimitedReader{R: br, N: s.maxUploadBytes + 1}
	written, err := io.Copy(f, &limited)
	if err != nil {
		_ = os.Remove(tempPath)
		return nil, fmt.Errorf("storage: ошибка записи файла: %w", err)
	}
	if written > s.maxUploadBytes {
		_ = os.Remove(tempPath)
		return nil, fmt.Errorf("%w: %d байт", ErrTooLarge, s.maxUploadBytes)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tempPath)
		return nil, fmt.Errorf("storage: ошибка закрытия файла: %w", err)
	}
	if err := os.Rename(tempPath, targetPath); err != nil {
		return nil, fmt.Errorf("storage: не удалось переименовать файл: %w", err)
	}

	return &StoredFile{
		Path:     filepath.ToSlash(filepath.Join(jobID.String(), fileName)),
		Name:     sanitizeFilename(originalName),
		MimeType: mime,
		Size:     written,
	}, nil
}

// Open открывает сохранённый файл. Путь не может выйти за пределы хранилища.
func (s *AttachmentStorage) Open(relativePath string) (*os.File, error) {
	target, err := s.resolve(relativePath)
	if err != nil {
		return nil, err
	}
	return os.Open(target)
}

// Delete удаляет файл из хранилища.
func (s *AttachmentStorage) Delete(ctx context.Context, relativePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target, err := s.resolve(relativePath)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: не удалось удалить файл: %w", err)
	}
	return nil
}

func (s *AttachmentStorage) resolve(relativePath string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(relativePath))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("storage: недопустимый путь %q", relativePath)
	}
	return filepath.Join(s.rootPath, clean), nil
}

// sanitizeFilename удаляет потенциально опасные символы.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	if name == "" || name == "." {
		name = "attachment"
	}
	return name
}
