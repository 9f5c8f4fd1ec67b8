package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52}

func TestDetect(t *testing.T) {
	mime, ext, err := Detect(pngHeader)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, "png", ext)

	mime, _, err = Detect([]byte("%PDF-1.7\n"))
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", mime)

	_, _, err = Detect([]byte("#!/bin/sh\nrm -rf /\n"))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	// zip определяется, но не разрешён
	_, _, err = Detect([]byte{0x50, 0x4B, 0x03, 0x04, 0x14, 0x00})
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestAttachmentStorage_SaveOpenDelete(t *testing.T) {
	root := t.TempDir()
	s, err := NewAttachmentStorage(root, 1)
	require.NoError(t, err)

	jobID := uuid.New()
	content := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0x01}, 1024)...)

	stored, err := s.Save(context.Background(), jobID, "../../etc/site photo.jpg", bytes.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, "image/png", stored.MimeType)
	assert.Equal(t, int64(len(content)), stored.Size)
	assert.Equal(t, "site photo.jpg", stored.Name)
	assert.True(t, strings.HasPrefix(stored.Path, jobID.String()+"/"))
	assert.True(t, strings.HasSuffix(stored.Path, ".png"))

	f, err := s.Open(stored.Path)
	require.NoError(t, err)
	got, err := io.ReadAll(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, content, got)

	require.NoError(t, s.Delete(context.Background(), stored.Path))
	_, err = os.Stat(filepath.Join(root, filepath.FromSlash(stored.Path)))
	assert.True(t, os.IsNotExist(err))
	// повторное удаление не ошибка
	assert.NoError(t, s.Delete(context.Background(), stored.Path))
}

func TestAttachmentStorage_Rejects(t *testing.T) {
	root := t.TempDir()
	s, err := NewAttachmentStorage(root, 1)
	require.NoError(t, err)
	jobID := uuid.New()

	_, err = s.Save(context.Background(), jobID, "empty.png", bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = s.Save(context.Background(), jobID, "script.png", strings.NewReader("echo hacked"))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	big := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0x00}, 1024*1024)...)
	_, err = s.Save(context.Background(), jobID, "big.png", bytes.NewReader(big))
	assert.ErrorIs(t, err, ErrTooLarge)
	entries, _ := os.ReadDir(filepath.Join(root, jobID.String()))
	assert.Empty(t, entries, "временный файл удалён")

	_, err = s.Open("../outside.txt")
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Save(ctx, jobID, "a.png", bytes.NewReader(pngHeader))
	assert.ErrorIs(t, err, context.Canceled)
}
