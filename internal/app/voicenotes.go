package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

var (
	ErrTransferSizeMismatch = errors.New("voice note shorter than declared size")
	ErrNoteTooLarge         = errors.New("voice note exceeds size limit")
	ErrNoteNotFound         = errors.New("voice note not found")
)

const partialSuffix = ".part"

// VoiceNotes stores uploaded voice notes under server-generated names.
type VoiceNotes struct {
	fs      afero.Fs
	dir     string
	maxSize int64
}

func NewVoiceNotes(fs afero.Fs, dir string, maxSize int64) (*VoiceNotes, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("voice notes dir: %w", err)
	}
	return &VoiceNotes{fs: fs, dir: dir, maxSize: maxSize}, nil
}

// Upload consumes exactly size bytes from r and stores them. A stream that
// ends early leaves nothing behind. An oversized note is drained and refused
// so the stream stays framed.
func (v *VoiceNotes) Upload(r io.Reader, size int64, clientName string) (string, error) {
	if size > v.maxSize {
		if err := drain(r, size); err != nil {
			return "", err
		}
		return "", ErrNoteTooLarge
	}

	name := uuid.NewString() + extension(clientName)
	final := path.Join(v.dir, name)
	tmp := final + partialSuffix

	f, err := v.fs.Create(tmp)
	if err != nil {
		return "", errors.Join(fmt.Errorf("create voice note: %w", err), drain(r, size))
	}
	n, copyErr := io.CopyN(f, r, size)
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		_ = v.fs.Remove(tmp)
		if copyErr != nil {
			log.Warn().Str("module", "app.voicenotes").Int64("got", n).Int64("want", size).Msg("truncated upload discarded")
			return "", fmt.Errorf("%w: got %d of %d bytes", ErrTransferSizeMismatch, n, size)
		}
		return "", fmt.Errorf("close voice note: %w", closeErr)
	}
	if err := v.fs.Rename(tmp, final); err != nil {
		_ = v.fs.Remove(tmp)
		return "", fmt.Errorf("commit voice note: %w", err)
	}
	log.Info().Str("module", "app.voicenotes").Str("name", name).Int64("size", size).Msg("voice note stored")
	return name, nil
}

// Open returns the stored note and its size. Names that could escape the
// storage directory are reported as missing.
func (v *VoiceNotes) Open(name string) (io.ReadCloser, int64, error) {
	if !safeName(name) {
		return nil, 0, ErrNoteNotFound
	}
	f, err := v.fs.Open(path.Join(v.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, 0, ErrNoteNotFound
	}
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, 0, ErrNoteNotFound
	}
	return f, info.Size(), nil
}

func safeName(name string) bool {
	return name != "" &&
		!strings.Contains(name, "..") &&
		!strings.ContainsAny(name, `/\`) &&
		!strings.HasSuffix(name, partialSuffix)
}

// extension keeps a short alphanumeric extension from the client name.
func extension(clientName string) string {
	i := strings.LastIndexByte(clientName, '.')
	if i < 0 || len(clientName)-i > 9 {
		return ""
	}
	ext := strings.ToLower(clientName[i+1:])
	if ext == "" {
		return ""
	}
	for _, c := range ext {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return ""
		}
	}
	return "." + ext
}

func drain(r io.Reader, n int64) error {
	if got, err := io.CopyN(io.Discard, r, n); err != nil {
		return fmt.Errorf("%w: got %d of %d bytes", ErrTransferSizeMismatch, got, n)
	}
	return nil
}
