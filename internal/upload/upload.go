package upload

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	ErrTooLarge        = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported file type")
)

// AllowedExtensions допустимые расширения: скриншоты и голосовые заметки
var AllowedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
	".mp3":  true,
	".wav":  true,
	".ogg":  true,
	".m4a":  true,
	".webm": true,
}

// Store сохраняет загруженные файлы в каталог на диске
type Store struct {
	dir      string
	maxBytes int64
	urlBase  string

	mu   sync.Mutex
	mono io.Reader
}

// NewStore создает каталог, если его нет. urlBase - префикс публичного URL, например "/uploads/".
func NewStore(dir string, maxBytes int64, urlBase string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}

	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	if !strings.HasSuffix(urlBase, "/") {
		urlBase += "/"
	}

	return &Store{
		dir:      dir,
		maxBytes: maxBytes,
		urlBase:  urlBase,
		mono:     ulid.Monotonic(rand.New(rand.NewSource(seed)), 0),
	}, nil
}

// Dir возвращает каталог хранения
func (s *Store) Dir() string {
	return s.dir
}

// MaxBytes возвращает предельный размер файла
func (s *Store) MaxBytes() int64 {
	return s.maxBytes
}

// Save копирует содержимое r в новый файл и возвращает его публичный URL.
// Имя файла - ULID с исходным расширением.
func (s *Store) Save(r io.Reader, originalName string) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if !AllowedExtensions[ext] {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}

	name := s.newID() + ext
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", err
	}

	// +1 байт, чтобы отличить файл ровно maxBytes от большего
	n, err := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}

	if err == nil && n > s.maxBytes {
		err = ErrTooLarge
	}

	if err != nil {
		_ = os.Remove(path)
		return "", err
	}

	return s.urlBase + name, nil
}

func (s *Store) newID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now().UTC()), s.mono).String()
}
