package table

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"rssi-anomaly/internal/models"
)

// Resolve возвращает путь к файлу внутри baseDir. Абсолютные пути и выход
// за пределы baseDir запрещены.
func Resolve(baseDir, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: file name is required", models.ErrValidation)
	}
	clean := filepath.Clean(filepath.FromSlash(name))
	if !filepath.IsLocal(clean) {
		return "", fmt.Errorf("%w: file %q must be a relative path inside the data directory", models.ErrValidation, name)
	}
	return filepath.Join(baseDir, clean), nil
}

// Open открывает файл на чтение; отсутствующий файл дает ErrNotFound
func Open(path, name string) (*os.File, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: file %q does not exist", models.ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open %q: %v", models.ErrInternal, name, cause(err))
	}
	return f, nil
}

// WriteResultsFile атомарно пишет таблицу результатов: сначала во временный
// файл рядом, затем rename.
func WriteResultsFile(path, name string, points []models.ScoredPoint) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create directory for %q: %v", models.ErrInternal, name, cause(err))
	}

	tmp, err := os.CreateTemp(dir, ".predictions-*.csv")
	if err != nil {
		return fmt.Errorf("%w: create %q: %v", models.ErrInternal, name, cause(err))
	}
	defer os.Remove(tmp.Name())

	if err := WriteResults(tmp, points); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write %q: %v", models.ErrInternal, name, cause(err))
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: write %q: %v", models.ErrInternal, name, cause(err))
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: write %q: %v", models.ErrInternal, name, cause(err))
	}
	return nil
}

// cause отбрасывает путь из *fs.PathError, чтобы не раскрывать каталог данных
func cause(err error) error {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return pathErr.Err
	}
	var linkErr *os.LinkError
	if errors.As(err, &linkErr) {
		return linkErr.Err
	}
	return err
}
