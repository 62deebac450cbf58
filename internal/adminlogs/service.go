// Package adminlogs expone los archivos de log del server a los admins
// (listado y tail). Solo lee dentro del directorio configurado.
package adminlogs

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Errores del servicio.
var (
	ErrLogsDisabled = errors.New("adminlogs: file logging is not configured")
	ErrBadFilename  = errors.New("adminlogs: invalid log filename")
	ErrFileNotFound = errors.New("adminlogs: log file not found")
)

const (
	defaultTailLines = 200
	maxTailLines     = 2000
	maxLineBytes     = 64 * 1024
)

// Los archivos siguen el patrón mercador-YYYY-MM-DD.log del logger.
var logFilenameRE = regexp.MustCompile(`^mercador-\d{4}-\d{2}-\d{2}\.log$`)

// FileInfo describe un archivo de log disponible.
type FileInfo struct {
	Name       string    `json:"name"`
	SizeBytes  int64     `json:"size_bytes"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Service lista y lee archivos de log.
type Service struct {
	dir string
}

// New crea el servicio. dir vacío deshabilita la feature.
func New(dir string) *Service {
	return &Service{dir: strings.TrimSpace(dir)}
}

// Enabled indica si hay un directorio de logs configurado.
func (s *Service) Enabled() bool { return s.dir != "" }

// List devuelve los archivos de log, del más reciente al más viejo.
func (s *Service) List() ([]FileInfo, error) {
	if !s.Enabled() {
		return nil, ErrLogsDisabled
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []FileInfo{}, nil
		}
		return nil, fmt.Errorf("adminlogs: reading log dir: %w", err)
	}

	var files []FileInfo
	for _, entry := range entries {
		if entry.IsDir() || !logFilenameRE.MatchString(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Name:       entry.Name(),
			SizeBytes:  info.Size(),
			ModifiedAt: info.ModTime().UTC(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Name > files[j].Name
	})
	return files, nil
}

// Tail devuelve las últimas n líneas de un archivo de log.
// El nombre se valida contra el patrón del logger; cualquier path con
// separadores o ".." se rechaza antes de tocar el filesystem.
func (s *Service) Tail(name string, n int) ([]string, error) {
	if !s.Enabled() {
		return nil, ErrLogsDisabled
	}
	if !validFilename(name) {
		return nil, ErrBadFilename
	}
	if n <= 0 {
		n = defaultTailLines
	}
	if n > maxTailLines {
		n = maxTailLines
	}

	path := filepath.Join(s.dir, name)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("adminlogs: opening log file: %w", err)
	}
	defer f.Close()

	// Ring buffer de n líneas; los logs diarios caben en un scan lineal.
	ring := make([]string, n)
	count := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		ring[count%n] = scanner.Text()
		count++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("adminlogs: scanning log file: %w", err)
	}

	if count < n {
		return ring[:count], nil
	}
	out := make([]string, 0, n)
	for i := count - n; i < count; i++ {
		out = append(out, ring[i%n])
	}
	return out, nil
}

// validFilename acepta solo nombres planos que cuadren con el patrón del
// logger. Nada de separadores, "..", ni rutas absolutas.
func validFilename(name string) bool {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return false
	}
	if filepath.Base(name) != name {
		return false
	}
	return logFilenameRE.MatchString(name)
}
