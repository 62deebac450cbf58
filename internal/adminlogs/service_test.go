package adminlogs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeLog(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestService_Disabled(t *testing.T) {
	s := New("")
	if s.Enabled() {
		t.Fatal("empty dir must disable the service")
	}
	if _, err := s.List(); !errors.Is(err, ErrLogsDisabled) {
		t.Fatalf("List err: got %v, want ErrLogsDisabled", err)
	}
	if _, err := s.Tail("mercador-2026-09-01.log", 10); !errors.Is(err, ErrLogsDisabled) {
		t.Fatalf("Tail err: got %v, want ErrLogsDisabled", err)
	}
}

func TestList_NewestFirstAndFiltered(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "mercador-2026-08-30.log", "a\n")
	writeLog(t, dir, "mercador-2026-09-01.log", "b\n")
	writeLog(t, dir, "mercador-2026-08-31.log", "c\n")
	// Archivos ajenos al patrón no se listan.
	writeLog(t, dir, "notas.txt", "x\n")
	writeLog(t, dir, "mercador.log", "x\n")

	files, err := New(dir).List()
	if err != nil {
		t.Fatalf("List err: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("files: got %d, want 3", len(files))
	}
	want := []string{"mercador-2026-09-01.log", "mercador-2026-08-31.log", "mercador-2026-08-30.log"}
	for i, f := range files {
		if f.Name != want[i] {
			t.Fatalf("order: got %v", files)
		}
	}
}

func TestList_MissingDirIsEmpty(t *testing.T) {
	files, err := New(filepath.Join(t.TempDir(), "no-existe")).List()
	if err != nil {
		t.Fatalf("List err: %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("files: got %d, want 0", len(files))
	}
}

func TestTail_LastNLines(t *testing.T) {
	dir := t.TempDir()
	var sb strings.Builder
	for i := 1; i <= 50; i++ {
		fmt.Fprintf(&sb, "line %d\n", i)
	}
	writeLog(t, dir, "mercador-2026-09-01.log", sb.String())

	lines, err := New(dir).Tail("mercador-2026-09-01.log", 10)
	if err != nil {
		t.Fatalf("Tail err: %v", err)
	}
	if len(lines) != 10 {
		t.Fatalf("lines: got %d, want 10", len(lines))
	}
	if lines[0] != "line 41" || lines[9] != "line 50" {
		t.Fatalf("tail window: %v", lines)
	}
}

func TestTail_FileShorterThanWindow(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "mercador-2026-09-01.log", "uno\ndos\n")

	lines, err := New(dir).Tail("mercador-2026-09-01.log", 10)
	if err != nil {
		t.Fatalf("Tail err: %v", err)
	}
	if len(lines) != 2 || lines[0] != "uno" || lines[1] != "dos" {
		t.Fatalf("lines: %v", lines)
	}
}

func TestTail_RejectsTraversalAndBadNames(t *testing.T) {
	s := New(t.TempDir())

	bad := []string{
		"../etc/passwd",
		"..",
		"/etc/passwd",
		`..\mercador-2026-09-01.log`,
		"subdir/mercador-2026-09-01.log",
		"mercador.log",
		"otro-2026-09-01.log",
		"",
	}
	for _, name := range bad {
		if _, err := s.Tail(name, 10); !errors.Is(err, ErrBadFilename) {
			t.Errorf("Tail(%q): got %v, want ErrBadFilename", name, err)
		}
	}
}

func TestTail_MissingFile(t *testing.T) {
	s := New(t.TempDir())
	if _, err := s.Tail("mercador-2026-01-01.log", 10); !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("err: got %v, want ErrFileNotFound", err)
	}
}
