package logwatch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// naiveLastLines is the reference implementation: split the whole file
// and keep the trailing n lines with their terminators.
func naiveLastLines(data string, n int) string {
	if n <= 0 {
		return ""
	}
	trimmed := strings.TrimSuffix(data, "\n")
	if trimmed == "" {
		return ""
	}
	lines := strings.Split(trimmed, "\n")
	if n < len(lines) {
		lines = lines[len(lines)-n:]
	}
	out := strings.Join(lines, "\n")
	if strings.HasSuffix(data, "\n") {
		out += "\n"
	}
	return out
}

func writeTemp(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Client.txt")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write test log: %v", err)
	}
	return path
}

func TestReadLastLines_NonPositiveN(t *testing.T) {
	path := writeTemp(t, "one\ntwo\nthree\n")
	for _, n := range []int{0, -1, -100} {
		got, err := ReadLastLines(path, n)
		if err != nil {
			t.Fatalf("ReadLastLines(n=%d) error = %v", n, err)
		}
		if got != "" {
			t.Errorf("ReadLastLines(n=%d) = %q, want empty", n, got)
		}
	}
}

func TestReadLastLines_FileShorterThanN(t *testing.T) {
	data := "only\ntwo lines\n"
	path := writeTemp(t, data)

	got, err := ReadLastLines(path, 50)
	if err != nil {
		t.Fatalf("ReadLastLines() error = %v", err)
	}
	if got != data {
		t.Errorf("ReadLastLines() = %q, want whole file %q", got, data)
	}
}

func TestReadLastLines_EmptyFile(t *testing.T) {
	path := writeTemp(t, "")
	got, err := ReadLastLines(path, 10)
	if err != nil {
		t.Fatalf("ReadLastLines() error = %v", err)
	}
	if got != "" {
		t.Errorf("ReadLastLines() = %q, want empty", got)
	}
}

func TestReadLastLines_MissingFile(t *testing.T) {
	_, err := ReadLastLines(filepath.Join(t.TempDir(), "absent.txt"), 10)
	if err == nil {
		t.Error("ReadLastLines() on missing file expected error, got nil")
	}
}

func TestReadLastLines_MatchesNaiveSplit(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"TrailingNewline", "a\nb\nc\nd\ne\n"},
		{"NoTrailingNewline", "a\nb\nc\nd\ne"},
		{"SingleLine", "lonely\n"},
		{"LongLines", strings.Repeat("x", 3000) + "\n" + strings.Repeat("y", 1500) + "\nz\n"},
		{"BlankLines", "a\n\n\nb\n\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeTemp(t, tc.data)
			total := strings.Count(strings.TrimSuffix(tc.data, "\n"), "\n") + 1

			for n := 1; n <= total+2; n++ {
				got, err := ReadLastLines(path, n)
				if err != nil {
					t.Fatalf("ReadLastLines(n=%d) error = %v", n, err)
				}
				want := naiveLastLines(tc.data, n)
				if got != want {
					t.Errorf("ReadLastLines(n=%d) = %q, want %q", n, got, want)
				}
			}
		})
	}
}

func TestReadLastLines_ChunkBoundaryOnNewline(t *testing.T) {
	// Build a file whose newline falls exactly on the backward chunk
	// boundary: the last chunk read covers exactly tailChunkSize bytes
	// and its first byte is the newline terminating the prior line.
	prefix := strings.Repeat("p", 100) // forces a second chunk
	tail := strings.Repeat("q", tailChunkSize-1)
	data := prefix + "\n" + tail + "\n"
	path := writeTemp(t, data)

	got, err := ReadLastLines(path, 1)
	if err != nil {
		t.Fatalf("ReadLastLines() error = %v", err)
	}
	want := tail + "\n"
	if got != want {
		t.Errorf("boundary read = %d bytes, want %d bytes", len(got), len(want))
	}

	got, err = ReadLastLines(path, 2)
	if err != nil {
		t.Fatalf("ReadLastLines() error = %v", err)
	}
	if got != data {
		t.Errorf("two-line read came back %d bytes, want whole file (%d bytes)", len(got), len(data))
	}
}

func TestReadLastLines_LargeFileBounded(t *testing.T) {
	// Correctness on a file much larger than the chunk size.
	var sb strings.Builder
	for i := 0; i < 5000; i++ {
		fmt.Fprintf(&sb, "2024/08/30 12:00:%02d %d [INFO Client 1234] line body\n", i%60, i)
	}
	data := sb.String()
	path := writeTemp(t, data)

	got, err := ReadLastLines(path, 10)
	if err != nil {
		t.Fatalf("ReadLastLines() error = %v", err)
	}
	want := naiveLastLines(data, 10)
	if got != want {
		t.Errorf("ReadLastLines() mismatch on large file:\ngot  %q\nwant %q", got, want)
	}
	if strings.Count(got, "\n") != 10 {
		t.Errorf("trailing newline count = %d, want 10", strings.Count(got, "\n"))
	}
}
