// Package logwatch reads the tail of the game's client log and extracts
// divination card draw events from it.
package logwatch

import (
	"fmt"
	"os"
)

// tailChunkSize is how many bytes each backward seek reads. Small enough
// that short tails never read much more than they need, large enough to
// cover typical log lines in one chunk.
const tailChunkSize = 512

// ReadLastLines returns the last n lines of the file at path, including
// their newline terminators, byte-identical to taking the trailing n
// lines of a full read. The cost depends on the length of those lines,
// not on the total file size: the file is read backward in fixed-size
// chunks until n newlines have been seen.
//
// n <= 0 returns an empty string. A file with fewer than n lines is
// returned whole.
func ReadLastLines(path string, n int) (string, error) {
	if n <= 0 {
		return "", nil
	}

	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open log file: %w", err)
	}
	defer func() {
		_ = file.Close() //nolint:errcheck // read-only handle
	}()

	stat, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("stat log file: %w", err)
	}

	size := stat.Size()
	if size == 0 {
		return "", nil
	}

	var assembled []byte
	count := 0
	cut := int64(-1) // absolute offset of the first byte to keep
	offset := size

	for offset > 0 && cut < 0 {
		chunkLen := int64(tailChunkSize)
		if offset < chunkLen {
			chunkLen = offset
		}
		offset -= chunkLen

		chunk := make([]byte, chunkLen)
		if _, err := file.ReadAt(chunk, offset); err != nil {
			return "", fmt.Errorf("read log chunk at %d: %w", offset, err)
		}
		assembled = append(chunk, assembled...)

		for i := chunkLen - 1; i >= 0; i-- {
			if chunk[i] != '\n' {
				continue
			}
			abs := offset + i
			if abs == size-1 {
				// Terminator of the final line, not a boundary
				// in front of it.
				continue
			}
			count++
			if count == n {
				cut = abs + 1
				break
			}
		}
	}

	if cut < 0 {
		cut = 0
	}
	return string(assembled[cut-offset:]), nil
}
