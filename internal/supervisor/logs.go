package supervisor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"fg/internal/failure"
	"fg/internal/paths"
)

// LogPath returns the output log of pid, whether or not it is still running.
func (s *Supervisor) LogPath(pid int) (string, error) {
	rec, ok, err := s.store.Get(pid)
	if err != nil {
		return "", err
	}
	if ok && rec.LogFile != "" {
		return rec.LogFile, nil
	}
	path := s.layout.LogFile(pid)
	exists, err := paths.FileExists(path)
	if err != nil {
		return "", fmt.Errorf("inspect log: %w", err)
	}
	if !exists {
		return "", failure.New(failure.InvalidArgument, "no log recorded for pid %d", pid)
	}
	return path, nil
}

// Tail returns up to n trailing lines of the file at path. n <= 0 returns
// every line.
func Tail(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	var (
		ring  []string
		start int
	)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if n <= 0 || len(ring) < n {
			ring = append(ring, line)
			continue
		}
		ring[start] = line
		start = (start + 1) % n
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	if start == 0 {
		return ring, nil
	}
	return append(ring[start:], ring[:start]...), nil
}

// Follow copies data appended to path into w until ctx is done. Reading
// starts at the current end of the file.
func Follow(ctx context.Context, path string, w io.Writer, poll time.Duration) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer f.Close()
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek log: %w", err)
	}
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	buf := make([]byte, 32*1024)
	for {
		for {
			n, err := f.Read(buf)
			if n > 0 {
				if _, werr := w.Write(buf[:n]); werr != nil {
					return werr
				}
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return fmt.Errorf("read log: %w", err)
			}
			if n == 0 {
				break
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
