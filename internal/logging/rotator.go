package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// FileRotator is an io.Writer that rotates the underlying log file by size
// and cleans up rotated files by count and age.
type FileRotator struct {
	config *Config
	mu     sync.Mutex
	file   *os.File
	size   int64
}

// NewFileRotator creates a rotator writing to cfg.FilePath.
func NewFileRotator(cfg *Config) (*FileRotator, error) {
	r := &FileRotator{config: cfg}

	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	if err := r.openFile(); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *FileRotator) openFile() error {
	file, err := os.OpenFile(r.config.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat log file: %w", err)
	}

	r.file = file
	r.size = info.Size()
	return nil
}

// Write implements io.Writer.
func (r *FileRotator) Write(p []byte) (n int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		if err := r.openFile(); err != nil {
			return 0, err
		}
	}

	if r.size+int64(len(p)) > r.config.MaxSize*1024*1024 {
		if err := r.rotate(); err != nil {
			return 0, fmt.Errorf("rotate log: %w", err)
		}
	}

	n, err = r.file.Write(p)
	r.size += int64(n)
	return n, err
}

// rotate renames the current file with a timestamp suffix and reopens.
func (r *FileRotator) rotate() error {
	if r.file != nil {
		if err := r.file.Close(); err != nil {
			return fmt.Errorf("close current log: %w", err)
		}
		r.file = nil
	}

	ext := filepath.Ext(r.config.FilePath)
	stem := strings.TrimSuffix(r.config.FilePath, ext)
	rotated := fmt.Sprintf("%s-%s%s", stem, time.Now().Format("20060102-150405"), ext)

	if err := os.Rename(r.config.FilePath, rotated); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("rename log file: %w", err)
	}

	if err := r.openFile(); err != nil {
		return err
	}

	go r.cleanup()
	return nil
}

// cleanup removes rotated files beyond MaxBackups or older than MaxAge days.
func (r *FileRotator) cleanup() {
	ext := filepath.Ext(r.config.FilePath)
	stem := strings.TrimSuffix(r.config.FilePath, ext)

	matches, err := filepath.Glob(stem + "-*" + ext)
	if err != nil {
		return
	}

	type rotatedFile struct {
		path    string
		modTime time.Time
	}
	files := make([]rotatedFile, 0, len(matches))
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil {
			continue
		}
		files = append(files, rotatedFile{path: match, modTime: info.ModTime()})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.Before(files[j].modTime)
	})

	for len(files) > r.config.MaxBackups {
		os.Remove(files[0].path)
		files = files[1:]
	}

	cutoff := time.Now().AddDate(0, 0, -r.config.MaxAge)
	for _, f := range files {
		if f.modTime.Before(cutoff) {
			os.Remove(f.path)
		}
	}
}

// Close closes the underlying file.
func (r *FileRotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file != nil {
		err := r.file.Close()
		r.file = nil
		return err
	}
	return nil
}
