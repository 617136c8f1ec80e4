package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Validate checks the local paths the participant will use. Every problem is
// reported, not just the first one.
func (c *Config) Validate() error {
	var problems []string

	if c.CaptureFile != "" {
		path, err := checkCaptureFile(c.CaptureFile)
		if err != nil {
			problems = append(problems, err.Error())
		} else {
			c.CaptureFile = path
		}
	}

	if c.RecordDir != "" {
		if err := checkRecordDir(c.RecordDir); err != nil {
			problems = append(problems, err.Error())
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

// checkCaptureFile resolves path and makes sure it is a readable, non-empty
// regular file.
func checkCaptureFile(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%s: failed to get absolute path: %w", path, err)
	}

	stat, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%s: capture file does not exist", path)
		}
		return "", fmt.Errorf("%s: failed to stat capture file: %w", path, err)
	}
	if stat.IsDir() {
		return "", fmt.Errorf("%s: capture file is a directory", path)
	}
	if stat.Size() == 0 {
		return "", fmt.Errorf("%s: capture file is empty", path)
	}

	f, err := os.Open(abs)
	if err != nil {
		return "", fmt.Errorf("%s: cannot open capture file (check permissions): %w", path, err)
	}
	f.Close()
	return abs, nil
}

// checkRecordDir accepts a missing directory, which is created on first use.
func checkRecordDir(path string) error {
	stat, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: failed to stat record directory: %w", path, err)
	}
	if !stat.IsDir() {
		return fmt.Errorf("%s: record path is not a directory", path)
	}
	return nil
}
