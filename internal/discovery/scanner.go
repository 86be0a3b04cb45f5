package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
)

// Scanner scans for test executables in a directory
type Scanner struct {
	skipDirs map[string]bool
	pattern  *regexp.Regexp
}

// NewScanner creates a new Scanner matching executable file names against
// discoveryRegex and skipping the given directories
func NewScanner(skipDirs []string, discoveryRegex string) (*Scanner, error) {
	pattern, err := regexp.Compile(discoveryRegex)
	if err != nil {
		return nil, fmt.Errorf("invalid test discovery regex %q: %w", discoveryRegex, err)
	}

	skipMap := make(map[string]bool)
	for _, dir := range skipDirs {
		skipMap[dir] = true
	}
	return &Scanner{skipDirs: skipMap, pattern: pattern}, nil
}

// Scan finds all test executables in the given root directory
func (s *Scanner) Scan(root string) ([]string, error) {
	var executables []string

	// Clean and validate the root path
	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("test path does not exist: %s", root)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("test path is not a directory: %s", root)
	}

	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			name := d.Name()
			// Skip hidden directories (starting with .)
			if path != root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}

			if s.skipDirs[name] {
				return filepath.SkipDir
			}

			return nil
		}

		if !s.pattern.MatchString(d.Name()) {
			return nil
		}

		info, err := d.Info()
		if err != nil || !info.Mode().IsRegular() || !isExecutable(info) {
			return nil
		}
		executables = append(executables, path)
		return nil
	})

	return executables, err
}

// Accepts reports whether path is a test executable by name and mode
func (s *Scanner) Accepts(path string) bool {
	if !s.pattern.MatchString(filepath.Base(path)) {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && isExecutable(info)
}

func isExecutable(info os.FileInfo) bool {
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
