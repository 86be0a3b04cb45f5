package native

import (
	"bytes"
	"debug/elf"
	"debug/pe"
	"encoding/hex"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// DefaultDebugRoot is where distributions install detached debug files
const DefaultDebugRoot = "/usr/lib/debug"

// NT_GNU_BUILD_ID
const gnuBuildIDNote = 3

// Locator finds the DWARF carrying file of a binary: the binary itself,
// its .gnu_debuglink target, its build-id file or a sibling debug file.
type Locator struct {
	debugRoot string
	logger    *slog.Logger
}

// NewLocator creates a Locator searching debugRoot for global debug files
func NewLocator(debugRoot string, logger *slog.Logger) *Locator {
	return &Locator{debugRoot: debugRoot, logger: logger}
}

// Locate returns the symbol store of binary. pathExt lists extra directories to look in.
func (l *Locator) Locate(binary, pathExt string) (string, bool) {
	for _, candidate := range l.candidates(binary, pathExt) {
		if candidate == binary {
			return binary, true
		}
		if isFile(candidate) {
			l.logger.Debug("found detached debug symbols", "binary", binary, "store", candidate)
			return candidate, true
		}
	}
	return "", false
}

func (l *Locator) candidates(binary, pathExt string) []string {
	var candidates []string
	dir := filepath.Dir(binary)
	base := filepath.Base(binary)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	if f, err := elf.Open(binary); err == nil {
		defer f.Close()
		if elfHasDebugInfo(f) {
			return []string{binary}
		}
		if link := debugLink(f); link != "" {
			candidates = append(candidates,
				filepath.Join(dir, link),
				filepath.Join(dir, ".debug", link),
				filepath.Join(l.debugRoot, dir, link),
			)
		}
		if id := buildID(f); len(id) > 2 {
			candidates = append(candidates,
				filepath.Join(l.debugRoot, ".build-id", id[:2], id[2:]+".debug"))
		}
	} else if f, err := pe.Open(binary); err == nil {
		defer f.Close()
		if f.Section(".debug_info") != nil {
			return []string{binary}
		}
	}

	siblings := []string{base + ".debug", stem + ".debug", stem + ".pdb"}
	dirs := append([]string{dir}, filepath.SplitList(pathExt)...)
	for _, d := range dirs {
		if d == "" {
			continue
		}
		for _, name := range siblings {
			candidates = append(candidates, filepath.Join(d, name))
		}
	}
	return candidates
}

func elfHasDebugInfo(f *elf.File) bool {
	return f.Section(".debug_info") != nil || f.Section(".zdebug_info") != nil
}

// debugLink returns the file name stored in .gnu_debuglink
func debugLink(f *elf.File) string {
	section := f.Section(".gnu_debuglink")
	if section == nil {
		return ""
	}
	data, err := section.Data()
	if err != nil {
		return ""
	}
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	return string(data)
}

// buildID returns the hex build id from the GNU build-id note
func buildID(f *elf.File) string {
	section := f.Section(".note.gnu.build-id")
	if section == nil {
		return ""
	}
	data, err := section.Data()
	if err != nil || len(data) < 16 {
		return ""
	}

	nameSize := f.ByteOrder.Uint32(data[0:4])
	descSize := f.ByteOrder.Uint32(data[4:8])
	noteType := f.ByteOrder.Uint32(data[8:12])
	if noteType != gnuBuildIDNote {
		return ""
	}
	descStart := 12 + align4(nameSize)
	descEnd := descStart + descSize
	if uint32(len(data)) < descEnd {
		return ""
	}
	return hex.EncodeToString(data[descStart:descEnd])
}

func align4(n uint32) uint32 {
	return (n + 3) &^ 3
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
