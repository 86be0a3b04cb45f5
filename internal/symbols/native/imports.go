package native

import (
	"debug/elf"
	"debug/pe"
	"fmt"
	"strings"
)

// ImportReader lists the shared libraries a binary depends on
type ImportReader struct{}

// NewImportReader creates a new ImportReader
func NewImportReader() *ImportReader {
	return &ImportReader{}
}

// ReadImports returns DT_NEEDED entries of ELF files and the imported DLLs of PE files
func (ir *ImportReader) ReadImports(binary string) ([]string, error) {
	if f, err := elf.Open(binary); err == nil {
		defer f.Close()
		libs, err := f.ImportedLibraries()
		if err != nil {
			return nil, fmt.Errorf("%s: read imported libraries: %w", binary, err)
		}
		return libs, nil
	}

	f, err := pe.Open(binary)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", binary, ErrUnsupportedFormat)
	}
	defer f.Close()

	// entries look like "Symbol:library.dll"
	syms, err := f.ImportedSymbols()
	if err != nil {
		return nil, fmt.Errorf("%s: read imported symbols: %w", binary, err)
	}
	seen := make(map[string]bool)
	var libs []string
	for _, s := range syms {
		_, lib, ok := strings.Cut(s, ":")
		if !ok || seen[strings.ToLower(lib)] {
			continue
		}
		seen[strings.ToLower(lib)] = true
		libs = append(libs, lib)
	}
	return libs, nil
}
