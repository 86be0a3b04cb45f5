// Package native reads test symbols from ELF and PE binaries carrying DWARF
// debug information.
package native

import (
	"debug/dwarf"
	"debug/elf"
	"debug/pe"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/ianlancetaylor/demangle"

	"gtp/internal/symbols"
)

// peFunctionType is IMAGE_SYM_DTYPE_FUNCTION in the complex type nibble
const peFunctionType = 0x20

// ErrUnsupportedFormat is returned for files that are neither ELF nor PE
var ErrUnsupportedFormat = errors.New("unsupported binary format")

type function struct {
	name    string
	address uint64
}

type lineEntry struct {
	address uint64
	file    string
	line    int
}

// Provider opens symbol stores with the standard library object file readers
type Provider struct{}

// NewProvider creates a new Provider
func NewProvider() *Provider {
	return &Provider{}
}

// Open reads the function symbols and line tables of store.
// The store is either binary itself or a detached debug file of it.
func (p *Provider) Open(binary, store string) (symbols.Handle, error) {
	if store == "" {
		store = binary
	}
	if _, err := os.Stat(store); err != nil {
		return nil, err
	}

	if f, err := elf.Open(store); err == nil {
		h, err := newELFHandle(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%s: %w", store, err)
		}
		return h, nil
	}

	if f, err := pe.Open(store); err == nil {
		h, err := newPEHandle(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%s: %w", store, err)
		}
		return h, nil
	}

	return nil, fmt.Errorf("%s: %w", store, ErrUnsupportedFormat)
}

func newELFHandle(f *elf.File) (*handle, error) {
	data, err := f.DWARF()
	if err != nil {
		return nil, fmt.Errorf("read dwarf: %w", err)
	}
	syms, err := f.Symbols()
	if err != nil {
		return nil, fmt.Errorf("read symbol table: %w", err)
	}

	var funcs []function
	for _, s := range syms {
		if elf.ST_TYPE(s.Info) != elf.STT_FUNC || s.Value == 0 {
			continue
		}
		funcs = append(funcs, function{name: demangled(s.Name), address: s.Value})
	}
	return &handle{closer: f, data: data, functions: funcs}, nil
}

func newPEHandle(f *pe.File) (*handle, error) {
	data, err := f.DWARF()
	if err != nil {
		return nil, fmt.Errorf("read dwarf: %w", err)
	}

	var imageBase uint64
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		imageBase = uint64(oh.ImageBase)
	case *pe.OptionalHeader64:
		imageBase = oh.ImageBase
	}

	var funcs []function
	for _, s := range f.Symbols {
		if s.Type&0xf0 != peFunctionType || s.SectionNumber <= 0 || int(s.SectionNumber) > len(f.Sections) {
			continue
		}
		section := f.Sections[s.SectionNumber-1]
		address := imageBase + uint64(section.VirtualAddress) + uint64(s.Value)
		funcs = append(funcs, function{name: demangled(s.Name), address: address})
	}
	return &handle{closer: f, data: data, functions: funcs}, nil
}

func demangled(name string) string {
	if out, err := demangle.ToString(name, demangle.NoParams); err == nil {
		return out
	}
	// MinGW and Mach-O style leading underscore
	if strings.HasPrefix(name, "__Z") {
		if out, err := demangle.ToString(name[1:], demangle.NoParams); err == nil {
			return out
		}
	}
	return name
}

type handle struct {
	closer    io.Closer
	data      *dwarf.Data
	functions []function
	lines     []lineEntry
	linesRead bool
}

// FindFunctions returns every function whose demangled name matches glob
func (h *handle) FindFunctions(glob string) ([]symbols.SourceLocation, error) {
	if !doublestar.ValidatePattern(glob) {
		return nil, fmt.Errorf("invalid symbol pattern %q", glob)
	}

	var found []symbols.SourceLocation
	for _, fn := range h.functions {
		if ok, _ := doublestar.Match(glob, fn.name); !ok {
			continue
		}
		if err := h.readLines(); err != nil {
			return nil, err
		}
		file, line := h.lookup(fn.address)
		found = append(found, symbols.SourceLocation{Symbol: fn.name, File: file, Line: line})
	}
	return found, nil
}

func (h *handle) Close() error {
	return h.closer.Close()
}

func (h *handle) readLines() error {
	if h.linesRead {
		return nil
	}
	h.linesRead = true

	r := h.data.Reader()
	for {
		entry, err := r.Next()
		if err != nil {
			return fmt.Errorf("read compile units: %w", err)
		}
		if entry == nil {
			break
		}
		if entry.Tag != dwarf.TagCompileUnit {
			r.SkipChildren()
			continue
		}

		lr, err := h.data.LineReader(entry)
		if err != nil {
			return fmt.Errorf("read line table: %w", err)
		}
		r.SkipChildren()
		if lr == nil {
			continue
		}

		var le dwarf.LineEntry
		for {
			if err := lr.Next(&le); err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return fmt.Errorf("read line entry: %w", err)
			}
			if le.EndSequence || le.File == nil {
				continue
			}
			h.lines = append(h.lines, lineEntry{address: le.Address, file: le.File.Name, line: le.Line})
		}
	}

	sort.SliceStable(h.lines, func(i, j int) bool {
		return h.lines[i].address < h.lines[j].address
	})
	return nil
}

func (h *handle) lookup(address uint64) (string, int) {
	i := sort.Search(len(h.lines), func(i int) bool {
		return h.lines[i].address > address
	}) - 1
	if i < 0 {
		return "", 0
	}
	return h.lines[i].file, h.lines[i].line
}
