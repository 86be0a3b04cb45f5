// Package symbols maps test body signatures to source locations and traits
// by reading the debug information of test binaries.
package symbols

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"gtp/internal/config"
	"gtp/internal/domain"
	"gtp/internal/signature"
)

// SourceLocation is a function symbol together with where it was defined
type SourceLocation struct {
	Symbol string
	File   string
	Line   int
}

// Locator finds the debug symbol store paired with a binary
type Locator interface {
	Locate(binary, pathExt string) (string, bool)
}

// Provider opens the symbol store of a binary
type Provider interface {
	Open(binary, store string) (Handle, error)
}

// Handle queries an opened symbol store. It must be closed.
type Handle interface {
	// FindFunctions returns the function symbols matching a glob
	FindFunctions(glob string) ([]SourceLocation, error)
	Close() error
}

// ImportReader lists the modules a binary imports
type ImportReader interface {
	ReadImports(binary string) ([]string, error)
}

// Signatures is a set of normalized test body signatures. A nil set accepts every signature.
type Signatures map[string]struct{}

// NewSignatures creates a set from the given signatures
func NewSignatures(sigs ...string) Signatures {
	s := make(Signatures, len(sigs))
	for _, sig := range sigs {
		s[sig] = struct{}{}
	}
	return s
}

// Contains reports whether sig is accepted by the set
func (s Signatures) Contains(sig string) bool {
	if s == nil {
		return true
	}
	_, ok := s[sig]
	return ok
}

// Locations maps normalized signatures to the location they were resolved from
type Locations map[string]domain.TestCaseLocation

// Merge copies every entry of src whose key is not yet in dst. The first writer wins.
func Merge(dst, src Locations) Locations {
	if dst == nil {
		dst = make(Locations, len(src))
	}
	for k, v := range src {
		if _, exists := dst[k]; !exists {
			dst[k] = v
		}
	}
	return dst
}

// FailureReason tells why a binary produced no locations
type FailureReason int

const (
	FailureNone FailureReason = iota
	FailureNoSymbolStore
	FailureProvider
)

func (r FailureReason) String() string {
	switch r {
	case FailureNoSymbolStore:
		return "no symbol store"
	case FailureProvider:
		return "provider error"
	}
	return "none"
}

// Failure describes a per-binary resolution failure
type Failure struct {
	Reason FailureReason
	Err    error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return f.Reason.String()
	}
	return fmt.Sprintf("%s: %v", f.Reason, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// BinaryResult is the outcome of resolving one binary against one symbol store
type BinaryResult struct {
	Binary    string
	Store     string
	Locations Locations
	Failure   *Failure
}

// Resolver resolves test body signatures through a Provider, falling back to
// additional symbol files and imported modules
type Resolver struct {
	locator  Locator
	provider Provider
	imports  ImportReader
	logger   *slog.Logger
}

// NewResolver creates a Resolver. imports may be nil, which disables the import fallback.
func NewResolver(locator Locator, provider Provider, imports ImportReader, logger *slog.Logger) *Resolver {
	return &Resolver{
		locator:  locator,
		provider: provider,
		imports:  imports,
		logger:   logger,
	}
}

// Resolve returns the locations of all test bodies of binary whose normalized
// signature is in sigs. When the binary itself yields nothing, the files
// matching auxPatterns and the imported modules found beside the binary are searched.
func (r *Resolver) Resolve(binary string, sigs Signatures, symbolFilter string, auxPatterns []string, pathExt string) Locations {
	result := r.ResolveBinary(binary, sigs, symbolFilter, pathExt)
	if len(result.Locations) > 0 {
		return result.Locations
	}
	return r.ResolveFallbacks(binary, sigs, symbolFilter, auxPatterns, pathExt)
}

// ResolveFallbacks searches the files matching auxPatterns, then the modules
// imported by binary. Earlier results win.
func (r *Resolver) ResolveFallbacks(binary string, sigs Signatures, symbolFilter string, auxPatterns []string, pathExt string) Locations {
	found := make(Locations)
	Merge(found, r.resolveAuxiliary(binary, sigs, symbolFilter, auxPatterns))
	Merge(found, r.resolveImports(binary, sigs, symbolFilter, pathExt))
	return found
}

// ResolveBinary locates the symbol store of binary and resolves against it
func (r *Resolver) ResolveBinary(binary string, sigs Signatures, symbolFilter, pathExt string) BinaryResult {
	store, ok := r.locator.Locate(binary, pathExt)
	if !ok {
		r.logger.Warn("couldn't find the debug symbols of binary, source locations will be missing",
			"binary", binary)
		return BinaryResult{
			Binary:    binary,
			Locations: Locations{},
			Failure:   &Failure{Reason: FailureNoSymbolStore},
		}
	}
	return r.ResolveStore(binary, store, sigs, symbolFilter)
}

// ResolveStore resolves binary against an explicitly given symbol store
func (r *Resolver) ResolveStore(binary, store string, sigs Signatures, symbolFilter string) BinaryResult {
	result := BinaryResult{Binary: binary, Store: store, Locations: Locations{}}

	locations, err := r.findLocations(binary, store, sigs, symbolFilter)
	if err != nil {
		r.logger.Debug("failed resolving test locations and traits",
			"binary", binary, "store", store, "error", err)
		result.Failure = &Failure{Reason: FailureProvider, Err: err}
		return result
	}
	result.Locations = locations
	return result
}

func (r *Resolver) findLocations(binary, store string, sigs Signatures, symbolFilter string) (_ Locations, err error) {
	handle, err := r.provider.Open(binary, store)
	if err != nil {
		return nil, fmt.Errorf("open symbols: %w", err)
	}
	defer func() {
		err = errors.Join(err, handle.Close())
	}()

	testBodies, err := handle.FindFunctions(symbolFilter)
	if err != nil {
		return nil, fmt.Errorf("find test bodies: %w", err)
	}
	traitSymbols, err := handle.FindFunctions("*" + config.TraitAppendix)
	if err != nil {
		return nil, fmt.Errorf("find trait symbols: %w", err)
	}
	r.logger.Debug("found symbols", "binary", binary,
		"test_bodies", len(testBodies), "traits", len(traitSymbols))

	traitsByClass := groupTraits(traitSymbols)

	locations := make(Locations)
	for _, body := range testBodies {
		key := signature.Normalize(body.Symbol)
		if !sigs.Contains(key) {
			continue
		}
		if _, exists := locations[key]; exists {
			continue
		}
		class := strings.TrimSuffix(body.Symbol, config.TestBodySignature)
		locations[key] = domain.TestCaseLocation{
			Symbol:     body.Symbol,
			SourceFile: body.File,
			Line:       body.Line,
			Traits:     traitsByClass[class],
		}
	}
	return locations, nil
}

func (r *Resolver) resolveAuxiliary(binary string, sigs Signatures, symbolFilter string, patterns []string) Locations {
	found := make(Locations)
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			r.logger.Debug("invalid additional symbol file pattern", "pattern", pattern, "error", err)
			continue
		}

		var considered []string
		anyFound := false
		for _, candidate := range matches {
			info, err := os.Stat(candidate)
			if err != nil || info.IsDir() {
				continue
			}
			considered = append(considered, candidate)

			result := r.ResolveStore(binary, candidate, sigs, symbolFilter)
			if len(result.Locations) > 0 {
				anyFound = true
			}
			Merge(found, result.Locations)
		}

		if !anyFound {
			if len(considered) == 0 {
				r.logger.Debug("no test locations for additional symbol pattern, no files matched",
					"pattern", pattern)
			} else {
				r.logger.Debug("no test locations for additional symbol pattern",
					"pattern", pattern, "considered", strings.Join(considered, ", "))
			}
		}
	}
	return found
}

func (r *Resolver) resolveImports(binary string, sigs Signatures, symbolFilter, pathExt string) Locations {
	found := make(Locations)
	if r.imports == nil {
		return found
	}

	imports, err := r.imports.ReadImports(binary)
	if err != nil {
		r.logger.Debug("failed reading imports", "binary", binary, "error", err)
		return found
	}

	dir := filepath.Dir(binary)
	for _, module := range imports {
		imported := filepath.Join(dir, module)
		if info, err := os.Stat(imported); err != nil || info.IsDir() {
			continue
		}
		Merge(found, r.ResolveBinary(imported, sigs, symbolFilter, pathExt).Locations)
	}
	return found
}

// groupTraits indexes "Class::Name__GTA__Value_GTA_TRAIT" symbols by class
func groupTraits(symbols []SourceLocation) map[string][]domain.Trait {
	traits := make(map[string][]domain.Trait)
	for _, s := range symbols {
		class, trait, ok := parseTraitSymbol(s.Symbol)
		if !ok {
			continue
		}
		traits[class] = append(traits[class], trait)
	}
	return traits
}

func parseTraitSymbol(symbol string) (string, domain.Trait, bool) {
	body, ok := strings.CutSuffix(symbol, config.TraitAppendix)
	if !ok {
		return "", domain.Trait{}, false
	}
	sep := strings.LastIndex(body, "::")
	if sep < 0 {
		return "", domain.Trait{}, false
	}
	name, value, ok := strings.Cut(body[sep+2:], config.TraitSeparator)
	if !ok || name == "" {
		return "", domain.Trait{}, false
	}
	return body[:sep], domain.Trait{Name: name, Value: value}, true
}
