package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/hpyharness/pkg/domain"
	"github.com/aretw0/hpyharness/pkg/registry"
)

// Artifact is the handle the default opener attaches to a module.
type Artifact struct {
	// Path is the binary that was opened (the stub target for stub loaders).
	Path   string
	Size   int64
	SHA256 string
}

// Opener turns a located module into a host handle.
type Opener func(ctx context.Context, spec domain.ModuleSpec) (any, error)

// Host implements ports.Host in memory.
// Modules are located on the search path as "<name>.py" stub loaders or
// "<name>.so" / "<name>.<tag>.so" binaries.
// Safe for concurrent use, although loads under one name must be serialized by the caller.
type Host struct {
	mu      sync.Mutex
	modules *registry.Registry
	path    []string
	misses  map[string]bool
	open    Opener
	caps    domain.Capabilities
}

// HostOption configures the host.
type HostOption func(*Host)

// WithOpener replaces the default artifact opener.
func WithOpener(open Opener) HostOption {
	return func(h *Host) {
		h.open = open
	}
}

// WithSearchPath seeds the search path, front entry first.
func WithSearchPath(dirs ...string) HostOption {
	return func(h *Host) {
		h.path = append([]string(nil), dirs...)
	}
}

// WithRegistry shares a module registry with other components.
func WithRegistry(r *registry.Registry) HostOption {
	return func(h *Host) {
		h.modules = r
	}
}

// NewHost creates an empty in-memory host.
func NewHost(opts ...HostOption) *Host {
	_, exeErr := os.Executable()
	h := &Host{
		modules: registry.NewRegistry(),
		misses:  make(map[string]bool),
		open:    OpenArtifact,
		caps: domain.Capabilities{
			Refcounts:       false,
			OrdinaryImports: true,
			Executable:      exeErr == nil,
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Modules exposes the underlying registry.
func (h *Host) Modules() *registry.Registry { return h.modules }

// Capabilities describes this host.
func (h *Host) Capabilities() domain.Capabilities { return h.caps }

// LookupModule returns the module registered under name.
func (h *Host) LookupModule(name string) (*domain.Module, bool) {
	return h.modules.Lookup(name)
}

// RemoveModule drops name from the registry.
func (h *Host) RemoveModule(name string) {
	h.modules.Remove(name)
}

// SearchPath returns a copy of the search path.
func (h *Host) SearchPath() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.path...)
}

// PushPath inserts dir at the front of the search path.
func (h *Host) PushPath(dir string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.path = append([]string{dir}, h.path...)
}

// PopPath removes the front entry.
func (h *Host) PopPath() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.path) == 0 {
		return "", errors.New("search path is empty")
	}
	top := h.path[0]
	h.path = h.path[1:]
	return top, nil
}

// RemovePath removes the first occurrence of dir.
func (h *Host) RemovePath(dir string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, p := range h.path {
		if p == dir {
			h.path = append(h.path[:i:i], h.path[i+1:]...)
			return true
		}
	}
	return false
}

// InvalidateCaches forgets previous failed lookups.
func (h *Host) InvalidateCaches() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.misses = make(map[string]bool)
}

// Import returns the registered module or locates, opens and registers it.
func (h *Host) Import(ctx context.Context, name string) (*domain.Module, error) {
	if mod, ok := h.modules.Lookup(name); ok {
		return mod, nil
	}

	h.mu.Lock()
	if h.misses[name] {
		h.mu.Unlock()
		return nil, fmt.Errorf("import %q: %w (cached)", name, domain.ErrModuleNotFound)
	}
	path := append([]string(nil), h.path...)
	h.mu.Unlock()

	spec, found, err := find(name, path)
	if err != nil {
		return nil, fmt.Errorf("import %q: %w", name, err)
	}
	if !found {
		h.mu.Lock()
		h.misses[name] = true
		h.mu.Unlock()
		return nil, fmt.Errorf("import %q: %w on search path %v", name, domain.ErrModuleNotFound, path)
	}

	handle, err := h.open(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("import %q from %s: %w", name, spec.Origin, err)
	}
	mod := &domain.Module{Name: name, Spec: spec, Handle: handle}
	if err := h.modules.Register(mod); err != nil {
		return nil, err
	}
	return mod, nil
}

// find scans dirs in order. Within one directory a stub loader wins over binaries.
func find(name string, dirs []string) (domain.ModuleSpec, bool, error) {
	for _, dir := range dirs {
		stub := filepath.Join(dir, name+".py")
		if fileExists(stub) {
			return domain.ModuleSpec{Name: name, Origin: stub}, true, nil
		}
		matches, err := filepath.Glob(filepath.Join(dir, name+".*so"))
		if err != nil {
			return domain.ModuleSpec{}, false, err
		}
		var bins []string
		for _, m := range matches {
			base := filepath.Base(m)
			if base == name+".so" || (strings.HasPrefix(base, name+".") && strings.HasSuffix(base, ".so")) {
				bins = append(bins, m)
			}
		}
		if len(bins) > 0 {
			sort.Strings(bins)
			return domain.ModuleSpec{Name: name, Origin: bins[0]}, true, nil
		}
	}
	return domain.ModuleSpec{}, false, nil
}

// OpenArtifact fingerprints the module binary. Stub loaders are followed to
// the binary they name, relative to the stub's directory.
func OpenArtifact(ctx context.Context, spec domain.ModuleSpec) (any, error) {
	bin := spec.Origin
	if strings.HasSuffix(bin, ".py") {
		src, err := os.ReadFile(bin)
		if err != nil {
			return nil, err
		}
		target, ok := domain.StubTarget(string(src))
		if !ok {
			return nil, fmt.Errorf("%s is not a stub loader", bin)
		}
		bin = filepath.Join(filepath.Dir(bin), target)
	}

	data, err := os.ReadFile(bin)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)
	return Artifact{
		Path:   bin,
		Size:   int64(len(data)),
		SHA256: hex.EncodeToString(sum[:]),
	}, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
