package metadata

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
)

// Source offers service documents by version
type Source interface {
	// Name identifies the source in logs and document origins
	Name() string
	// Versions lists the API versions available for service
	Versions(ctx context.Context, service string) ([]string, error)
	// Fetch returns the raw document for service at version
	Fetch(ctx context.Context, service, version string) (*ServiceDescription, string, error)
}

// DirSource reads documents named <service>-<version>.{json,yaml,yml} from a filesystem
type DirSource struct {
	name  string
	fsys  fs.FS
	label string
}

// NewDirSource creates a source over a directory on disk
func NewDirSource(dir string) *DirSource {
	return &DirSource{name: dir, fsys: os.DirFS(dir), label: dir}
}

// NewFSSource creates a source over an arbitrary filesystem, such as an embed.FS
func NewFSSource(name string, fsys fs.FS) *DirSource {
	return &DirSource{name: name, fsys: fsys, label: name}
}

// Name returns the directory or label of the source
func (s *DirSource) Name() string {
	return s.name
}

// files maps version to file name for service. JSON wins over YAML when both exist.
func (s *DirSource) files(service string) (map[string]string, error) {
	entries, err := fs.ReadDir(s.fsys, ".")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read metadata directory %s: %w", s.name, err)
	}

	found := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		svc, version, ok := ParseFileName(entry.Name())
		if !ok || svc != service {
			continue
		}
		if existing, ok := found[version]; ok && FormatFromPath(existing) == FormatJSON {
			continue
		}
		found[version] = entry.Name()
	}
	return found, nil
}

// Versions lists versions present on disk
func (s *DirSource) Versions(ctx context.Context, service string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	files, err := s.files(service)
	if err != nil {
		return nil, err
	}

	versions := make([]string, 0, len(files))
	for v := range files {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions, nil
}

// Fetch reads and decodes one document
func (s *DirSource) Fetch(ctx context.Context, service, version string) (*ServiceDescription, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	files, err := s.files(service)
	if err != nil {
		return nil, "", err
	}
	file, ok := files[version]
	if !ok {
		return nil, "", &MetadataNotFoundError{Service: service, APIVersion: version}
	}

	data, err := fs.ReadFile(s.fsys, file)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", file, err)
	}

	desc, err := Decode(data, FormatFromPath(file))
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", file, err)
	}
	return desc, path.Join(s.label, file), nil
}

// ParseFileName splits <service>-<version>.<ext> at the first dash
func ParseFileName(name string) (service, version string, ok bool) {
	base := path.Base(name)
	if FormatFromPath(base) == "" {
		return "", "", false
	}
	base = strings.TrimSuffix(base, path.Ext(base))

	service, version, ok = strings.Cut(base, "-")
	if !ok || service == "" || version == "" {
		return "", "", false
	}
	return service, version, true
}

// MemorySource serves documents registered in process
type MemorySource struct {
	name string
	mu   sync.RWMutex
	docs map[string]map[string]*ServiceDescription
}

// NewMemorySource creates an empty in-memory source
func NewMemorySource(name string) *MemorySource {
	return &MemorySource{
		name: name,
		docs: make(map[string]map[string]*ServiceDescription),
	}
}

// Name returns the label of the source
func (s *MemorySource) Name() string {
	return s.name
}

// Add registers desc under service and version. Fetch hands out copies, so
// later changes to desc are not observed by loaded documents.
func (s *MemorySource) Add(service, version string, desc *ServiceDescription) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.docs[service] == nil {
		s.docs[service] = make(map[string]*ServiceDescription)
	}
	s.docs[service][version] = desc
}

// Remove drops a registered document
func (s *MemorySource) Remove(service, version string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs[service], version)
}

// Versions lists the registered versions for service
func (s *MemorySource) Versions(ctx context.Context, service string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := make([]string, 0, len(s.docs[service]))
	for v := range s.docs[service] {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions, nil
}

// Fetch returns a deep copy of the registered document
func (s *MemorySource) Fetch(ctx context.Context, service, version string) (*ServiceDescription, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	s.mu.RLock()
	desc, ok := s.docs[service][version]
	s.mu.RUnlock()
	if !ok {
		return nil, "", &MetadataNotFoundError{Service: service, APIVersion: version}
	}

	data, err := Encode(desc)
	if err != nil {
		return nil, "", err
	}
	clone, err := Decode(data, FormatJSON)
	if err != nil {
		return nil, "", err
	}
	return clone, "memory:" + s.name, nil
}
