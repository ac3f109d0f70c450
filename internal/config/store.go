package config

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed params/*.yaml
var paramFiles embed.FS

//go:embed schema.cue
var schemaSrc string

// Store resolves a RuntimeConfig per protocol version.
type Store struct {
	versions []ProtocolVersion // ascending
	configs  map[ProtocolVersion]*RuntimeConfig
}

var defaultStore = sync.OnceValues(func() (*Store, error) {
	return LoadStore(paramFiles, "params")
})

// Default returns the store built from the embedded parameter files.
// The embedded files are fixed at build time, so a failure is a programming
// error and panics.
func Default() *Store {
	s, err := defaultStore()
	if err != nil {
		panic(fmt.Sprintf("embedded runtime parameters are invalid: %v", err))
	}
	return s
}

// LoadStore reads <version>.yaml files from dir in fsys. The lowest version is
// decoded as a full parameter set, each later file as a diff over the
// previous version.
func LoadStore(fsys fs.FS, dir string) (*Store, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read parameter dir: %w", err)
	}

	type paramFile struct {
		version ProtocolVersion
		name    string
	}
	var files []paramFile
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".yaml" {
			continue
		}
		n, err := strconv.ParseUint(strings.TrimSuffix(e.Name(), ".yaml"), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("parameter file %q: name must be a protocol version: %w", e.Name(), err)
		}
		files = append(files, paramFile{version: ProtocolVersion(n), name: e.Name()})
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no parameter files in %s", dir)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].version < files[j].version })

	schema, err := compileSchema()
	if err != nil {
		return nil, err
	}

	s := &Store{configs: make(map[ProtocolVersion]*RuntimeConfig, len(files))}
	var current RuntimeConfig
	for _, f := range files {
		data, err := fs.ReadFile(fsys, path.Join(dir, f.name))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f.name, err)
		}

		// Decoding into the previous value applies the file as a diff.
		next := current
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&next); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", f.name, err)
		}
		next.Version = f.version

		if err := validate(schema, &next); err != nil {
			return nil, fmt.Errorf("%s: %w", f.name, err)
		}

		cfg := next
		s.configs[f.version] = &cfg
		s.versions = append(s.versions, f.version)
		current = next
	}

	return s, nil
}

// Config returns the configuration for v: the greatest parameter version not
// above v, or the lowest one when v predates every file.
func (s *Store) Config(v ProtocolVersion) *RuntimeConfig {
	idx := sort.Search(len(s.versions), func(i int) bool { return s.versions[i] > v })
	if idx == 0 {
		return s.configs[s.versions[0]]
	}
	return s.configs[s.versions[idx-1]]
}

// Versions lists the versions that have their own parameter file.
func (s *Store) Versions() []ProtocolVersion {
	return append([]ProtocolVersion{}, s.versions...)
}

func compileSchema() (cue.Value, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(schemaSrc, cue.Filename("schema.cue"))
	if err := v.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("failed to compile parameter schema: %w", err)
	}
	def := v.LookupPath(cue.ParsePath("#RuntimeConfig"))
	if !def.Exists() {
		return cue.Value{}, fmt.Errorf("parameter schema has no #RuntimeConfig")
	}
	return def, nil
}

func validate(schema cue.Value, cfg *RuntimeConfig) error {
	v := schema.Context().Encode(cfg)
	if err := v.Err(); err != nil {
		return fmt.Errorf("failed to encode parameters: %w", err)
	}
	if err := schema.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("parameters violate schema: %w", err)
	}
	return nil
}
