package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/turtacn/ExportReady-Intelligence/internal/domain/export"
)

// IndustryGroup lists industries that are related to one another. Every
// pair within a group is adjacent in both directions.
type IndustryGroup struct {
	Industries []string `mapstructure:"industries" yaml:"industries"`
}

// RegionMarkets maps a region name to the markets it contains.
type RegionMarkets struct {
	Region  string   `mapstructure:"region" yaml:"region"`
	Markets []string `mapstructure:"markets" yaml:"markets"`
}

// LookupTables is the versioned reference data used when comparing
// businesses and deriving patterns. Lists are used instead of YAML maps so
// that names keep their original case through viper.
type LookupTables struct {
	Version           string          `mapstructure:"version" yaml:"version"`
	IndustryAdjacency []IndustryGroup `mapstructure:"industry_adjacency" yaml:"industry_adjacency"`
	MarketRegions     []RegionMarkets `mapstructure:"market_regions" yaml:"market_regions"`

	adjacency map[string]map[string]struct{}
	regions   map[string]string
}

//go:embed lookup_tables.yaml
var builtinTablesYAML []byte

// DefaultLookupTables returns the built-in tables decoded from the embedded
// lookup_tables.yaml. It panics if that file is malformed.
func DefaultLookupTables() *LookupTables {
	t, err := ParseLookupTables(builtinTablesYAML)
	if err != nil {
		panic(fmt.Sprintf("config: embedded lookup tables: %v", err))
	}
	return t
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// index builds the lookup maps. It must run before Related or Region.
func (t *LookupTables) index() {
	t.adjacency = make(map[string]map[string]struct{})
	for _, g := range t.IndustryAdjacency {
		for _, a := range g.Industries {
			ka := normalizeKey(a)
			for _, b := range g.Industries {
				kb := normalizeKey(b)
				if ka == kb {
					continue
				}
				if t.adjacency[ka] == nil {
					t.adjacency[ka] = make(map[string]struct{})
				}
				t.adjacency[ka][kb] = struct{}{}
			}
		}
	}
	t.regions = make(map[string]string)
	for _, rm := range t.MarketRegions {
		for _, m := range rm.Markets {
			t.regions[normalizeKey(m)] = rm.Region
		}
	}
}

// Validate rejects tables that could not have been intended.
func (t *LookupTables) Validate() error {
	if strings.TrimSpace(t.Version) == "" {
		return fmt.Errorf("config: lookup tables version is required")
	}
	seen := make(map[string]string)
	for _, rm := range t.MarketRegions {
		if strings.TrimSpace(rm.Region) == "" {
			return fmt.Errorf("config: lookup tables contain a region without a name")
		}
		for _, m := range rm.Markets {
			k := normalizeKey(m)
			if prev, ok := seen[k]; ok && prev != rm.Region {
				return fmt.Errorf("config: market %q is mapped to both %q and %q", m, prev, rm.Region)
			}
			seen[k] = rm.Region
		}
	}
	for i, g := range t.IndustryAdjacency {
		if len(g.Industries) < 2 {
			return fmt.Errorf("config: industry_adjacency[%d] needs at least two industries", i)
		}
	}
	return nil
}

// Related reports whether two distinct industries are adjacent. The lookup
// is symmetric and case-insensitive.
func (t *LookupTables) Related(a, b string) bool {
	_, ok := t.adjacency[normalizeKey(a)][normalizeKey(b)]
	return ok
}

// Region returns the region for market, or export.RegionOther.
func (t *LookupTables) Region(market string) string {
	if r, ok := t.regions[normalizeKey(market)]; ok {
		return r
	}
	return export.RegionOther
}

// LoadLookupTables reads tables from a YAML file.
func LoadLookupTables(path string) (*LookupTables, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read lookup tables %q: %w", path, err)
	}
	return decodeLookupTables(v)
}

// ParseLookupTables decodes and validates tables from YAML bytes.
func ParseLookupTables(data []byte) (*LookupTables, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("config: failed to parse lookup tables: %w", err)
	}
	return decodeLookupTables(v)
}

func decodeLookupTables(v *viper.Viper) (*LookupTables, error) {
	t := &LookupTables{}
	if err := v.Unmarshal(t); err != nil {
		return nil, fmt.Errorf("config: failed to decode lookup tables: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	t.index()
	return t, nil
}

// TableStore holds the active lookup tables and swaps them atomically on
// reload, so readers never see a half-built table.
type TableStore struct {
	current atomic.Pointer[LookupTables]
}

// NewTableStore returns a store serving t, or the defaults when t is nil.
func NewTableStore(t *LookupTables) *TableStore {
	if t == nil {
		t = DefaultLookupTables()
	}
	s := &TableStore{}
	s.current.Store(t)
	return s
}

// Current returns the active tables.
func (s *TableStore) Current() *LookupTables { return s.current.Load() }

// Replace installs t as the active tables.
func (s *TableStore) Replace(t *LookupTables) { s.current.Store(t) }

// Related delegates to the active tables.
func (s *TableStore) Related(a, b string) bool { return s.Current().Related(a, b) }

// Region delegates to the active tables.
func (s *TableStore) Region(market string) string { return s.Current().Region(market) }

// Version reports the active table version.
func (s *TableStore) Version() string { return s.Current().Version }

// TableWatcher reloads a lookup table file into a TableStore until closed.
type TableWatcher struct {
	fw   *fsnotify.Watcher
	done chan struct{}
	once sync.Once
	err  error
}

// WatchLookupTables reloads path into the store whenever it is written or
// recreated. onReload receives the new version or the decode error; a bad
// file leaves the previous tables active. The directory is watched rather
// than the file so editors that replace the file are still seen.
func (s *TableStore) WatchLookupTables(path string, onReload func(version string, err error)) (*TableWatcher, error) {
	file, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config: invalid lookup tables path %q: %w", path, err)
	}
	if _, err := os.Stat(file); err != nil {
		return nil, fmt.Errorf("config: failed to read lookup tables %q: %w", path, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: failed to create lookup tables watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(file)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("config: failed to watch %q: %w", filepath.Dir(file), err)
	}
	if onReload == nil {
		onReload = func(string, error) {}
	}
	w := &TableWatcher{fw: fw, done: make(chan struct{})}
	go w.loop(s, file, onReload)
	return w, nil
}

func (w *TableWatcher) loop(s *TableStore, file string, onReload func(string, error)) {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != file || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			t, err := LoadLookupTables(file)
			if err != nil {
				onReload("", err)
				continue
			}
			s.Replace(t)
			onReload(t.Version, nil)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			onReload("", fmt.Errorf("config: lookup tables watcher: %w", err))
		}
	}
}

// Close stops watching and waits for an in-flight reload to finish. It is
// safe to call more than once.
func (w *TableWatcher) Close() error {
	w.once.Do(func() {
		w.err = w.fw.Close()
		<-w.done
	})
	return w.err
}
