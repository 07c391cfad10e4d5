package config

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ExportReady-Intelligence/internal/domain/export"
)

func TestDefaultLookupTables(t *testing.T) {
	tables := DefaultLookupTables()
	require.NoError(t, tables.Validate())

	assert.True(t, tables.Related("Food & Beverage", "Agriculture"))
	assert.True(t, tables.Related("agriculture", "FOOD & BEVERAGE"))
	assert.False(t, tables.Related("Food & Beverage", "Food & Beverage"))
	assert.False(t, tables.Related("Food & Beverage", "Electronics"))
	assert.False(t, tables.Related("", "Agriculture"))

	assert.Equal(t, "Europe", tables.Region("UK"))
	assert.Equal(t, "Europe", tables.Region(" germany "))
	assert.Equal(t, "North America", tables.Region("Canada"))
	assert.Equal(t, export.RegionOther, tables.Region("Atlantis"))
}

func TestLookupTables_RelatedIsSymmetric(t *testing.T) {
	tables := DefaultLookupTables()
	for _, g := range tables.IndustryAdjacency {
		for _, a := range g.Industries {
			for _, b := range g.Industries {
				assert.Equal(t, tables.Related(a, b), tables.Related(b, a), "%s/%s", a, b)
			}
		}
	}
}

const tablesYAML = `
version: "2024-06"
industry_adjacency:
  - industries: ["Coffee", "Tea"]
market_regions:
  - region: Europe
    markets: ["UK"]
  - region: Asia
    markets: ["Japan"]
`

func TestLoadLookupTables(t *testing.T) {
	tables, err := LoadLookupTables(writeFile(t, "tables.yaml", tablesYAML))
	require.NoError(t, err)

	assert.Equal(t, "2024-06", tables.Version)
	assert.True(t, tables.Related("Coffee", "Tea"))
	assert.False(t, tables.Related("Food & Beverage", "Agriculture"))
	assert.Equal(t, "Asia", tables.Region("Japan"))
	assert.Equal(t, export.RegionOther, tables.Region("Germany"))
}

func TestLoadLookupTables_Invalid(t *testing.T) {
	cases := map[string]string{
		"no version":      "market_regions: []\n",
		"conflict":        "version: v1\nmarket_regions:\n  - region: A\n    markets: [X]\n  - region: B\n    markets: [x]\n",
		"singleton group": "version: v1\nindustry_adjacency:\n  - industries: [Solo]\n",
		"unnamed region":  "version: v1\nmarket_regions:\n  - markets: [X]\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadLookupTables(writeFile(t, "tables.yaml", content))
			assert.Error(t, err)
		})
	}

	_, err := LoadLookupTables("/nonexistent/tables.yaml")
	assert.Error(t, err)
}

func TestTableStore_Replace(t *testing.T) {
	store := NewTableStore(nil)
	assert.Equal(t, "builtin-1", store.Version())
	assert.True(t, store.Related("Textiles", "Apparel"))

	custom, err := LoadLookupTables(writeFile(t, "tables.yaml", tablesYAML))
	require.NoError(t, err)
	store.Replace(custom)

	assert.Equal(t, "2024-06", store.Version())
	assert.False(t, store.Related("Textiles", "Apparel"))
	assert.Equal(t, "Europe", store.Region("UK"))
}

func TestDefaultLookupTables_MatchEmbeddedFile(t *testing.T) {
	data, err := os.ReadFile("lookup_tables.yaml")
	require.NoError(t, err)
	parsed, err := ParseLookupTables(data)
	require.NoError(t, err)

	builtin := DefaultLookupTables()
	assert.Equal(t, parsed.Version, builtin.Version)
	assert.Equal(t, parsed.IndustryAdjacency, builtin.IndustryAdjacency)
	assert.Equal(t, parsed.MarketRegions, builtin.MarketRegions)
	assert.Len(t, builtin.MarketRegions, 7)
	assert.Equal(t, "Middle East", builtin.Region("uae"))
	assert.True(t, builtin.Related("Furniture", "Handicrafts"))

	_, err = ParseLookupTables([]byte("version: [unclosed"))
	assert.Error(t, err)
}

func TestTableStore_WatchLookupTables(t *testing.T) {
	path := writeFile(t, "tables.yaml", tablesYAML)
	store := NewTableStore(nil)

	var mu sync.Mutex
	var versions []string
	w, err := store.WatchLookupTables(path, func(version string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err == nil {
			versions = append(versions, version)
		}
	})
	require.NoError(t, err)
	defer w.Close()

	updated := "version: \"2024-07\"\nmarket_regions:\n  - region: Europe\n    markets: [\"France\"]\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))

	assert.Eventually(t, func() bool { return store.Version() == "2024-07" }, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, "Europe", store.Region("France"))
}

func TestTableWatcher_CloseStopsReloads(t *testing.T) {
	path := writeFile(t, "tables.yaml", tablesYAML)
	store := NewTableStore(nil)
	w, err := store.WatchLookupTables(path, nil)
	require.NoError(t, err)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	require.NoError(t, os.WriteFile(path, []byte("version: \"2024-08\"\n"), 0o600))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, "builtin-1", store.Version())
}

func TestTableStore_WatchMissingFile(t *testing.T) {
	_, err := NewTableStore(nil).WatchLookupTables("/nonexistent/tables.yaml", nil)
	assert.Error(t, err)
}
