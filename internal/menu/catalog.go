// Package menu loads the dish catalog from a directory tree of
// <dir>/<slug>/item.txt metadata files with a photo.png next to each.
package menu

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/GrandCafeLabs/tablebook/pkg/tablebook"
)

const (
	metaFileName  = "item.txt"
	photoFileName = "photo.png"
)

// Catalog is a file-backed tablebook.Catalog. The tree is read once at
// construction; edits on disk need a reload.
type Catalog struct {
	byID  map[int]tablebook.MenuItem
	items []tablebook.MenuItem
}

// Load reads every <slug>/item.txt under dir. Entries missing required
// keys, with unparsable numbers, or without a photo are skipped.
func Load(dir string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return &Catalog{byID: map[int]tablebook.MenuItem{}}, nil
		}
		return nil, fmt.Errorf("read menu dir: %w", err)
	}

	catalog := &Catalog{byID: map[int]tablebook.MenuItem{}}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		slug := entry.Name()
		metaPath := filepath.Join(dir, slug, metaFileName)
		photoPath := filepath.Join(dir, slug, photoFileName)
		if _, err := os.Stat(photoPath); err != nil {
			continue
		}
		item, ok := parseItem(metaPath, slug)
		if !ok {
			continue
		}
		catalog.byID[item.ID] = item
		catalog.items = append(catalog.items, item)
	}
	sort.Slice(catalog.items, func(left, right int) bool {
		return catalog.items[left].ID < catalog.items[right].ID
	})
	return catalog, nil
}

// Lookup resolves a menu id.
func (catalog *Catalog) Lookup(menuID int) (tablebook.MenuItem, bool) {
	item, ok := catalog.byID[menuID]
	return item, ok
}

// Items returns the full catalog sorted by id.
func (catalog *Catalog) Items() []tablebook.MenuItem {
	return append([]tablebook.MenuItem(nil), catalog.items...)
}

func parseItem(metaPath string, slug string) (tablebook.MenuItem, bool) {
	meta := viper.New()
	meta.SetConfigFile(metaPath)
	meta.SetConfigType("properties")
	if err := meta.ReadInConfig(); err != nil {
		return tablebook.MenuItem{}, false
	}

	itemID, err := strconv.Atoi(strings.TrimSpace(meta.GetString("id")))
	if err != nil {
		return tablebook.MenuItem{}, false
	}
	price, err := strconv.ParseInt(strings.TrimSpace(meta.GetString("price")), 10, 64)
	if err != nil {
		return tablebook.MenuItem{}, false
	}
	name := strings.TrimSpace(meta.GetString("name"))
	lore := strings.TrimSpace(meta.GetString("lore"))
	dishType := strings.TrimSpace(meta.GetString("type"))
	if name == "" || lore == "" || dishType == "" {
		return tablebook.MenuItem{}, false
	}

	popularity := meta.GetInt("popularity")
	if !meta.IsSet("popularity") {
		popularity = meta.GetInt("orders_count")
	}

	return tablebook.MenuItem{
		ID:         itemID,
		Name:       name,
		Lore:       lore,
		Type:       dishType,
		Price:      price,
		PhotoRef:   fmt.Sprintf("menu_items/%s/%s", slug, photoFileName),
		Popularity: popularity,
		Featured:   parseFlag(meta.GetString("featured")),
	}, true
}

// parseFlag accepts the historical truthy spellings used in item.txt files.
func parseFlag(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
