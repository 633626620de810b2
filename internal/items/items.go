// Package items manages the per-app item catalogs: the name-ID map the
// histogram endpoint needs, the trade list with target buy quantities, and
// the temporary exclusion list for items paused mid-cycle. Each catalog is a
// JSON file that can be edited while the bot runs and reloaded between
// cycles.
package items

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// jsonFile is a reloadable JSON map file. The zero value is not usable.
type jsonFile[V any] struct {
	mu    sync.RWMutex
	path  string
	items map[string]V
}

func newJSONFile[V any](path string) *jsonFile[V] {
	return &jsonFile[V]{path: path, items: make(map[string]V)}
}

// Reload replaces the in-memory map with the file's contents. A missing
// file resets to empty.
func (f *jsonFile[V]) Reload() error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			f.mu.Lock()
			f.items = make(map[string]V)
			f.mu.Unlock()
			return nil
		}
		return fmt.Errorf("items: reading %s: %w", f.path, err)
	}

	items := make(map[string]V)
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("items: parsing %s: %w", f.path, err)
	}

	f.mu.Lock()
	f.items = items
	f.mu.Unlock()
	return nil
}

func (f *jsonFile[V]) save() error {
	f.mu.RLock()
	data, err := json.MarshalIndent(f.items, "", "  ")
	f.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("items: encoding %s: %w", f.path, err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("items: creating dir for %s: %w", f.path, err)
	}
	if err := os.WriteFile(f.path, data, 0o644); err != nil {
		return fmt.Errorf("items: writing %s: %w", f.path, err)
	}
	return nil
}

func (f *jsonFile[V]) get(key string) (V, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.items[key]
	return v, ok
}

func (f *jsonFile[V]) set(key string, v V) {
	f.mu.Lock()
	f.items[key] = v
	f.mu.Unlock()
}

func (f *jsonFile[V]) delete(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[key]; !ok {
		return false
	}
	delete(f.items, key)
	return true
}

func (f *jsonFile[V]) snapshot() map[string]V {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string]V, len(f.items))
	for k, v := range f.items {
		out[k] = v
	}
	return out
}

// Catalog is the name-ID map for one app: market hash name to the numeric
// name ID the histogram endpoint requires.
type Catalog struct {
	appID int
	file  *jsonFile[int64]
}

// NewCatalog opens (or creates) the catalog at dir/items/<appID>.json.
func NewCatalog(dir string, appID int) (*Catalog, error) {
	c := &Catalog{
		appID: appID,
		file:  newJSONFile[int64](filepath.Join(dir, "items", fmt.Sprintf("%d.json", appID))),
	}
	if err := c.file.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads the catalog file.
func (c *Catalog) Reload() error { return c.file.Reload() }

// NameID resolves a market hash name to its numeric name ID.
func (c *Catalog) NameID(itemName string) (string, bool) {
	id, ok := c.file.get(itemName)
	if !ok {
		return "", false
	}
	return strconv.FormatInt(id, 10), true
}

// Add registers an item's name ID and persists the catalog. It reports
// whether the item was new.
func (c *Catalog) Add(itemName string, nameID int64) (bool, error) {
	_, existed := c.file.get(itemName)
	c.file.set(itemName, nameID)
	return !existed, c.file.save()
}

// Remove deletes an item and persists the catalog.
func (c *Catalog) Remove(itemName string) (bool, error) {
	if !c.file.delete(itemName) {
		return false, nil
	}
	return true, c.file.save()
}

// TradeList is the set of items the bot trades for one app, with the target
// quantity to keep on buy order. A target of zero keeps the item tracked
// (existing orders are still managed) without placing new buy orders.
type TradeList struct {
	file *jsonFile[int]
}

// NewTradeList opens (or creates) the list at dir/trade_items/<appID>.json.
func NewTradeList(dir string, appID int) (*TradeList, error) {
	l := &TradeList{
		file: newJSONFile[int](filepath.Join(dir, "trade_items", fmt.Sprintf("%d.json", appID))),
	}
	if err := l.file.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Reload re-reads the trade list file.
func (l *TradeList) Reload() error { return l.file.Reload() }

// Target returns the buy-order quantity for an item.
func (l *TradeList) Target(itemName string) (int, bool) {
	return l.file.get(itemName)
}

// Items returns a copy of the full list.
func (l *TradeList) Items() map[string]int {
	return l.file.snapshot()
}

// Set stores an item's target quantity and persists the list.
func (l *TradeList) Set(itemName string, target int) error {
	l.file.set(itemName, target)
	return l.file.save()
}

// Remove deletes an item and persists the list.
func (l *TradeList) Remove(itemName string) (bool, error) {
	if !l.file.delete(itemName) {
		return false, nil
	}
	return true, l.file.save()
}

// Paused is the temporary exclusion list: items whose sell listings must be
// left alone for now (manual experiments, pending confirmations).
type Paused struct {
	file *jsonFile[bool]
}

// NewPaused opens (or creates) the list at dir/paused_items/<appID>.json.
func NewPaused(dir string, appID int) (*Paused, error) {
	p := &Paused{
		file: newJSONFile[bool](filepath.Join(dir, "paused_items", fmt.Sprintf("%d.json", appID))),
	}
	if err := p.file.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Reload re-reads the exclusion file.
func (p *Paused) Reload() error { return p.file.Reload() }

// Contains reports whether an item is paused.
func (p *Paused) Contains(itemName string) bool {
	_, ok := p.file.get(itemName)
	return ok
}

// Pause adds an item and persists the list.
func (p *Paused) Pause(itemName string) error {
	p.file.set(itemName, true)
	return p.file.save()
}

// Resume removes an item and persists the list.
func (p *Paused) Resume(itemName string) (bool, error) {
	if !p.file.delete(itemName) {
		return false, nil
	}
	return true, p.file.save()
}
