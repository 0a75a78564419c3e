package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// ModelMeta is the metadata the model catalog supplies per identifier.
// Absent fields degrade to documented defaults downstream (a zero
// ContextLength means the high-capacity tier).
type ModelMeta struct {
	ID               string       `json:"id"`
	ContextLength    int          `json:"context_length"`
	Pricing          ModelPricing `json:"pricing"`
	InputModalities  []string     `json:"input_modalities"`
	OutputModalities []string     `json:"output_modalities"`
}

// ModelPricing is per-token pricing as decimal strings, the way the API
// reports it.
type ModelPricing struct {
	Prompt     string `json:"prompt"`
	Completion string `json:"completion"`
}

// Catalog is a point-in-time snapshot of model metadata.
type Catalog struct {
	byID map[string]ModelMeta
	ids  []string
}

// NewCatalog builds a catalog from a metadata list.
func NewCatalog(models []ModelMeta) *Catalog {
	byID := make(map[string]ModelMeta, len(models))
	ids := make([]string, 0, len(models))
	for _, m := range models {
		if _, seen := byID[m.ID]; seen {
			continue
		}
		byID[m.ID] = m
		ids = append(ids, m.ID)
	}
	sort.Strings(ids)
	return &Catalog{byID: byID, ids: ids}
}

// Lookup returns metadata for a model, or nil when the catalog has no entry.
// Callers treat nil as "defaults apply"; it is never an error.
func (c *Catalog) Lookup(id string) *ModelMeta {
	if c == nil {
		return nil
	}
	if meta, ok := c.byID[id]; ok {
		return &meta
	}
	return nil
}

// IDs returns all known model identifiers, sorted.
func (c *Catalog) IDs() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.ids...)
}

// FetchCatalog retrieves model metadata from the API.
func FetchCatalog(ctx context.Context, baseURL, apiKey string) (*Catalog, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return nil, &ProtocolError{Status: resp.StatusCode, Body: string(body)}
	}

	var parsed struct {
		Data []ModelMeta `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode models: %w", err)
	}
	return NewCatalog(parsed.Data), nil
}

// catalogCacheTTL bounds how stale the cached catalog may be before a
// refresh is attempted.
const catalogCacheTTL = 24 * time.Hour

type catalogCache struct {
	FetchedAt time.Time   `json:"fetched_at"`
	Models    []ModelMeta `json:"models"`
}

func catalogCachePath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "fusion-chat", "models.json"), nil
}

func readCatalogCache() (*catalogCache, error) {
	path, err := catalogCachePath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cached catalogCache
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}
	return &cached, nil
}

func writeCatalogCache(models []ModelMeta) error {
	path, err := catalogCachePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.Marshal(catalogCache{FetchedAt: time.Now(), Models: models})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadCatalog returns the cached catalog when fresh, otherwise fetches and
// re-caches. Degrades rather than fails: a fetch error falls back to a stale
// cache, and failing that to an empty catalog (every lookup then returns
// defaults).
func LoadCatalog(ctx context.Context, apiKey string) *Catalog {
	cached, err := readCatalogCache()
	if err == nil && time.Since(cached.FetchedAt) < catalogCacheTTL {
		return NewCatalog(cached.Models)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	catalog, fetchErr := FetchCatalog(fetchCtx, openRouterBaseURL, apiKey)
	if fetchErr == nil {
		models := make([]ModelMeta, 0, len(catalog.ids))
		for _, id := range catalog.ids {
			models = append(models, catalog.byID[id])
		}
		_ = writeCatalogCache(models)
		return catalog
	}

	if cached != nil && len(cached.Models) > 0 {
		return NewCatalog(cached.Models)
	}
	return NewCatalog(nil)
}
