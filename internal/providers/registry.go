package providers

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"
)

// Registry holds the configured providers per category. Adding, removing or
// reordering providers only changes the registry, never the orchestration.
type Registry struct {
	mu         sync.RWMutex
	byCategory map[Category][]Provider
}

// NewRegistry creates a new empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		byCategory: make(map[Category][]Provider),
	}
}

// Register adds a provider to its category.
// Returns an error if the category already has a provider with the same name.
func (r *Registry) Register(p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.byCategory[p.Category()] {
		if existing.Name() == p.Name() {
			return fmt.Errorf("provider already registered: %s/%s", p.Category(), p.Name())
		}
	}
	r.byCategory[p.Category()] = append(r.byCategory[p.Category()], p)
	return nil
}

// For returns the providers of a category in priority order (ties by name).
func (r *Registry) For(c Category) []Provider {
	r.mu.RLock()
	list := make([]Provider, len(r.byCategory[c]))
	copy(list, r.byCategory[c])
	r.mu.RUnlock()

	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Priority() != list[j].Priority() {
			return list[i].Priority() < list[j].Priority()
		}
		return list[i].Name() < list[j].Name()
	})
	return list
}

// Categories returns every category with at least one provider, in catalogue order.
func (r *Registry) Categories() []Category {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Category
	for _, c := range AllCategories {
		if len(r.byCategory[c]) > 0 {
			out = append(out, c)
		}
	}
	return out
}

// Count returns the number of registered providers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, list := range r.byCategory {
		n += len(list)
	}
	return n
}

// Decryptor turns an encrypted secret from the chain file into plaintext.
type Decryptor interface {
	Decrypt(ciphertext string) (string, error)
}

// BuildOptions controls how a ChainFile becomes providers.
type BuildOptions struct {
	// Stub forces every entry to a StubProvider and fills empty categories with one.
	Stub       bool
	Decryptor  Decryptor
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Build turns a chain file into a registry of guarded providers. A nil file
// with Stub set yields one stub provider per category.
func Build(file *ChainFile, opts BuildOptions) (*Registry, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if file == nil {
		file = &ChainFile{}
	}

	registry := NewRegistry()
	for name, entries := range file.Categories {
		category, err := ParseCategory(name)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			p, err := buildEntry(category, e, opts)
			if err != nil {
				return nil, err
			}
			if err := registry.Register(NewGuardedProvider(p, e.Guard(file.Defaults), logger)); err != nil {
				return nil, err
			}
		}
	}

	if opts.Stub {
		for _, c := range AllCategories {
			if len(registry.For(c)) > 0 {
				continue
			}
			stub := NewStubProvider("stub-"+string(c), c, 100, 0, nil)
			if err := registry.Register(NewGuardedProvider(stub, Guard{Timeout: 5 * time.Second}, logger)); err != nil {
				return nil, err
			}
		}
	}

	return registry, nil
}

func buildEntry(category Category, e ProviderEntry, opts BuildOptions) (Provider, error) {
	if e.Stub || opts.Stub {
		return NewStubProvider(e.Name, category, e.Priority, time.Duration(e.StubDelayMS)*time.Millisecond, nil), nil
	}

	secret, err := resolveSecret(e, opts.Decryptor)
	if err != nil {
		return nil, fmt.Errorf("provider %s/%s: %w", category, e.Name, err)
	}

	return NewHTTPProvider(HTTPProviderConfig{
		Name:         e.Name,
		Category:     category,
		Priority:     e.Priority,
		URL:          e.URL,
		Secret:       secret,
		SecretHeader: e.SecretHeader,
		Client:       opts.HTTPClient,
	}), nil
}

func resolveSecret(e ProviderEntry, dec Decryptor) (string, error) {
	if e.Secret != "" {
		if dec == nil {
			return "", fmt.Errorf("encrypted secret configured but no encryption key loaded")
		}
		plain, err := dec.Decrypt(e.Secret)
		if err != nil {
			return "", fmt.Errorf("failed to decrypt secret: %w", err)
		}
		return plain, nil
	}
	if e.SecretEnv != "" {
		return os.Getenv(e.SecretEnv), nil
	}
	return "", nil
}
