package scraper

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SitesFile describes where source sites come from and which command scrapes each one.
//
//	source_list_url: https://vglist.nl/
//	source_list_ttl: 1h
//	sites:
//	  - https://movies.example/
//	blocklist:
//	  - tracker.example
//	providers:
//	  - name: example
//	    sites: [https://movies.example/]
//	    command: ./scrapers/example.sh
//	    timeout: 90s
type SitesFile struct {
	SourceListURL string           `yaml:"source_list_url"`
	SourceListTTL time.Duration    `yaml:"source_list_ttl"`
	Sites         []string         `yaml:"sites"`
	Blocklist     []string         `yaml:"blocklist"`
	Providers     []ProviderConfig `yaml:"providers"`

	// Default runs for sites no provider claims.
	Default *ProviderConfig `yaml:"default"`
}

// ProviderConfig configures one exec provider.
type ProviderConfig struct {
	Name    string            `yaml:"name"`
	Sites   []string          `yaml:"sites"`
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     map[string]string `yaml:"env"`
	Timeout time.Duration     `yaml:"timeout"`
}

// LoadSitesFile reads and validates a sites file.
func LoadSitesFile(path string) (*SitesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sites file: %w", err)
	}

	return ParseSitesFile(data)
}

// ParseSitesFile parses and validates sites file content.
func ParseSitesFile(data []byte) (*SitesFile, error) {
	var f SitesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse sites file: %w", err)
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}

	return &f, nil
}

// Validate checks URLs and provider commands.
func (f *SitesFile) Validate() error {
	if f.SourceListURL != "" {
		if _, err := validateSiteURL(f.SourceListURL); err != nil {
			return fmt.Errorf("source_list_url: %w", err)
		}
	}

	for _, site := range f.Sites {
		if _, err := validateSiteURL(site); err != nil {
			return fmt.Errorf("sites: %w", err)
		}
	}

	for i, p := range f.Providers {
		if p.Command == "" {
			return fmt.Errorf("providers[%d]: command is required", i)
		}
		if len(p.Sites) == 0 {
			return fmt.Errorf("providers[%d]: at least one site is required", i)
		}
		for _, site := range p.Sites {
			if _, err := validateSiteURL(site); err != nil {
				return fmt.Errorf("providers[%d]: %w", i, err)
			}
		}
	}

	if f.Default != nil && f.Default.Command == "" {
		return fmt.Errorf("default: command is required")
	}

	return nil
}

// BuildRegistry creates a registry with an exec provider for every configured site.
func (f *SitesFile) BuildRegistry(blocklist *Blocklist) (*Registry, error) {
	registry := NewRegistry()

	for _, pc := range f.Providers {
		provider, err := pc.newProvider(blocklist)
		if err != nil {
			return nil, err
		}
		for _, site := range pc.Sites {
			if err := registry.Register(site, provider); err != nil {
				return nil, err
			}
		}
	}

	if f.Default != nil {
		provider, err := f.Default.newProvider(blocklist)
		if err != nil {
			return nil, err
		}
		registry.SetFallback(provider)
	}

	return registry, nil
}

// BuildSources creates the source lister: the static sites, the sites claimed by providers and,
// when configured, the cached listing page.
func (f *SitesFile) BuildSources(client *http.Client) SourceLister {
	static := append([]string(nil), f.Sites...)
	for _, pc := range f.Providers {
		static = append(static, pc.Sites...)
	}

	listers := MultiSources{StaticSources(static)}

	if f.SourceListURL != "" {
		ttl := f.SourceListTTL
		if ttl == 0 {
			ttl = time.Hour
		}
		listers = append(listers, NewCachedSources(&LinkListSource{URL: f.SourceListURL, Client: client}, ttl))
	}

	return listers
}

func (pc ProviderConfig) newProvider(blocklist *Blocklist) (*ExecProvider, error) {
	return NewExecProvider(ExecProviderConfig{
		Name:      pc.Name,
		Command:   pc.Command,
		Args:      pc.Args,
		Env:       pc.Env,
		Timeout:   pc.Timeout,
		Blocklist: blocklist,
	})
}
