package tool

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"wanderbot/internal/domain"
)

// ManifestEntry is one parsed tool declaration from the manifest file.
type ManifestEntry struct {
	Name        string
	Description string
	Transport   domain.Transport
	Endpoint    string
	Timeout     time.Duration
	Enabled     bool
	Parameters  json.RawMessage
}

type manifestFile struct {
	Tools map[string]manifestTool `json:"tools"`
}

type manifestTool struct {
	Transport   string          `json:"transport"`
	Endpoint    string          `json:"endpoint"`
	Timeout     string          `json:"timeout,omitempty"`
	Enabled     *bool           `json:"enabled,omitempty"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ParseManifest reads the tool manifest at path and returns its entries sorted
// by name. A missing file is not an error; the agent simply runs without
// manifest tools. Anything else wrong with the manifest is a configuration
// error: the transport set is closed and an unknown transport must fail
// startup, not the first invocation.
func ParseManifest(path string) ([]ManifestEntry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.NewDomainError("tool.manifest", domain.ErrConfigLoad, err.Error())
	}

	var mf manifestFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return nil, domain.NewDomainError("tool.manifest", domain.ErrConfigLoad,
			fmt.Sprintf("parse %s: %v", path, err))
	}

	entries := make([]ManifestEntry, 0, len(mf.Tools))
	for name, mt := range mf.Tools {
		tr, err := domain.ParseTransport(mt.Transport)
		if err != nil {
			return nil, domain.NewDomainError("tool.manifest", domain.ErrConfigLoad,
				fmt.Sprintf("tool %q: %v", name, err))
		}
		if mt.Endpoint == "" {
			return nil, domain.NewDomainError("tool.manifest", domain.ErrConfigLoad,
				fmt.Sprintf("tool %q: endpoint is required", name))
		}

		e := ManifestEntry{
			Name:        name,
			Description: mt.Description,
			Transport:   tr,
			Endpoint:    mt.Endpoint,
			Enabled:     true,
			Parameters:  mt.Parameters,
		}
		if mt.Enabled != nil {
			e.Enabled = *mt.Enabled
		}
		if mt.Timeout != "" {
			d, err := time.ParseDuration(mt.Timeout)
			if err != nil {
				return nil, domain.NewDomainError("tool.manifest", domain.ErrConfigLoad,
					fmt.Sprintf("tool %q: bad timeout %q", name, mt.Timeout))
			}
			e.Timeout = d
		}
		entries = append(entries, e)
	}

	// JSON object order is not preserved; sort for a stable gateway.
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Descriptor converts the entry to its published tool descriptor.
func (e ManifestEntry) Descriptor() domain.ToolDescriptor {
	return domain.ToolDescriptor{
		Name:        e.Name,
		Description: e.Description,
		Transport:   e.Transport,
		Endpoint:    e.Endpoint,
		Timeout:     e.Timeout,
		Enabled:     e.Enabled,
	}
}
