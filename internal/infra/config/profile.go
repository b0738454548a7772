package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"wanderbot/internal/domain"
)

// Profile documents are markdown with three required sections:
//
//	## Agent Name
//	## Agent Description
//	## System Prompt
//
// A document missing any section is rejected outright; there is no partial
// success and no silent default. Misconfiguration must fail at startup, not
// produce a degraded agent.
const (
	sectionName        = "Agent Name"
	sectionDescription = "Agent Description"
	sectionPrompt      = "System Prompt"
)

// DefaultProfileFile is the conventional profile name inside an agent directory.
const DefaultProfileFile = "agent.md"

// Resolver resolves an agent profile from an ordered list of candidate paths:
// explicit override, conventional default, named fallback. The result is
// resolved once and cached for the process lifetime; tests construct fresh
// Resolvers instead of sharing one.
type Resolver struct {
	override string
	def      string
	fallback string

	once    sync.Once
	profile domain.AgentProfile
	err     error
}

// NewResolver builds a Resolver for the given agent directory.
// overridePath may be empty; fallbackPath names the last-resort profile.
func NewResolver(overridePath, dir, fallbackPath string) *Resolver {
	return &Resolver{
		override: strings.TrimSpace(overridePath),
		def:      filepath.Join(dir, DefaultProfileFile),
		fallback: fallbackPath,
	}
}

// Resolve returns the agent profile, loading it on first call.
// Every subsequent call returns the same profile or the same error.
func (r *Resolver) Resolve() (domain.AgentProfile, error) {
	r.once.Do(func() {
		r.profile, r.err = r.resolve()
	})
	return r.profile, r.err
}

func (r *Resolver) resolve() (domain.AgentProfile, error) {
	const op = "Resolver.Resolve"

	candidates := make([]string, 0, 3)
	if r.override != "" {
		candidates = append(candidates, r.override)
	}
	candidates = append(candidates, r.def)
	if r.fallback != "" && r.fallback != r.def {
		candidates = append(candidates, r.fallback)
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return domain.AgentProfile{}, domain.NewDomainError(op, domain.ErrConfigLoad,
				fmt.Sprintf("read %s: %v", path, err))
		}
		// The first existing candidate is the profile. A present-but-invalid
		// document fails resolution entirely; later candidates are not tried.
		profile, err := ParseProfile(string(data))
		if err != nil {
			return domain.AgentProfile{}, domain.NewDomainError(op, domain.ErrConfigLoad,
				fmt.Sprintf("%s: %v", path, err))
		}
		return profile, nil
	}

	return domain.AgentProfile{}, domain.NewDomainError(op, domain.ErrConfigLoad,
		fmt.Sprintf("no profile found (tried %s)", strings.Join(candidates, ", ")))
}

// ParseProfile extracts the three required sections from a profile document.
func ParseProfile(doc string) (domain.AgentProfile, error) {
	name, ok := extractSection(doc, sectionName)
	if !ok {
		return domain.AgentProfile{}, fmt.Errorf("missing section %q", sectionName)
	}
	description, ok := extractSection(doc, sectionDescription)
	if !ok {
		return domain.AgentProfile{}, fmt.Errorf("missing section %q", sectionDescription)
	}
	instructions, ok := extractSection(doc, sectionPrompt)
	if !ok {
		return domain.AgentProfile{}, fmt.Errorf("missing section %q", sectionPrompt)
	}
	return domain.AgentProfile{
		Name:         name,
		Description:  description,
		Instructions: instructions,
	}, nil
}

// extractSection returns the trimmed body of a "## <section>" heading up to the
// next heading or end of document. An empty body counts as missing.
func extractSection(doc, section string) (string, bool) {
	re := regexp.MustCompile(`(?ms)^##[ \t]+` + regexp.QuoteMeta(section) + `[ \t]*\n(.*?)(?:^##[ \t]|\z)`)
	m := re.FindStringSubmatch(doc)
	if m == nil {
		return "", false
	}
	body := strings.TrimSpace(m[1])
	if body == "" {
		return "", false
	}
	return body, true
}
