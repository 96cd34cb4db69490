package credential

import (
	"strings"
	"sync/atomic"

	"genstudio/internal/config"
)

// Provider families known to the pool. Family names double as the provider
// identifiers used by candidate chains.
const (
	FamilyOpenAI     = "openai"
	FamilyOpenRouter = "openrouter"
	FamilyGemini     = "gemini"
	FamilyVolcengine = "volcengine"
)

// Credential is an opaque secret bound to one provider family. ID is the
// ordinal position within the family's configured list.
type Credential struct {
	ID     int
	Family string
	Secret string
}

type familyPool struct {
	creds  []Credential
	cursor atomic.Uint64
}

// Pool holds the configured credentials for every provider family. It is
// built once at boot, immutable afterwards, and safe for concurrent use.
type Pool struct {
	families map[string]*familyPool
}

// NewPool loads credential lists from configuration. Blank entries are
// filtered out; a family with no usable keys ends up with an empty list.
func NewPool(cfg config.Config) *Pool {
	p := &Pool{families: make(map[string]*familyPool)}
	p.load(FamilyOpenAI, cfg.OpenAIAPIKeys)
	p.load(FamilyOpenRouter, cfg.OpenRouterAPIKeys)
	p.load(FamilyGemini, cfg.GeminiAPIKeys)
	p.load(FamilyVolcengine, cfg.VolcengineAPIKeys)
	return p
}

// NewPoolFromLists builds a pool from explicit family lists. Used by tests
// and anywhere configuration does not come from the environment.
func NewPoolFromLists(lists map[string][]string) *Pool {
	p := &Pool{families: make(map[string]*familyPool)}
	for family, secrets := range lists {
		p.load(family, secrets)
	}
	return p
}

func (p *Pool) load(family string, secrets []string) {
	fp := &familyPool{}
	for _, secret := range secrets {
		trimmed := strings.TrimSpace(secret)
		if trimmed == "" {
			continue
		}
		fp.creds = append(fp.creds, Credential{
			ID:     len(fp.creds),
			Family: family,
			Secret: trimmed,
		})
	}
	p.families[family] = fp
}

// ForFamily returns the family's credentials in configuration order. The
// failover loop depends on this order being stable for reproducible
// diagnostics. The returned slice is a copy.
func (p *Pool) ForFamily(family string) []Credential {
	fp := p.families[family]
	if fp == nil || len(fp.creds) == 0 {
		return nil
	}
	out := make([]Credential, len(fp.creds))
	copy(out, fp.creds)
	return out
}

// Acquire returns the next credential for the family in round-robin order,
// distributing load across interchangeable keys. ok is false when the family
// has no usable credentials.
func (p *Pool) Acquire(family string) (Credential, bool) {
	fp := p.families[family]
	if fp == nil || len(fp.creds) == 0 {
		return Credential{}, false
	}
	n := fp.cursor.Add(1) - 1
	return fp.creds[int(n%uint64(len(fp.creds)))], true
}

// HasFamily reports whether the family has at least one usable credential.
func (p *Pool) HasFamily(family string) bool {
	fp := p.families[family]
	return fp != nil && len(fp.creds) > 0
}

// Size returns the number of credentials configured for the family.
func (p *Pool) Size(family string) int {
	fp := p.families[family]
	if fp == nil {
		return 0
	}
	return len(fp.creds)
}
