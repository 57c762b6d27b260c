package agent

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gtmcore/orchestrator/internal/core"
)

// FixtureAgent returns a canned AgentOutput for deterministic tests
// and offline demos: a JSON file named "<agent>.json" in FixtureDir,
// keyed additionally by the state fingerprint so a fixture directory
// can hold one variant per distinct input if needed
// ("<agent>.<fingerprint>.json" takes priority over "<agent>.json").
// Results are cached in an LRU so repeated calls against the same
// fingerprint (e.g. during reconciliation replay) don't re-read disk.
type FixtureAgent struct {
	name core.AgentName
	dir  string
	cache *lru.Cache[string, []byte]
}

// NewFixtureAgent creates a FixtureAgent reading from dir, caching up
// to cacheSize distinct (fingerprint) results.
func NewFixtureAgent(name core.AgentName, dir string, cacheSize int) (*FixtureAgent, error) {
	if cacheSize <= 0 {
		cacheSize = 64
	}
	cache, err := lru.New[string, []byte](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("agent/fixture: creating LRU cache: %w", err)
	}
	return &FixtureAgent{name: name, dir: dir, cache: cache}, nil
}

// Name implements core.Agent.
func (a *FixtureAgent) Name() core.AgentName {
	return a.name
}

// Execute implements core.Agent by loading a fixture file, never
// calling any upstream provider.
func (a *FixtureAgent) Execute(_ context.Context, stateJSON []byte, opts core.ExecuteOptions) (core.ExecuteResult, error) {
	fingerprint := opts.Fingerprint
	if fingerprint == "" {
		fingerprint = fingerprintOf(stateJSON)
	}
	cacheKey := string(a.name) + "/" + fingerprint

	if cached, ok := a.cache.Get(cacheKey); ok {
		return core.ExecuteResult{OutputJSON: cached}, nil
	}

	candidates := []string{
		filepath.Join(a.dir, fmt.Sprintf("%s.%s.json", a.name, fingerprint)),
		filepath.Join(a.dir, fmt.Sprintf("%s.json", a.name)),
	}

	for _, path := range candidates {
		// #nosec G304 -- path is built from a configured fixture
		// directory plus the fixed agent name, not user input.
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return core.ExecuteResult{}, core.ErrStore("FIXTURE_READ_FAILED", "reading fixture "+path).WithCause(err)
		}
		if !json.Valid(data) {
			return core.ExecuteResult{}, core.ErrInput("FIXTURE_INVALID_JSON", "fixture "+path+" is not valid JSON")
		}
		a.cache.Add(cacheKey, data)
		return core.ExecuteResult{OutputJSON: data}, nil
	}

	return core.ExecuteResult{}, core.ErrNotFound("fixture", string(a.name))
}

func fingerprintOf(stateJSON []byte) string {
	sum := sha256.Sum256(stateJSON)
	return hex.EncodeToString(sum[:])[:16]
}

var _ core.Agent = (*FixtureAgent)(nil)
