package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/jonwraymond/netguard/transport"
)

// Keyer derives cache keys from requests.
//
// Contract:
//   - Determinism: equal requests produce equal keys regardless of query
//     parameter order.
//   - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	Key(req transport.Request) (string, error)
}

// VaryHeaders are request headers that change the response and are
// therefore part of the default key.
var VaryHeaders = []string{"Accept", "Accept-Language"}

// DefaultKeyer derives SHA-256 based keys of the form
// "cache:<METHOD>:<16 hex chars>".
type DefaultKeyer struct{}

// NewDefaultKeyer creates a new default keyer.
func NewDefaultKeyer() *DefaultKeyer {
	return &DefaultKeyer{}
}

// Key hashes the method, target, sorted query and vary headers.
func (k *DefaultKeyer) Key(req transport.Request) (string, error) {
	if req.Target == "" {
		return "", ErrInvalidKey
	}

	canonical, err := canonicalize(req)
	if err != nil {
		return "", fmt.Errorf("cache: canonicalize request: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return "cache:" + req.MethodOrDefault() + ":" + hex.EncodeToString(sum[:8]), nil
}

type keyMaterial struct {
	Target string     `json:"t"`
	Query  [][]string `json:"q,omitempty"`
	Vary   [][]string `json:"v,omitempty"`
}

// canonicalize flattens the parts of req that select a response into a
// stable JSON document.
func canonicalize(req transport.Request) ([]byte, error) {
	m := keyMaterial{Target: req.Target}

	keys := make([]string, 0, len(req.Query))
	for k := range req.Query {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		vals := slices.Clone(req.Query[k])
		slices.Sort(vals)
		m.Query = append(m.Query, append([]string{k}, vals...))
	}

	for _, h := range VaryHeaders {
		if v := req.Header.Values(h); len(v) > 0 {
			m.Vary = append(m.Vary, append([]string{strings.ToLower(h)}, v...))
		}
	}

	return json.Marshal(m)
}

var _ Keyer = (*DefaultKeyer)(nil)
