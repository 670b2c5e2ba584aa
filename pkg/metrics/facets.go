package metrics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kloudmate/metrics-core/internal/models"
	"github.com/kloudmate/metrics-core/internal/registry"
)

// FacetConfig declares which metric kinds are enabled per scope. Samples of
// a disabled kind are rejected at the sink, before any aggregated state
// exists for them.
//
// Rules match either an exact scope name or a "prefix.*" wildcard covering
// the prefix and everything nested under it. An exact match beats any
// wildcard; among wildcards the longest prefix wins. Scopes with no
// matching rule fall back to DefaultKinds; an empty DefaultKinds enables
// all kinds.
type FacetConfig struct {
	DefaultKinds []string    `yaml:"default_kinds" json:"default_kinds"`
	Rules        []FacetRule `yaml:"rules" json:"rules"`
}

// FacetRule enables a set of kinds ("counter", "gauge", "histogram") for
// one scope name or wildcard.
type FacetRule struct {
	Scope string   `yaml:"scope" json:"scope"`
	Kinds []string `yaml:"kinds" json:"kinds"`
}

type kindMask uint8

const allKinds kindMask = 1<<models.KindCounter | 1<<models.KindGauge | 1<<models.KindHistogram

func (m kindMask) has(k models.Kind) bool {
	return m&(1<<k) != 0
}

type prefixRule struct {
	prefix string
	mask   kindMask
}

// facetPolicy is the compiled form of a FacetConfig. It is built once at
// engine construction and read-only afterwards, so sinks consult it
// without locking.
type facetPolicy struct {
	defaultMask kindMask
	exact       map[string]kindMask
	prefixes    []prefixRule
}

func compileFacets(cfg FacetConfig) (*facetPolicy, error) {
	p := &facetPolicy{
		defaultMask: allKinds,
		exact:       make(map[string]kindMask, len(cfg.Rules)),
	}

	if len(cfg.DefaultKinds) > 0 {
		mask, err := parseKinds(cfg.DefaultKinds)
		if err != nil {
			return nil, fmt.Errorf("default kinds: %w", err)
		}
		p.defaultMask = mask
	}

	for _, rule := range cfg.Rules {
		mask, err := parseKinds(rule.Kinds)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", rule.Scope, err)
		}

		switch {
		case rule.Scope == "*":
			p.defaultMask = mask
		case strings.HasSuffix(rule.Scope, registry.Separator+"*"):
			prefix := strings.TrimSuffix(rule.Scope, registry.Separator+"*")
			p.prefixes = append(p.prefixes, prefixRule{prefix: prefix, mask: mask})
		default:
			p.exact[rule.Scope] = mask
		}
	}

	// Longest prefix first, so the most specific wildcard wins.
	sort.Slice(p.prefixes, func(i, j int) bool {
		return len(p.prefixes[i].prefix) > len(p.prefixes[j].prefix)
	})

	return p, nil
}

func (p *facetPolicy) mask(scope string) kindMask {
	if m, ok := p.exact[scope]; ok {
		return m
	}
	for _, rule := range p.prefixes {
		if scope == rule.prefix || strings.HasPrefix(scope, rule.prefix+registry.Separator) {
			return rule.mask
		}
	}

	return p.defaultMask
}

func (p *facetPolicy) enabled(scope string, kind models.Kind) bool {
	return p.mask(scope).has(kind)
}

func parseKinds(names []string) (kindMask, error) {
	var mask kindMask
	for _, name := range names {
		k, err := parseKind(name)
		if err != nil {
			return 0, err
		}
		mask |= 1 << k
	}

	return mask, nil
}

func parseKind(name string) (models.Kind, error) {
	switch strings.ToLower(name) {
	case "counter":
		return models.KindCounter, nil
	case "gauge":
		return models.KindGauge, nil
	case "histogram":
		return models.KindHistogram, nil
	default:
		return 0, fmt.Errorf("unknown metric kind %q", name)
	}
}
