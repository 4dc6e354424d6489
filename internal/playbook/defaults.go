package playbook

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type defaultGroup struct {
	BusinessType string `yaml:"businessType"`
	Playbooks    []struct {
		Name    string `yaml:"name"`
		Trigger string `yaml:"trigger"`
		Copy    string `yaml:"copy"`
	} `yaml:"playbooks"`
}

// loadDefaults parses the embedded default set.
func loadDefaults(raw []byte) ([]Playbook, error) {
	var groups []defaultGroup
	if err := yaml.Unmarshal(raw, &groups); err != nil {
		return nil, fmt.Errorf("parse default playbooks: %w", err)
	}

	var out []Playbook
	seen := make(map[string]bool)
	for _, g := range groups {
		bt, ok := CanonicalBusinessType(g.BusinessType)
		if !ok {
			return nil, fmt.Errorf("default playbooks: %w %q", ErrInvalidBusinessType, g.BusinessType)
		}
		for _, p := range g.Playbooks {
			id := defaultID(bt, p.Name)
			if seen[id] {
				return nil, fmt.Errorf("default playbooks: duplicate %q", id)
			}
			seen[id] = true
			out = append(out, Playbook{
				ID:           id,
				Name:         p.Name,
				Trigger:      p.Trigger,
				Copy:         p.Copy,
				BusinessType: bt,
				IsDefault:    true,
			})
		}
	}
	return out, nil
}

// defaultID derives a stable document id, e.g. "snow-removal--ice-treatment".
func defaultID(businessType, name string) string {
	return slug(businessType) + "--" + slug(name)
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
