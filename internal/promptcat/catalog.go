package promptcat

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	yaml "gopkg.in/yaml.v3"
)

//go:embed prompts.en.yaml
var builtin embed.FS

// Catalog holds the prompt templates rendered by the explanation
// pipeline. Templates come from the embedded defaults; an optional
// directory of YAML files can override individual keys at startup.
// Keys are flattened dot-paths ("move.user").
type Catalog struct {
	tpls map[string]*template.Template
}

func New(overrideDir string) (*Catalog, error) {
	c := &Catalog{tpls: make(map[string]*template.Template)}

	raw, err := fs.ReadFile(builtin, "prompts.en.yaml")
	if err != nil {
		return nil, fmt.Errorf("promptcat: read embedded prompts: %w", err)
	}
	if err := c.applyYAML(raw); err != nil {
		return nil, err
	}
	if strings.TrimSpace(overrideDir) != "" {
		if err := c.applyDir(overrideDir); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) applyDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("promptcat: read override dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			names = append(names, e.Name())
		}
	}
	// later files win; sort keeps the order deterministic
	sort.Strings(names)
	for _, name := range names {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("promptcat: read %s: %w", name, err)
		}
		if err := c.applyYAML(b); err != nil {
			return fmt.Errorf("promptcat: %s: %w", name, err)
		}
	}
	return nil
}

func (c *Catalog) applyYAML(b []byte) error {
	var root map[string]any
	if err := yaml.Unmarshal(b, &root); err != nil {
		return fmt.Errorf("promptcat: parse yaml: %w", err)
	}
	flat := make(map[string]string)
	if err := flatten(root, "", flat); err != nil {
		return err
	}
	for key, text := range flat {
		t, err := template.New(key).Option("missingkey=error").Parse(text)
		if err != nil {
			return fmt.Errorf("promptcat: template %s: %w", key, err)
		}
		c.tpls[key] = t
	}
	return nil
}

func flatten(src any, prefix string, out map[string]string) error {
	switch v := src.(type) {
	case map[string]any:
		for k, vv := range v {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if err := flatten(vv, key, out); err != nil {
				return err
			}
		}
		return nil
	case string:
		if prefix == "" {
			return errors.New("promptcat: string value without key")
		}
		out[prefix] = v
		return nil
	case nil:
		return nil
	default:
		return fmt.Errorf("promptcat: unsupported value at %s: %T", prefix, v)
	}
}

// Render executes the template stored under key. Unknown keys and
// missing template data are errors, never panics.
func (c *Catalog) Render(key string, data any) (string, error) {
	t, ok := c.tpls[strings.TrimSpace(key)]
	if !ok {
		return "", fmt.Errorf("promptcat: template not found: %s", key)
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("promptcat: render %s: %w", key, err)
	}
	return b.String(), nil
}

// Keys returns the loaded template keys, sorted.
func (c *Catalog) Keys() []string {
	keys := make([]string, 0, len(c.tpls))
	for k := range c.tpls {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
