package editor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Template is a named, human-authored edit-region recipe: an alternative
// authoring surface to inline promise constraints for the same C9
// operations (region selection, line insertion, pattern replacement).
type Template struct {
	Name             string   `yaml:"name"`
	SelectRegionStart string  `yaml:"select_region_start"`
	SelectRegionEnd   string  `yaml:"select_region_end"`
	InsertLines      []string `yaml:"insert_lines"`
	ReplacePattern   []string `yaml:"replace_pattern"`
}

// Library indexes templates by name, loaded from a directory of YAML
// documents (one template per file, or a list per file).
type Library struct {
	templates map[string]*Template
}

// LoadLibrary reads every *.yaml/*.yml file in dir into a Library. A
// missing directory yields an empty library rather than an error, since
// template authoring is optional.
func LoadLibrary(dir string) (*Library, error) {
	lib := &Library{templates: map[string]*Template{}}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return lib, nil
	}
	if err != nil {
		return nil, fmt.Errorf("editor: read template dir %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		if err := lib.loadFile(filepath.Join(dir, entry.Name())); err != nil {
			return nil, err
		}
	}
	return lib, nil
}

func (l *Library) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("editor: read template %s: %w", path, err)
	}

	var list []Template
	if err := yaml.Unmarshal(data, &list); err == nil && len(list) > 0 {
		for i := range list {
			l.add(&list[i])
		}
		return nil
	}

	var single Template
	if err := yaml.Unmarshal(data, &single); err != nil {
		return fmt.Errorf("editor: parse template %s: %w", path, err)
	}
	l.add(&single)
	return nil
}

func (l *Library) add(t *Template) {
	if t.Name == "" {
		return
	}
	l.templates[t.Name] = t
}

// Lookup returns the named template, if one was loaded.
func (l *Library) Lookup(name string) (*Template, bool) {
	if l == nil {
		return nil, false
	}
	t, ok := l.templates[name]
	return t, ok
}
