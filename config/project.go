// Package config loads tskit configuration: the optional project file
// (.tskit.yaml or .tskit.toml) and the TSKIT_* environment.
//
// The project file pins the provider, languages and catalogs of a
// repository so that `tskit translate` needs no flags:
//
//	provider: deepl
//	source_lang: en
//	target_lang: de
//	catalogs:
//	  - translations/app_de.ts
//	timeout: 45s
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/minios-linux/tskit/provider"
)

// Project file names, in lookup order.
const (
	YAMLFileName = ".tskit.yaml"
	TOMLFileName = ".tskit.toml"
)

// ProjectFile is the on-disk schema shared by the YAML and TOML forms.
type ProjectFile struct {
	// Provider selects the translation provider for this project.
	Provider string `yaml:"provider,omitempty" toml:"provider,omitempty"`
	// SourceLang and TargetLang override the stored provider languages.
	SourceLang string `yaml:"source_lang,omitempty" toml:"source_lang,omitempty"`
	TargetLang string `yaml:"target_lang,omitempty" toml:"target_lang,omitempty"`
	// Catalogs lists .ts files or globs relative to the project root.
	// When empty, every *.ts file under the root is used.
	Catalogs []string `yaml:"catalogs,omitempty" toml:"catalogs,omitempty"`
	// Timeout is the per-request timeout as a duration string ("30s").
	Timeout string `yaml:"timeout,omitempty" toml:"timeout,omitempty"`
	// Proxy is an HTTP/HTTPS proxy URL.
	Proxy string `yaml:"proxy,omitempty" toml:"proxy,omitempty"`
	// SaveAfterBatch writes catalogs when a batch completes (default true).
	SaveAfterBatch *bool `yaml:"save_after_batch,omitempty" toml:"save_after_batch,omitempty"`
}

// Project is a validated project file.
type Project struct {
	// Path is the file the project was loaded from.
	Path string
	// Root is the absolute directory containing Path.
	Root string

	Provider       string
	SourceLang     string
	TargetLang     string
	Catalogs       []string
	Timeout        time.Duration
	Proxy          string
	SaveAfterBatch bool
}

// LoadProject loads the project file from rootDir, preferring .tskit.yaml
// over .tskit.toml. It returns nil when neither exists.
func LoadProject(rootDir string) (*Project, error) {
	for _, name := range []string{YAMLFileName, TOMLFileName} {
		path := filepath.Join(rootDir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		return parseProject(path, data)
	}
	return nil, nil
}

// LoadProjectFile loads a project file from an explicit path. The format is
// chosen by extension: .toml is TOML, anything else YAML.
func LoadProjectFile(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return parseProject(path, data)
}

func parseProject(path string, data []byte) (*Project, error) {
	var pf ProjectFile
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&pf); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		// An empty document decodes to io.EOF.
		if err := dec.Decode(&pf); err != nil && len(bytes.TrimSpace(data)) > 0 {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	return pf.resolve(path)
}

// resolve validates pf and applies defaults.
func (pf *ProjectFile) resolve(path string) (*Project, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	p := &Project{
		Path:           absPath,
		Root:           filepath.Dir(absPath),
		Provider:       provider.NormalizeID(pf.Provider),
		SourceLang:     strings.TrimSpace(pf.SourceLang),
		TargetLang:     strings.TrimSpace(pf.TargetLang),
		Proxy:          strings.TrimSpace(pf.Proxy),
		SaveAfterBatch: true,
	}

	if p.Provider != "" && !provider.IsValidID(p.Provider) {
		return nil, fmt.Errorf("%s: unknown provider %q (valid: %s, %s, %s, %s)",
			path, pf.Provider, provider.Google, provider.Baidu, provider.DeepL, provider.Youdao)
	}
	if pf.Timeout != "" {
		d, err := time.ParseDuration(pf.Timeout)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid timeout %q: %w", path, pf.Timeout, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("%s: timeout must be positive, got %s", path, pf.Timeout)
		}
		p.Timeout = d
	}
	if pf.SaveAfterBatch != nil {
		p.SaveAfterBatch = *pf.SaveAfterBatch
	}
	for i, c := range pf.Catalogs {
		if strings.TrimSpace(c) == "" {
			return nil, fmt.Errorf("%s: catalog #%d is empty", path, i+1)
		}
		p.Catalogs = append(p.Catalogs, c)
	}
	return p, nil
}

// CatalogPaths returns the absolute catalog paths of the project. Glob
// entries are expanded; an empty list discovers *.ts files under Root.
func (p *Project) CatalogPaths() ([]string, error) {
	if len(p.Catalogs) == 0 {
		return DiscoverCatalogs(p.Root)
	}

	seen := make(map[string]bool)
	var paths []string
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			paths = append(paths, path)
		}
	}
	for _, c := range p.Catalogs {
		pattern := c
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(p.Root, pattern)
		}
		if !strings.ContainsAny(c, "*?[") {
			add(pattern)
			continue
		}
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid catalog pattern %q: %w", p.Path, c, err)
		}
		sort.Strings(matches)
		for _, m := range matches {
			add(m)
		}
	}
	return paths, nil
}

// DiscoverCatalogs finds .ts files under root, skipping hidden directories.
func DiscoverCatalogs(root string) ([]string, error) {
	var found []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), ".ts") {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	sort.Strings(found)
	return found, nil
}
