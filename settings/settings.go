// Package settings provides persistent storage for tskit user settings:
// the selected translation provider and, per provider, the credential and
// the source/target languages.
//
// Settings are stored in the XDG data directory:
//
//	$XDG_DATA_HOME/tskit/settings.json  (default: ~/.local/share/tskit/)
//
// File format:
//
//	{
//	  "provider": "baidu",
//	  "providers": {
//	    "baidu": {"credential": "appid:secret", "sourceLang": "en", "targetLang": "zh-CN"}
//	  }
//	}
//
// File permissions are 0600 (owner read/write only).
//
// Lookup order for credentials:
//  1. --api-key flag (highest priority)
//  2. Provider environment variable (see EnvVarForProvider)
//  3. This settings store
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	dataDirName = "tskit"
	fileName    = "settings.json"
)

// Defaults applied when nothing is stored.
const (
	DefaultProvider   = "google"
	DefaultSourceLang = "en"
	DefaultTargetLang = "zh-CN"
)

// ProviderSettings is the stored configuration of one provider.
type ProviderSettings struct {
	Credential string `json:"credential,omitempty"`
	SourceLang string `json:"sourceLang,omitempty"`
	TargetLang string `json:"targetLang,omitempty"`
}

// Settings is the whole settings document.
type Settings struct {
	Provider  string                       `json:"provider,omitempty"`
	Providers map[string]*ProviderSettings `json:"providers,omitempty"`
}

// ActiveProvider returns the selected provider ID, or DefaultProvider.
func (s *Settings) ActiveProvider() string {
	if s == nil || s.Provider == "" {
		return DefaultProvider
	}
	return s.Provider
}

// ProviderConfig returns the stored settings of a provider with language
// defaults filled in.
func (s *Settings) ProviderConfig(providerID string) ProviderSettings {
	ps := ProviderSettings{SourceLang: DefaultSourceLang, TargetLang: DefaultTargetLang}
	if s == nil {
		return ps
	}
	stored := s.Providers[providerID]
	if stored == nil {
		return ps
	}
	ps.Credential = stored.Credential
	if stored.SourceLang != "" {
		ps.SourceLang = stored.SourceLang
	}
	if stored.TargetLang != "" {
		ps.TargetLang = stored.TargetLang
	}
	return ps
}

func (s *Settings) entry(providerID string) *ProviderSettings {
	if s.Providers == nil {
		s.Providers = make(map[string]*ProviderSettings)
	}
	ps := s.Providers[providerID]
	if ps == nil {
		ps = &ProviderSettings{}
		s.Providers[providerID] = ps
	}
	return ps
}

// ---------------------------------------------------------------------------
// File path
// ---------------------------------------------------------------------------

// dataDir returns the XDG data directory for tskit.
// Respects $XDG_DATA_HOME (falls back to ~/.local/share).
func dataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, dataDirName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", dataDirName), nil
}

func filePath() (string, error) {
	dir, err := dataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// FilePath returns the settings file path for display purposes.
func FilePath() string {
	p, err := filePath()
	if err != nil {
		return ""
	}
	return p
}

// DataDir returns the tskit data directory path.
func DataDir() (string, error) {
	return dataDir()
}

// ---------------------------------------------------------------------------
// Load / Save
// ---------------------------------------------------------------------------

// mu serializes read-modify-write cycles within the process.
var mu sync.Mutex

// Load reads the settings from disk.
// Returns empty settings if the file doesn't exist or is invalid.
func Load() *Settings {
	mu.Lock()
	defer mu.Unlock()
	return load()
}

func load() *Settings {
	path, err := filePath()
	if err != nil {
		return &Settings{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return &Settings{}
	}
	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return &Settings{}
	}
	return &s
}

// Save writes the settings to disk with 0600 permissions.
func Save(s *Settings) error {
	mu.Lock()
	defer mu.Unlock()
	return save(s)
}

func save(s *Settings) error {
	path, err := filePath()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing settings file: %w", err)
	}
	return nil
}

// Update loads the settings, applies fn and writes them back.
func Update(fn func(*Settings)) error {
	mu.Lock()
	defer mu.Unlock()
	s := load()
	fn(s)
	return save(s)
}

// ---------------------------------------------------------------------------
// Mutators (each persisted immediately)
// ---------------------------------------------------------------------------

// SetProvider stores the selected provider.
func SetProvider(providerID string) error {
	return Update(func(s *Settings) { s.Provider = providerID })
}

// SetCredential stores the credential of a provider.
func SetCredential(providerID, credential string) error {
	return Update(func(s *Settings) { s.entry(providerID).Credential = credential })
}

// SetLanguages stores the source and target languages of a provider.
func SetLanguages(providerID, source, target string) error {
	return Update(func(s *Settings) {
		ps := s.entry(providerID)
		ps.SourceLang = source
		ps.TargetLang = target
	})
}

// RemoveCredential deletes the stored credential of a provider, keeping its
// language settings.
func RemoveCredential(providerID string) error {
	s := Load()
	if ps := s.Providers[providerID]; ps == nil || ps.Credential == "" {
		return nil // Nothing to delete
	}
	return Update(func(s *Settings) {
		if ps := s.Providers[providerID]; ps != nil {
			ps.Credential = ""
		}
	})
}

// GetCredential returns the stored credential of a provider, or "".
func GetCredential(providerID string) string {
	return Load().ProviderConfig(providerID).Credential
}

// RemoveAll removes the settings file.
func RemoveAll() error {
	path, err := filePath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing settings file: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Credential resolution
// ---------------------------------------------------------------------------

// EnvVarForProvider returns the environment variable holding the credential
// of a provider, or "" when there is none.
func EnvVarForProvider(providerID string) string {
	switch providerID {
	case "google":
		return "GOOGLE_TRANSLATE_API_KEY"
	case "baidu":
		return "BAIDU_TRANSLATE_KEY"
	case "deepl":
		return "DEEPL_AUTH_KEY"
	case "youdao":
		return "YOUDAO_TRANSLATE_KEY"
	}
	return ""
}

// Credential sources reported by ResolveCredential.
const (
	SourceFlag  = "flag"
	SourceEnv   = "env"
	SourceStore = "settings"
)

// ResolveCredential returns the credential for a provider following the
// lookup order flag > environment > store, and where it came from.
func ResolveCredential(providerID, flagValue string) (credential, source string) {
	if v := strings.TrimSpace(flagValue); v != "" {
		return v, SourceFlag
	}
	if env := EnvVarForProvider(providerID); env != "" {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			return v, SourceEnv
		}
	}
	if v := GetCredential(providerID); v != "" {
		return v, SourceStore
	}
	return "", ""
}

// MaskKey returns a masked version of a key for display.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
