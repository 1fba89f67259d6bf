package config

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	twitter "github.com/anatolykoptev/go-twitter-digest"
)

//go:embed default_config.yaml
var defaultConfigFS embed.FS

const appName = "xdigest"

// maxHours bounds the recency window so Window cannot overflow.
const maxHours = 24 * 365

type Config struct {
	MinLikes        int           `yaml:"min_likes"`
	MaxPages        int           `yaml:"max_pages"`
	Hours           float64       `yaml:"hours"`
	TimelineQueryID string        `yaml:"timeline_query_id"`
	PageSize        int           `yaml:"page_size"`
	PageDelay       time.Duration `yaml:"page_delay"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	Retries         int           `yaml:"retries"`
	Proxy           string        `yaml:"proxy"`
	UserAgent       string        `yaml:"user_agent"`
	OutputDir       string        `yaml:"output_dir"`
	CategoriesFile  string        `yaml:"categories_file"`
	OpenBrowser     bool          `yaml:"open_browser"`
	StopAtCutoff    bool          `yaml:"stop_at_cutoff"`

	// Path is the file the config was loaded from; SaveQueryID writes back to it.
	Path string `yaml:"-"`
}

// Window returns the recency window as a duration.
func (c *Config) Window() time.Duration {
	return time.Duration(c.Hours * float64(time.Hour))
}

// ClientConfig maps the fetch settings onto the timeline client.
func (c *Config) ClientConfig() twitter.ClientConfig {
	return twitter.ClientConfig{
		QueryID:        c.TimelineQueryID,
		Proxy:          c.Proxy,
		UserAgent:      c.UserAgent,
		PageSize:       c.PageSize,
		PageDelay:      c.PageDelay,
		RequestTimeout: c.RequestTimeout,
		Retries:        c.Retries,
	}
}

func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, appName, "config.yaml")
}

func DefaultCredentialsPath() string {
	return filepath.Join(xdg.ConfigHome, appName, "tokens.json")
}

func DefaultCategoriesPath() string {
	return filepath.Join(xdg.ConfigHome, appName, "categories.yaml")
}

func DefaultOutputDir() string {
	return filepath.Join(xdg.DataHome, appName, "digests")
}

// Default returns the embedded defaults with XDG paths filled in.
func Default() (*Config, error) {
	data, err := defaultConfigFS.ReadFile("default_config.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded config: %w", err)
	}
	cfg.Path = DefaultPath()
	cfg.resolvePaths()
	return &cfg, nil
}

// Load reads a YAML or JSON config file over the defaults. A missing file
// yields the defaults. Relative paths inside the file are resolved against
// the file's directory.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}
	if path == "" {
		path = DefaultPath()
	}
	cfg.Path = path
	cfg.OutputDir, cfg.CategoriesFile = "", ""

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.resolvePaths()
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &twitter.ConfigurationError{Field: "config", Reason: fmt.Sprintf("parsing %s: %v", path, err)}
	}
	cfg.Path = path
	cfg.resolvePaths()
	return cfg, nil
}

func (c *Config) resolvePaths() {
	base := filepath.Dir(c.Path)
	switch {
	case c.OutputDir == "":
		c.OutputDir = DefaultOutputDir()
	case !filepath.IsAbs(c.OutputDir):
		c.OutputDir = filepath.Join(base, c.OutputDir)
	}
	switch {
	case c.CategoriesFile == "":
		c.CategoriesFile = filepath.Join(base, "categories.yaml")
	case !filepath.IsAbs(c.CategoriesFile):
		c.CategoriesFile = filepath.Join(base, c.CategoriesFile)
	}
}

// SaveQueryID records qid as timeline_query_id in the file at c.Path and
// leaves every other setting in that file as written. YAML files keep their
// comments and key order; JSON files stay JSON. A missing file is created
// holding only the query ID.
func (c *Config) SaveQueryID(qid string) error {
	if c.Path == "" {
		c.Path = DefaultPath()
	}
	data, err := os.ReadFile(c.Path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config: %w", err)
	}

	var out []byte
	if isJSON(data) {
		out, err = setJSONKey(data, queryIDKey, qid)
	} else {
		out, err = setYAMLKey(data, queryIDKey, qid)
	}
	if err != nil {
		return fmt.Errorf("update config %s: %w", c.Path, err)
	}

	if err := os.MkdirAll(filepath.Dir(c.Path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(c.Path, out, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", c.Path, err)
	}
	c.TimelineQueryID = qid
	return nil
}

const queryIDKey = "timeline_query_id"

func isJSON(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func setJSONKey(data []byte, key, value string) ([]byte, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	doc[key] = raw
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

func setYAMLKey(data []byte, key, value string) ([]byte, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind == 0 {
		doc.Kind = yaml.DocumentNode
	}
	if len(doc.Content) == 0 {
		doc.Content = append(doc.Content, &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"})
	}
	m := doc.Content[0]
	if m.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("top level is not a mapping")
	}

	val := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value, Style: yaml.DoubleQuotedStyle}
	found := false
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			val.LineComment = m.Content[i+1].LineComment
			m.Content[i+1] = val
			found = true
			break
		}
	}
	if !found {
		m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, val)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Validate checks every setting. A missing query ID is allowed here because
// the CLI prompts for it; a malformed one is not.
func (c *Config) Validate() error {
	switch {
	case c.MinLikes < 0:
		return invalid("min_likes", "must be >= 0, got %d", c.MinLikes)
	case c.MaxPages <= 0:
		return invalid("max_pages", "must be > 0, got %d", c.MaxPages)
	case c.Hours <= 0 || c.Hours > maxHours:
		return invalid("hours", "must be between 0 and %d, got %v", maxHours, c.Hours)
	case c.PageSize <= 0 || c.PageSize > 200:
		return invalid("page_size", "must be between 1 and 200, got %d", c.PageSize)
	case c.PageDelay < 0:
		return invalid("page_delay", "must not be negative, got %s", c.PageDelay)
	case c.RequestTimeout <= 0:
		return invalid("request_timeout", "must be > 0, got %s", c.RequestTimeout)
	case c.Retries < 0 || c.Retries > 10:
		return invalid("retries", "must be between 0 and 10, got %d", c.Retries)
	}
	if c.TimelineQueryID != "" {
		if err := twitter.ValidateQueryID(c.TimelineQueryID); err != nil {
			return err
		}
	}
	if c.Proxy != "" {
		u, err := url.Parse(c.Proxy)
		if err != nil || u.Host == "" {
			return invalid("proxy", "invalid url %q", c.Proxy)
		}
		switch u.Scheme {
		case "http", "https", "socks5", "socks5h":
		default:
			return invalid("proxy", "unsupported scheme %q (valid: http, https, socks5)", u.Scheme)
		}
	}
	return nil
}

func invalid(field, format string, args ...any) error {
	return &twitter.ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
