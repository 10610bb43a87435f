package config

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/c360/exchange/errors"
	"github.com/c360/exchange/pkg/tlsutil"
)

// Config file names, without the .json extension.
const (
	KafkaFile = "kafka_config"
	AzureFile = "azure_config"
	APIFile   = "api_config"
	NATSFile  = "nats_config"
)

// KnownFiles lists every config file the CLI understands.
var KnownFiles = []string{KafkaFile, AzureFile, APIFile, NATSFile}

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "EXCHANGE"
	// DirEnv overrides the config directory when no flag is given.
	DirEnv = EnvPrefix + "_CONFIG_DIR"

	defaultMessageTimeoutMs    = 5000
	defaultConnectionMaxIdleMs = 540000
	defaultNATSURL             = "nats://localhost:4222"
)

// KafkaConfig is the content of kafka_config.json.
type KafkaConfig struct {
	BootstrapServers    string `json:"bootstrap_servers"`
	GroupID             string `json:"group_id"`
	MessageTimeoutMs    int    `json:"message_timeout_ms"`
	ConnectionMaxIdleMs int    `json:"connection_max_idle_ms"`
	ClientID            string `json:"client_id,omitempty"`
	SASLUsername        string `json:"sasl_username,omitempty"`
	SASLPassword        string `json:"sasl_password,omitempty"`
	TLS                 bool   `json:"tls,omitempty"`
	TLSInsecure         bool   `json:"tls_insecure,omitempty"`
	TLSCAFile           string `json:"tls_ca_file,omitempty"`
	TLSCertFile         string `json:"tls_cert_file,omitempty"`
	TLSKeyFile          string `json:"tls_key_file,omitempty"`
}

// ClientTLS returns the TLS settings for broker connections.
func (k KafkaConfig) ClientTLS() tlsutil.ClientConfig {
	return clientTLS(k.TLS, k.TLSInsecure, k.TLSCAFile, k.TLSCertFile, k.TLSKeyFile)
}

// Brokers splits BootstrapServers into host:port entries.
func (k KafkaConfig) Brokers() []string {
	var brokers []string
	for _, b := range strings.Split(k.BootstrapServers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// MessageTimeout returns message_timeout_ms as a duration.
func (k KafkaConfig) MessageTimeout() time.Duration {
	return time.Duration(k.MessageTimeoutMs) * time.Millisecond
}

// ConnectionMaxIdle returns connection_max_idle_ms as a duration.
func (k KafkaConfig) ConnectionMaxIdle() time.Duration {
	return time.Duration(k.ConnectionMaxIdleMs) * time.Millisecond
}

// Validate checks the fields the broker clients cannot work without.
func (k KafkaConfig) Validate() error {
	if len(k.Brokers()) == 0 {
		return fmt.Errorf("%w: bootstrap_servers is empty", errors.ErrInvalidConfig)
	}
	if k.MessageTimeoutMs < 0 || k.ConnectionMaxIdleMs < 0 {
		return fmt.Errorf("%w: timeouts cannot be negative", errors.ErrInvalidConfig)
	}
	if k.SASLUsername != "" && k.SASLPassword == "" {
		return fmt.Errorf("%w: sasl_username set without sasl_password", errors.ErrInvalidConfig)
	}
	return nil
}

func (k *KafkaConfig) applyDefaults() {
	if k.MessageTimeoutMs == 0 {
		k.MessageTimeoutMs = defaultMessageTimeoutMs
	}
	if k.ConnectionMaxIdleMs == 0 {
		k.ConnectionMaxIdleMs = defaultConnectionMaxIdleMs
	}
}

// AzureConfig is the content of azure_config.json.
type AzureConfig struct {
	StorageAccountName string `json:"storage_account_name"`
	StorageAccountKey  string `json:"storage_account_key"`
	StorageContainer   string `json:"storage_container"`
	StorageBlobName    string `json:"storage_blob_name"`
	Endpoint           string `json:"endpoint,omitempty"`
}

// ServiceURL returns the blob service endpoint for the account.
func (a AzureConfig) ServiceURL() string {
	if a.Endpoint != "" {
		return strings.TrimSuffix(a.Endpoint, "/") + "/"
	}
	return fmt.Sprintf("https://%s.blob.core.windows.net/", a.StorageAccountName)
}

// Validate checks that credentials are present.
func (a AzureConfig) Validate() error {
	if a.StorageAccountName == "" {
		return fmt.Errorf("%w: storage_account_name is empty", errors.ErrInvalidConfig)
	}
	if a.StorageAccountKey == "" {
		return fmt.Errorf("%w: storage_account_key is empty", errors.ErrInvalidConfig)
	}
	return nil
}

// APIDetails is one entry of api_config.json.
type APIDetails struct {
	URL         string `json:"url"`
	APIKey      string `json:"apikey"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
}

// APIConfig maps API names to their details.
type APIConfig map[string]APIDetails

// Names returns the configured API names in sorted order.
func (c APIConfig) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NATSConfig is the content of nats_config.json.
type NATSConfig struct {
	URLs           []string `json:"urls"`
	Username       string   `json:"username,omitempty"`
	Password       string   `json:"password,omitempty"`
	Token          string   `json:"token,omitempty"`
	BucketReplicas int      `json:"bucket_replicas,omitempty"`
	TLS            bool     `json:"tls,omitempty"`
	TLSInsecure    bool     `json:"tls_insecure,omitempty"`
	TLSCAFile      string   `json:"tls_ca_file,omitempty"`
	TLSCertFile    string   `json:"tls_cert_file,omitempty"`
	TLSKeyFile     string   `json:"tls_key_file,omitempty"`
}

// ClientTLS returns the TLS settings for the NATS connection.
func (n NATSConfig) ClientTLS() tlsutil.ClientConfig {
	return clientTLS(n.TLS, n.TLSInsecure, n.TLSCAFile, n.TLSCertFile, n.TLSKeyFile)
}

func clientTLS(enabled, insecure bool, caFile, certFile, keyFile string) tlsutil.ClientConfig {
	cfg := tlsutil.ClientConfig{
		Enabled:            enabled,
		CertFile:           certFile,
		KeyFile:            keyFile,
		InsecureSkipVerify: insecure,
	}
	if caFile != "" {
		cfg.CAFiles = []string{caFile}
	}
	return cfg
}

// URL joins the server list the way nats.Connect expects it.
func (n NATSConfig) URL() string {
	return strings.Join(n.URLs, ",")
}

// Loader reads config files from a single directory.
type Loader struct {
	dir       string
	envPrefix string
}

// Load returns a Loader for dir. An empty dir resolves to the default
// location.
func Load(dir string) *Loader {
	resolved, err := ResolveDir(dir)
	if err != nil {
		resolved = dir
	}
	return &Loader{dir: resolved, envPrefix: EnvPrefix}
}

// DefaultDir returns ~/.config/exchange.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.WrapFatal(err, "config", "DefaultDir", "resolve home directory")
	}
	return filepath.Join(home, ".config", "exchange"), nil
}

// ResolveDir picks the config directory: flag value, then EXCHANGE_CONFIG_DIR,
// then the default. A leading ~ is expanded and the result is absolute.
func ResolveDir(flagValue string) (string, error) {
	dir := flagValue
	if dir == "" {
		dir = os.Getenv(DirEnv)
	}
	if dir == "" {
		return DefaultDir()
	}
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.WrapFatal(err, "config", "ResolveDir", "expand home directory")
		}
		dir = filepath.Join(home, strings.TrimPrefix(dir, "~"))
	}
	return filepath.Abs(dir)
}

// Dir returns the directory the Loader reads from.
func (l *Loader) Dir() string {
	return l.dir
}

// Path returns the location of a config file. name may carry the .json
// extension or not.
func (l *Loader) Path(name string) (string, error) {
	base, err := normalizeName(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.dir, base+".json"), nil
}

func normalizeName(name string) (string, error) {
	base := strings.TrimSuffix(strings.TrimSpace(name), ".json")
	if base == "" {
		return "", fmt.Errorf("%w: empty config file name", errors.ErrInvalidConfig)
	}
	if strings.ContainsAny(base, `/\`) || strings.Contains(base, "..") {
		return "", fmt.Errorf("%w: config file name %q must not contain a path", errors.ErrInvalidConfig, name)
	}
	return base, nil
}

// readFile returns the raw bytes of a known config file after size, depth
// and schema checks.
func (l *Loader) readFile(name string) ([]byte, string, error) {
	path, err := l.Path(name)
	if err != nil {
		return nil, "", err
	}

	data, err := safeReadFile(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, path, fmt.Errorf("%w: %s", errors.ErrConfigNotFound, path)
		}
		return nil, path, errors.WrapInvalid(err, "Loader", "readFile", "read "+filepath.Base(path))
	}

	if err := validateJSONDepth(data); err != nil {
		return nil, path, fmt.Errorf("%w: %s: %v", errors.ErrInvalidConfig, path, err)
	}
	if err := ValidateDocument(name, data); err != nil {
		return nil, path, fmt.Errorf("%s: %w", path, err)
	}
	return data, path, nil
}

func (l *Loader) decode(name string, v any) error {
	data, path, err := l.readFile(name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", errors.ErrInvalidConfig, path, err)
	}
	return nil
}

// Kafka loads kafka_config.json with defaults and environment overrides.
func (l *Loader) Kafka() (KafkaConfig, error) {
	var cfg KafkaConfig
	if err := l.decode(KafkaFile, &cfg); err != nil {
		return KafkaConfig{}, err
	}
	cfg.applyDefaults()
	l.env("_KAFKA_BOOTSTRAP_SERVERS", &cfg.BootstrapServers)
	l.env("_KAFKA_GROUP_ID", &cfg.GroupID)
	if err := cfg.Validate(); err != nil {
		return KafkaConfig{}, err
	}
	return cfg, nil
}

// Azure loads azure_config.json with environment overrides.
func (l *Loader) Azure() (AzureConfig, error) {
	var cfg AzureConfig
	if err := l.decode(AzureFile, &cfg); err != nil {
		return AzureConfig{}, err
	}
	l.env("_AZURE_ACCOUNT_NAME", &cfg.StorageAccountName)
	l.env("_AZURE_ACCOUNT_KEY", &cfg.StorageAccountKey)
	l.env("_AZURE_ENDPOINT", &cfg.Endpoint)
	if err := cfg.Validate(); err != nil {
		return AzureConfig{}, err
	}
	return cfg, nil
}

// NATS loads nats_config.json. The file is optional; without it the local
// default server is used.
func (l *Loader) NATS() (NATSConfig, error) {
	var cfg NATSConfig
	if err := l.decode(NATSFile, &cfg); err != nil {
		if !stderrors.Is(err, errors.ErrConfigNotFound) {
			return NATSConfig{}, err
		}
	}
	var urls string
	l.env("_NATS_URLS", &urls)
	if urls != "" {
		cfg.URLs = nil
		for _, u := range strings.Split(urls, ",") {
			if u = strings.TrimSpace(u); u != "" {
				cfg.URLs = append(cfg.URLs, u)
			}
		}
	}
	if len(cfg.URLs) == 0 {
		cfg.URLs = []string{defaultNATSURL}
	}
	return cfg, nil
}

// APIs loads api_config.json.
func (l *Loader) APIs() (APIConfig, error) {
	cfg := APIConfig{}
	if err := l.decode(APIFile, &cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// API returns the entry for name after checking its url and key.
func (l *Loader) API(name string) (APIDetails, error) {
	apis, err := l.APIs()
	if err != nil {
		return APIDetails{}, err
	}
	return apis.Lookup(name)
}

// Lookup returns the entry for name after checking its url and key.
func (c APIConfig) Lookup(name string) (APIDetails, error) {
	details, ok := c[name]
	if !ok {
		return APIDetails{}, fmt.Errorf("%w: %q", errors.ErrAPINotFound, name)
	}
	if strings.TrimSpace(details.URL) == "" {
		return APIDetails{}, fmt.Errorf("%w: %q", errors.ErrMissingURL, name)
	}
	if details.APIKey == "" {
		return APIDetails{}, fmt.Errorf("%w: %q", errors.ErrMissingKey, name)
	}
	if !validHeaderValue(details.APIKey) {
		return APIDetails{}, fmt.Errorf("%w: %q", errors.ErrInvalidKey, name)
	}
	return details, nil
}

// validHeaderValue rejects keys that cannot travel in an HTTP header.
func validHeaderValue(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII || unicode.IsSpace(r) || unicode.IsControl(r) {
			return false
		}
	}
	return true
}

func (l *Loader) env(suffix string, target *string) {
	key := l.envPrefix + suffix
	val := os.Getenv(key)
	if val == "" {
		return
	}
	if err := validateEnvVar(key, val); err != nil {
		return
	}
	*target = val
}
