package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"github.com/thoas/go-funk"
	"github.com/yeyushilai/VMware-Manager/internal/util"
	"github.com/yeyushilai/VMware-Manager/internal/vsphere"
	"sigs.k8s.io/yaml"
)

// DefaultConfigFile is read when it exists and no other file is given.
const DefaultConfigFile = "/etc/vmware-manager/config.yaml"

var logFormats = []string{"console", "json"}

type Config struct {
	VSphere *VSphereConfig `json:"vsphere"`
	Service *ServiceConfig `json:"service"`
}

type VSphereConfig struct {
	URL      string `envconfig:"VSPHERE_URL" json:"url" validate:"required"`
	Username string `envconfig:"VSPHERE_USERNAME" json:"username"`
	Password string `envconfig:"VSPHERE_PASSWORD" json:"password"`
	// Insecure skips certificate verification for the vSphere connection only.
	Insecure    bool          `envconfig:"VSPHERE_INSECURE" default:"false" json:"insecure"`
	Timeout     util.Duration `envconfig:"VSPHERE_TIMEOUT" default:"200s" json:"timeout"`
	GracePeriod util.Duration `envconfig:"VSPHERE_GUEST_GRACE_PERIOD" default:"10s" json:"guestGracePeriod"`
	KeepAlive   util.Duration `envconfig:"VSPHERE_KEEPALIVE" default:"10m" json:"keepAlive"`
}

type ServiceConfig struct {
	Address            string   `envconfig:"VMWARE_MANAGER_ADDRESS" default:":8080" json:"address" validate:"required"`
	PathPrefix         string   `envconfig:"VMWARE_MANAGER_PATH_PREFIX" default:"" json:"pathPrefix"`
	LogLevel           string   `envconfig:"VMWARE_MANAGER_LOG_LEVEL" default:"info" json:"logLevel"`
	LogFormat          string   `envconfig:"VMWARE_MANAGER_LOG_FORMAT" default:"console" json:"logFormat"`
	CorsAllowedOrigins []string `envconfig:"VMWARE_MANAGER_CORS_ALLOWED_ORIGINS" default:"*" json:"corsAllowedOrigins"`
	TLSCertFile        string   `envconfig:"VMWARE_MANAGER_TLS_CERT" default:"" json:"tlsCertFile"`
	TLSKeyFile         string   `envconfig:"VMWARE_MANAGER_TLS_KEY" default:"" json:"tlsKeyFile"`
}

// New reads the configuration from the environment on top of the defaults.
func New() (*Config, error) {
	cfg := new(Config)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads the environment and then, when cfgFile is set, the YAML file.
// Values in the file override the environment.
func Load(cfgFile string) (*Config, error) {
	cfg, err := New()
	if err != nil {
		return nil, err
	}
	if cfgFile == "" {
		if _, err := os.Stat(DefaultConfigFile); err != nil {
			return cfg, nil
		}
		cfgFile = DefaultConfigFile
	}
	if err := cfg.ParseConfigFile(cfgFile); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseConfigFile reads the config file and unmarshals it into the Config struct
func (cfg *Config) ParseConfigFile(cfgFile string) error {
	contents, err := os.ReadFile(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(contents, cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config file: %w", err)
	}
	return nil
}

// Validate checks the fields needed to reach vSphere.
func (cfg *Config) Validate() error {
	if cfg.VSphere == nil || cfg.Service == nil {
		return errors.New("configuration is incomplete")
	}
	if err := validator.New().Struct(cfg.VSphere); err != nil {
		return fmt.Errorf("vsphere: %w", err)
	}
	u, err := url.ParseRequestURI(cfg.VSphere.URL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("vsphere: invalid url %q", cfg.VSphere.URL)
	}
	if cfg.VSphere.Timeout.Duration() <= 0 {
		return errors.New("vsphere: timeout must be positive")
	}
	if cfg.VSphere.GracePeriod.Duration() < 0 {
		return errors.New("vsphere: guest grace period must not be negative")
	}
	if cfg.VSphere.KeepAlive.Duration() < 0 {
		return errors.New("vsphere: keep-alive interval must not be negative")
	}
	return cfg.ValidateService()
}

// ValidateService checks only the HTTP service fields.
func (cfg *Config) ValidateService() error {
	if cfg.Service == nil {
		return errors.New("configuration is incomplete")
	}
	if err := validator.New().Struct(cfg.Service); err != nil {
		return fmt.Errorf("service: %w", err)
	}
	if !funk.ContainsString(logFormats, cfg.Service.LogFormat) {
		return fmt.Errorf("service: log format must be one of %v", logFormats)
	}
	if (cfg.Service.TLSCertFile == "") != (cfg.Service.TLSKeyFile == "") {
		return errors.New("service: tls cert and key must be set together")
	}
	return nil
}

// SessionConfig is the vSphere session configuration.
func (cfg *Config) SessionConfig() vsphere.Config {
	return vsphere.Config{
		URL:       cfg.VSphere.URL,
		Username:  cfg.VSphere.Username,
		Password:  cfg.VSphere.Password,
		Insecure:  cfg.VSphere.Insecure,
		Timeout:   cfg.VSphere.Timeout.Duration(),
		KeepAlive: cfg.VSphere.KeepAlive.Duration(),
	}
}

func (cfg *Config) GracePeriod() time.Duration {
	return cfg.VSphere.GracePeriod.Duration()
}

// String renders the configuration with the password and any credentials
// embedded in the URL masked.
func (cfg *Config) String() string {
	masked := *cfg
	if cfg.VSphere != nil {
		vs := *cfg.VSphere
		if vs.Password != "" {
			vs.Password = "*****"
		}
		if u, err := url.Parse(vs.URL); err == nil && u.User != nil {
			vs.URL = u.Redacted()
		}
		masked.VSphere = &vs
	}
	contents, err := json.Marshal(masked)
	if err != nil {
		return "<error>"
	}
	return string(contents)
}
