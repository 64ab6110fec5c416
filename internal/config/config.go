package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	appErrors "uacommander/internal/errors"

	"github.com/spf13/viper"
)

const (
	KeyEndpoint       = "endpoint"
	KeySecurityMode   = "security.mode"
	KeySecurityPolicy = "security.policy"
	KeyUserName       = "auth.username"
	KeyPassword       = "auth.password"
	KeyMonitorNode    = "node"

	KeySnapshotPath  = "snapshot.path"
	KeySnapshotWatch = "snapshot.watch"

	KeyBrowseTimeout              = "browse.timeout"
	KeyPublishingInterval         = "subscription.publishing-interval"
	KeySamplingInterval           = "monitor.sampling-interval"
	KeyQueueSize                  = "monitor.queue-size"
	KeyAttributesDebounce         = "attributes.debounce"
	KeyLogMaxLines                = "log.max-lines"
	KeyOutputFormat               = "output.format"
	KeyDebug                      = "debug"
	DefaultEndpoint               = "opc.tcp://localhost:26543"
	DefaultBrowseTimeout          = 10 * time.Second
	DefaultPublishingInterval     = 100 * time.Millisecond
	DefaultSamplingInterval       = time.Second
	DefaultQueueSize              = 100
	DefaultAttributesDebounce     = 100 * time.Millisecond
	DefaultLogMaxLines            = 500
	DefaultOutputFormat           = "rich"
	envPrefix                     = "UAC"
	configDirName                 = ".uacommander"
	configFileName                = "config.yaml"
	securityModeNone              = "None"
	securityModeSign              = "Sign"
	securityModeSignAndEncryption = "SignAndEncrypt"
)

type initSettings struct {
	workingDir        string
	projectConfigPath string
	userConfigPath    string
}

// Option configures Initialize behaviour. Useful for tests to override paths.
type Option func(*initSettings)

// WithWorkingDir overrides the directory used for project config discovery.
func WithWorkingDir(dir string) Option {
	return func(cfg *initSettings) {
		cfg.workingDir = dir
	}
}

// WithProjectConfig explicitly sets the project config path instead of discovery.
func WithProjectConfig(path string) Option {
	return func(cfg *initSettings) {
		cfg.projectConfigPath = path
	}
}

// WithUserConfig overrides the default user config path.
func WithUserConfig(path string) Option {
	return func(cfg *initSettings) {
		cfg.userConfigPath = path
	}
}

var (
	configOnce sync.Once
	configMu   sync.RWMutex
	configInst *viper.Viper
	initErr    error
)

// Initialize loads configuration using the precedence:
// defaults < user config < project config < environment variables < overrides.
func Initialize(opts ...Option) error {
	configOnce.Do(func() {
		settings := initSettings{}
		for _, opt := range opts {
			opt(&settings)
		}
		initErr = configure(&settings)
	})
	return initErr
}

// ApplyOverrides injects values typically coming from CLI flags.
func ApplyOverrides(overrides map[string]any) error {
	if len(overrides) == 0 {
		return nil
	}
	if err := Initialize(); err != nil {
		return err
	}
	configMu.Lock()
	defer configMu.Unlock()
	if configInst == nil {
		return fmt.Errorf("configuration not initialized")
	}
	for k, v := range overrides {
		configInst.Set(k, v)
	}
	return nil
}

// GetString fetches a string configuration value, initializing on demand.
func GetString(key string) string {
	v, err := getViper()
	if err != nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool fetches a bool configuration value, initializing on demand.
func GetBool(key string) bool {
	v, err := getViper()
	if err != nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt fetches an integer configuration value, initializing on demand.
func GetInt(key string) int {
	v, err := getViper()
	if err != nil {
		return 0
	}
	return v.GetInt(key)
}

// GetDuration fetches a duration configuration value, initializing on demand.
func GetDuration(key string) time.Duration {
	v, err := getViper()
	if err != nil {
		return 0
	}
	return v.GetDuration(key)
}

// Settings is the typed view of the configuration consumed by the UI and
// the address space clients.
type Settings struct {
	Endpoint           string
	SecurityMode       string
	SecurityPolicy     string
	UserName           string
	Password           string
	MonitorNode        string
	SnapshotPath       string
	SnapshotWatch      bool
	BrowseTimeout      time.Duration
	PublishingInterval time.Duration
	SamplingInterval   time.Duration
	QueueSize          int
	AttributesDebounce time.Duration
	LogMaxLines        int
	OutputFormat       string
	Debug              bool
}

// Load resolves the current configuration into Settings and validates it.
func Load() (Settings, error) {
	if err := Initialize(); err != nil {
		return Settings{}, appErrors.New(appErrors.CodeConfigurationError, "load configuration", err)
	}
	s := Settings{
		Endpoint:           strings.TrimSpace(GetString(KeyEndpoint)),
		SecurityMode:       canonicalSecurityMode(GetString(KeySecurityMode)),
		SecurityPolicy:     strings.TrimSpace(GetString(KeySecurityPolicy)),
		UserName:           GetString(KeyUserName),
		Password:           GetString(KeyPassword),
		MonitorNode:        strings.TrimSpace(GetString(KeyMonitorNode)),
		SnapshotPath:       strings.TrimSpace(GetString(KeySnapshotPath)),
		SnapshotWatch:      GetBool(KeySnapshotWatch),
		BrowseTimeout:      GetDuration(KeyBrowseTimeout),
		PublishingInterval: GetDuration(KeyPublishingInterval),
		SamplingInterval:   GetDuration(KeySamplingInterval),
		QueueSize:          GetInt(KeyQueueSize),
		AttributesDebounce: GetDuration(KeyAttributesDebounce),
		LogMaxLines:        GetInt(KeyLogMaxLines),
		OutputFormat:       strings.ToLower(strings.TrimSpace(GetString(KeyOutputFormat))),
		Debug:              GetBool(KeyDebug),
	}
	return s, s.Validate()
}

// canonicalSecurityMode maps a mode name given in any case onto its
// canonical spelling. Unknown names are returned trimmed for Validate.
func canonicalSecurityMode(mode string) string {
	mode = strings.TrimSpace(mode)
	for _, m := range []string{securityModeNone, securityModeSign, securityModeSignAndEncryption} {
		if strings.EqualFold(mode, m) {
			return m
		}
	}
	return mode
}

// Validate reports the first invalid setting.
func (s Settings) Validate() error {
	if s.SnapshotPath == "" && s.Endpoint == "" {
		return appErrors.New(appErrors.CodeConfigurationError, "an endpoint or a snapshot path is required", nil)
	}
	switch s.SecurityMode {
	case securityModeNone, securityModeSign, securityModeSignAndEncryption:
	default:
		return appErrors.New(appErrors.CodeConfigurationError,
			fmt.Sprintf("invalid security mode %q, should be one of %s %s %s",
				s.SecurityMode, securityModeNone, securityModeSign, securityModeSignAndEncryption), nil)
	}
	if s.SecurityPolicy == "" {
		return appErrors.New(appErrors.CodeConfigurationError, "security policy must not be empty", nil)
	}
	if s.QueueSize <= 0 {
		return appErrors.New(appErrors.CodeConfigurationError, fmt.Sprintf("monitor queue size must be positive, got %d", s.QueueSize), nil)
	}
	if s.LogMaxLines <= 0 {
		return appErrors.New(appErrors.CodeConfigurationError, fmt.Sprintf("log max lines must be positive, got %d", s.LogMaxLines), nil)
	}
	switch s.OutputFormat {
	case "", "rich", "dark", "light", "plain":
	default:
		return appErrors.New(appErrors.CodeConfigurationError,
			fmt.Sprintf("invalid output format %q, should be one of rich dark light plain", s.OutputFormat), nil)
	}
	return nil
}

func configure(settings *initSettings) error {
	workingDir := strings.TrimSpace(settings.workingDir)
	if workingDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("determine working directory: %w", err)
		}
		workingDir = wd
	}

	userConfigPath := strings.TrimSpace(settings.userConfigPath)
	if userConfigPath == "" {
		path, err := defaultUserConfigPath()
		if err != nil {
			return err
		}
		userConfigPath = path
	}

	projectConfigPath := strings.TrimSpace(settings.projectConfigPath)
	if projectConfigPath == "" {
		path, err := findProjectConfig(workingDir)
		if err != nil {
			return err
		}
		projectConfigPath = path
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := mergeConfigFile(v, userConfigPath); err != nil {
		return fmt.Errorf("load user config: %w", err)
	}
	if err := mergeConfigFile(v, projectConfigPath); err != nil {
		return fmt.Errorf("load project config: %w", err)
	}

	configMu.Lock()
	defer configMu.Unlock()
	configInst = v
	return nil
}

func mergeConfigFile(v *viper.Viper, path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("config path %s is a directory", path)
	}
	//nolint:gosec // G304: Config loader intentionally reads user and project config files
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determine user home: %w", err)
	}
	return filepath.Join(home, configDirName, configFileName), nil
}

func findProjectConfig(startDir string) (string, error) {
	if strings.TrimSpace(startDir) == "" {
		return "", nil
	}
	dir := startDir
	for {
		candidate := filepath.Join(dir, configDirName, configFileName)
		info, err := os.Stat(candidate)
		if err == nil {
			if info.IsDir() {
				return "", fmt.Errorf("config path %s is a directory", candidate)
			}
			return candidate, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("stat %s: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyEndpoint, DefaultEndpoint)
	v.SetDefault(KeySecurityMode, securityModeNone)
	v.SetDefault(KeySecurityPolicy, "None")
	v.SetDefault(KeyUserName, "")
	v.SetDefault(KeyPassword, "")
	v.SetDefault(KeyMonitorNode, "")
	v.SetDefault(KeySnapshotPath, "")
	v.SetDefault(KeySnapshotWatch, true)
	v.SetDefault(KeyBrowseTimeout, DefaultBrowseTimeout)
	v.SetDefault(KeyPublishingInterval, DefaultPublishingInterval)
	v.SetDefault(KeySamplingInterval, DefaultSamplingInterval)
	v.SetDefault(KeyQueueSize, DefaultQueueSize)
	v.SetDefault(KeyAttributesDebounce, DefaultAttributesDebounce)
	v.SetDefault(KeyLogMaxLines, DefaultLogMaxLines)
	v.SetDefault(KeyOutputFormat, DefaultOutputFormat)
	v.SetDefault(KeyDebug, false)
}

func getViper() (*viper.Viper, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}
	configMu.RLock()
	defer configMu.RUnlock()
	if configInst == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}
	return configInst, nil
}

// reset clears package state for tests.
func reset() {
	configMu.Lock()
	defer configMu.Unlock()
	configInst = nil
	initErr = nil
	configOnce = sync.Once{}
}

// ResetForTesting clears package state for tests in other packages.
// Returns a cleanup function that should be deferred.
func ResetForTesting(t interface{ TempDir() string }) func() {
	reset()
	tmp := t.TempDir()
	_ = Initialize(WithWorkingDir(tmp), WithUserConfig(filepath.Join(tmp, "user.yaml")))
	return reset
}
