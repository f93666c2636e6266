package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	defaultDBName  = "finge.db"
	defaultEpsilon = 0.1
)

// UserConfig is the JSON config file. Secrets never live here; API keys come
// from the environment only.
type UserConfig struct {
	DBName           string             `json:"db_name"`
	DataDir          string             `json:"data_dir"`
	Vision           VisionSettings     `json:"vision"`
	ImageStore       ImageStoreSettings `json:"image_store"`
	RecommendEpsilon *float64           `json:"recommend_epsilon,omitempty" validate:"omitempty,gte=0,lte=1"`
	RecommendTickers []string           `json:"recommend_tickers,omitempty" validate:"omitempty,dive,required,max=10"`
}

type VisionSettings struct {
	Provider string `json:"provider" validate:"omitempty,oneof=openai anthropic gemini"`
	BaseURL  string `json:"base_url" validate:"omitempty,url"`
	Model    string `json:"model"`
	// APIKey is filled from the environment.
	APIKey string `json:"-"`
}

type ImageStoreSettings struct {
	Kind     string `json:"kind" validate:"omitempty,oneof=local s3"`
	Bucket   string `json:"bucket" validate:"required_if=Kind s3"`
	Region   string `json:"region"`
	Endpoint string `json:"endpoint" validate:"omitempty,url"`
	Prefix   string `json:"prefix"`
}

// Settings is the resolved configuration the server runs with.
type Settings struct {
	DataDir          string
	DBPath           string
	Vision           VisionSettings
	ImageStore       ImageStoreSettings
	RecommendEpsilon float64
	RecommendTickers []string
}

var runtimeDataDir string
var runtimePort = 8000

var validate = validator.New()

func IsMacOS() bool {
	return runtime.GOOS == "darwin"
}

func IsWindows() bool {
	return runtime.GOOS == "windows"
}

func SetRuntimeDataDir(dir string) {
	runtimeDataDir = dir
}

func SetRuntimePort(port int) {
	if port > 0 {
		runtimePort = port
	}
}

func GetRuntimePort() int {
	return runtimePort
}

// LoadEnvFiles reads .env style files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadEnvFiles(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

func appConfigDir() (string, error) {
	if IsMacOS() {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support", "Finge"), nil
	}
	if IsWindows() {
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = home
		}
		return filepath.Join(appData, "Finge"), nil
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", "finge"), nil
	}
	return filepath.Join(configDir, "finge"), nil
}

func appConfigPath() (string, error) {
	if path := os.Getenv("FINGE_CONFIG"); path != "" {
		return path, nil
	}
	dir, err := appConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// localConfigPath finds a config.json next to the working directory or the
// executable.
func localConfigPath() string {
	if cwd, err := os.Getwd(); err == nil {
		candidate := filepath.Join(cwd, "config.json")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), "config.json")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// LoadUserConfig reads the config file, preferring the app config dir. A
// missing or unreadable file yields defaults.
func LoadUserConfig() UserConfig {
	defaults := UserConfig{DBName: defaultDBName}
	configPath, err := appConfigPath()
	if err != nil {
		return defaults
	}
	pathToUse := ""
	if _, err := os.Stat(configPath); err == nil {
		pathToUse = configPath
	} else if local := localConfigPath(); local != "" {
		pathToUse = local
	}
	if pathToUse == "" {
		return defaults
	}
	data, err := os.ReadFile(pathToUse)
	if err != nil {
		return defaults
	}
	cfg := defaults
	if err := json.Unmarshal(data, &cfg); err != nil {
		return defaults
	}
	if cfg.DBName == "" {
		cfg.DBName = defaultDBName
	}
	return cfg
}

// SaveUserConfig writes cfg to the app config path.
func SaveUserConfig(cfg UserConfig) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	path, err := appConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func IsFirstRun() bool {
	path, err := appConfigPath()
	if err != nil {
		return true
	}
	_, err = os.Stat(path)
	return err != nil
}

func GetDataDir() (string, error) {
	dir := runtimeDataDir
	if dir == "" {
		dir = os.Getenv("FINGE_DATA_DIR")
	}
	if dir == "" {
		dir = LoadUserConfig().DataDir
	}
	if dir == "" {
		defaultDir, err := appConfigDir()
		if err != nil {
			return "", err
		}
		dir = defaultDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

func GetDBPath() (string, error) {
	if envPath := os.Getenv("FINGE_DB_PATH"); envPath != "" {
		return envPath, nil
	}
	cfg := LoadUserConfig()
	dataDir, err := GetDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, cfg.DBName), nil
}

// Load resolves the full configuration: config file, then environment.
func Load() (Settings, error) {
	cfg := LoadUserConfig()
	applyEnv(&cfg)
	if err := validate.Struct(cfg); err != nil {
		return Settings{}, fmt.Errorf("invalid config: %w", err)
	}

	dataDir, err := GetDataDir()
	if err != nil {
		return Settings{}, err
	}
	dbPath, err := GetDBPath()
	if err != nil {
		return Settings{}, err
	}
	epsilon := defaultEpsilon
	if cfg.RecommendEpsilon != nil {
		epsilon = *cfg.RecommendEpsilon
	}
	if cfg.ImageStore.Kind == "" {
		cfg.ImageStore.Kind = "local"
	}
	return Settings{
		DataDir:          dataDir,
		DBPath:           dbPath,
		Vision:           cfg.Vision,
		ImageStore:       cfg.ImageStore,
		RecommendEpsilon: epsilon,
		RecommendTickers: cfg.RecommendTickers,
	}, nil
}

func applyEnv(cfg *UserConfig) {
	setFromEnv(&cfg.Vision.Provider, "FINGE_VISION_PROVIDER")
	setFromEnv(&cfg.Vision.BaseURL, "FINGE_VISION_BASE_URL")
	setFromEnv(&cfg.Vision.Model, "FINGE_VISION_MODEL")
	cfg.Vision.Provider = strings.ToLower(strings.TrimSpace(cfg.Vision.Provider))
	cfg.Vision.APIKey = visionAPIKey(cfg.Vision.Provider)

	setFromEnv(&cfg.ImageStore.Bucket, "FINGE_S3_BUCKET")
	setFromEnv(&cfg.ImageStore.Region, "FINGE_S3_REGION")
	setFromEnv(&cfg.ImageStore.Endpoint, "FINGE_S3_ENDPOINT")
	setFromEnv(&cfg.ImageStore.Prefix, "FINGE_S3_PREFIX")
	if os.Getenv("FINGE_S3_BUCKET") != "" {
		cfg.ImageStore.Kind = "s3"
	}

	if raw := strings.TrimSpace(os.Getenv("FINGE_RECOMMEND_EPSILON")); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			cfg.RecommendEpsilon = &v
		}
	}
	if raw := strings.TrimSpace(os.Getenv("FINGE_RECOMMEND_TICKERS")); raw != "" {
		var tickers []string
		for _, ticker := range strings.Split(raw, ",") {
			if ticker = strings.ToUpper(strings.TrimSpace(ticker)); ticker != "" {
				tickers = append(tickers, ticker)
			}
		}
		cfg.RecommendTickers = tickers
	}
}

// visionAPIKey prefers FINGE_VISION_API_KEY, then the provider's own variable.
func visionAPIKey(provider string) string {
	if key := strings.TrimSpace(os.Getenv("FINGE_VISION_API_KEY")); key != "" {
		return key
	}
	switch provider {
	case "anthropic":
		return strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	case "gemini":
		return strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	default:
		return strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	}
}

func setFromEnv(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}
