package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"rssi-anomaly/internal/analytics"
)

// Config конфигурация приложения
type Config struct {
	ServerPort string `yaml:"serverPort"`
	LogLevel   string `yaml:"logLevel"`
	LogFile    string `yaml:"logFile"`
	LogMaxMB   int    `yaml:"logMaxMb"`

	ScalerPath        string  `yaml:"scalerPath"`
	ModelPath         string  `yaml:"modelPath"`
	SequenceLength    int     `yaml:"sequenceLength"`
	AnomalyThreshold  float64 `yaml:"anomalyThreshold"`
	AnomalyPolicy     string  `yaml:"anomalyPolicy"`
	PredictWorkers    int     `yaml:"predictWorkers"`
	PredictTimeoutMS  int     `yaml:"predictTimeoutMs"`
	DataDir           string  `yaml:"dataDir"`
	ResultsFile       string  `yaml:"resultsFile"`
	MaxUploadMB       int     `yaml:"maxUploadMb"`
	RedisEnabled      bool    `yaml:"redisEnabled"`
	RedisAddr         string  `yaml:"redisAddr"`
	RedisPassword     string  `yaml:"redisPassword"`
	RedisDB           int     `yaml:"redisDb"`
	ResultsTTLMinutes int     `yaml:"resultsTtlMinutes"`
	LocalCacheSize    int     `yaml:"localCacheSize"`

	CORSOrigins []string `yaml:"corsOrigins"`
}

// Defaults значения по умолчанию
func Defaults() Config {
	return Config{
		ServerPort:        "8080",
		LogLevel:          "info",
		LogMaxMB:          100,
		ScalerPath:        "model/scaler.json",
		ModelPath:         "model/model.json",
		SequenceLength:    10,
		AnomalyThreshold:  analytics.DefaultThreshold,
		AnomalyPolicy:     string(analytics.PolicyDeviation),
		PredictWorkers:    4,
		PredictTimeoutMS:  5000,
		DataDir:           "data",
		ResultsFile:       "predictions.csv",
		MaxUploadMB:       32,
		RedisEnabled:      false,
		RedisAddr:         "localhost:6379",
		RedisDB:           0,
		ResultsTTLMinutes: 60,
		LocalCacheSize:    256,
	}
}

// Load собирает конфигурацию: значения по умолчанию, затем YAML файл из
// CONFIG_PATH (если задан), затем environment variables.
func Load() (Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}

	cfg.ServerPort = getEnv("SERVER_PORT", cfg.ServerPort)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFile = getEnv("LOG_FILE", cfg.LogFile)
	cfg.LogMaxMB = getEnvAsInt("LOG_MAX_MB", cfg.LogMaxMB)
	cfg.ScalerPath = getEnv("SCALER_PATH", cfg.ScalerPath)
	cfg.ModelPath = getEnv("MODEL_PATH", cfg.ModelPath)
	cfg.SequenceLength = getEnvAsInt("SEQUENCE_LENGTH", cfg.SequenceLength)
	cfg.AnomalyThreshold = getEnvAsFloat("ANOMALY_THRESHOLD", cfg.AnomalyThreshold)
	cfg.AnomalyPolicy = getEnv("ANOMALY_POLICY", cfg.AnomalyPolicy)
	cfg.PredictWorkers = getEnvAsInt("PREDICT_WORKERS", cfg.PredictWorkers)
	cfg.PredictTimeoutMS = getEnvAsInt("PREDICT_TIMEOUT_MS", cfg.PredictTimeoutMS)
	cfg.DataDir = getEnv("DATA_DIR", cfg.DataDir)
	cfg.ResultsFile = getEnv("RESULTS_FILE", cfg.ResultsFile)
	cfg.MaxUploadMB = getEnvAsInt("MAX_UPLOAD_MB", cfg.MaxUploadMB)
	cfg.RedisEnabled = getEnvAsBool("REDIS_ENABLED", cfg.RedisEnabled)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = getEnvAsInt("REDIS_DB", cfg.RedisDB)
	cfg.ResultsTTLMinutes = getEnvAsInt("RESULTS_TTL_MINUTES", cfg.ResultsTTLMinutes)
	cfg.LocalCacheSize = getEnvAsInt("LOCAL_CACHE_SIZE", cfg.LocalCacheSize)
	cfg.CORSOrigins = getEnvAsList("CORS_ORIGINS", cfg.CORSOrigins)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Validate проверяет значения, без которых сервис не может стартовать
func (c Config) Validate() error {
	var errs []error
	if c.SequenceLength < 1 {
		errs = append(errs, fmt.Errorf("sequence length must be >= 1, got %d", c.SequenceLength))
	}
	if math.IsNaN(c.AnomalyThreshold) || math.IsInf(c.AnomalyThreshold, 0) || c.AnomalyThreshold < 0 {
		errs = append(errs, fmt.Errorf("anomaly threshold must be a finite non-negative number, got %v", c.AnomalyThreshold))
	}
	if _, err := analytics.ParsePolicy(c.AnomalyPolicy); err != nil {
		errs = append(errs, err)
	}
	if c.PredictWorkers < 1 {
		errs = append(errs, fmt.Errorf("predict workers must be >= 1, got %d", c.PredictWorkers))
	}
	if c.PredictTimeoutMS < 0 {
		errs = append(errs, fmt.Errorf("predict timeout must be >= 0, got %d", c.PredictTimeoutMS))
	}
	if c.MaxUploadMB < 1 {
		errs = append(errs, fmt.Errorf("max upload size must be >= 1 MB, got %d", c.MaxUploadMB))
	}
	if c.LocalCacheSize < 0 {
		errs = append(errs, fmt.Errorf("local cache size must be >= 0, got %d", c.LocalCacheSize))
	}
	if c.LogFile != "" && c.LogMaxMB < 1 {
		errs = append(errs, fmt.Errorf("log file max size must be >= 1 MB, got %d", c.LogMaxMB))
	}
	if strings.TrimSpace(c.DataDir) == "" {
		errs = append(errs, errors.New("data dir is required"))
	}
	return errors.Join(errs...)
}

// Policy возвращает разобранную политику оценки
func (c Config) Policy() analytics.Policy {
	p, _ := analytics.ParsePolicy(c.AnomalyPolicy)
	return p
}

// PredictTimeout таймаут прогноза на запрос
func (c Config) PredictTimeout() time.Duration {
	return time.Duration(c.PredictTimeoutMS) * time.Millisecond
}

// ResultsTTL время жизни результатов в Redis
func (c Config) ResultsTTL() time.Duration {
	return time.Duration(c.ResultsTTLMinutes) * time.Minute
}

// MaxUploadBytes ограничение размера загружаемого файла
func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// getEnv получает environment variable или возвращает default
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt получает environment variable как int
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var value int
	if _, err := fmt.Sscanf(valueStr, "%d", &value); err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat получает environment variable как float64
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var value float64
	if _, err := fmt.Sscanf(valueStr, "%f", &value); err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool получает environment variable как bool
func getEnvAsBool(key string, defaultValue bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultValue
	}
}

// getEnvAsList получает environment variable как список через запятую
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var values []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values
}
