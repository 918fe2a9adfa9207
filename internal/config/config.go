package config

import (
	"log"
	"os"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	App        AppConfig
	Checkpoint CheckpointConfig
	Planner    PlannerConfig
	Forecast   ForecastConfig
	LLM        LLMConfig
	Storage    StorageConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type AppConfig struct {
	HistoryFile string
	ExportDir   string
}

// CheckpointConfig controls where paused pipeline state is persisted.
// When Redis is disabled the service falls back to an in-process store,
// which means a resume call must land on the same process.
type CheckpointConfig struct {
	RedisEnabled  bool
	RedisURL      string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	TTLSeconds    int
}

type PlannerConfig struct {
	BudgetLimit  float64
	UnitCost     float64
	LeadTimeDays int
}

type ForecastConfig struct {
	Horizon       int
	CacheTTLHours int
}

// LLMConfig points the forecast source at an OpenAI-compatible API.
// An empty APIKey disables the source entirely; the pipeline then runs
// on the statistical fallback.
type LLMConfig struct {
	BaseURL        string
	APIKey         string
	Model          string
	TimeoutSeconds int
}

type StorageConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		// Set default values
		viper.SetDefault("SERVER_PORT", "8080")
		viper.SetDefault("SERVER_MODE", "debug")
		viper.SetDefault("SERVER_READ_TIMEOUT", 30)
		viper.SetDefault("SERVER_WRITE_TIMEOUT", 30)
		viper.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
		viper.SetDefault("DB_ENABLED", false)
		viper.SetDefault("DB_HOST", "localhost")
		viper.SetDefault("DB_PORT", "5432")
		viper.SetDefault("DB_USER", "postgres")
		viper.SetDefault("DB_PASSWORD", "postgres")
		viper.SetDefault("DB_NAME", "supplyplan")
		viper.SetDefault("DB_SSLMODE", "disable")
		viper.SetDefault("APP_HISTORY_FILE", "./data/retail_demand_6_months.csv")
		viper.SetDefault("APP_EXPORT_DIR", "./data/output")
		viper.SetDefault("CHECKPOINT_REDIS_ENABLED", false)
		viper.SetDefault("REDIS_URL", "")
		viper.SetDefault("REDIS_HOST", "127.0.0.1")
		viper.SetDefault("REDIS_PORT", "6379")
		viper.SetDefault("REDIS_PASSWORD", "")
		viper.SetDefault("REDIS_DB", 0)
		viper.SetDefault("CHECKPOINT_TTL_SECONDS", 0)
		viper.SetDefault("PLANNER_BUDGET_LIMIT", 100000.0)
		viper.SetDefault("PLANNER_UNIT_COST", 50.0)
		viper.SetDefault("PLANNER_LEAD_TIME_DAYS", 7)
		viper.SetDefault("FORECAST_HORIZON", 7)
		viper.SetDefault("FORECAST_CACHE_TTL_HOURS", 24)
		viper.SetDefault("LLM_BASE_URL", "https://api.openai.com")
		viper.SetDefault("LLM_API_KEY", "")
		viper.SetDefault("LLM_MODEL", "gpt-4o-mini")
		viper.SetDefault("LLM_TIMEOUT_SECONDS", 30)
		viper.SetDefault("STORAGE_ENABLED", false)
		viper.SetDefault("STORAGE_ENDPOINT", "")
		viper.SetDefault("STORAGE_ACCESS_KEY", "")
		viper.SetDefault("STORAGE_SECRET_KEY", "")
		viper.SetDefault("STORAGE_BUCKET", "supplyplan-exports")
		viper.SetDefault("STORAGE_USE_SSL", true)

		// Read from environment variables
		viper.AutomaticEnv()

		ensureDir(viper.GetString("APP_EXPORT_DIR"))

		instance = &Config{
			Server: ServerConfig{
				Port:           viper.GetString("SERVER_PORT"),
				Mode:           viper.GetString("SERVER_MODE"),
				ReadTimeout:    viper.GetInt("SERVER_READ_TIMEOUT"),
				WriteTimeout:   viper.GetInt("SERVER_WRITE_TIMEOUT"),
				AllowedOrigins: viper.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
			},
			Database: DatabaseConfig{
				Enabled:  viper.GetBool("DB_ENABLED"),
				Host:     viper.GetString("DB_HOST"),
				Port:     viper.GetString("DB_PORT"),
				User:     viper.GetString("DB_USER"),
				Password: viper.GetString("DB_PASSWORD"),
				DBName:   viper.GetString("DB_NAME"),
				SSLMode:  viper.GetString("DB_SSLMODE"),
			},
			App: AppConfig{
				HistoryFile: viper.GetString("APP_HISTORY_FILE"),
				ExportDir:   viper.GetString("APP_EXPORT_DIR"),
			},
			Checkpoint: CheckpointConfig{
				RedisEnabled:  viper.GetBool("CHECKPOINT_REDIS_ENABLED"),
				RedisURL:      viper.GetString("REDIS_URL"),
				RedisHost:     viper.GetString("REDIS_HOST"),
				RedisPort:     viper.GetString("REDIS_PORT"),
				RedisPassword: viper.GetString("REDIS_PASSWORD"),
				RedisDB:       viper.GetInt("REDIS_DB"),
				TTLSeconds:    viper.GetInt("CHECKPOINT_TTL_SECONDS"),
			},
			Planner: PlannerConfig{
				BudgetLimit:  viper.GetFloat64("PLANNER_BUDGET_LIMIT"),
				UnitCost:     viper.GetFloat64("PLANNER_UNIT_COST"),
				LeadTimeDays: viper.GetInt("PLANNER_LEAD_TIME_DAYS"),
			},
			Forecast: ForecastConfig{
				Horizon:       viper.GetInt("FORECAST_HORIZON"),
				CacheTTLHours: viper.GetInt("FORECAST_CACHE_TTL_HOURS"),
			},
			LLM: LLMConfig{
				BaseURL:        viper.GetString("LLM_BASE_URL"),
				APIKey:         viper.GetString("LLM_API_KEY"),
				Model:          viper.GetString("LLM_MODEL"),
				TimeoutSeconds: viper.GetInt("LLM_TIMEOUT_SECONDS"),
			},
			Storage: StorageConfig{
				Enabled:   viper.GetBool("STORAGE_ENABLED"),
				Endpoint:  viper.GetString("STORAGE_ENDPOINT"),
				AccessKey: viper.GetString("STORAGE_ACCESS_KEY"),
				SecretKey: viper.GetString("STORAGE_SECRET_KEY"),
				Bucket:    viper.GetString("STORAGE_BUCKET"),
				UseSSL:    viper.GetBool("STORAGE_USE_SSL"),
			},
		}
	})

	return instance
}

func ensureDir(dir string) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}
}
