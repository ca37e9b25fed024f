package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	ML            MLConfig                `mapstructure:"ml"`
	Engine        EngineConfig            `mapstructure:"engine"`
	Ranker        RankerConfig            `mapstructure:"ranker"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"` // Single URL for backwards compatibility
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// --- ML Service Config ---

// MLConfig holds settings for the external prediction service.
type MLConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout int           `mapstructure:"timeout"` // milliseconds
	Breaker BreakerConfig `mapstructure:"breaker"`
}

// BreakerConfig holds circuit breaker tuning for the ML client.
type BreakerConfig struct {
	FailureThreshold int `mapstructure:"failure_threshold"`
	SuccessThreshold int `mapstructure:"success_threshold"`
	Timeout          int `mapstructure:"timeout"` // milliseconds
	HalfOpenRequests int `mapstructure:"half_open_requests"`
}

// --- Scoring Engine Config ---

// EngineConfig holds the weight sets for the scoring pipeline. Zero
// values mean "use the built-in defaults"; partial overrides that do
// not sum to 1.0 are rejected at engine construction.
type EngineConfig struct {
	RuleWeights       RuleWeightsConfig       `mapstructure:"rule_weights"`
	HybridWeights     HybridWeightsConfig     `mapstructure:"hybrid_weights"`
	ConfidenceWeights ConfidenceWeightsConfig `mapstructure:"confidence_weights"`
}

type RuleWeightsConfig struct {
	Availability         float64 `mapstructure:"availability"`
	Proximity            float64 `mapstructure:"proximity"`
	Certification        float64 `mapstructure:"certification"`
	Capacity             float64 `mapstructure:"capacity"`
	HistoricalCompletion float64 `mapstructure:"historical_completion"`
}

// IsZero reports whether no rule weight was configured.
func (w RuleWeightsConfig) IsZero() bool {
	return w.Availability == 0 && w.Proximity == 0 && w.Certification == 0 &&
		w.Capacity == 0 && w.HistoricalCompletion == 0
}

type HybridWeightsConfig struct {
	Rule    float64 `mapstructure:"rule"`
	ML      float64 `mapstructure:"ml"`
	Context float64 `mapstructure:"context"`
}

func (w HybridWeightsConfig) IsZero() bool {
	return w.Rule == 0 && w.ML == 0 && w.Context == 0
}

type ConfidenceWeightsConfig struct {
	DataQuality         float64 `mapstructure:"data_quality"`
	ModelCertainty      float64 `mapstructure:"model_certainty"`
	HistoricalData      float64 `mapstructure:"historical_data"`
	FeatureCompleteness float64 `mapstructure:"feature_completeness"`
	Consistency         float64 `mapstructure:"consistency"`
}

func (w ConfidenceWeightsConfig) IsZero() bool {
	return w.DataQuality == 0 && w.ModelCertainty == 0 && w.HistoricalData == 0 &&
		w.FeatureCompleteness == 0 && w.Consistency == 0
}

// RankerConfig holds settings for the ranking orchestrator.
type RankerConfig struct {
	MaxConcurrency int `mapstructure:"max_concurrency"`
	MLTimeout      int `mapstructure:"ml_timeout"` // milliseconds
	CacheTTL       int `mapstructure:"cache_ttl"`  // seconds, vendor metrics cache
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// NotificationConfig holds settings for low-confidence ranking alerts.
type NotificationConfig struct {
	Email EmailNotificationConfig `mapstructure:"email"`
	SNS   SNSNotificationConfig   `mapstructure:"sns"`
	AWS   AWSNotificationConfig   `mapstructure:"aws"`
}

// EmailNotificationConfig holds SES alert settings.
type EmailNotificationConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	FromEmail string   `mapstructure:"from_email"`
	ToEmails  []string `mapstructure:"to_emails"`
}

// SNSNotificationConfig holds SNS alert settings.
type SNSNotificationConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	TopicARN string `mapstructure:"topic_arn"`
}

// AWSNotificationConfig holds the AWS client settings for alerting.
type AWSNotificationConfig struct {
	Region string `mapstructure:"region"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
