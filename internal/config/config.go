package config

import (
	"bytes"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type AppCfg struct {
	Name string
	Env  string
	Host string
	Port int
}

type LogCfg struct {
	Level string
}

type DBCfg struct {
	DSN         string
	MaxOpen     int
	MaxIdle     int
	AutoMigrate bool
}

type RedisCfg struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

type MQCfg struct {
	URL   string
	Queue string
}

type S3Cfg struct {
	Endpoint         string
	Region           string
	AccessKey        string
	SecretKey        string
	Bucket           string
	UsePathStyle     bool
	PresignExpireSec int
	SSE              string
}

type TelemetryCfg struct {
	Enabled      bool
	OtlpEndpoint string
	SampleRatio  float64
}

// AuthCfg configures the ID-token verifier. DevOwnerID enables a fixed owner when no project id is set.
type AuthCfg struct {
	FirebaseProjectID string
	CredentialsFile   string
	DevOwnerID        string
	DevPlan           string
	PlanHeader        string
}

type RenderCfg struct {
	CacheTTLSec int
	RateLimit   string
}

type LogoCfg struct {
	FetchTimeoutSec int
	SignedURLTTLSec int
	MaxBytes        int64
	PrintMaxPx      int
	DownloadMaxPx   int
}

type PrintPackCfg struct {
	StoragePrefix string
	Concurrency   int
}

type Config struct {
	App       AppCfg
	Log       LogCfg
	Database  DBCfg
	Redis     RedisCfg
	RabbitMQ  MQCfg
	S3        S3Cfg
	Telemetry TelemetryCfg
	Auth      AuthCfg
	Render    RenderCfg
	Logo      LogoCfg
	PrintPack PrintPackCfg
}

func Load() (*Config, error) {
	// a local .env only fills variables that are not already set
	_ = godotenv.Load()

	base := viper.New()
	base.SetConfigName("config")
	base.SetConfigType("yaml")
	base.AddConfigPath("./configs")
	base.AddConfigPath(".")
	base.AutomaticEnv()
	base.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	base.SetEnvPrefix("APP") // e.g. APP_APP_PORT -> app.port

	setDefaults(base)

	if err := base.ReadInConfig(); err == nil {
		// expand ${ENV} in the file once, then parse the result
		path := base.ConfigFileUsed()
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		expanded := os.ExpandEnv(string(raw))

		v := viper.New()
		v.SetConfigType("yaml")
		if err := v.ReadConfig(bytes.NewBufferString(expanded)); err != nil {
			return nil, err
		}
		v.AutomaticEnv()
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.SetEnvPrefix("APP")
		setDefaults(v)

		cfg := new(Config)
		if err := v.Unmarshal(&cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	// running without a file is fine: env + defaults
	cfg := new(Config)
	if err := base.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "qrstudio")
	v.SetDefault("app.env", "debug")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("database.maxOpen", 20)
	v.SetDefault("database.maxIdle", 5)
	v.SetDefault("redis.poolSize", 10)
	v.SetDefault("rabbitmq.queue", "print_pack.generated")
	v.SetDefault("s3.region", "auto")
	v.SetDefault("s3.usePathStyle", true)
	v.SetDefault("s3.presignExpireSec", 900)
	v.SetDefault("telemetry.sampleRatio", 1.0)
	v.SetDefault("auth.planHeader", "X-Owner-Plan")
	v.SetDefault("auth.devPlan", "rolling")
	v.SetDefault("render.cacheTTLSec", 600)
	v.SetDefault("render.rateLimit", "60-M")
	v.SetDefault("logo.fetchTimeoutSec", 5)
	v.SetDefault("logo.signedURLTTLSec", 60)
	v.SetDefault("logo.maxBytes", 5<<20)
	v.SetDefault("logo.printMaxPx", 1024)
	v.SetDefault("logo.downloadMaxPx", 512)
	v.SetDefault("printPack.storagePrefix", "print-packs")
	v.SetDefault("printPack.concurrency", 4)
}
