package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config captures the full runtime configuration for the bin2tif extractor.
type Config struct {
	App       AppConfig
	HTTP      HTTPConfig
	Kafka     KafkaConfig
	Clowder   ClowderConfig
	Extractor ExtractorConfig
	Influx    InfluxConfig
	Storage   StorageConfig
	Tracing   TracingConfig
}

type AppConfig struct {
	Name        string `env:"APP_NAME" envDefault:"terra.stereo-rgb.bin2tif"`
	Environment string `env:"APP_ENV" envDefault:"development"`
	Version     string `env:"APP_VERSION" envDefault:"0.1.0"`
	LogLevel    string `env:"APP_LOG_LEVEL" envDefault:"debug"`
}

type HTTPConfig struct {
	Addr         string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30m"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
}

type KafkaConfig struct {
	Brokers          []string      `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	EventsTopic      string        `env:"KAFKA_EVENTS_TOPIC" envDefault:"clowder.dataset.file-added"`
	CompletedTopic   string        `env:"KAFKA_COMPLETED_TOPIC" envDefault:"terra.bin2tif.completed"`
	GroupID          string        `env:"KAFKA_GROUP_ID" envDefault:"terra.stereo-rgb.bin2tif"`
	Retries          int           `env:"KAFKA_RETRIES" envDefault:"3"`
	CompressionCodec string        `env:"KAFKA_COMPRESSION_CODEC" envDefault:"snappy"`
	BatchSize        int           `env:"KAFKA_BATCH_SIZE" envDefault:"1"`
	BatchTimeout     time.Duration `env:"KAFKA_BATCH_TIMEOUT" envDefault:"1s"`
	MaxWait          time.Duration `env:"KAFKA_MAX_WAIT" envDefault:"5s"`
}

type ClowderConfig struct {
	Host      string        `env:"CLOWDER_HOST" envDefault:"http://localhost:9000/clowder"`
	SecretKey string        `env:"CLOWDER_KEY" envDefault:""`
	Timeout   time.Duration `env:"CLOWDER_TIMEOUT" envDefault:"10m"`
}

type ExtractorConfig struct {
	OutputDir      string `env:"BIN2TIF_OUTPUT_DIR" envDefault:"/home/extractor/sites/ua-mac/Level_1/stereoTop_geotiff"`
	ScratchDir     string `env:"BIN2TIF_SCRATCH_DIR" envDefault:"/home/extractor"`
	ForceOverwrite bool   `env:"BIN2TIF_OVERWRITE" envDefault:"false"`
	GDALTranslate  string `env:"BIN2TIF_GDAL_TRANSLATE" envDefault:"gdal_translate"`
}

type InfluxConfig struct {
	Host     string        `env:"INFLUXDB_HOST" envDefault:"terra-logging.ncsa.illinois.edu"`
	Port     int           `env:"INFLUXDB_PORT" envDefault:"8086"`
	Database string        `env:"INFLUXDB_DB" envDefault:"extractor_db"`
	User     string        `env:"INFLUXDB_USER" envDefault:"terra"`
	Password string        `env:"INFLUXDB_PASSWORD" envDefault:""`
	Timeout  time.Duration `env:"INFLUXDB_TIMEOUT" envDefault:"10s"`
}

// StorageConfig controls the optional object store mirror of created artifacts.
type StorageConfig struct {
	Enabled   bool   `env:"STORAGE_ENABLED" envDefault:"false"`
	Provider  string `env:"STORAGE_PROVIDER" envDefault:"minio"`
	Endpoint  string `env:"STORAGE_ENDPOINT" envDefault:"localhost:9000"`
	Region    string `env:"STORAGE_REGION" envDefault:"us-east-1"`
	Bucket    string `env:"STORAGE_BUCKET" envDefault:"stereotop-geotiff"`
	AccessKey string `env:"STORAGE_ACCESS_KEY" envDefault:"minioadmin"`
	SecretKey string `env:"STORAGE_SECRET_KEY" envDefault:"minioadmin"`
	UseSSL    bool   `env:"STORAGE_USE_SSL" envDefault:"false"`
}

type TracingConfig struct {
	Endpoint     string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	Insecure     bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	SampleRatio  float64 `env:"OTEL_TRACES_SAMPLER_RATIO" envDefault:"1.0"`
	ResourceAttr string  `env:"OTEL_RESOURCE_ATTRIBUTES" envDefault:"service.namespace=terraref"`
}

// Load parses environment variables into Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
