package config

import (
	"reflect"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type Config struct {
	FFBin            string        `mapstructure:"FF_BIN"`
	FFProbeBin       string        `mapstructure:"FFPROBE_BIN"`
	FFTimeout        time.Duration `mapstructure:"FF_TIMEOUT"`
	FFExtraArgs      string        `mapstructure:"FF_EXTRA_ARGS"`
	MaxUploadSize    int64         `mapstructure:"MAX_UPLOAD_SIZE"`
	DownsampleHeight int           `mapstructure:"DOWNSAMPLE_HEIGHT"`
	ThrottleCPU      float64       `mapstructure:"THROTTLE_CPU"`
	ThrottleFreeMem  int64         `mapstructure:"THROTTLE_FREEMEM"`
	ThrottleFreeDisk int64         `mapstructure:"THROTTLE_FREEDISK"`

	WhisperBin    string `mapstructure:"WHISPER_BIN"`
	WhisperModel  string `mapstructure:"WHISPER_MODEL"`
	WhisperUseGPU bool   `mapstructure:"WHISPER_USE_GPU"`

	GeminiAPIKey       string        `mapstructure:"GEMINI_API_KEY"`
	GeminiModel        string        `mapstructure:"GEMINI_MODEL"`
	GeminiInlineLimit  int64         `mapstructure:"GEMINI_INLINE_LIMIT"`
	GeminiPollInterval time.Duration `mapstructure:"GEMINI_POLL_INTERVAL"`
	GeminiPollTimeout  time.Duration `mapstructure:"GEMINI_POLL_TIMEOUT"`

	WebhookURL     string        `mapstructure:"WEBHOOK_URL"`
	WebhookTimeout time.Duration `mapstructure:"WEBHOOK_TIMEOUT"`

	MinioEndpoint  string        `mapstructure:"MINIO_ENDPOINT"`
	MinioAccessKey string        `mapstructure:"MINIO_ACCESS_KEY"`
	MinioSecretKey string        `mapstructure:"MINIO_SECRET_KEY"`
	MinioBucket    string        `mapstructure:"MINIO_BUCKET"`
	MinioUseSSL    bool          `mapstructure:"MINIO_USE_SSL"`
	SignTTL        time.Duration `mapstructure:"SIGN_TTL"`

	AuthEnable bool   `mapstructure:"AUTH_ENABLE"`
	AuthKey    string `mapstructure:"AUTH_KEY"`
	Port       string `mapstructure:"PORT"`

	TempDir string
}

// stringToDurationHookFunc parses Go duration strings into time.Duration.
func stringToDurationHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		return time.ParseDuration(data.(string))
	}
}

// stringToByteSizeHookFunc parses human-readable size strings like "100MB".
func stringToByteSizeHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String || t.Kind() != reflect.Int64 {
			return data, nil
		}

		var size datasize.ByteSize
		err := size.UnmarshalText([]byte(data.(string)))
		if err != nil {
			// Not a size string, let other parsers handle it.
			return data, nil
		}

		return int64(size.Bytes()), nil
	}
}

func Load() (*Config, error) {
	vp := viper.New()

	vp.SetDefault("FF_BIN", "ffmpeg")
	vp.SetDefault("FFPROBE_BIN", "ffprobe")
	vp.SetDefault("FF_TIMEOUT", "10m")
	vp.SetDefault("FF_EXTRA_ARGS", "")
	vp.SetDefault("MAX_UPLOAD_SIZE", "100MB")
	vp.SetDefault("DOWNSAMPLE_HEIGHT", 360)
	vp.SetDefault("THROTTLE_CPU", 50.0)
	vp.SetDefault("THROTTLE_FREEMEM", "200MB")
	vp.SetDefault("THROTTLE_FREEDISK", "200MB")
	vp.SetDefault("WHISPER_BIN", "whisper-cli")
	vp.SetDefault("WHISPER_MODEL", "models/ggml-base.bin")
	vp.SetDefault("WHISPER_USE_GPU", true)
	vp.SetDefault("GEMINI_API_KEY", "")
	vp.SetDefault("GEMINI_MODEL", "gemini-2.5-flash")
	vp.SetDefault("GEMINI_INLINE_LIMIT", "20MB")
	vp.SetDefault("GEMINI_POLL_INTERVAL", "2s")
	vp.SetDefault("GEMINI_POLL_TIMEOUT", "5m")
	vp.SetDefault("WEBHOOK_URL", "")
	vp.SetDefault("WEBHOOK_TIMEOUT", "60s")
	vp.SetDefault("MINIO_ENDPOINT", "localhost:9000")
	vp.SetDefault("MINIO_ACCESS_KEY", "minioadmin")
	vp.SetDefault("MINIO_SECRET_KEY", "minioadmin")
	vp.SetDefault("MINIO_BUCKET", "vidscore")
	vp.SetDefault("MINIO_USE_SSL", false)
	vp.SetDefault("SIGN_TTL", "1h")
	vp.SetDefault("AUTH_ENABLE", false)
	vp.SetDefault("AUTH_KEY", "")
	vp.SetDefault("PORT", "8080")

	vp.SetConfigName("vidscore_config")
	vp.SetConfigType("yaml")
	vp.AddConfigPath(".")
	vp.AddConfigPath("/etc/vidscore/")

	if err := vp.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	vp.SetEnvPrefix("VIDSCORE")
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	var cfg Config
	err := vp.Unmarshal(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			stringToDurationHookFunc(),
			stringToByteSizeHookFunc(),
		),
	))
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}
