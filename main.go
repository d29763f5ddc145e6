package main

import (
	"embed"
	"fmt"
	"io/fs"
	"log"
	"os"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sepetli/kimlik/cmd"
	"github.com/sepetli/kimlik/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

//go:embed templates/email/template.html
var templates embed.FS

var (
	Version   = "?"
	BuildTime = "?"
	GitCommit = "-"
	GitRef    = "-"
)

func main() {
	//version info
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("kimlik %s, built %s from %s (%s)", Version, BuildTime, GitCommit, GitRef)
		return
	}
	logger := bootstrap()
	defer func() {
		_ = logger.Sync()

	}()
	cmd.TopLevelLogger = logger
	cmd.Execute()
}

func bootstrap() *zap.Logger {
	if _, err := os.Stat(".env"); err == nil {
		err := godotenv.Load()
		if err != nil {
			log.Fatal("Error loading .env file")
		}
	}
	cfg := zap.NewProductionConfig()
	if r := os.Getenv("DEBUG_LOG"); r == "true" {
		cfg = zap.NewDevelopmentConfig()
	}
	logger, err := cfg.Build(zap.AddStacktrace(zap.ErrorLevel))
	if err != nil {
		log.Fatal(err)
	}
	cobra.OnInitialize(func() { initConfig(logger) })
	return logger
}

func setDefaults() {
	viper.SetDefault("smtp.enabled", false)
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("behaviour.max-login-attempts", 5)
	viper.SetDefault("behaviour.lockout-duration", "15m")
	viper.SetDefault("behaviour.password-min-length", 8)
	viper.SetDefault("behaviour.pending-registration-ttl", "24h")
	viper.SetDefault("behaviour.password-reset-expiry", "1h")
	viper.SetDefault("behaviour.cleanup-interval", "24h")
	viper.SetDefault("jwt.alg", "HS256")
	viper.SetDefault("jwt.exp", "30m")
	viper.SetDefault("jwt.refresh-token-expiry", "168h")
	viper.SetDefault("limits.register.requests", 5)
	viper.SetDefault("limits.register.window", "1m")
	viper.SetDefault("limits.login.requests", 10)
	viper.SetDefault("limits.login.window", "1m")
	viper.SetDefault("limits.refresh.requests", 10)
	viper.SetDefault("limits.refresh.window", "1m")
	viper.SetDefault("limits.password-reset.requests", 3)
	viper.SetDefault("limits.password-reset.window", "1h")
}

func initConfig(logger *zap.Logger) {
	bind := func(from string, to string) {
		err := viper.BindEnv(to, from)
		if err != nil {
			logger.Error("unable to bindenv", zap.String("from", from), zap.String(to, to), zap.Error(err))
		}

	}
	setDefaults()
	bind("PORT", "server.port")
	bind("ADDRESS", "server.address")

	bind("KIMLIK_PORT", "server.port")
	bind("KIMLIK_ADDRESS", "server.address")

	bind("KIMLIK_SMTP_ENABLED", "smtp.enabled")
	bind("KIMLIK_SMTP_HOST", "smtp.host")
	bind("KIMLIK_SMTP_PORT", "smtp.port")
	bind("KIMLIK_SMTP_USERNAME", "smtp.username")
	bind("KIMLIK_SMTP_PASSWORD", "smtp.password")
	bind("KIMLIK_SMTP_DISPLAYNAME", "smtp.display-name")
	bind("KIMLIK_SMTP_ADDRESS", "smtp.address")

	bind("KIMLIK_DATABASE_TYPE", "database.type")
	bind("KIMLIK_DATABASE_DSN", "database.dsn")

	bind("KIMLIK_REDIS_ENABLED", "redis.enabled")
	bind("KIMLIK_REDIS_ADDRESS", "redis.address")
	bind("KIMLIK_REDIS_PASSWORD", "redis.password")
	bind("KIMLIK_REDIS_DB", "redis.db")

	bind("KIMLIK_BEHAVIOUR_NAME", "behaviour.name")
	bind("KIMLIK_BEHAVIOUR_SITE", "behaviour.site")
	bind("KIMLIK_BEHAVIOUR_SERVICE_DOMAIN", "behaviour.service-domain")
	bind("KIMLIK_BEHAVIOUR_MAX_LOGIN_ATTEMPTS", "behaviour.max-login-attempts")
	bind("KIMLIK_BEHAVIOUR_LOCKOUT_DURATION", "behaviour.lockout-duration")
	bind("KIMLIK_BEHAVIOUR_PASSWORD_MIN_LENGTH", "behaviour.password-min-length")
	bind("KIMLIK_BEHAVIOUR_PENDING_REGISTRATION_TTL", "behaviour.pending-registration-ttl")
	bind("KIMLIK_BEHAVIOUR_PASSWORD_RESET_EXPIRY", "behaviour.password-reset-expiry")
	bind("KIMLIK_BEHAVIOUR_CLEANUP_INTERVAL", "behaviour.cleanup-interval")

	bind("KIMLIK_JWT_AUDIENCE", "jwt.aud")
	bind("KIMLIK_JWT_ISSUER", "jwt.iss")
	bind("KIMLIK_JWT_ALG", "jwt.alg")
	bind("KIMLIK_JWT_EXP", "jwt.exp")
	bind("KIMLIK_JWT_REFRESH_EXP", "jwt.refresh-token-expiry")

	bind("KIMLIK_JWT_HMAC_SIGNING_KEY", "jwt.hmac-signing-key")
	bind("KIMLIK_JWT_HMAC_SIGNING_KEY_FILE", "jwt.hmac-signing-key-file")

	bind("KIMLIK_CORS_ALLOWED_ORIGINS", "cors.allowed-origins")
	bind("KIMLIK_CORS_ALLOWED_METHODS", "cors.allowed-methods")
	bind("KIMLIK_CORS_ALLOW_CREDENTIALS", "cors.allow-credentials")

	if cmd.ConfigFileLocation != "" {
		logger.Debug("Using supplied config file", zap.String("file", string(cmd.ConfigFileLocation)))
		viper.SetConfigFile(string(cmd.ConfigFileLocation))
	} else {
		path, err := os.Getwd()
		if err != nil {
			logger.Warn("Unable to get current working dir", zap.Error(err))
		}
		cobra.CheckErr(err)
		viper.AddConfigPath(path)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		logger.Debug("Looking for default config file")
	}
	//precedence: environment overwrites yml
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		logger.Debug("No confg file loaded")
	} else {
		logger.Debug("Config file loaded", zap.String("file", viper.ConfigFileUsed()))
	}

	conf := &config.Configuration{}
	err := viper.Unmarshal(conf)
	if err != nil {
		logger.Fatal("Unable to unmarshall config", zap.Error(err))
	}
	logger.Debug("Config loaded", zap.Any("config", conf))
	logger.Debug("Validating final config")
	if err = conf.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}
	cmd.LoadedConfig = conf

	email, err := fs.Sub(templates, "templates/email")
	if err != nil {
		logger.Fatal("Unable to open templates/email folder")
	}
	cmd.FileSystemsConfig = &config.FileSystems{
		Email: email,
	}
}
