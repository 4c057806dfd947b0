package configuration

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"media-hub/infrastructure/logger"

	"github.com/spf13/viper"
)

type Config struct {
	App         App         `json:"app"`
	Database    Database    `json:"database"`
	RedisClient RedisClient `json:"redisClient"`
	Pubsub      Pubsub      `json:"pubsub"`
	ServiceBus  ServiceBus  `json:"serviceBus"`
	OAuth       OAuth       `json:"oauth"`
	Upload      Upload      `json:"upload"`
	Secrets     Secrets     `json:"secrets"`
}

type App struct {
	Port        int    `json:"port"`
	SecretKey   string `json:"secretKey"`
	TLSEnabled  bool   `json:"tlsEnabled"`
	TLSCertFile string `json:"tlsCertFile"`
	TLSKeyFile  string `json:"tlsKeyFile"`
}

type Database struct {
	Psql  Db `json:"psql"`
	MySql Db `json:"mysql"`
	Mongo Db `json:"mongo"`
	Mssql Db `json:"mssql"`
}

type Db struct {
	Name     string `json:"name"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
}

type RedisClient struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type Pubsub struct {
	ProjectID   string `json:"projectID"`
	TopicPrefix string `json:"topicPrefix"`
}

type ServiceBus struct {
	Namespace string `json:"namespace"`
	Queue     string `json:"queue"`
}

// OAuth holds third-party platform OAuth client credentials.
type OAuth struct {
	YouTube OAuthClient `json:"youtube"`
}

type OAuthClient struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	RedirectURI  string `json:"redirectURI"`
	APIKey       string `json:"apiKey"`
}

// Secrets configures encryption of credential material at rest.
type Secrets struct {
	// TokenKey is a hex-encoded 32-byte AES key.
	TokenKey string `json:"tokenKey"`
}

// Upload holds the operational constants of the upload-job lifecycle.
type Upload struct {
	ReferenceTTLMinutes     int `json:"referenceTTLMinutes"`
	RefreshMarginSeconds    int `json:"refreshMarginSeconds"`
	RefreshFailureThreshold int `json:"refreshFailureThreshold"`
	StartRetryAttempts      int `json:"startRetryAttempts"`
	StallTimeoutSeconds     int `json:"stallTimeoutSeconds"`
	PollIntervalSeconds     int `json:"pollIntervalSeconds"`
	ObserverMaxWaitMinutes  int `json:"observerMaxWaitMinutes"`
	SweepIntervalMinutes    int `json:"sweepIntervalMinutes"`
}

func (u Upload) ReferenceTTL() time.Duration {
	return time.Duration(u.ReferenceTTLMinutes) * time.Minute
}

func (u Upload) RefreshMargin() time.Duration {
	return time.Duration(u.RefreshMarginSeconds) * time.Second
}

func (u Upload) StallTimeout() time.Duration {
	return time.Duration(u.StallTimeoutSeconds) * time.Second
}

func (u Upload) PollInterval() time.Duration {
	return time.Duration(u.PollIntervalSeconds) * time.Second
}

func (u Upload) ObserverMaxWait() time.Duration {
	return time.Duration(u.ObserverMaxWaitMinutes) * time.Minute
}

func (u Upload) SweepInterval() time.Duration {
	return time.Duration(u.SweepIntervalMinutes) * time.Minute
}

var C Config

func init() {
	LoadConfig()
	initDatabase(&C)
	initApp(&C)
	initUpload(&C)
}

func LoadConfig() {
	name := getConfig()
	viper.SetConfigName(name)
	viper.SetConfigType("json")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")
	viper.AddConfigPath("../../")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logger.GetLogger().Warn("Config file not found")
		} else {
			logger.GetLogger().WithField("error", err).Error("Error reading config file")
		}
	}

	logger.GetLogger().WithField("config", name).Info("Config set up successfully")
	if err := viper.Unmarshal(&C); err != nil {
		logger.GetLogger().WithField("error", err).Error("Viper unable to decode into struct")
	}
}

func getConfig() string {
	name := "config"
	env := os.Getenv("ENV")
	if env != "" {
		name = fmt.Sprintf("%s-%s", name, env)
	}
	return name
}

func initDatabase(C *Config) {
	if C.Database.Psql.Name == "" {
		C.Database.Psql.Name = os.Getenv("DB_NAME")
	}
	if C.Database.Psql.Host == "" {
		C.Database.Psql.Host = os.Getenv("DB_HOST")
	}
	if C.Database.Psql.User == "" {
		C.Database.Psql.User = os.Getenv("DB_USER")
	}
	if C.Database.Psql.Password == "" {
		C.Database.Psql.Password = os.Getenv("DB_PASSWORD")
	}
	if C.Database.Psql.Port == "" {
		C.Database.Psql.Port = os.Getenv("DB_PORT")
	}

	// Optional MSSQL via environment variables (Azure SQL in production)
	if v := os.Getenv("MSSQL_DB_NAME"); v != "" && C.Database.Mssql.Name == "" {
		C.Database.Mssql.Name = v
	}
	if v := os.Getenv("MSSQL_HOST"); v != "" && C.Database.Mssql.Host == "" {
		C.Database.Mssql.Host = v
	}
	if v := os.Getenv("MSSQL_USER"); v != "" && C.Database.Mssql.User == "" {
		C.Database.Mssql.User = v
	}
	if v := os.Getenv("MSSQL_PASSWORD"); v != "" && C.Database.Mssql.Password == "" {
		C.Database.Mssql.Password = v
	}
	if C.Database.Mssql.Port == "" {
		if v := os.Getenv("MSSQL_PORT"); v != "" {
			C.Database.Mssql.Port = v
		} else {
			C.Database.Mssql.Port = "1433"
		}
	}

	if C.Database.MySql.Host == "" {
		C.Database.MySql.Host = os.Getenv("MYSQL_HOST")
	}
	if C.Database.MySql.Name == "" {
		C.Database.MySql.Name = os.Getenv("MYSQL_DB_NAME")
	}
	if C.Database.MySql.User == "" {
		C.Database.MySql.User = os.Getenv("MYSQL_USER")
	}
	if C.Database.MySql.Password == "" {
		C.Database.MySql.Password = os.Getenv("MYSQL_PASSWORD")
	}
	if C.Database.MySql.Port == "" {
		C.Database.MySql.Port = "3306"
	}
}

func initApp(C *Config) {
	// SECRET_KEY from environment overrides the config file when provided
	if v := os.Getenv("SECRET_KEY"); v != "" {
		C.App.SecretKey = v
	}
	// Port resolution order (env overrides config): APP_PORT -> PORT -> config -> default 10002
	if v := os.Getenv("APP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			C.App.Port = p
		}
	} else if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			C.App.Port = p
		}
	}
	if C.App.Port == 0 {
		C.App.Port = 10002
	}
	if v := os.Getenv("TLS_ENABLED"); v != "" {
		switch v {
		case "1", "true", "TRUE", "True":
			C.App.TLSEnabled = true
		case "0", "false", "FALSE", "False":
			C.App.TLSEnabled = false
		}
	}
	if C.App.TLSCertFile == "" {
		C.App.TLSCertFile = os.Getenv("TLS_CERT_FILE")
	}
	if C.App.TLSKeyFile == "" {
		C.App.TLSKeyFile = os.Getenv("TLS_KEY_FILE")
	}
	if C.Secrets.TokenKey == "" {
		C.Secrets.TokenKey = os.Getenv("TOKEN_ENCRYPTION_KEY")
	}
	if C.App.SecretKey == "" {
		logger.GetLogger().Warn("App.SecretKey not set; JWT authentication will fail. Provide SECRET_KEY via environment.")
	}
}

func initUpload(C *Config) {
	u := &C.Upload
	if u.ReferenceTTLMinutes == 0 {
		u.ReferenceTTLMinutes = 30
	}
	if u.RefreshMarginSeconds == 0 {
		u.RefreshMarginSeconds = 300
	}
	if u.RefreshFailureThreshold == 0 {
		u.RefreshFailureThreshold = 3
	}
	if u.StartRetryAttempts == 0 {
		u.StartRetryAttempts = 3
	}
	if u.StallTimeoutSeconds == 0 {
		u.StallTimeoutSeconds = 300
	}
	if u.PollIntervalSeconds == 0 {
		u.PollIntervalSeconds = 3
	}
	if u.ObserverMaxWaitMinutes == 0 {
		u.ObserverMaxWaitMinutes = 15
	}
	if u.SweepIntervalMinutes == 0 {
		u.SweepIntervalMinutes = 5
	}
}
