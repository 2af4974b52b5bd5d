package config

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Storage  StorageConfig  `yaml:"storage"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Drafts   DraftsConfig   `yaml:"drafts"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	Console    bool   `yaml:"console"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// StorageConfig selects where collections, attachments and rendered PDFs live.
// Driver is one of "file", "mysql" or "sqlite".
type StorageConfig struct {
	Driver         string `yaml:"driver"`
	DataDir        string `yaml:"data_dir"`
	AttachmentsDir string `yaml:"attachments_dir"`
	PDFDir         string `yaml:"pdf_dir"`
	SQLitePath     string `yaml:"sqlite_path"`
	MaxUploadMB    int64  `yaml:"max_upload_mb"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

type AuthConfig struct {
	JWTSecret       string        `yaml:"jwt_secret"`
	TokenTTL        time.Duration `yaml:"token_ttl"`
	AdminUser       string        `yaml:"admin_user"`
	AdminPassword   string        `yaml:"admin_password"`
	DefaultPassword string        `yaml:"default_password"`
}

// DraftsConfig bounds the in-memory report drafts. MaxFiles and MaxPendingMB
// cap the uploads one draft holds before it is submitted.
type DraftsConfig struct {
	TTL          time.Duration `yaml:"ttl"`
	MaxFiles     int           `yaml:"max_files"`
	MaxPendingMB int64         `yaml:"max_pending_mb"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 9871, AllowedOrigins: []string{"*"}},
		Log:    LogConfig{Level: "info", Console: true, MaxSizeMB: 100, MaxBackups: 3, MaxAgeDays: 30},
		Storage: StorageConfig{
			Driver:         "file",
			DataDir:        "dados",
			AttachmentsDir: "dados/anexos",
			PDFDir:         "pdfs",
			SQLitePath:     "dados/obra-rdo.db",
			MaxUploadMB:    20,
		},
		Database: DatabaseConfig{Port: 3306, Name: "obra_rdo"},
		Auth: AuthConfig{
			JWTSecret:       "obra-rdo-dev-secret",
			TokenTTL:        7 * 24 * time.Hour,
			AdminUser:       "admin",
			AdminPassword:   "admin123",
			DefaultPassword: "mudar123",
		},
		Drafts: DraftsConfig{TTL: 12 * time.Hour, MaxFiles: 30, MaxPendingMB: 100},
	}
}

func Load(configFile string) *Config {
	c := Default()

	paths := []string{"etc/config-dev.yaml", "/etc/obra-rdo/config.yaml"}
	if configFile != "" {
		paths = []string{configFile}
	}
	for _, path := range paths {
		if data, err := os.ReadFile(path); err == nil {
			yaml.Unmarshal(data, c)
			break
		}
	}

	_ = godotenv.Load()

	envOverride(&c.Storage.Driver, "STORE_DRIVER")
	envOverride(&c.Storage.DataDir, "DATA_DIR")
	envOverride(&c.Storage.AttachmentsDir, "ATTACHMENTS_DIR")
	envOverride(&c.Storage.PDFDir, "PDF_DIR")
	envOverride(&c.Storage.SQLitePath, "SQLITE_PATH")
	envOverride(&c.Database.Host, "DB_HOST")
	envOverride(&c.Database.User, "DB_USER")
	envOverride(&c.Database.Password, "DB_PASS")
	envOverride(&c.Database.Name, "DB_NAME")
	envOverride(&c.Auth.JWTSecret, "JWT_SECRET")
	envOverride(&c.Auth.AdminUser, "ADMIN_USER")
	envOverride(&c.Auth.AdminPassword, "ADMIN_PASSWORD")
	envOverride(&c.Log.Level, "LOG_LEVEL")
	envOverride(&c.Log.File, "LOG_FILE")
	envOverrideInt(&c.Server.Port, "PORT")
	envOverrideInt(&c.Database.Port, "DB_PORT")

	return c
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

// MaxUploadBytes is the per-file upload ceiling for attachments.
func (c *Config) MaxUploadBytes() int64 {
	return c.Storage.MaxUploadMB << 20
}

// OpenGormDB opens the SQL database behind the "mysql" and "sqlite" storage drivers.
func (c *Config) OpenGormDB() (*gorm.DB, error) {
	gcfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	switch c.Storage.Driver {
	case "sqlite":
		return gorm.Open(sqlite.Open(c.Storage.SQLitePath), gcfg)
	case "mysql":
	default:
		return nil, fmt.Errorf("storage driver %q has no database", c.Storage.Driver)
	}

	cfg := gomysql.NewConfig()
	cfg.User = c.Database.User
	cfg.Passwd = c.Database.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port)
	cfg.DBName = c.Database.Name
	cfg.ParseTime = true

	connector, err := gomysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("create connector: %w", err)
	}
	sqlDB := sql.OpenDB(connector)
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return gorm.Open(mysql.New(mysql.Config{Conn: sqlDB}), gcfg)
}

func envOverride(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envOverrideInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
