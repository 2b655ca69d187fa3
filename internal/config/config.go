// 包 config：集中读取环境变量（可由 .env 提供），缺省值与既有部署保持一致
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// 停车场数据来源
const (
	SourceCSV      = "csv"
	SourcePostgres = "postgres"
)

type Postgres struct {
	Host     string
	Port     string
	User     string
	Password string
	DB       string
	SSLMode  string
	MaxOpen  int
	MaxIdle  int
}

// DSN 拼接 lib/pq 连接串
func (p Postgres) DSN() string {
	dsn := "postgres://" + p.User
	if p.Password != "" {
		dsn += ":" + p.Password
	}
	dsn += "@" + p.Host + ":" + p.Port + "/" + p.DB + "?sslmode=" + p.SSLMode
	return dsn
}

type Redis struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type TLS struct {
	Enabled  bool
	CertPath string
	KeyPath  string
}

type Config struct {
	Addr    string
	APIBase string
	TLS     TLS

	LotSource   string
	CSVPath     string
	SkipInvalid bool
	ReloadCron  string
	AdminToken  string

	CellDeg        float64
	RadiusMeters   float64
	RadiusTunable  bool
	NotFoundStatus int

	CacheEnabled bool
	CacheTTL     time.Duration
	CacheLRUSize int

	RateLimitEnabled bool
	RateLimitQPS     int
	CORSOrigin       string

	Postgres Postgres
	Redis    Redis
}

// LoadEnvFiles 加载 .env 与 data/env/.env；文件缺失时静默跳过
func LoadEnvFiles() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
}

// Load：从进程环境构建配置
// 约束：解析失败的数值回退到缺省值，不中断启动
func Load() Config {
	return Config{
		Addr:    str("ADDR", ":8080"),
		APIBase: strings.TrimRight(os.Getenv("API_BASE"), "/"),
		TLS: TLS{
			Enabled:  boolean("TLS_ENABLE", false),
			CertPath: str("TLS_CERT_PATH", filepath.Join("data", "certs", "server.crt")),
			KeyPath:  str("TLS_KEY_PATH", filepath.Join("data", "certs", "server.key")),
		},

		LotSource:   strings.ToLower(str("LOT_SOURCE", SourceCSV)),
		CSVPath:     str("LOT_CSV_PATH", filepath.Join("data", "LA_Parking_Lot.csv")),
		SkipInvalid: boolean("LOT_SKIP_INVALID", false),
		ReloadCron:  os.Getenv("RELOAD_CRON"),
		AdminToken:  os.Getenv("ADMIN_TOKEN"),

		CellDeg:        positiveFloat("INDEX_CELL_DEG", 0.01),
		RadiusMeters:   positiveFloat("SCORE_RADIUS_M", 1000),
		RadiusTunable:  boolean("SCORE_RADIUS_TUNABLE", false),
		NotFoundStatus: notFoundStatus(),

		CacheEnabled: boolean("CACHE_ENABLED", true),
		CacheTTL:     time.Duration(positiveInt("CACHE_TTL_S", 300)) * time.Second,
		CacheLRUSize: positiveInt("CACHE_LRU_SIZE", 4096),

		RateLimitEnabled: boolean("RATE_LIMIT_ENABLED", false),
		RateLimitQPS:     positiveInt("RATE_LIMIT_QPS", 200),
		CORSOrigin:       str("CORS_ORIGIN", "http://localhost:4200"),

		Postgres: Postgres{
			Host:     str("PG_HOST", "localhost"),
			Port:     str("PG_PORT", "5432"),
			User:     str("PG_USER", "postgres"),
			Password: os.Getenv("PG_PASSWORD"),
			DB:       str("PG_DB", "parking"),
			SSLMode:  str("PG_SSLMODE", "disable"),
			MaxOpen:  positiveInt("PG_MAX_OPEN_CONNS", 20),
			MaxIdle:  positiveInt("PG_MAX_IDLE_CONNS", 10),
		},
		Redis: Redis{
			Enabled:  boolean("REDIS_ENABLED", false),
			Addr:     str("REDIS_HOST", "127.0.0.1") + ":" + str("REDIS_PORT", "6379"),
			Password: os.Getenv("REDIS_PASS"),
			DB:       nonNegativeInt("REDIS_DB", 0),
		},
	}
}

func str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func boolean(key string, def bool) bool {
	if v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key))); err == nil {
		return v
	}
	return def
}

func positiveInt(key string, def int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key))); err == nil && n > 0 {
		return n
	}
	return def
}

func nonNegativeInt(key string, def int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key))); err == nil && n >= 0 {
		return n
	}
	return def
}

func positiveFloat(key string, def float64) float64 {
	if f, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64); err == nil && f > 0 {
		return f
	}
	return def
}

// 空库查询默认沿用 400（兼容旧客户端）；仅接受 400/404
func notFoundStatus() int {
	if os.Getenv("NOT_FOUND_STATUS") == "404" {
		return 404
	}
	return 400
}
