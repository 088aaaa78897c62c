package config

import (
	"flag"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

type Config struct {
	Env                  string          `yaml:"env" env-default:"local"`
	StoragePath          string          `yaml:"storage_path" env:"IAM_STORAGE_PATH"`
	Issuer               string          `yaml:"issuer" env-default:"my-iam-server"`
	Audience             []string        `yaml:"audience" env-default:"my-client-app"`
	AccessTokenTTL       time.Duration   `yaml:"access_token_ttl" env-default:"1h"`
	RefreshTokenTTL      time.Duration   `yaml:"refresh_token_ttl" env-default:"3h"`
	AuthorizationCodeTTL time.Duration   `yaml:"authorization_code_ttl" env-default:"2m"`
	LoginTTL             time.Duration   `yaml:"login_ttl" env-default:"10m"`
	DefaultRoles         []string        `yaml:"default_roles" env-default:"USER"`
	ReplayGuard          bool            `yaml:"replay_guard"`
	Seed                 bool            `yaml:"seed"`
	Keys                 KeysConfig      `yaml:"keys"`
	HTTP                 HTTPConfig      `yaml:"http" env-required:"true"`
	GRPC                 GRPCConfig      `yaml:"grpc" env-required:"true"`
	Redis                RedisConfig     `yaml:"redis"`
	Vault                VaultConfig     `yaml:"vault"`
	Secrets              SecretsConfig   `yaml:"secrets"`
	RateLimit            RateLimitConfig `yaml:"rate_limit"`
}

type KeysConfig struct {
	PoolSize     int           `yaml:"pool_size" env-default:"5"`
	SignLifetime time.Duration `yaml:"sign_lifetime" env-default:"24h"`
	Algorithm    string        `yaml:"algorithm" env-default:"EdDSA"`
}

type HTTPConfig struct {
	Port          int           `yaml:"port" env-default:"8080"`
	ReadTimeout   time.Duration `yaml:"read_timeout" env-default:"5s"`
	WriteTimeout  time.Duration `yaml:"write_timeout" env-default:"10s"`
	SecureCookies bool          `yaml:"secure_cookies" env-default:"true"`
}

type GRPCConfig struct {
	Port    int           `yaml:"port"`
	Timeout time.Duration `yaml:"timeout"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host" env-default:"localhost"`
	Port     int    `yaml:"port" env-default:"6379"`
	Password string `yaml:"password" env:"IAM_REDIS_PASSWORD"`
	DB       int    `yaml:"db"`
}

type VaultConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Address      string        `yaml:"address" env:"VAULT_ADDR" env-default:"http://vault:8200"`
	Token        string        `yaml:"token" env:"VAULT_TOKEN"`
	RoleIDFile   string        `yaml:"role_id_file"`
	SecretIDFile string        `yaml:"secret_id_file"`
	MountPath    string        `yaml:"mount_path" env-default:"secret"`
	SecretPath   string        `yaml:"secret_path" env-default:"iam"`
	Timeout      time.Duration `yaml:"timeout" env-default:"30s"`
}

// SecretsConfig holds the HMAC keys for authorization codes and the
// authorization context cookie when they are not read from Vault
type SecretsConfig struct {
	CodeSecret   string `yaml:"code_secret" env:"IAM_CODE_SECRET"`
	CookieSecret string `yaml:"cookie_secret" env:"IAM_COOKIE_SECRET"`
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst" env-default:"10"`
}

func MustLoad() *Config {
	path := fetchConfigPath()
	if path == "" {
		panic("config path is empty")
	}

	return MustLoadPath(path)
}

func MustLoadPath(path string) *Config {
	if path == "" {
		panic("config path is empty")
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		panic("config path does not exist: " + path)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		panic(err)
	}

	return &cfg
}

// Priority: flag > env > default
func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}
	return res
}
