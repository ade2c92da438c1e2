package config

import (
	"errors"
	"flag"
	"net"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr          string
	DBUrl         string
	TokenSecret   string
	TokenTTL      time.Duration
	Debug         bool
	AdminUser     string
	AdminPassword string
	// Strict turns on label uniqueness, required fields and type checks.
	Strict bool
}

// Load reads an optional .env file, then parses the command line.
func Load() (Config, error) {
	// a missing .env is fine, values may come from the real environment
	_ = godotenv.Load()
	return Parse(os.Args[1:])
}

// Parse reads flags from args. Every flag falls back to its environment variable, then to a built-in default.
func Parse(args []string) (cfg Config, err error) {
	fs := flag.NewFlagSet("quick-forms", flag.ContinueOnError)

	var host string
	fs.StringVar(&host, "host", env("HOST", "0.0.0.0"), "listen host name")
	var port uint
	fs.UintVar(&port, "port", envUint("PORT", 80), "listen port number")
	fs.StringVar(&cfg.DBUrl, "db-url", env("DATABASE_URL", "qforms.sqlite"), "path to SQLite3 DB file")
	fs.StringVar(&cfg.TokenSecret, "token-secret", env("SECRET_KEY", ""), "secret key for token encryption and decryption")
	var ttl uint
	fs.UintVar(&ttl, "token-ttl", envUint("TOKEN_TTL", 120), "token TTL in seconds")
	fs.BoolVar(&cfg.Debug, "debug", envBool("DEBUG", false), "log at DEBUG level")
	fs.StringVar(&cfg.AdminUser, "admin-user", env("ADMIN_USER", "admin"), "bootstrap admin user name")
	fs.StringVar(&cfg.AdminPassword, "admin-password", env("ADMIN_PASSWORD", "admin123"), "bootstrap admin password")
	fs.BoolVar(&cfg.Strict, "strict", envBool("STRICT", false), "reject duplicate labels, empty required fields and mistyped values")

	if err = fs.Parse(args); err != nil {
		return
	}

	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(int(port)))
	cfg.TokenTTL = time.Duration(ttl) * time.Second

	switch {
	case cfg.TokenSecret == "":
		err = errors.New("missing parameter -token-secret")
	case cfg.AdminUser == "" || cfg.AdminPassword == "":
		err = errors.New("missing parameter -admin-user or -admin-password")
	}

	return
}

func (cfg Config) Url() (url string) {
	url = cfg.Addr
	url = regexp.MustCompile(`^0.0.0.0`).ReplaceAllString(url, "localhost")
	url = "http://" + url
	return
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envUint(key string, def uint) uint {
	n, err := strconv.ParseUint(os.Getenv(key), 10, 0)
	if err != nil {
		return def
	}
	return uint(n)
}

func envBool(key string, def bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return b
}
