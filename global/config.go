package global

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"DMChat/tools/errs"
)

// Duration accepts "5m" / "2h" style yaml values.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		v, perr := time.ParseDuration(s)
		if perr != nil {
			return perr
		}
		*d = Duration(v)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return err
	}
	*d = Duration(time.Duration(n) * time.Second)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the static process configuration; loaded once at start and
// never mutated afterwards.
type Config struct {
	Listen        string `yaml:"listen"`         // HTTP/WS listen addr
	AllowedOrigin string `yaml:"allowed_origin"` // empty = allow any
	GatewayID     string `yaml:"gateway_id"`
	NodeID        int64  `yaml:"node_id"`

	SendQueueSize int `yaml:"send_queue_size"` // per-connection outbound queue

	Reaper struct {
		Interval      Duration `yaml:"interval"`       // sweep period
		IdleThreshold Duration `yaml:"idle_threshold"` // eviction threshold
	} `yaml:"reaper"`

	JWT struct {
		Secret string   `yaml:"secret"`
		TTL    Duration `yaml:"ttl"`
	} `yaml:"jwt"`

	Mongo struct {
		URI      string `yaml:"uri"`
		Database string `yaml:"database"`
	} `yaml:"mongo"`

	Redis struct {
		Addr        string   `yaml:"addr"`
		Password    string   `yaml:"password"`
		DB          int      `yaml:"db"`
		PresenceTTL Duration `yaml:"presence_ttl"`
	} `yaml:"redis"`

	Nats struct {
		Servers []string `yaml:"servers"`
	} `yaml:"nats"`
}

var conf = Default()

// Default returns the built-in configuration (also the test configuration).
func Default() *Config {
	c := &Config{
		Listen:        ":8088",
		GatewayID:     "gw-1",
		NodeID:        1,
		SendQueueSize: 256,
	}
	c.Reaper.Interval = Duration(5 * time.Minute)
	c.Reaper.IdleThreshold = Duration(30 * time.Minute)
	c.JWT.Secret = "mN9b1f8zPq+W2xjX/45sKcVd0TfyoG+3Hp5Z8q9Rj1o="
	c.JWT.TTL = Duration(2 * time.Hour)
	c.Mongo.URI = "mongodb://localhost:27017"
	c.Mongo.Database = "dmchat"
	c.Redis.Addr = "127.0.0.1:6379"
	c.Redis.PresenceTTL = Duration(35 * time.Minute)
	c.Nats.Servers = []string{"nats://127.0.0.1:4222"}
	return c
}

// Load reads a yaml config file over the defaults.
func Load(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return errs.Wrap(err, "read config")
	}
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return errs.Wrap(err, "parse config")
	}
	conf = c
	return nil
}

func Conf() *Config { return conf }

func GetJwtSecret() []byte { return []byte(conf.JWT.Secret) }
