package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/viper"

	"goflare.io/petclinic/models"
)

// EnvPrefix is prepended to every environment key, so "vets.cache.ttl_seconds"
// is read from PETCLINIC_VETS_CACHE_TTL_SECONDS.
const EnvPrefix = "PETCLINIC"

// Settings is the file/environment view of the configuration.
type Settings struct {
	Vets       VetsSettings       `mapstructure:"vets"`
	Store      StoreSettings      `mapstructure:"store"`
	Redis      RedisSettings      `mapstructure:"redis"`
	Resilience ResilienceSettings `mapstructure:"resilience"`
}

type VetsSettings struct {
	Cache CacheSettings `mapstructure:"cache"`
}

// CacheSettings uses pointers so an absent key can be told apart from zero.
type CacheSettings struct {
	TTLSeconds *int `mapstructure:"ttl_seconds"`
	MaxEntries *int `mapstructure:"max_entries"`
	Coalesce   bool `mapstructure:"coalesce"`
}

type StoreSettings struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type RedisSettings struct {
	Addr          string `mapstructure:"addr"`
	Channel       string `mapstructure:"channel"`
	Serialization string `mapstructure:"serialization"`
}

type ResilienceSettings struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load reads settings from an optional config file and the environment. When
// path is empty a "petclinic" config file in the working directory is used if
// present. Missing directory cache keys are a configuration error.
func Load(path string) (*Settings, error) {
	s := &Settings{
		Store:      StoreSettings{Driver: "sqlite"},
		Resilience: ResilienceSettings{Enabled: true},
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, s)
	v.SetDefault("store.driver", s.Store.Driver)
	v.SetDefault("resilience.enabled", s.Resilience.Enabled)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("petclinic")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	if err := v.Unmarshal(s); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrConfiguration, err)
	}
	if s.Vets.Cache.TTLSeconds == nil {
		return nil, fmt.Errorf("%w: vets.cache.ttl_seconds is required", models.ErrConfiguration)
	}
	if s.Vets.Cache.MaxEntries == nil {
		return nil, fmt.Errorf("%w: vets.cache.max_entries is required", models.ErrConfiguration)
	}
	return s, nil
}

// Options converts the directory, resilience and serialization settings.
// Store and Redis connections are opened by the caller.
func (s *Settings) Options() []Option {
	opts := []Option{
		WithCoalescing(s.Vets.Cache.Coalesce),
		WithResilience(s.Resilience.Enabled),
	}
	if s.Vets.Cache.TTLSeconds != nil {
		opts = append(opts, WithDirectoryTTL(*s.Vets.Cache.TTLSeconds))
	}
	if s.Vets.Cache.MaxEntries != nil {
		opts = append(opts, WithMaxEntries(*s.Vets.Cache.MaxEntries))
	}
	if s.Redis.Serialization != "" {
		opts = append(opts, WithSerialization(s.Redis.Serialization))
	}
	return opts
}

// bindEnvs registers every leaf key of cfg so Unmarshal sees environment values.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(append([]string{}, parts...), tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
