package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads the configuration file at path (YAML or JSON, by extension) and
// overlays environment variables (FITSYNC_STORAGE_DSN -> storage.dsn), even
// for keys the file omits. The producer list is file-only; environment
// variables cannot address list elements. A .env file in the working
// directory is loaded first when present so local runs can keep credentials
// out of the config file.
func Load(path string) (Config, error) {
	// Missing .env is fine; production sets real environment variables.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("fitsync")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only overlays keys viper already knows about; register
	// every scalar key so env-only settings are not silently ignored.
	bindKeys(v, Config{}, "")

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
	}

	// DSNs commonly reference secrets as $VAR; expand them here so store
	// backends only ever see the final connection string.
	c.Storage.DSN = os.ExpandEnv(c.Storage.DSN)

	return c, nil
}

// bindKeys walks the config struct's mapstructure tags and registers each
// scalar key with an empty default. Nested structs recurse; slices are
// skipped (not addressable via environment variables).
func bindKeys(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		switch field.Type.Kind() {
		case reflect.Struct:
			bindKeys(v, reflect.New(field.Type).Elem().Interface(), key)
		case reflect.Slice:
			// file-only
		default:
			v.SetDefault(key, "")
		}
	}
}
