package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "UNMHOST"

// loadRawEnv reads UNMHOST_* overrides into a raw layer and reports which
// keys they set.
func loadRawEnv() (RawConfig, map[string]Source, error) {
	var raw RawConfig
	if err := envconfig.Process(EnvPrefix, &raw); err != nil {
		return RawConfig{}, nil, fmt.Errorf("environment: %w", err)
	}

	sources := map[string]Source{}
	v := reflect.ValueOf(raw)
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := v.Field(i)
		if field.Kind() != reflect.Pointer || field.IsNil() {
			continue
		}
		key := strings.Split(t.Field(i).Tag.Get("yaml"), ",")[0]
		sources[key] = Source{Kind: SourceEnv, Name: EnvPrefix + "_" + strings.ToUpper(key)}
	}
	return raw, sources, nil
}
