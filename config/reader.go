package config

import (
	"encoding/json"
	"io"
	"os"

	"github.com/a8m/envsubst"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"github.com/spf13/cast"

	"go.viam.com/closecall/logging"
)

// FileEnvVar names the environment variable holding the optional config file path.
const FileEnvVar = "CLOSECALL_CONFIG"

// LookupEnvFunc has the signature of os.LookupEnv.
type LookupEnvFunc func(key string) (string, bool)

// Load builds the process config: defaults, then the file named by CLOSECALL_CONFIG (if any),
// then the environment overlay. The result is validated.
func Load(logger logging.Logger) (*Config, error) {
	return load(os.LookupEnv, logger)
}

func load(lookup LookupEnvFunc, logger logging.Logger) (*Config, error) {
	cfg := Default()
	if path, ok := lookup(FileEnvVar); ok && path != "" {
		read, err := Read(path)
		if err != nil {
			return nil, err
		}
		cfg = read
		logger.Infow("read config file", "path", path)
	}
	if err := ApplyEnv(cfg, lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate("closecall"); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read reads a config from the given file, expanding ${VAR} references from the environment.
func Read(filePath string) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	cfg, err := FromBytes(buf)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config %q", filePath)
	}
	cfg.ConfigFilePath = filePath
	return cfg, nil
}

// FromReader decodes a JSON config from `r` on top of the defaults. No environment expansion is
// performed.
func FromReader(r io.Reader) (*Config, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return FromBytes(buf)
}

// FromBytes decodes a JSON config on top of the defaults. Keys missing from the document keep
// their default value.
func FromBytes(buf []byte) (*Config, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(buf, &raw); err != nil {
		return nil, errors.Wrap(err, "failed to decode config from json")
	}

	cfg := Default()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:    "json",
		Result:     cfg,
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, errors.Wrap(err, "failed to convert config attributes")
	}
	return cfg, nil
}

// ApplyEnv overlays the environment variables understood by the Intel IoT samples onto `cfg`.
// Set variables win over file and default values.
func ApplyEnv(cfg *Config, lookup LookupEnvFunc) error {
	strVars := map[string]*string{
		"MQTT_SERVER":   &cfg.MQTT.Server,
		"MQTT_CLIENTID": &cfg.MQTT.ClientID,
		"MQTT_TOPIC":    &cfg.MQTT.Topic,
		"MQTT_USERNAME": &cfg.MQTT.Username,
		"MQTT_PASSWORD": &cfg.MQTT.Password,
		"MQTT_CA":       &cfg.MQTT.CA,
		"MQTT_CERT":     &cfg.MQTT.Cert,
		"MQTT_KEY":      &cfg.MQTT.Key,
		"SERVER":        &cfg.Datastore.Server,
		"AUTH_TOKEN":    &cfg.Datastore.AuthToken,
		"LOG_LEVEL":     &cfg.Log.Level,
		"LOG_FILE":      &cfg.Log.File,
	}
	for name, dst := range strVars {
		if val, ok := lookup(name); ok && val != "" {
			*dst = val
		}
	}

	if val, ok := lookup("SKIP_PLATFORM_CHECK"); ok && val != "" {
		skip, err := cast.ToBoolE(val)
		if err != nil {
			return errors.Wrap(err, "invalid SKIP_PLATFORM_CHECK")
		}
		cfg.Platform.SkipCheck = skip
	}

	if cfg.MQTT.Enabled() && cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = defaultClientID()
	}
	return nil
}
