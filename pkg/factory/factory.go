/*
 * OCS Configuration Factory
 */

package factory

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/free5gc/ocs/internal/logger"
)

var OcsConfig *Config

// envOverrides are read from OCS_* variables and win over the YAML file.
type envOverrides struct {
	DataSourceType string `envconfig:"DATASOURCE_TYPE"`
	SessionStore   string `envconfig:"SESSION_STORE"`
	RedisAddr      string `envconfig:"REDIS_ADDR"`
	RedisPassword  string `envconfig:"REDIS_PASSWORD"`
	MongodbUrl     string `envconfig:"MONGODB_URL"`
	OriginHost     string `envconfig:"ORIGIN_HOST"`
	OriginRealm    string `envconfig:"ORIGIN_REALM"`
}

func InitConfigFactory(f string, cfg *Config) error {
	if f == "" {
		f = OcsDefaultConfigPath
	}

	content, err := os.ReadFile(f)
	if err != nil {
		return errors.Wrapf(err, "read config file [%s]", f)
	}

	logger.CfgLog.Infof("Read config from [%s]", f)
	if yamlErr := yaml.Unmarshal(content, cfg); yamlErr != nil {
		return errors.Wrap(yamlErr, "unmarshal config")
	}

	return ApplyEnvOverrides(cfg)
}

// ApplyEnvOverrides patches cfg with any OCS_* environment variables that are set.
func ApplyEnvOverrides(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process("ocs", &env); err != nil {
		return errors.Wrap(err, "process environment")
	}
	if cfg.Configuration == nil {
		cfg.Configuration = &Configuration{}
	}
	c := cfg.Configuration

	if env.DataSourceType != "" {
		if c.Balance == nil {
			c.Balance = &Balance{}
		}
		logger.CfgLog.Infof("Balance data source [%s] from environment", env.DataSourceType)
		c.Balance.DataSource = env.DataSourceType
	}
	if env.MongodbUrl != "" {
		if c.Balance == nil {
			c.Balance = &Balance{}
		}
		if c.Balance.Mongodb == nil {
			c.Balance.Mongodb = &Mongodb{Name: "ocs"}
		}
		c.Balance.Mongodb.Url = env.MongodbUrl
	}
	if env.SessionStore != "" {
		if c.Session == nil {
			c.Session = &Session{}
		}
		c.Session.Store = env.SessionStore
	}
	if env.RedisAddr != "" || env.RedisPassword != "" {
		if c.Session == nil {
			c.Session = &Session{}
		}
		if c.Session.Redis == nil {
			c.Session.Redis = &Redis{}
		}
		if env.RedisAddr != "" {
			c.Session.Redis.Addr = env.RedisAddr
		}
		if env.RedisPassword != "" {
			c.Session.Redis.Password = env.RedisPassword
		}
	}
	if env.OriginHost != "" || env.OriginRealm != "" {
		if c.Diameter == nil {
			c.Diameter = &Diameter{}
		}
		if env.OriginHost != "" {
			c.Diameter.OriginHost = env.OriginHost
		}
		if env.OriginRealm != "" {
			c.Diameter.OriginRealm = env.OriginRealm
		}
	}
	return nil
}

func ReadConfig(cfgPath string) (*Config, error) {
	cfg := &Config{}
	if err := InitConfigFactory(cfgPath, cfg); err != nil {
		return nil, errors.Wrapf(err, "ReadConfig [%s]", cfgPath)
	}
	if _, err := cfg.Validate(); err != nil {
		if validErrs, ok := err.(interface{ Errors() []error }); ok {
			for _, validErr := range validErrs.Errors() {
				logger.CfgLog.Errorf("%+v", validErr)
			}
		} else {
			logger.CfgLog.Errorf("%+v", err)
		}
		logger.CfgLog.Errorf("[-- PLEASE REFER TO SAMPLE CONFIG FILE COMMENTS --]")
		return nil, fmt.Errorf("Config validate Error")
	}
	if err := CheckConfigVersion(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func CheckConfigVersion(cfg *Config) error {
	currentVersion := cfg.GetVersion()

	if currentVersion != OcsExpectedConfigVersion {
		return fmt.Errorf("config version is [%s], but expected is [%s].",
			currentVersion, OcsExpectedConfigVersion)
	}

	logger.CfgLog.Infof("config version [%s]", currentVersion)

	return nil
}
