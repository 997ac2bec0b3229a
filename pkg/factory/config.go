/*
 * OCS Configuration Factory
 */

package factory

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/sirupsen/logrus"
)

const (
	OcsExpectedConfigVersion = "1.0.0"
	OcsDefaultConfigPath     = "./config/ocscfg.yaml"

	OcsDiameterDefaultIPv4    = "127.0.0.1"
	OcsDiameterDefaultPort    = 3868
	OcsDiameterDefaultNetwork = "tcp"
	OcsOamDefaultIPv4         = "127.0.0.1"
	OcsOamDefaultPort         = 9090

	OcsDefaultBucketSize     int64  = 40000000
	OcsDefaultValidityTime   uint32 = 86400
	OcsDefaultSessionTTL            = 24 * time.Hour
	OcsDefaultRequestTimeout        = 2 * time.Second

	SessionStoreRedis  = "redis"
	SessionStoreMemory = "memory"

	DataSourceLocal   = "local"
	DataSourceMongoDB = "mongodb"
)

type Config struct {
	Info          *Info          `yaml:"info" valid:"required"`
	Configuration *Configuration `yaml:"configuration" valid:"required"`
	Logger        *Logger        `yaml:"logger" valid:"required"`
	sync.RWMutex
}

func (c *Config) Validate() (bool, error) {
	if _, err := c.Info.validate(); err != nil {
		return false, err
	}

	if _, err := c.Configuration.validate(); err != nil {
		return false, err
	}

	if _, err := c.Logger.validate(); err != nil {
		return false, err
	}

	if _, err := govalidator.ValidateStruct(c); err != nil {
		return false, appendInvalid(err)
	}

	return true, nil
}

type Info struct {
	Version     string `yaml:"version,omitempty" valid:"required"`
	Description string `yaml:"description,omitempty" valid:"-"`
}

func (i *Info) validate() (bool, error) {
	if i == nil {
		return false, fmt.Errorf("Invalid info: missing section")
	}
	if _, err := govalidator.ValidateStruct(i); err != nil {
		return false, appendInvalid(err)
	}

	return true, nil
}

type Configuration struct {
	OcsName  string    `yaml:"ocsName,omitempty" valid:"required, type(string)"`
	Diameter *Diameter `yaml:"diameter,omitempty" valid:"required"`
	Quota    *Quota    `yaml:"quota,omitempty" valid:"optional"`
	Session  *Session  `yaml:"session,omitempty" valid:"required"`
	Balance  *Balance  `yaml:"balance,omitempty" valid:"required"`
	Oam      *Oam      `yaml:"oam,omitempty" valid:"optional"`
}

func (c *Configuration) validate() (bool, error) {
	if c == nil {
		return false, fmt.Errorf("Invalid configuration: missing section")
	}

	if c.Diameter != nil {
		if _, err := c.Diameter.validate(); err != nil {
			return false, err
		}
	}

	if c.Quota != nil {
		if _, err := c.Quota.validate(); err != nil {
			return false, err
		}
	}

	if c.Session != nil {
		if _, err := c.Session.validate(); err != nil {
			return false, err
		}
	}

	if c.Balance != nil {
		if _, err := c.Balance.validate(); err != nil {
			return false, err
		}
	}

	if _, err := govalidator.ValidateStruct(c); err != nil {
		return false, appendInvalid(err)
	}

	return true, nil
}

type Diameter struct {
	OriginHost  string `yaml:"originHost" valid:"required, type(string)"`
	OriginRealm string `yaml:"originRealm" valid:"required, type(string)"`
	Network     string `yaml:"network,omitempty" valid:"optional, network"`
	BindingIPv4 string `yaml:"bindingIPv4,omitempty" valid:"optional, host"`
	Port        int    `yaml:"port,omitempty" valid:"optional, port"`
	VendorId    uint32 `yaml:"vendorId,omitempty" valid:"optional"`
	ProductName string `yaml:"productName,omitempty" valid:"optional"`
}

func (d *Diameter) validate() (bool, error) {
	govalidator.TagMap["network"] = govalidator.Validator(func(str string) bool {
		switch str {
		case "tcp", "tcp4", "tcp6":
		default:
			return false
		}
		return true
	})

	if _, err := govalidator.ValidateStruct(d); err != nil {
		return false, appendInvalid(err)
	}

	return true, nil
}

type Quota struct {
	DefaultBucketSize   int64  `yaml:"defaultBucketSize,omitempty" valid:"optional"`
	DefaultValidityTime uint32 `yaml:"defaultValidityTime,omitempty" valid:"optional"`
}

func (q *Quota) validate() (bool, error) {
	if q.DefaultBucketSize < 0 {
		return false, fmt.Errorf("Invalid defaultBucketSize: %d", q.DefaultBucketSize)
	}
	return true, nil
}

type Session struct {
	Store          string        `yaml:"store" valid:"required, sessionstore"`
	Redis          *Redis        `yaml:"redis,omitempty" valid:"optional"`
	SessionTTL     time.Duration `yaml:"sessionTTL,omitempty" valid:"optional"`
	RequestTimeout time.Duration `yaml:"requestTimeout,omitempty" valid:"optional"`
}

func (s *Session) validate() (bool, error) {
	govalidator.TagMap["sessionstore"] = govalidator.Validator(func(str string) bool {
		return str == SessionStoreRedis || str == SessionStoreMemory
	})

	if s.Store == SessionStoreRedis && s.Redis == nil {
		return false, fmt.Errorf("Invalid session: redis store selected without redis section")
	}

	if _, err := govalidator.ValidateStruct(s); err != nil {
		return false, appendInvalid(err)
	}

	return true, nil
}

type Redis struct {
	Addr         string        `yaml:"addr" valid:"required, dialstring"`
	Password     string        `yaml:"password,omitempty" valid:"-"`
	DB           int           `yaml:"db,omitempty" valid:"optional"`
	DialTimeout  time.Duration `yaml:"dialTimeout,omitempty" valid:"optional"`
	ReadTimeout  time.Duration `yaml:"readTimeout,omitempty" valid:"optional"`
	WriteTimeout time.Duration `yaml:"writeTimeout,omitempty" valid:"optional"`
	PoolSize     int           `yaml:"poolSize,omitempty" valid:"optional"`
}

type Balance struct {
	DataSource  string        `yaml:"dataSource" valid:"required, datasource"`
	Mongodb     *Mongodb      `yaml:"mongodb,omitempty" valid:"optional"`
	Breaker     *Breaker      `yaml:"breaker,omitempty" valid:"optional"`
	Subscribers []*Subscriber `yaml:"subscribers,omitempty" valid:"optional"`
}

func (b *Balance) validate() (bool, error) {
	govalidator.TagMap["datasource"] = govalidator.Validator(func(str string) bool {
		return str == DataSourceLocal || str == DataSourceMongoDB
	})

	if b.DataSource == DataSourceMongoDB {
		if b.Mongodb == nil {
			return false, fmt.Errorf("Invalid balance: mongodb data source selected without mongodb section")
		}
		if _, err := b.Mongodb.validate(); err != nil {
			return false, err
		}
	}

	for _, s := range b.Subscribers {
		if s.Balance < 0 {
			return false, fmt.Errorf("Invalid balance for subscriber %s: %d", s.Msisdn, s.Balance)
		}
	}

	if _, err := govalidator.ValidateStruct(b); err != nil {
		return false, appendInvalid(err)
	}

	return true, nil
}

type Mongodb struct {
	Name string `yaml:"name" valid:"required, type(string)"`
	Url  string `yaml:"url" valid:"required"`
}

func (m *Mongodb) validate() (bool, error) {
	pattern := `[-a-zA-Z0-9@:%._\+~#=]{1,256}\b([-a-zA-Z0-9()@:%_\+.~#?&//=]*)`
	if result := govalidator.StringMatches(m.Url, pattern); !result {
		err := fmt.Errorf("Invalid Url: %s", m.Url)
		return false, err
	}
	if _, err := govalidator.ValidateStruct(m); err != nil {
		return false, appendInvalid(err)
	}

	return true, nil
}

type Breaker struct {
	MaxRequests      uint32        `yaml:"maxRequests,omitempty" valid:"optional"`
	Interval         time.Duration `yaml:"interval,omitempty" valid:"optional"`
	Timeout          time.Duration `yaml:"timeout,omitempty" valid:"optional"`
	FailureThreshold uint32        `yaml:"failureThreshold,omitempty" valid:"optional"`
}

type Subscriber struct {
	Msisdn  string `yaml:"msisdn" valid:"required, numeric"`
	Balance int64  `yaml:"balance" valid:"optional"`
}

type Oam struct {
	BindingIPv4 string `yaml:"bindingIPv4,omitempty" valid:"optional, host"`
	Port        int    `yaml:"port,omitempty" valid:"optional, port"`
}

type Logger struct {
	Enable       bool   `yaml:"enable" valid:"type(bool)"`
	Level        string `yaml:"level" valid:"required, in(trace|debug|info|warn|error|fatal|panic)"`
	ReportCaller bool   `yaml:"reportCaller" valid:"type(bool)"`
	File         string `yaml:"file,omitempty" valid:"-"`
}

func (l *Logger) validate() (bool, error) {
	if l == nil {
		return false, fmt.Errorf("Invalid logger: missing section")
	}
	if _, err := govalidator.ValidateStruct(l); err != nil {
		return false, appendInvalid(err)
	}

	return true, nil
}

func appendInvalid(err error) error {
	var errs govalidator.Errors

	es := err.(govalidator.Errors).Errors()
	for _, e := range es {
		errs = append(errs, fmt.Errorf("Invalid %w", e))
	}

	return error(errs)
}

func (c *Config) GetVersion() string {
	c.RLock()
	defer c.RUnlock()

	if c.Info != nil && c.Info.Version != "" {
		return c.Info.Version
	}
	return ""
}

func (c *Config) SetLogEnable(enable bool) {
	c.Lock()
	defer c.Unlock()

	if c.Logger == nil {
		c.Logger = &Logger{Enable: enable, Level: "info"}
	} else {
		c.Logger.Enable = enable
	}
}

func (c *Config) SetLogLevel(level string) {
	c.Lock()
	defer c.Unlock()

	if c.Logger == nil {
		c.Logger = &Logger{Level: level}
	} else {
		c.Logger.Level = level
	}
}

func (c *Config) SetLogReportCaller(reportCaller bool) {
	c.Lock()
	defer c.Unlock()

	if c.Logger == nil {
		c.Logger = &Logger{Level: "info", ReportCaller: reportCaller}
	} else {
		c.Logger.ReportCaller = reportCaller
	}
}

func (c *Config) SetLogFile(path string) {
	c.Lock()
	defer c.Unlock()

	if c.Logger == nil {
		c.Logger = &Logger{Level: "info", File: path}
	} else {
		c.Logger.File = path
	}
}

func (c *Config) GetLogEnable() bool {
	c.RLock()
	defer c.RUnlock()
	if c.Logger == nil {
		return false
	}
	return c.Logger.Enable
}

func (c *Config) GetLogLevel() string {
	c.RLock()
	defer c.RUnlock()
	if c.Logger == nil {
		return logrus.InfoLevel.String()
	}
	return c.Logger.Level
}

func (c *Config) GetLogReportCaller() bool {
	c.RLock()
	defer c.RUnlock()
	if c.Logger == nil {
		return false
	}
	return c.Logger.ReportCaller
}

func (c *Config) GetLogFile() string {
	c.RLock()
	defer c.RUnlock()
	if c.Logger == nil {
		return ""
	}
	return c.Logger.File
}

func (c *Config) GetDiameterNetwork() string {
	c.RLock()
	defer c.RUnlock()
	if d := c.Configuration.Diameter; d != nil && d.Network != "" {
		return d.Network
	}
	return OcsDiameterDefaultNetwork
}

func (c *Config) GetDiameterBindingAddr() string {
	c.RLock()
	defer c.RUnlock()
	ip, port := OcsDiameterDefaultIPv4, OcsDiameterDefaultPort
	if d := c.Configuration.Diameter; d != nil {
		if d.BindingIPv4 != "" {
			ip = d.BindingIPv4
		}
		if d.Port != 0 {
			port = d.Port
		}
	}
	return ip + ":" + strconv.Itoa(port)
}

func (c *Config) GetOamBindingAddr() string {
	c.RLock()
	defer c.RUnlock()
	ip, port := OcsOamDefaultIPv4, OcsOamDefaultPort
	if o := c.Configuration.Oam; o != nil {
		if o.BindingIPv4 != "" {
			ip = o.BindingIPv4
		}
		if o.Port != 0 {
			port = o.Port
		}
	}
	return ip + ":" + strconv.Itoa(port)
}

func (c *Config) GetDefaultBucketSize() int64 {
	c.RLock()
	defer c.RUnlock()
	if q := c.Configuration.Quota; q != nil && q.DefaultBucketSize > 0 {
		return q.DefaultBucketSize
	}
	return OcsDefaultBucketSize
}

func (c *Config) GetDefaultValidityTime() uint32 {
	c.RLock()
	defer c.RUnlock()
	if q := c.Configuration.Quota; q != nil && q.DefaultValidityTime > 0 {
		return q.DefaultValidityTime
	}
	return OcsDefaultValidityTime
}

func (c *Config) GetSessionTTL() time.Duration {
	c.RLock()
	defer c.RUnlock()
	if s := c.Configuration.Session; s != nil && s.SessionTTL > 0 {
		return s.SessionTTL
	}
	return OcsDefaultSessionTTL
}

func (c *Config) GetRequestTimeout() time.Duration {
	c.RLock()
	defer c.RUnlock()
	if s := c.Configuration.Session; s != nil && s.RequestTimeout > 0 {
		return s.RequestTimeout
	}
	return OcsDefaultRequestTimeout
}
