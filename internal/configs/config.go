// Package configs for work with configurations
package configs

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Cache backends
const (
	BackendFiles  = "files"
	BackendBolt   = "bolt"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Conf for config yaml
type Conf struct {
	HTTP struct {
		Timeout   time.Duration `yaml:"timeout"`
		UserAgent string        `yaml:"user_agent"`
	} `yaml:"http"`
	Cache struct {
		Backend string `yaml:"backend"`
		DB      string `yaml:"db"`
	} `yaml:"cache"`
	Download struct {
		FallbackExt string `yaml:"fallback_ext"`
		Numbered    bool   `yaml:"numbered"`
		Tags        bool   `yaml:"tags"`
		Album       string `yaml:"album"`
		Artist      string `yaml:"artist"`
	} `yaml:"download"`
	CloudStorage struct {
		EndPointURL string `yaml:"endpoint_url"`
		Bucket      string `yaml:"bucket"`
		Region      string `yaml:"region"`
		Secure      bool   `yaml:"secure"`
		Prefix      string `yaml:"prefix"`
		Secrets     struct {
			Key    string `yaml:"aws_key"`
			Secret string `yaml:"aws_secret"`
		} `yaml:"secrets"`
	} `yaml:"cloud_storage"`
}

// Default config, used when no config file is found
func Default() *Conf {
	res := &Conf{}
	res.HTTP.Timeout = 5 * time.Minute
	res.HTTP.UserAgent = "raisound"
	res.Cache.Backend = BackendFiles
	res.Download.FallbackExt = ".mp3"
	res.Download.Numbered = true
	res.Download.Tags = true
	res.CloudStorage.Secure = true
	return res
}

// Load config from file, missing values keep defaults
func Load(fileName string) (res *Conf, err error) {
	res = Default()
	data, err := os.ReadFile(fileName) // nolint
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, res); err != nil {
		return nil, err
	}
	return res, nil
}

// HasCloudStorage tells if cloud storage section is filled enough to upload
func (c *Conf) HasCloudStorage() bool {
	return c.CloudStorage.EndPointURL != "" && c.CloudStorage.Bucket != ""
}
