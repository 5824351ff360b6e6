package config

import (
	"errors"
	"io/fs"
	"log"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App     AppConfig
	Storage StorageConfig
	Fetch   FetchConfig
}

type AppConfig struct {
	Env string
}

// StorageConfig locates the data root and the files it owns
type StorageConfig struct {
	DataDir     string
	CatalogFile string
	SalesFile   string
	ImageDir    string
}

// FetchConfig controls remote image downloads
type FetchConfig struct {
	Timeout    time.Duration
	Retries    uint
	RetryDelay time.Duration
}

// CatalogPath is the absolute-or-relative path of the catalog file
func (s StorageConfig) CatalogPath() string {
	return filepath.Join(s.DataDir, s.CatalogFile)
}

// SalesPath is the path of the sales log
func (s StorageConfig) SalesPath() string {
	return filepath.Join(s.DataDir, s.SalesFile)
}

// ImageRoot is the directory holding managed images
func (s StorageConfig) ImageRoot() string {
	return filepath.Join(s.DataDir, s.ImageDir)
}

// ImagePrefix is the forward-slash prefix recorded in catalog entries,
// e.g. "data/images".
func (s StorageConfig) ImagePrefix() string {
	return filepath.ToSlash(filepath.Join(filepath.Base(filepath.Clean(s.DataDir)), s.ImageDir))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SHOWROOM_ENV", "development")
	v.SetDefault("DATA_DIR", "data")
	v.SetDefault("CATALOG_FILE", "inventory.csv")
	v.SetDefault("SALES_FILE", "sales_log.csv")
	v.SetDefault("IMAGE_DIR", "images")
	v.SetDefault("FETCH_TIMEOUT_SECONDS", 15)
	v.SetDefault("FETCH_RETRIES", 3)
	v.SetDefault("FETCH_RETRY_DELAY_MS", 500)
}

func Load() *Config {
	return LoadEnvFile(".env")
}

// LoadEnvFile loads path into the environment when it exists and builds the
// config from the environment. Values already set in the environment win.
func LoadEnvFile(path string) *Config {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Warning: Could not load %s: %v", path, err)
	}

	v := viper.New()
	v.AutomaticEnv()

	return LoadFrom(v)
}

// LoadFrom builds a Config from an already populated viper instance
func LoadFrom(v *viper.Viper) *Config {
	setDefaults(v)

	retries := v.GetInt("FETCH_RETRIES")
	if retries < 1 {
		retries = 1
	}

	return &Config{
		App: AppConfig{
			Env: v.GetString("SHOWROOM_ENV"),
		},
		Storage: StorageConfig{
			DataDir:     v.GetString("DATA_DIR"),
			CatalogFile: v.GetString("CATALOG_FILE"),
			SalesFile:   v.GetString("SALES_FILE"),
			ImageDir:    v.GetString("IMAGE_DIR"),
		},
		Fetch: FetchConfig{
			Timeout:    time.Duration(v.GetInt("FETCH_TIMEOUT_SECONDS")) * time.Second,
			Retries:    uint(retries),
			RetryDelay: time.Duration(v.GetInt("FETCH_RETRY_DELAY_MS")) * time.Millisecond,
		},
	}
}
