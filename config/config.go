package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Значения по умолчанию
const (
	DefaultHTTPPort         = 2992
	DefaultOperationTimeout = 60 * time.Second
	DefaultShutdownTimeout  = 30 * time.Second
	DefaultLogLevel         = "info"
)

// ConfigFileEnv - переменная с путём к YAML файлу настроек
const ConfigFileEnv = "CONNECTOR_CONFIG_FILE"

type Environment struct {
	HTTP_PORT         int           `yaml:"http_port"`
	OPERATION_TIMEOUT time.Duration `yaml:"operation_timeout"`
	STRICT_BOOLEANS   bool          `yaml:"strict_booleans"`
	LOG_LEVEL         string        `yaml:"log_level"`
	SHUTDOWN_TIMEOUT  time.Duration `yaml:"shutdown_timeout"`
	FTPS_KEY_PASSWORD string        `yaml:"ftps_key_password"`
	FTPS_CERT_PATH    string        `yaml:"ftps_cert_path"`
}

// HasClientCertificate - задан ли клиентский сертификат FTPS
func (e Environment) HasClientCertificate() bool {
	return e.FTPS_CERT_PATH != ""
}

// MustLoad читает настройки: значения по умолчанию, затем YAML файл, затем переменные окружения
func MustLoad() (Environment, error) {
	envr := Environment{
		HTTP_PORT:         DefaultHTTPPort,
		OPERATION_TIMEOUT: DefaultOperationTimeout,
		SHUTDOWN_TIMEOUT:  DefaultShutdownTimeout,
		LOG_LEVEL:         DefaultLogLevel,
	}

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := loadFile(path, &envr); err != nil {
			return envr, err
		}
	}

	if err := fromEnv(&envr); err != nil {
		return envr, err
	}
	return envr, envr.validate()
}

func loadFile(path string, envr *Environment) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), envr); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func fromEnv(envr *Environment) error {
	if v, ok := lookup("HTTP_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HTTP_PORT must be a number: %w", err)
		}
		envr.HTTP_PORT = port
	}
	if v, ok := lookup("OPERATION_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("OPERATION_TIMEOUT must be a duration: %w", err)
		}
		envr.OPERATION_TIMEOUT = d
	}
	if v, ok := lookup("SHUTDOWN_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SHUTDOWN_TIMEOUT must be a duration: %w", err)
		}
		envr.SHUTDOWN_TIMEOUT = d
	}
	if v, ok := lookup("STRICT_BOOLEANS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("STRICT_BOOLEANS must be a boolean: %w", err)
		}
		envr.STRICT_BOOLEANS = b
	}
	if v, ok := lookup("LOG_LEVEL"); ok {
		envr.LOG_LEVEL = v
	}
	if v, ok := lookup("FTPS_KEY_PASSWORD"); ok {
		envr.FTPS_KEY_PASSWORD = v
	}
	if v, ok := lookup("FTPS_CERT_PATH"); ok {
		envr.FTPS_CERT_PATH = v
	}
	return nil
}

func (e Environment) validate() error {
	if e.HTTP_PORT <= 0 || e.HTTP_PORT > 65535 {
		return fmt.Errorf("invalid HTTP_PORT %d", e.HTTP_PORT)
	}
	if e.OPERATION_TIMEOUT <= 0 {
		return errors.New("OPERATION_TIMEOUT must be positive")
	}
	if e.SHUTDOWN_TIMEOUT <= 0 {
		return errors.New("SHUTDOWN_TIMEOUT must be positive")
	}
	// сертификат и пароль задаются только вместе
	if (e.FTPS_CERT_PATH == "") != (e.FTPS_KEY_PASSWORD == "") {
		return errors.New("FTPS_CERT_PATH and FTPS_KEY_PASSWORD must be set together")
	}
	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}
