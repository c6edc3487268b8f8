package node

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/yaoapp/kun/log"
	"github.com/yaoapp/node/runtime"
	"gopkg.in/yaml.v3"
)

var levels = map[string]log.Level{
	"trace": log.TraceLevel,
	"debug": log.DebugLevel,
	"info":  log.InfoLevel,
	"warn":  log.WarnLevel,
	"error": log.ErrorLevel,
}

// LoadOption load the option from a yaml or json file
func LoadOption(file string) (Option, error) {
	option := Option{}
	data, err := os.ReadFile(file)
	if err != nil {
		return option, err
	}

	switch strings.ToLower(filepath.Ext(file)) {
	case ".json":
		err = jsoniter.Unmarshal(data, &option)
	case ".yml", ".yaml":
		err = yaml.Unmarshal(data, &option)
	default:
		return option, fmt.Errorf("the option file %s should be a .json, .yml or .yaml file", file)
	}

	if err != nil {
		return option, fmt.Errorf("the option file %s is invalid: %s", file, err.Error())
	}

	option.Validate()
	return option, nil
}

// Validate the option
func (option *Option) Validate() {

	if option.Runtime == "" {
		option.Runtime = runtime.Default
	}

	option.LogLevel = strings.ToLower(option.LogLevel)
	if _, has := levels[option.LogLevel]; option.LogLevel != "" && !has {
		log.Warn("[node] the log level %s is not supported, the current level is kept", option.LogLevel)
		option.LogLevel = ""
	}

	if option.ReservedName == "" {
		option.ReservedName = ReservedWarn
	}

	if option.ReservedName != ReservedWarn && option.ReservedName != ReservedStrict {
		log.Warn("[node] the reservedName value should be warn or strict, %s given", option.ReservedName)
		option.ReservedName = ReservedWarn
	}

	if option.CacheSize < 0 {
		log.Warn("[node] the cacheSize value should not be negative")
		option.CacheSize = 0
	}

	if option.Mode == "" {
		option.Mode = ModeProduction
	}

	if option.Mode != ModeProduction && option.Mode != ModeDevelopment {
		log.Warn("[node] the mode value should be production or development, %s given", option.Mode)
		option.Mode = ModeProduction
	}
}

// applyLogLevel set the log level, an empty level keeps the current one
func (option *Option) applyLogLevel() {
	if level, has := levels[option.LogLevel]; has {
		log.SetLevel(level)
	}
}
