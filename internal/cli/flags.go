package cli

import "gtp/internal/config"

// Flags holds command-line flags
type Flags struct {
	Processors       int
	TestPath         string
	NameFilter       string
	ExecutableFilter string
	ConfigFile       string
	LogLevel         string
	Streaming        bool
	NoSymbols        bool
	JSON             bool
	FailFast         bool
	OnlyFailed       bool
	OpenFaills       bool
}

// ToConfigFlags converts CLI flags to config flags
func (f *Flags) ToConfigFlags() config.Flags {
	return config.Flags{
		Processors:       f.Processors,
		TestPath:         f.TestPath,
		NameFilter:       f.NameFilter,
		ExecutableFilter: f.ExecutableFilter,
		ConfigFile:       f.ConfigFile,
		LogLevel:         f.LogLevel,
		Streaming:        f.Streaming,
		NoSymbols:        f.NoSymbols,
		JSON:             f.JSON,
		FailFast:         f.FailFast,
		OnlyFailed:       f.OnlyFailed,
		OpenFaills:       f.OpenFaills,
	}
}
