package main

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"asciireel/internal/config"
	"asciireel/internal/logging"
)

type commandContext struct {
	configFlag *string
	verbose    *bool
	quiet      *bool

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error
}

func newCommandContext(configFlag *string, verbose, quiet *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		verbose:    verbose,
		quiet:      quiet,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
		c.configExists = exists
	})
	return c.config, c.configErr
}

// logger builds the console logger, honouring --verbose and --quiet.
func (c *commandContext) logger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	effective := *cfg
	if c.verbose != nil && *c.verbose {
		effective.Logging.Level = "debug"
	}
	logger, err := logging.NewFromConfig(&effective)
	if err != nil {
		return nil, err
	}
	if c.isQuiet() {
		logger = logging.WithLevelOverride(logger, slog.LevelWarn)
	}
	return logger, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func (c *commandContext) isQuiet() bool {
	return c.quiet != nil && *c.quiet
}
