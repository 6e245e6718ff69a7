package main

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"vigil/internal/api"
	"vigil/internal/config"
)

type commandContext struct {
	configFlag *string
	apiFlag    *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, apiFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		apiFlag:    apiFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) apiAddress(cfg *config.Config) string {
	if c.apiFlag != nil && strings.TrimSpace(*c.apiFlag) != "" {
		return strings.TrimSpace(*c.apiFlag)
	}
	if cfg == nil {
		return ""
	}
	return cfg.Paths.APIBind
}

func (c *commandContext) withClient(fn func(*api.Client) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	addr := c.apiAddress(cfg)
	if addr == "" {
		return errors.New("control API disabled: set paths.api_bind or pass --api")
	}
	return wrapClientError(fn(api.NewClient(addr, cfg.Paths.APIToken)), addr)
}

func wrapClientError(err error, addr string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, api.ErrDaemonUnavailable) {
		return fmt.Errorf("connect to daemon at %s: not reachable; start it with `vigil daemon`", addr)
	}
	return err
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
