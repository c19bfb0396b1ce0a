package main

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"echopod/internal/config"
)

type commandContext struct {
	addressFlag *string
	configFlag  *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(addressFlag, configFlag *string) *commandContext {
	return &commandContext{
		addressFlag: addressFlag,
		configFlag:  configFlag,
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
		c.config = cfg
	})
	return c.config, c.configErr
}

// apiAddress resolves the daemon address from the --address flag, falling back
// to the configured bind address. A wildcard bind is rewritten to loopback so
// the client has something dialable.
func (c *commandContext) apiAddress() string {
	if c.addressFlag != nil {
		if addr := strings.TrimSpace(*c.addressFlag); addr != "" {
			return addr
		}
	}
	cfg, err := c.ensureConfig()
	if err != nil || cfg == nil {
		return "127.0.0.1:7823"
	}
	addr := strings.TrimSpace(cfg.Paths.APIBind)
	if host, port, ok := strings.Cut(addr, ":"); ok && (host == "" || host == "0.0.0.0" || host == "::") {
		return "127.0.0.1:" + port
	}
	return addr
}

func (c *commandContext) client() *apiClient {
	return newAPIClient(c.apiAddress())
}

func wrapDialError(err error, address string) error {
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("connect to daemon at %s: connection refused; verify echopodd is running", address)
	default:
		return fmt.Errorf("connect to daemon at %s: %w", address, err)
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
