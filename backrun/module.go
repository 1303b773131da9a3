// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package backrun

import (
	"fmt"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/mev/contract"
	"github.com/luxfi/mev/modules"
)

var _ modules.Configurator = (*configurator)(nil)

// ConfigKey is the key used in json config files to specify this precompile config.
const ConfigKey = "backRunnerConfig"

// BackRunnerPrecompile is the singleton instance.
var BackRunnerPrecompile = NewBackRunner()

// Module is the precompile module (BackRunner at LP-9016).
var Module = modules.Module{
	ConfigKey:    ConfigKey,
	Address:      BackRunnerAddr,
	Contract:     BackRunnerPrecompile,
	Configurator: &configurator{},
}

type configurator struct{}

func init() {
	if err := modules.RegisterModule(Module); err != nil {
		panic(err)
	}
}

func (*configurator) MakeConfig() modules.Config {
	return new(Config)
}

// Configure seeds the admin and quoter slots at activation time so the
// contract can skip the first-touch admin binding on live networks.
func (*configurator) Configure(cfg modules.Config, state contract.StateDB) error {
	config, ok := cfg.(*Config)
	if !ok {
		return fmt.Errorf("expected config type %T, got %T: %v", &Config{}, cfg, cfg)
	}
	if config.Admin != (common.Address{}) {
		state.SetState(BackRunnerAddr, AdminSlot, common.BytesToHash(config.Admin.Bytes()))
	}
	if config.Quoter != (common.Address{}) {
		state.SetState(BackRunnerAddr, QuoterSlot, common.BytesToHash(config.Quoter.Bytes()))
	}
	return nil
}

// Config implements the modules.Config interface.
type Config struct {
	Disable bool           `json:"disable,omitempty"`
	Admin   common.Address `json:"admin,omitempty"`
	Quoter  common.Address `json:"quoter,omitempty"`
}

func (c *Config) Key() string {
	return ConfigKey
}

func (c *Config) IsDisabled() bool {
	return c.Disable
}

func (c *Config) Verify() error {
	return nil
}
