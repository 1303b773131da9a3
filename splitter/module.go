// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package splitter

import (
	"fmt"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/mev/contract"
	"github.com/luxfi/mev/modules"
)

var _ modules.Configurator = (*configurator)(nil)

// ConfigKey is the key used in json config files to specify this precompile config.
const ConfigKey = "feeSplitterConfig"

// Module is the precompile module (FeeSplitter at LP-9017).
var Module = modules.Module{
	ConfigKey:    ConfigKey,
	Address:      FeeSplitterAddr,
	Contract:     FeeSplitterPrecompile,
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

// Configure seeds the controller link and an initial share table at
// activation time.
func (*configurator) Configure(cfg modules.Config, state contract.StateDB) error {
	config, ok := cfg.(*Config)
	if !ok {
		return fmt.Errorf("expected config type %T, got %T: %v", &Config{}, cfg, cfg)
	}
	if config.Controller != (common.Address{}) {
		setStateAddress(state, ControllerSlot, config.Controller)
	}
	if len(config.Recipients) > 0 {
		table := &ShareTable{
			Recipients: config.Recipients,
			WeightsBps: config.WeightsBps,
		}
		if err := table.Validate(); err != nil {
			return err
		}
		FeeSplitterPrecompile.storeTable(state, table)
	}
	return nil
}

// Config implements the modules.Config interface.
type Config struct {
	Disable    bool             `json:"disable,omitempty"`
	Controller common.Address   `json:"controller,omitempty"`
	Recipients []common.Address `json:"recipients,omitempty"`
	WeightsBps []uint64         `json:"weightsBps,omitempty"`
}

func (c *Config) Key() string {
	return ConfigKey
}

func (c *Config) IsDisabled() bool {
	return c.Disable
}

// Verify rejects a config carrying an invalid initial share table.
func (c *Config) Verify() error {
	if len(c.Recipients) == 0 && len(c.WeightsBps) == 0 {
		return nil
	}
	table := &ShareTable{Recipients: c.Recipients, WeightsBps: c.WeightsBps}
	return table.Validate()
}
