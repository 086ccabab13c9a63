// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package node

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gitlab.com/jaxnet/cnoted/corelog"
	"gitlab.com/jaxnet/cnoted/network/p2p"
	"gitlab.com/jaxnet/cnoted/types/chaincfg"
	"gitlab.com/jaxnet/cnoted/types/chainhash"
)

type Config struct {
	ConfigFile  string `yaml:"-" short:"C" long:"configfile" description:"Path to configuration file"`
	ShowVersion bool   `yaml:"-" short:"V" long:"version" description:"Display version information and exit"`

	Node      InstanceConfig `yaml:"node"`
	LogConfig corelog.Config `yaml:"log_config"`
	Metrics   MetricsConfig  `yaml:"metrics"`

	DataDir      string `yaml:"data_dir" short:"b" long:"datadir" description:"Directory to store data"`
	LogDir       string `yaml:"log_dir" long:"logdir" description:"Directory to log output."`
	DebugLevel   string `yaml:"debug_level" short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`
	Profile      string `yaml:"profile" long:"profile" description:"Enable HTTP profiling on given port -- NOTE port must be between 1024 and 65536"`
	TorIsolation bool   `yaml:"tor_isolation" long:"torisolation" description:"Enable Tor stream isolation by randomizing user credentials for each connection."`
}

type MetricsConfig struct {
	Enable   bool   `yaml:"enable" long:"metrics" description:"Serve prometheus metrics"`
	Interval int    `yaml:"interval" long:"metricsinterval" description:"Seconds between metric refreshes"`
	Port     uint16 `yaml:"port" long:"metricsport" description:"Port of the metrics endpoint"`
}

type InstanceConfig struct {
	P2P         p2p.Config `yaml:"p2p"`
	Net         string     `yaml:"net" long:"net" description:"Network to join {mainnet, testnet, simnet}"`
	Checkpoints []string   `yaml:"checkpoints" long:"addcheckpoint" description:"Add a custom checkpoint.  Format: '<height>:<hash>'"`
}

func (cfg *InstanceConfig) ChainParams() *chaincfg.Params {
	return chaincfg.NetName(cfg.Net).Params()
}

// ParseCheckpoints checks the checkpoint strings for valid syntax
// ('<height>:<hash>') and parses them to chaincfg.Checkpoint instances.
func (cfg *InstanceConfig) ParseCheckpoints() ([]chaincfg.Checkpoint, error) {
	if len(cfg.Checkpoints) == 0 {
		return nil, nil
	}
	checkpoints := make([]chaincfg.Checkpoint, len(cfg.Checkpoints))
	for i, cpString := range cfg.Checkpoints {
		checkpoint, err := newCheckpointFromStr(cpString)
		if err != nil {
			return nil, err
		}
		checkpoints[i] = checkpoint
	}
	return checkpoints, nil
}

// newCheckpointFromStr parses checkpoints in the '<height>:<hash>' format.
func newCheckpointFromStr(checkpoint string) (chaincfg.Checkpoint, error) {
	parts := strings.Split(checkpoint, ":")
	if len(parts) != 2 {
		return chaincfg.Checkpoint{}, fmt.Errorf("unable to parse "+
			"checkpoint %q -- use the syntax <height>:<hash>",
			checkpoint)
	}

	height, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return chaincfg.Checkpoint{}, fmt.Errorf("unable to parse "+
			"checkpoint %q due to malformed height", checkpoint)
	}

	if len(parts[1]) == 0 {
		return chaincfg.Checkpoint{}, fmt.Errorf("unable to parse "+
			"checkpoint %q due to missing hash", checkpoint)
	}
	if _, err := chainhash.NewHashFromStr(parts[1]); err != nil {
		return chaincfg.Checkpoint{}, fmt.Errorf("unable to parse "+
			"checkpoint %q due to malformed hash", checkpoint)
	}

	return chaincfg.Checkpoint{
		Height: uint32(height),
		Hash:   parts[1],
	}, nil
}

func fileExists(name string) bool {
	if _, err := os.Stat(name); err != nil {
		if os.IsNotExist(err) {
			return false
		}
	}
	return true
}
