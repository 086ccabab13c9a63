// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/jaxnet/cnoted/corelog"
	"gitlab.com/jaxnet/cnoted/types/chaincfg"
)

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATA_DIR", dir)

	cfg, _, err := loadConfig([]string{"--net=simnet"})
	require.NoError(t, err)

	params := chaincfg.SimNet.Params()
	assert.Equal(t, filepath.Join(dir, params.Name), cfg.DataDir)
	assert.Equal(t, filepath.Join(dir, defaultLogDirname, params.Name), cfg.LogDir)
	assert.Equal(t, cfg.LogDir, cfg.LogConfig.Directory)
	assert.Equal(t, corelog.DefaultLogFile, cfg.LogConfig.Filename)
	assert.DirExists(t, cfg.DataDir)

	port := strconv.Itoa(int(params.DefaultPort))
	assert.Equal(t, []string{":" + port}, cfg.Node.P2P.Listeners)
	assert.Nil(t, cfg.Node.P2P.Dial)
	assert.True(t, cfg.Metrics.Port != 0)

	// The defaults are written out as a starting config file.
	assert.FileExists(t, filepath.Join(dir, defaultConfigFilename))
	again, _, err := loadConfig([]string{"--net=simnet"})
	require.NoError(t, err)
	assert.Equal(t, cfg.DataDir, again.DataDir)
}

func TestLoadConfigFileAndFlags(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATA_DIR", dir)

	path := filepath.Join(dir, "node.yaml")
	content := `
node:
  net: testnet
  p2p:
    seeds: ["10.0.0.1", "10.0.0.2:9000", "10.0.0.1"]
    connect_timeout: 3s
    max_peers: 50
  checkpoints:
    - "1:a0d6b1a8f9e5cfbd2e2b3b8d5e1a7fc1b52a8b71c5e8b6c1f7f56a9b4c0c2d1e"
debug_level: CHAN=debug,PEER=trace
metrics:
  enable: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, _, err := loadConfig([]string{"-C", path, "--maxpeers=10"})
	require.NoError(t, err)

	params := chaincfg.TestNet.Params()
	port := strconv.Itoa(int(params.DefaultPort))
	assert.Equal(t, string(chaincfg.TestNet), cfg.Node.Net)
	assert.Equal(t, []string{"10.0.0.1:" + port, "10.0.0.2:9000"}, cfg.Node.P2P.Seeds)
	assert.Equal(t, 3*time.Second, cfg.Node.P2P.ConnectTimeout)
	assert.Equal(t, 10, cfg.Node.P2P.MaxPeers)
	assert.True(t, cfg.Metrics.Enable)
	assert.Len(t, cfg.Node.Checkpoints, 1)
	assert.Equal(t, path, cfg.ConfigFile)
}

func TestLoadConfigProxy(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())

	cfg, _, err := loadConfig([]string{"--net=simnet", "--proxy=127.0.0.1:9050", "--torisolation"})
	require.NoError(t, err)
	assert.NotNil(t, cfg.Node.P2P.Dial)
	assert.True(t, cfg.Node.P2P.DisableListen)
	assert.Empty(t, cfg.Node.P2P.Listeners)
}

func TestLoadConfigVersion(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())

	cfg, _, err := loadConfig([]string{"-V"})
	require.NoError(t, err)
	assert.True(t, cfg.ShowVersion)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "unknown net", args: []string{"--net=bogus"}},
		{name: "connect with addnode", args: []string{"--connect=1.2.3.4", "--addnode=5.6.7.8"}},
		{name: "tor isolation without proxy", args: []string{"--torisolation"}},
		{name: "bad proxy", args: []string{"--proxy=nohostport"}},
		{name: "bad checkpoint", args: []string{"--addcheckpoint=bad"}},
		{name: "profile port", args: []string{"--profile=80"}},
		{name: "debug level", args: []string{"--debuglevel=loud"}},
		{name: "negative peers", args: []string{"--maxpeers=-1"}},
		{name: "unknown flag", args: []string{"--nosuchflag"}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Setenv("DATA_DIR", t.TempDir())
			_, _, err := loadConfig(test.args)
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigBadFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATA_DIR", dir)

	toml := filepath.Join(dir, "node.toml")
	require.NoError(t, os.WriteFile(toml, []byte("net = 'simnet'\n"), 0600))
	_, _, err := loadConfig([]string{"-C", toml})
	assert.Error(t, err)

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("node: [\n"), 0600))
	_, _, err = loadConfig([]string{"-C", broken})
	assert.Error(t, err)
}

func TestParseAndSetDebugLevels(t *testing.T) {
	logConfig := corelog.Config{DisableConsoleLog: true}
	tests := []struct {
		level string
		valid bool
	}{
		{level: "debug", valid: true},
		{level: "critical", valid: true},
		{level: "CHAN=debug,PEER=trace", valid: true},
		{level: "loud", valid: false},
		{level: "CHAN=loud", valid: false},
		{level: "NOPE=debug", valid: false},
		{level: "CHAN=debug,PEER", valid: false},
	}

	for _, test := range tests {
		err := parseAndSetDebugLevels(test.level, logConfig)
		if test.valid {
			assert.NoError(t, err, test.level)
		} else {
			assert.Error(t, err, test.level)
		}
	}
}

func TestNormalizeAddresses(t *testing.T) {
	addrs := normalizeAddresses([]string{"1.2.3.4", "1.2.3.4:8080", "::1", "1.2.3.4:8080"}, "8080")
	assert.Equal(t, []string{"1.2.3.4:8080", "[::1]:8080"}, addrs)
}
