// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package config

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/btcsuite/go-socks/socks"
	"github.com/jessevdk/go-flags"
	"gopkg.in/yaml.v3"

	"gitlab.com/jaxnet/cnoted/corelog"
	"gitlab.com/jaxnet/cnoted/node"
	"gitlab.com/jaxnet/cnoted/types/chaincfg"
)

const (
	defaultConfigFilename = "cnoted.yaml"
	defaultLogDirname     = "logs"
	defaultLogLevel       = "info"
	defaultMetricsPort    = 2112
	defaultMetricsPeriod  = 5
)

var defaultHomeDir = appDataDir("cnoted")

// appDataDir returns the per user directory of the application.
func appDataDir(appName string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "." + appName
	}
	return filepath.Join(home, "."+appName)
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		homeDir := filepath.Dir(defaultHomeDir)
		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but they variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}

// validLogLevel returns whether or not logLevel is a valid debug log level.
func validLogLevel(logLevel string) bool {
	switch logLevel {
	case "trace", "debug", "info", "warn", "error", "critical":
		return true
	}
	return false
}

// validNetName reports whether name is a known network.
func validNetName(name string) bool {
	switch chaincfg.NetName(name) {
	case chaincfg.MainNet, chaincfg.TestNet, chaincfg.SimNet:
		return true
	}
	return false
}

// supportedSubsystems returns a sorted slice of the supported subsystems for
// logging purposes.
func supportedSubsystems() []string {
	// Convert the unitLogs map keys to a slice.
	subsystems := make([]string, 0, len(unitLogs))
	for subsysID := range unitLogs {
		subsystems = append(subsystems, subsysID)
	}

	// Sort the subsystems for stable display.
	sort.Strings(subsystems)
	return subsystems
}

// parseAndSetDebugLevels attempts to parse the specified debug level and set
// the levels accordingly.  An appropriate error is returned if anything is
// invalid.
func parseAndSetDebugLevels(debugLevel string, logConfig corelog.Config) error {
	// When the specified string doesn't have any delimters, treat it as
	// the log level for all subsystems.
	if !strings.Contains(debugLevel, ",") && !strings.Contains(debugLevel, "=") {
		// Validate debug log level.
		if !validLogLevel(debugLevel) {
			str := "The specified debug level [%v] is invalid"
			return fmt.Errorf(str, debugLevel)
		}

		// Change the logging level for all subsystems.
		setLogLevels(debugLevel, logConfig)
		setLoggers()
		return nil
	}

	// Subsystems without an explicit level keep the default one.
	setLogLevels(defaultLogLevel, logConfig)

	// Split the specified string into subsystem/level pairs while detecting
	// issues and update the log levels accordingly.
	for _, logLevelPair := range strings.Split(debugLevel, ",") {
		if !strings.Contains(logLevelPair, "=") {
			str := "The specified debug level contains an invalid " +
				"subsystem/level pair [%v]"
			return fmt.Errorf(str, logLevelPair)
		}

		// Extract the specified subsystem and log level.
		fields := strings.Split(logLevelPair, "=")
		subsysID, logLevel := fields[0], fields[1]

		// Validate subsystem.
		if _, exists := unitLogs[subsysID]; !exists {
			str := "The specified subsystem [%v] is invalid -- " +
				"supported subsytems %v"
			return fmt.Errorf(str, subsysID, supportedSubsystems())
		}

		// Validate log level.
		if !validLogLevel(logLevel) {
			str := "The specified debug level [%v] is invalid"
			return fmt.Errorf(str, logLevel)
		}

		setLogLevel(subsysID, logLevel, logConfig)
	}

	setLoggers()
	return nil
}

// removeDuplicateAddresses returns a new slice with all duplicate entries in
// addrs removed.
func removeDuplicateAddresses(addrs []string) []string {
	result := make([]string, 0, len(addrs))
	seen := map[string]struct{}{}
	for _, val := range addrs {
		if _, ok := seen[val]; !ok {
			result = append(result, val)
			seen[val] = struct{}{}
		}
	}
	return result
}

// normalizeAddress returns addr with the passed default port appended if
// there is not already a port specified.
func normalizeAddress(addr, defaultPort string) string {
	_, _, err := net.SplitHostPort(addr)
	if err != nil {
		return net.JoinHostPort(addr, defaultPort)
	}
	return addr
}

// normalizeAddresses returns a new slice with all the passed server addresses
// normalized with the given default port, and all duplicates removed.
func normalizeAddresses(addrs []string, defaultPort string) []string {
	for i, addr := range addrs {
		addrs[i] = normalizeAddress(addr, defaultPort)
	}

	return removeDuplicateAddresses(addrs)
}

// fileExists reports whether the named file or directory exists.
func fileExists(name string) bool {
	if _, err := os.Stat(name); err != nil {
		if os.IsNotExist(err) {
			return false
		}
	}
	return true
}

// defaultConfig returns the configuration used when neither the file nor the
// command line says otherwise.
func defaultConfig(dataDir string) node.Config {
	return node.Config{
		ConfigFile: filepath.Join(dataDir, defaultConfigFilename),
		Node: node.InstanceConfig{
			Net: string(chaincfg.MainNet),
		},
		LogConfig: corelog.Config{}.Default(),
		Metrics: node.MetricsConfig{
			Interval: defaultMetricsPeriod,
			Port:     defaultMetricsPort,
		},
		DataDir:    dataDir,
		DebugLevel: defaultLogLevel,
	}
}

// LoadConfig initializes and parses the config using a config file and command
// line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
//
// The above results in cnoted functioning properly without any config settings
// while still allowing the user to override settings with config files and
// command line options.  Command line options always take precedence.
func LoadConfig() (*node.Config, []string, error) {
	cfg, remainingArgs, err := loadConfig(os.Args[1:])
	if err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			os.Exit(0)
		}
		if err == errShowSubsystems {
			os.Exit(0)
		}
	}
	return cfg, remainingArgs, err
}

// errShowSubsystems is returned by loadConfig when the debug level asks for
// the list of subsystems.
var errShowSubsystems = errors.New("show subsystems")

func loadConfig(args []string) (*node.Config, []string, error) {
	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = defaultHomeDir
	}
	cfg := defaultConfig(dataDir)

	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified.  Any errors aside from the
	// help message error can be ignored here since they will be caught by
	// the final parse below.
	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.HelpFlag)
	if _, err := preParser.ParseArgs(args); err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stderr, err)
			return nil, nil, err
		}
	}

	// Show the version and exit if the version flag was specified.
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	usageMessage := fmt.Sprintf("Use %s -h to show usage", appName)
	if preCfg.ShowVersion {
		cfg.ShowVersion = true
		return &cfg, nil, nil
	}

	// Load additional config from file.
	var configFileError error
	if !fileExists(preCfg.ConfigFile) {
		if err := createDefaultConfigFile(preCfg.ConfigFile, cfg); err != nil {
			configFileError = err
		}
	}
	if configFileError == nil {
		if err := decodeConfigFile(preCfg.ConfigFile, &cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing config file: %v\n", err)
			fmt.Fprintln(os.Stderr, usageMessage)
			return nil, nil, err
		}
	}
	cfg.ConfigFile = preCfg.ConfigFile

	// Parse command line options again to ensure they take precedence.
	parser := flags.NewParser(&cfg, flags.Default)
	remainingArgs, err := parser.ParseArgs(args)
	if err != nil {
		if e, ok := err.(*flags.Error); !ok || e.Type != flags.ErrHelp {
			fmt.Fprintln(os.Stderr, usageMessage)
		}
		return nil, nil, err
	}

	funcName := "loadConfig"
	fail := func(format string, a ...interface{}) (*node.Config, []string, error) {
		err := fmt.Errorf("%s: "+format, append([]interface{}{funcName}, a...)...)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}

	if !validNetName(cfg.Node.Net) {
		return fail("The specified net name [%v] is invalid", cfg.Node.Net)
	}
	params := cfg.Node.ChainParams()

	// Append the network type to the data directory so it is "namespaced"
	// per network.  In addition to the block store, there are other pieces
	// of data that are saved to disk such as the peer lists.  All data is
	// specific to a network, so namespacing the data directory means each
	// individual piece of serialized data does not have to worry about
	// changing names per network and such.
	cfg.DataDir = cleanAndExpandPath(cfg.DataDir)
	if cfg.LogDir == "" {
		cfg.LogDir = filepath.Join(cfg.DataDir, defaultLogDirname)
	}
	cfg.DataDir = filepath.Join(cfg.DataDir, params.Name)

	// Append the network type to the log directory so it is "namespaced"
	// per network in the same fashion as the data directory.
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)
	cfg.LogDir = filepath.Join(cfg.LogDir, params.Name)

	// Create the data directory if it doesn't already exist.
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		// Show a nicer error message if it's because a symlink is
		// linked to a directory that does not exist (probably because
		// it's not mounted).
		if e, ok := err.(*os.PathError); ok && os.IsExist(err) {
			if link, lerr := os.Readlink(e.Path); lerr == nil {
				err = fmt.Errorf("is symlink %s -> %s mounted?", e.Path, link)
			}
		}
		return fail("Failed to create data directory: %v", err)
	}

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", supportedSubsystems())
		return nil, nil, errShowSubsystems
	}

	// Parse, validate, and set debug log level(s).
	cfg.LogConfig.Directory = cfg.LogDir
	if cfg.LogConfig.Filename == "" {
		cfg.LogConfig.Filename = corelog.DefaultLogFile
	}
	if err := parseAndSetDebugLevels(cfg.DebugLevel, cfg.LogConfig); err != nil {
		return fail("%v", err)
	}

	// Validate profile port number
	if cfg.Profile != "" {
		profilePort, err := strconv.Atoi(cfg.Profile)
		if err != nil || profilePort < 1024 || profilePort > 65535 {
			return fail("The profile port must be between 1024 and 65535")
		}
	}

	// Check the checkpoints for syntax errors.
	if _, err := cfg.Node.ParseCheckpoints(); err != nil {
		return fail("Error parsing checkpoints: %v", err)
	}

	p2pCfg := &cfg.Node.P2P

	// --addnode and --connect do not mix.
	if len(p2pCfg.PriorityPeers) > 0 && len(p2pCfg.ExclusivePeers) > 0 {
		return fail("the --addnode and --connect options can not be mixed")
	}

	if p2pCfg.MaxPeers < 0 || p2pCfg.MaxOutbound < 0 {
		return fail("The maxpeers and maxoutbound options may not be negative")
	}

	// --proxy or --connect without --listen disables listening.
	if (p2pCfg.Proxy != "" || len(p2pCfg.ExclusivePeers) > 0) && len(p2pCfg.Listeners) == 0 {
		p2pCfg.DisableListen = true
	}

	// Add the default listener if none were specified. The default
	// listener is all addresses on the listen port for the network
	// we are to connect to.
	defaultPort := strconv.Itoa(int(params.DefaultPort))
	if len(p2pCfg.Listeners) == 0 && !p2pCfg.DisableListen {
		p2pCfg.Listeners = []string{net.JoinHostPort("", defaultPort)}
	}

	// Add default port to all listener and peer addresses if needed and
	// remove duplicate addresses.
	p2pCfg.Listeners = normalizeAddresses(p2pCfg.Listeners, defaultPort)
	p2pCfg.Seeds = normalizeAddresses(p2pCfg.Seeds, defaultPort)
	p2pCfg.PriorityPeers = normalizeAddresses(p2pCfg.PriorityPeers, defaultPort)
	p2pCfg.ExclusivePeers = normalizeAddresses(p2pCfg.ExclusivePeers, defaultPort)

	// Tor stream isolation requires a proxy to be set.
	if cfg.TorIsolation && p2pCfg.Proxy == "" {
		return fail("Tor stream isolation requires proxy to be set")
	}

	// Setup the dial function depending on the specified options.  The
	// default is to use the standard net.DialTimeout function.  When a
	// proxy is specified, the dial function is set to the proxy specific
	// dial function.
	if p2pCfg.Proxy != "" {
		if _, _, err := net.SplitHostPort(p2pCfg.Proxy); err != nil {
			return fail("Proxy address '%s' is invalid: %v", p2pCfg.Proxy, err)
		}

		// Tor isolation flag means proxy credentials will be overridden.
		if cfg.TorIsolation && (p2pCfg.ProxyUser != "" || p2pCfg.ProxyPass != "") {
			fmt.Fprintln(os.Stderr, "Tor isolation set -- "+
				"overriding specified proxy user credentials")
		}

		proxy := &socks.Proxy{
			Addr:         p2pCfg.Proxy,
			Username:     p2pCfg.ProxyUser,
			Password:     p2pCfg.ProxyPass,
			TorIsolation: cfg.TorIsolation,
		}
		p2pCfg.Dial = proxy.DialTimeout
	}

	// Warn about missing config file only after all other configuration is
	// done.  This prevents the warning on help messages and invalid
	// options.  Note this should go directly before the return.
	if configFileError != nil {
		Log.Warn().Err(configFileError).Str("path", cfg.ConfigFile).Msg("Config file not loaded")
	}

	return &cfg, remainingArgs, nil
}

// decodeConfigFile overlays the YAML file at path on cfg.
func decodeConfigFile(path string, cfg *node.Config) error {
	cfgFile, err := os.Open(path)
	if err != nil {
		return err
	}
	defer cfgFile.Close()

	if ext := filepath.Ext(path); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("invalid config file extension %q, must be .yaml", ext)
	}

	err = yaml.NewDecoder(cfgFile).Decode(cfg)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// createDefaultConfigFile writes cfg as YAML to destinationPath.
func createDefaultConfigFile(destinationPath string, cfg node.Config) error {
	// Create the destination directory if it does not exists
	if err := os.MkdirAll(filepath.Dir(destinationPath), 0o700); err != nil {
		return err
	}

	dest, err := os.OpenFile(destinationPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	defer dest.Close()

	enc := yaml.NewEncoder(dest)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}
