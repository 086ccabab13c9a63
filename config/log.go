// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2017 The Decred developers
// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package config

import (
	"github.com/rs/zerolog"

	"gitlab.com/jaxnet/cnoted/corelog"
	"gitlab.com/jaxnet/cnoted/database"
	"gitlab.com/jaxnet/cnoted/network/levin"
	"gitlab.com/jaxnet/cnoted/network/netsync"
	"gitlab.com/jaxnet/cnoted/network/p2p"
	"gitlab.com/jaxnet/cnoted/network/peer"
	"gitlab.com/jaxnet/cnoted/node"
	"gitlab.com/jaxnet/cnoted/node/blockchain"
	"gitlab.com/jaxnet/cnoted/node/blockstore"
	"gitlab.com/jaxnet/cnoted/node/chaindata"
	"gitlab.com/jaxnet/cnoted/node/mempool"
	"gitlab.com/jaxnet/cnoted/node/metrics"
)

const (
	logUnitBCDB = "BCDB"
	logUnitCHAN = "CHAN"
	logUnitCHDT = "CHDT"
	logUnitCNTD = "CNTD"
	logUnitLEVN = "LEVN"
	logUnitMTRC = "MTRC"
	logUnitNODE = "NODE"
	logUnitPEER = "PEER"
	logUnitPROT = "PROT"
	logUnitSRVR = "SRVR"
	logUnitSTOR = "STOR"
	logUnitTXMP = "TXMP"
)

// Log is the logger of the daemon itself.
var Log zerolog.Logger

// unitLogs maps each subsystem identifier to its associated logger.  When
// adding new subsystems, add the unit here and wire it in setLoggers.
var unitLogs = map[string]zerolog.Logger{
	logUnitBCDB: {},
	logUnitCHAN: {},
	logUnitCHDT: {},
	logUnitCNTD: {},
	logUnitLEVN: {},
	logUnitMTRC: {},
	logUnitNODE: {},
	logUnitPEER: {},
	logUnitPROT: {},
	logUnitSRVR: {},
	logUnitSTOR: {},
	logUnitTXMP: {},
}

func init() {
	setLogLevels(corelog.DefaultLevel.String(), corelog.Config{}.Default())
	setLoggers()
}

// setLoggers hands the unit loggers to the packages.
func setLoggers() {
	Log = unitLogs[logUnitCNTD]
	database.UseLogger(unitLogs[logUnitBCDB])
	blockchain.UseLogger(unitLogs[logUnitCHAN])
	chaindata.UseLogger(unitLogs[logUnitCHDT])
	levin.UseLogger(unitLogs[logUnitLEVN])
	metrics.UseLogger(unitLogs[logUnitMTRC])
	node.UseLogger(unitLogs[logUnitNODE])
	peer.UseLogger(unitLogs[logUnitPEER])
	netsync.UseLogger(unitLogs[logUnitPROT])
	p2p.UseLogger(unitLogs[logUnitSRVR])
	blockstore.UseLogger(unitLogs[logUnitSTOR])
	mempool.UseLogger(unitLogs[logUnitTXMP])
}

// setLogLevel sets the logging level for provided subsystem.  Invalid
// subsystems are ignored.
func setLogLevel(unit, logLevel string, logConfig corelog.Config) {
	if _, ok := unitLogs[unit]; !ok {
		return
	}
	unitLogs[unit] = corelog.New(unit, corelog.ParseLevel(logLevel), logConfig)
}

// setLogLevels sets the log level for all subsystem loggers to the passed
// level.
func setLogLevels(logLevel string, logConfig corelog.Config) {
	for unit := range unitLogs {
		setLogLevel(unit, logLevel, logConfig)
	}
}
