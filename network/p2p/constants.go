// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package p2p

import (
	"time"
)

const (
	// defaultTargetOutbound is the default number of outbound peers to target.
	defaultTargetOutbound = 8

	// defaultMaxPeers bounds inbound plus outbound connections.
	defaultMaxPeers = 125

	// connectionRetryInterval is the time between two rounds of outbound
	// connection attempts.
	connectionRetryInterval = time.Second * 5

	// peerStoreSaveInterval is how often the peer lists are written out.
	peerStoreSaveInterval = time.Minute * 10

	// p2pVersion is the node version announced in handshakes.
	p2pVersion = 1
)
