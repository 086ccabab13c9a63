// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package p2p

import (
	"fmt"
	"net"
	"runtime"
	"strings"
	"time"
)

type Config struct {
	Listeners      []string `yaml:"listeners" long:"listen" description:"Add an interface/port to listen for connections"`
	Seeds          []string `yaml:"seeds" long:"seednode" description:"Connect to a node to retrieve peer addresses, and disconnect"`
	ExclusivePeers []string `yaml:"exclusive_peers" long:"connect" description:"Connect only to the specified peers"`
	PriorityPeers  []string `yaml:"priority_peers" long:"addnode" description:"Add a peer to connect with and keep the connection open"`
	DisableListen  bool     `yaml:"disable_listen" long:"nolisten" description:"Disable listening for incoming connections"`
	AllowLocalIP   bool     `yaml:"allow_local_ip" long:"allowlocalip" description:"Allow local ip addresses to be added to the peer lists"`
	HideMyPort     bool     `yaml:"hide_my_port" long:"hidemyport" description:"Do not announce the listening port, so other nodes do not connect back"`

	DisableOutbound bool   `yaml:"disable_outbound" long:"nooutbound" description:"Do not make outbound connections"`
	MaxOutbound     int    `yaml:"max_outbound" long:"maxoutbound" description:"Number of outbound connections to keep"`
	MaxPeers        int    `yaml:"max_peers" long:"maxpeers" description:"Max number of inbound and outbound peers"`
	Proxy           string `yaml:"proxy" long:"proxy" description:"Connect via SOCKS5 proxy (eg. 127.0.0.1:9050)"`
	ProxyUser       string `yaml:"proxy_user" long:"proxyuser" description:"Username for proxy server"`
	ProxyPass       string `yaml:"proxy_pass" long:"proxypass" default-mask:"-" description:"Password for proxy server"`

	ConnectTimeout    time.Duration `yaml:"connect_timeout" long:"connecttimeout" description:"Timeout of outbound connection attempts"`
	HandshakeInterval time.Duration `yaml:"handshake_interval" long:"handshakeinterval" description:"Interval between timed syncs"`

	// Dial connects to a node.  Nil dials directly.
	Dial func(string, string, time.Duration) (net.Conn, error) `yaml:"-"`
}

// initListeners opens the configured net listeners.  Addresses that can't be
// bound are logged and skipped.
func initListeners(listenAddrs []string) ([]net.Listener, error) {
	netAddrs, err := ParseListeners(listenAddrs)
	if err != nil {
		return nil, err
	}

	listeners := make([]net.Listener, 0, len(netAddrs))
	for _, addr := range netAddrs {
		listener, err := net.Listen(addr.Network(), addr.String())
		if err != nil {
			log.Warn().Msgf("Can't listen on %s: %v", addr, err)
			continue
		}
		listeners = append(listeners, listener)
	}
	return listeners, nil
}

// simpleAddr implements the net.Addr interface with two struct fields
type simpleAddr struct {
	net, addr string
}

// String returns the address.
//
// This is part of the net.Addr interface.
func (a simpleAddr) String() string {
	return a.addr
}

// Network returns the network.
//
// This is part of the net.Addr interface.
func (a simpleAddr) Network() string {
	return a.net
}

// ParseListeners determines whether each listen address is IPv4 and IPv6 and
// returns a slice of appropriate net.Addrs to listen on with TCP. It also
// properly detects addresses which apply to "all interfaces" and adds the
// address as both IPv4 and IPv6.
func ParseListeners(addrs []string) ([]net.Addr, error) {
	netAddrs := make([]net.Addr, 0, len(addrs)*2)
	for _, addr := range addrs {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			// Shouldn't happen due to already being normalized.
			return nil, err
		}

		// Empty host or host of * on plan9 is both IPv4 and IPv6.
		if host == "" || (host == "*" && runtime.GOOS == "plan9") {
			netAddrs = append(netAddrs, simpleAddr{net: "tcp4", addr: addr})
			netAddrs = append(netAddrs, simpleAddr{net: "tcp6", addr: addr})
			continue
		}

		// Strip IPv6 zone id if present since net.ParseIP does not
		// handle it.
		zoneIndex := strings.LastIndex(host, "%")
		if zoneIndex > 0 {
			host = host[:zoneIndex]
		}

		// Parse the IP.
		ip := net.ParseIP(host)
		if ip == nil {
			return nil, fmt.Errorf("'%s' is not a valid IP address", host)
		}

		// To4 returns nil when the IP is not an IPv4 address, so use
		// this determine the address type.
		if ip.To4() == nil {
			netAddrs = append(netAddrs, simpleAddr{net: "tcp6", addr: addr})
		} else {
			netAddrs = append(netAddrs, simpleAddr{net: "tcp4", addr: addr})
		}
	}
	return netAddrs, nil
}
