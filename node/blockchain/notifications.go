// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"fmt"

	"gitlab.com/jaxnet/cnoted/types/chainhash"
)

// NotificationType represents the type of a notification message.
type NotificationType int

// NotificationCallback is used for a caller to provide a callback for
// notifications about various chain events.
type NotificationCallback func(*Notification)

// Constants for the type of a notification message.
const (
	// NTNewBlock indicates a block was appended to the main chain.  Data is
	// a *BlockNotification.
	NTNewBlock NotificationType = iota

	// NTNewAlternativeBlock indicates a block was stored on an alternative
	// branch.  Data is a *BlockNotification.
	NTNewAlternativeBlock

	// NTChainSwitched indicates an alternative branch became the main
	// chain.  Data is a *ChainSwitchNotification.
	NTChainSwitched
)

// notificationTypeStrings is a map of notification types back to their constant
// names for pretty printing.
var notificationTypeStrings = map[NotificationType]string{
	NTNewBlock:            "NTNewBlock",
	NTNewAlternativeBlock: "NTNewAlternativeBlock",
	NTChainSwitched:       "NTChainSwitched",
}

// String returns the NotificationType in human-readable form.
func (n NotificationType) String() string {
	if s, ok := notificationTypeStrings[n]; ok {
		return s
	}
	return fmt.Sprintf("Unknown Notification Type (%d)", int(n))
}

// Notification defines notification that is sent to the caller via the callback
// function provided during the call to New and consists of a notification type
// as well as associated data that depends on the type as follows:
//   - NTNewBlock:            *BlockNotification
//   - NTNewAlternativeBlock: *BlockNotification
//   - NTChainSwitched:       *ChainSwitchNotification
type Notification struct {
	Type NotificationType
	Data interface{}
}

// BlockNotification describes a single accepted block.
type BlockNotification struct {
	Hash   chainhash.Hash
	Height uint32
}

// ChainSwitchNotification lists the blocks that became canonical, starting
// right above the common root.
type ChainSwitchNotification struct {
	CommonRoot uint32
	Hashes     []chainhash.Hash
}

// Subscribe to block chain notifications. Registers a callback to be executed
// when various events take place. See the documentation on Notification and
// NotificationType for details on the types and contents of notifications.
func (b *BlockChain) Subscribe(callback NotificationCallback) {
	b.notificationsLock.Lock()
	b.notifications = append(b.notifications, callback)
	b.notificationsLock.Unlock()
}

// queueNotification records a notification to be delivered once the chain
// lock is released.
//
// This function MUST be called with the chain lock held (for writes).
func (b *BlockChain) queueNotification(typ NotificationType, data interface{}) {
	b.pending = append(b.pending, &Notification{Type: typ, Data: data})
}

// flushNotifications delivers the queued notifications to every subscriber.
// Callbacks may query the chain, so this must run without the chain lock.
func (b *BlockChain) flushNotifications() {
	b.chainLock.Lock()
	pending := b.pending
	b.pending = nil
	b.chainLock.Unlock()

	if len(pending) == 0 {
		return
	}

	b.notificationsLock.RLock()
	defer b.notificationsLock.RUnlock()
	for _, n := range pending {
		for _, callback := range b.notifications {
			callback(n)
		}
	}
}
