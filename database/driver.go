// Copyright (c) 2015-2016 The btcsuite developers
// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package database

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Driver defines a structure for backend drivers to use when they registered
// themselves as a backend which implements the DB interface.
type Driver struct {
	// DBType is the identifier used to uniquely identify a specific
	// database driver.  There can be only one driver with the same name.
	DBType string

	// Create is the function that will be invoked with all user-specified
	// arguments to create the database or open it if it already exists.
	Create func(args ...interface{}) (DB, error)

	// Open is the function that will be invoked with all user-specified
	// arguments to open an existing database.
	Open func(args ...interface{}) (DB, error)

	// UseLogger uses a specified Logger to output package logging info.
	UseLogger func(logger zerolog.Logger)
}

var (
	driversMtx sync.RWMutex

	// driverList holds all of the registered database backends.
	drivers = make(map[string]*Driver)
)

// RegisterDriver adds a backend database driver to available interfaces.
// ErrDBTypeRegistered will be returned if the database type for the driver has
// already been registered.
func RegisterDriver(driver Driver) error {
	driversMtx.Lock()
	defer driversMtx.Unlock()

	if _, exists := drivers[driver.DBType]; exists {
		str := fmt.Sprintf("driver %q is already registered", driver.DBType)
		return MakeError(ErrDBTypeRegistered, str, nil)
	}

	drivers[driver.DBType] = &driver
	return nil
}

// SupportedDrivers returns a slice of strings that represent the database
// drivers that have been registered and are therefore supported.
func SupportedDrivers() []string {
	driversMtx.RLock()
	defer driversMtx.RUnlock()

	supportedDBs := make([]string, 0, len(drivers))
	for _, drv := range drivers {
		supportedDBs = append(supportedDBs, drv.DBType)
	}
	sort.Strings(supportedDBs)
	return supportedDBs
}

func lookup(dbType string) (*Driver, error) {
	driversMtx.RLock()
	defer driversMtx.RUnlock()

	drv, exists := drivers[dbType]
	if !exists {
		str := fmt.Sprintf("driver %q is not registered", dbType)
		return nil, MakeError(ErrDBUnknownType, str, nil)
	}
	return drv, nil
}

// Create initializes and opens a database for the specified type.  The
// arguments are specific to the database type driver.  See the documentation
// for the database driver for further details.
//
// ErrDBUnknownType will be returned if the database type is not registered.
func Create(dbType string, args ...interface{}) (DB, error) {
	drv, err := lookup(dbType)
	if err != nil {
		return nil, err
	}
	return drv.Create(args...)
}

// Open opens an existing database for the specified type.  The arguments are
// specific to the database type driver.  See the documentation for the
// database driver for further details.
//
// ErrDBUnknownType will be returned if the database type is not registered.
func Open(dbType string, args ...interface{}) (DB, error) {
	drv, err := lookup(dbType)
	if err != nil {
		return nil, err
	}
	return drv.Open(args...)
}

// UseLogger hands logger to every registered driver.
func UseLogger(logger zerolog.Logger) {
	driversMtx.RLock()
	defer driversMtx.RUnlock()
	for _, drv := range drivers {
		if drv.UseLogger != nil {
			drv.UseLogger(logger)
		}
	}
}
