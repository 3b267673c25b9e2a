package storage

import (
	"fmt"
)

// Opener constructs a Store for a named driver. Drivers register themselves
// from their own packages so this package stays free of driver imports.
type Opener func() (Store, error)

// Open selects the opener registered under driver.
func Open(driver string, openers map[string]Opener) (Store, error) {
	open, ok := openers[driver]
	if !ok {
		return nil, fmt.Errorf("[storage Open] unknown storage driver %q", driver)
	}
	s, err := open()
	if err != nil {
		return nil, fmt.Errorf("[storage Open] %s: %w", driver, err)
	}
	return s, nil
}
