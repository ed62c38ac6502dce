// Package catalog holds the static price list of Stars packages.
package catalog

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownPackage is returned when a package key is not in the catalog.
var ErrUnknownPackage = errors.New("unknown package")

// Package is a purchasable bundle of Stars.
type Package struct {
	Key    string `json:"key"`
	Amount int64  `json:"starsAmount"`
}

// Catalog maps package keys to their Stars amount.
type Catalog struct {
	packages map[string]int64
}

// Default returns the standard Stars price list.
func Default() *Catalog {
	return New(map[string]int64{
		"s50":  50,
		"s100": 100,
		"s250": 250,
		"s500": 500,
	})
}

// New builds a catalog from a key to amount map.
func New(packages map[string]int64) *Catalog {
	c := &Catalog{packages: make(map[string]int64, len(packages))}
	for key, amount := range packages {
		c.packages[key] = amount
	}
	return c
}

// Resolve returns the package for key.
func (c *Catalog) Resolve(key string) (Package, error) {
	amount, ok := c.packages[key]
	if !ok || amount <= 0 {
		return Package{}, fmt.Errorf("package %q: %w", key, ErrUnknownPackage)
	}
	return Package{Key: key, Amount: amount}, nil
}

// List returns every package ordered by amount.
func (c *Catalog) List() []Package {
	packages := make([]Package, 0, len(c.packages))
	for key, amount := range c.packages {
		packages = append(packages, Package{Key: key, Amount: amount})
	}
	sort.Slice(packages, func(i, j int) bool {
		if packages[i].Amount == packages[j].Amount {
			return packages[i].Key < packages[j].Key
		}
		return packages[i].Amount < packages[j].Amount
	})
	return packages
}
