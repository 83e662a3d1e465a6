// Package master implements the Master: the persistent node registry, the
// outbound event-socket session per node, the frame fan-out to /gui and
// /analytics (plus optional NATS egress), and the HTTP control plane for
// node CRUD, proxying, and recording toggles.
package master

import (
	"fmt"
	"regexp"
)

var (
	namePattern    = regexp.MustCompile(`^[A-Za-zÀ-ÖØ-öø-ÿ0-9\-_ ]+$`)
	addressPattern = regexp.MustCompile(`^(\d{1,3}\.){3}\d{1,3}:\d{1,5}$`)
)

// Record is one entry in the node registry.
type Record struct {
	ID       int    `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	Address  string `yaml:"address" json:"address"`
	HasImage bool   `yaml:"has_image" json:"has_image"`
}

// Validate enforces the registry's field-level invariants. Uniqueness
// (name/address/id) is checked against the rest of the registry by the
// Registry, not here.
func (r Record) Validate() error {
	if r.ID < 1 {
		return fmt.Errorf("master: node id must be a positive integer, got %d", r.ID)
	}
	if r.Name == "" || !namePattern.MatchString(r.Name) {
		return fmt.Errorf("master: invalid node name %q", r.Name)
	}
	if !addressPattern.MatchString(r.Address) {
		return fmt.Errorf("master: invalid node address %q", r.Address)
	}
	return nil
}
