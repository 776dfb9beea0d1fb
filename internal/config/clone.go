package config

import "slices"

// Clone returns a deep copy of c, so callers can edit a config obtained from
// Get without racing readers.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := *c
	out.Receiver.EnabledByDefault = slices.Clone(c.Receiver.EnabledByDefault)
	out.Worker = clonePtr(c.Worker)
	out.Dispatch = clonePtr(c.Dispatch)
	out.API = clonePtr(c.API)
	out.Storage = clonePtr(c.Storage)
	if c.Discovery != nil {
		d := *c.Discovery
		d.Instances = slices.Clone(c.Discovery.Instances)
		out.Discovery = &d
	}
	return &out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
