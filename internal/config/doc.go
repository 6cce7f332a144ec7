// Package config holds the runtime configuration of pulep-events.
//
// Values are layered: NewConfig defaults, then an optional YAML file
// (.pulep-events.yaml in the working directory, or config.yaml in the XDG
// config directory, or an explicit --config path), then PULEP_* environment
// variables (optionally read from a .env file), and finally CLI flags applied
// by the cli package. Validate is called once all layers are applied.
//
// The YAML file can also override the HTML selectors used to read the PULEP
// pages under its layout: key, so a markup change on the site is a config
// edit rather than a code change.
package config
