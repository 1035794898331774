// Package config provides configuration structures and utilities for histprobe.
// It defines the browser settings, scheduler tunables, probe overrides and
// storage locations, and loads the optional .histprobe YAML file.
package config
