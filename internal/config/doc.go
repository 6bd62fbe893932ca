// Package config holds the DeskMaster configuration: defaults, YAML file
// discovery and loading, .env handling and validation.
package config
