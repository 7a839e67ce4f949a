// Package config loads arbor's runtime settings from YAML or JSON.
package config
