// Package config loads the marketcache configuration file.
//
// Loading runs in a fixed order: optional .env files are applied to the
// process environment, ${VAR} references in the YAML text are expanded
// strictly, the YAML is decoded over Default() with unknown keys rejected,
// secretref: values are resolved, and the result is validated.
//
// Only an invalid configuration is fatal at startup. Unreachable backends
// are handled by the components that own them.
package config
