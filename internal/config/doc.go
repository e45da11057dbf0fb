// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// Binaries load a .env file (if present) before reading the YAML, so secrets such as
// QUOTEHUB_STREAM_TOKEN can live outside the config file.
package config
