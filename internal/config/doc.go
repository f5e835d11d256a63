// Package config loads the pipeline configuration.
//
// # Configuration Sources
//
// Values are layered in this order, later sources winning:
//
//	1. Default() values
//	2. A YAML file (tourism.yaml, configs/tourism.yaml, or an explicit path)
//	3. Environment variables prefixed with TOURISM_
//
// Keys absent from the YAML file keep their defaults. Synonym entries in
// the file are added to the default table rather than replacing it; the
// sheet list, when present, replaces the default mapping.
//
// # Environment Variables
//
//	TOURISM_SOURCE_PATH=data/raw/overseas-visitors-2024.xlsx
//	TOURISM_SOURCE_VERSION=2024-annual
//	TOURISM_GAP_FILL_ENABLED=true
//	TOURISM_GAP_FILL_MAX_RUN=2
//	TOURISM_OUTPUT_DIR=data/processed
//	TOURISM_OUTPUT_FORMATS=csv,xlsx
//	TOURISM_LOGGING_LEVEL=debug
//	TOURISM_SERVER_PORT=8080
//
// Sheet mappings and synonyms are structured and can only be set in YAML.
//
// # Validation
//
// The merged configuration is checked with go-playground/validator struct
// tags plus cross-field rules (unique sheet names, log file path when
// logging to a file).
package config
