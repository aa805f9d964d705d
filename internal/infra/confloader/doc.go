// Package confloader provides configuration loading mechanism.
//
// This package implements a configuration loader on top of koanf.
//
// Priority (highest to lowest):
//
//  1. Overrides (command-line flags)
//  2. Environment variables
//  3. Configuration file (YAML)
//  4. Default values (pre-filled in the target struct)
//
// Environment variables are matched against the target's koanf keys, so
// ACCTLEDGER_STORAGE_DB_PATH sets storage.db_path even though the key
// itself contains an underscore.
package confloader
