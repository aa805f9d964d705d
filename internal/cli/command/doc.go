// Package command defines the ledgerctl commands using urfave/cli/v2.
//
//   - root.go: App, global flags, configuration and engine wiring
//   - account.go: account, alias and key groups
//   - transfer.go: credit and debit
//   - index.go: alias index verification and repair
//   - backup.go: snapshot create, restore and list
//   - convert.go: display/atomic amount conversion
//   - config.go: config show and validate, version
//   - shell.go: interactive shell over the same commands
//
// Every storage command opens the engine, replays the intent log, runs
// once and closes the engine in the App's After hook.
package command
