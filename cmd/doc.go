// Package cmd wires the kiln binary.
//
// The root cobra command does no flag parsing of its own. Every argument is
// handed to the kiln dispatcher, which resolves the command by name or
// alias, parses its options and runs it:
//
//	kiln build --environment production --output-path dist/
//	kiln serve -p 4300 --proxy http://localhost:3000
//	kiln test --server
//	kiln install:npm left-pad
//	kiln help build --json
//
// Environment variables:
//
//	KILN_ENV                overrides the environment option
//	KILN_LOG_LEVEL          debug, info, warn or error (default warn)
//	KILN_VERBOSE_<NAME>     set by --verbose <name>
//	KILN_IPC_FD             file descriptor a parent sends kill messages on
package cmd
