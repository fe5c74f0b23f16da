// Package internal contains the implementation packages of kiln.
//
// # Package Organization
//
//   - cli, command, commands: argument dispatch, option resolution and the
//     command table
//   - task: orchestration units run by commands
//   - build: the Builder, the pipeline engine contract and output sync
//   - watcher: file system backends, debouncing and the rebuild loop
//   - server, livereload: the development server and its reload channel
//   - process: signal and kill message handling with exit callbacks
//   - addons, npm: external collaborators run as subprocesses
//   - project, config, settings: project discovery, kiln.yml and .kilnrc
//   - errors, logging, ui, analytics, version: ambient support
//
// A command resolves its options and hands them to a task. Tasks own the
// Builder, Watcher and DevServer they create and register cleanup with the
// process trap, so an interrupted run still removes its staging state.
package internal
