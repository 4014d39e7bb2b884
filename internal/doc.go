// Package internal contains the implementation packages for mailsmith.
//
// # Package Organization
//
// The internal packages are organized by pipeline stage:
//
//   - registry: loads and validates the template descriptors
//   - emails: the email components and their shared layout
//   - renderer: resolves a component by name and renders it to markup
//   - substitution: rewrites sentinel values into template expressions
//   - conditional: wraps optional fragments in {{if}} blocks
//   - artifact: cleans the output directory and writes the artifacts
//   - build: runs the stages per template and collects the report
//   - config, logging, errors, version, watcher: shared infrastructure
//
// # Data Flow
//
// A run loads the registry once, cleans the output directory, then for each
// descriptor renders the component with its sentinel props, substitutes the
// sentinels, reconstructs the conditional fragments and writes the rich and
// text artifacts. A failure is recorded against its template and the run
// moves on to the next one.
//
// # Testing Strategy
//
//   - Unit tests for every package, table-driven where it fits
//   - Property tests behind the "property" build tag
//   - Fuzz tests for the registry loader
//   - Benchmarks for the renderer and pipeline
package internal
