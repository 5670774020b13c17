// Package internal contains the implementation packages of template-tally.
//
// # Package Organization
//
//   - types: template identifiers and render events
//   - notifications: the in-process event bus render events are published on
//   - tally: the tracker (subscription lifecycle, render recording) and the
//     reconciler that partitions discovered templates into rendered and
//     unrendered
//   - scanner: template discovery under the project root
//   - store: the TTL key-value store render records live in (Redis, memory)
//   - renderer: a host rendering pipeline that publishes render events
//   - server: views, admin API, HTML report and live render feed over HTTP
//   - websocket: the live render feed
//   - watcher: file system monitoring with debouncing
//   - monitoring: health checks for the store and discovery
//   - config, logging, errors, version: ambient support
//
// # Data Flow
//
// The host renderer publishes one event per rendered template or partial.
// The tracker resolves each event to a root-relative identifier and writes a
// render record the first time this process sees the template. Reports list
// every discovered template and look all of their records up in one round
// trip; a template without a live record is unrendered.
//
// Records expire after the retention window (14 days by default), so the
// report reflects recent traffic across every process sharing the store.
package internal
