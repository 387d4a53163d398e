// Package spoold is a print job spooler built as a pipeline of
// independently running stages connected by FIFO hand-off queues.
//
// A submission arrives over TCP as a base64-encoded JSON document, is
// persisted to a durable spool, released, billed against the originating
// user's ledger account by parsing its PostScript payload, and finally
// transmitted to the destination printer, at which point the spool entry
// is retired. Stages exchange job identifiers only; the spool entry is the
// single source of truth while a job transits the pipeline.
//
// Hand-off queues are pluggable:
//   - in-process bounded channels (default)
//   - Redis lists
//   - RabbitMQ durable queues
//
// # Example
//
//	package main
//
//	import (
//		"context"
//
//		"github.com/coreprint/spoold/config"
//		"github.com/coreprint/spoold/engines"
//	)
//
//	func main() {
//		cfg, err := config.Load("spoold.yaml")
//		if err != nil {
//			panic(err)
//		}
//
//		engine, err := engines.NewFromConfig(cfg)
//		if err != nil {
//			panic(err)
//		}
//
//		// Start processing and wait for shutdown signals
//		if err := engine.Run(context.Background()); err != nil {
//			panic(err)
//		}
//	}
//
// Jobs that cannot be billed or dispatched are never silently lost: their
// spool entries move to a dead-letter area under the spool root together
// with the failure reason.
package spoold
