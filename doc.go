// Package notetaker is the Composition Root for the notetaker client.
//
// It connects the note list reconciler (pkg/core) with a backend adapter
// using the Hexagonal Architecture pattern.
//
// Philosophy:
//
// A notes application shows one ordered list that several clients edit at
// once. The list is a local mirror of a remote service: it is loaded once,
// changed by our own calls, and changed by push events announcing what other
// clients committed. Applying both would show every change twice, so exactly
// one channel is authoritative (see Mode).
//
// Features:
//
//   - **Single Mutator**: ModeSubscription applies push events only; ModeDirect applies call responses only.
//   - **Idempotent Reducers**: replayed creates, ghost updates and unknown deletes are no-ops.
//   - **Scoped Subscriptions**: the three push streams are acquired and released together.
//   - **Adapters**: a shared directory of Markdown files (fs), an HTTP/websocket service (remote) and an in-memory fake (memory).
//
// Usage:
//
//	nb, err := notetaker.New(
//		notetaker.WithDir("./notes"),
//		notetaker.WithLogger(logger),
//	)
//	defer nb.Close()
//
//	_ = nb.Start(ctx) // push streams
//	_ = nb.Load(ctx)  // initial listing
//	_, err = nb.Submit(ctx, "buy milk")
package notetaker
