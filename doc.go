// Command-free library: aiodt drives a Chromium-family browser over the
// Chrome DevTools Protocol. A Registry discovers the browser's inspectable
// targets over its HTTP debugging endpoint and hands out activated
// Connections for them; each Connection owns one per-target websocket,
// correlating command/response pairs, fanning out events to registered
// listeners, bridging JS-to-host callbacks and Promise resolutions over a
// console.info convention, and tracking execution contexts and page
// loading state. DOMNode, Interceptor and the Click/TypeText/PressKey
// helpers build on top of that core for DOM queries, request
// interception and input synthesis.
//
// This package intentionally does not bundle a generated catalogue of CDP
// command bindings: protocol/<domain> packages implement only the commands
// and events the engine itself needs, issued through the protocol.Executor
// a Connection installs via Connection.Context.
package aiodt
