// Package asset describes the media the viewer displays and the source it is
// fetched from.
//
// A Handle is an immutable reference to an image or video asset. A Source
// resolves handles to bytes (images) or a readable file (videos). Sources
// backed by remote storage honour FetchOptions.NetworkAllowed.
//
// Files behind a sandbox or security scope carry a Scope. Access is taken
// with Acquire and given back by releasing the returned AccessGuard, which
// can be handed across goroutines and released exactly once no matter how
// many paths call Release.
package asset
