// Package param provides the parameter model used to exchange live
// configuration values with a viewer.
//
// A Parameter is a named, optionally typed value. Its Value is a closed tagged
// union (integer, bool, float64, string, array, dict) built either from native
// Go values via type inference, or explicitly from Value constructors. Byte
// slices are carried as base64-encoded strings tagged with TypeByteArray.
//
// Validation of a declared type against the actual value contents is
// deliberately deferred to read time (GetValue): a peer may supply arbitrary
// (name, type, value) triples, and the local process must be able to store and
// relay them without crashing. A malformed base64 payload under TypeByteArray
// therefore only fails when the value is read, never at construction.
//
// Values are immutable once constructed and may be shared across goroutines.
package param
