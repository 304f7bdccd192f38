// Package art implements the core of an Asynchronous Ratcheting Tree
// (ART) group key agreement engine.
//
// A RatchetTree is a left-balanced binary tree of Keys over secp256k1.
// Every internal node's Key is the ECDH reduction of its two children;
// the root Key is the shared group secret. Inserting or removing a
// member ratchets the affected root-ward path into an uncommitted
// Branch, which a caller (e.g. a consensus layer) commits atomically
// only after external agreement has been reached.
//
// Network transport, group-membership policy, member authentication,
// wire serialization, and multi-curve support are all out of scope;
// this package only maintains the tree and the keys in it.
package art
