// Package role derives a normalized authorization role from the stored
// credential and declares the role sets route policies are written against.
//
// A role is never cached independently of the credential it came from:
// [Resolver.Resolve] is cheap enough to run on every navigation check, so
// any credential mutation is immediately reflected in the derived role.
package role
