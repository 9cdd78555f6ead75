// Package accounts provides account lifecycle primitives: registration with
// email confirmation, password reset with single-use tokens, social login
// provisioning, session token issuance, and the bun-backed repositories those
// flows persist through.
package accounts
