// Package token generates access keys.
//
// Key Format:
//
//   - Prefix: ak_ (3 characters)
//   - Body: Base64 RawURL encoding of DefaultLength random bytes
//
// Keys come from crypto/rand and are stored verbatim on the account.
package token
