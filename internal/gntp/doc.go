// Package gntp speaks the Growl Notification Transport Protocol (GNTP/1.0).
//
// Only the plaintext subset is implemented: REGISTER and NOTIFY requests,
// optional password authentication via key hashes (MD5, SHA1, SHA256, SHA512),
// and -OK / -ERROR responses. Each request uses its own TCP connection, which
// the receiver closes after responding.
package gntp
