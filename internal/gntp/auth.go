package gntp

import (
	"crypto/md5"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"
)

// HashAlgorithm names a key hashing algorithm as written on the GNTP info line.
type HashAlgorithm string

const (
	MD5    HashAlgorithm = "MD5"
	SHA1   HashAlgorithm = "SHA1"
	SHA256 HashAlgorithm = "SHA256"
	SHA512 HashAlgorithm = "SHA512"
)

// DefaultHashAlgorithm is used when none is configured.
const DefaultHashAlgorithm = SHA256

const saltSize = 16

// ParseHashAlgorithm accepts the algorithm names case-insensitively. The empty
// string yields DefaultHashAlgorithm.
func ParseHashAlgorithm(s string) (HashAlgorithm, error) {
	switch HashAlgorithm(strings.ToUpper(strings.TrimSpace(s))) {
	case "":
		return DefaultHashAlgorithm, nil
	case MD5:
		return MD5, nil
	case SHA1:
		return SHA1, nil
	case SHA256:
		return SHA256, nil
	case SHA512:
		return SHA512, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownHashAlgorithm, s)
}

func (a HashAlgorithm) newHash() (hash.Hash, error) {
	switch a {
	case MD5:
		return md5.New(), nil
	case SHA1:
		return sha1.New(), nil
	case SHA256:
		return sha256.New(), nil
	case SHA512:
		return sha512.New(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownHashAlgorithm, string(a))
}

// Key is the password proof carried on the info line as "<ALG>:<KEYHASH>.<SALT>".
type Key struct {
	Algorithm HashAlgorithm
	Hash      []byte
	Salt      []byte
}

// NewKey derives a key for password with a fresh random salt.
func NewKey(password string, alg HashAlgorithm) (*Key, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("gntp: salt: %w", err)
	}
	return newKeyWithSalt(password, alg, salt)
}

func newKeyWithSalt(password string, alg HashAlgorithm, salt []byte) (*Key, error) {
	sum, err := keyHash(alg, password, salt)
	if err != nil {
		return nil, err
	}
	return &Key{Algorithm: alg, Hash: sum, Salt: salt}, nil
}

// keyHash computes H(H(password || salt)).
func keyHash(alg HashAlgorithm, password string, salt []byte) ([]byte, error) {
	h, err := alg.newHash()
	if err != nil {
		return nil, err
	}
	h.Write([]byte(password))
	h.Write(salt)
	key := h.Sum(nil)

	h.Reset()
	h.Write(key)
	return h.Sum(nil), nil
}

// Verify reports whether the key was derived from password.
func (k *Key) Verify(password string) bool {
	if k == nil {
		return false
	}
	sum, err := keyHash(k.Algorithm, password, k.Salt)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(sum, k.Hash) == 1
}

func (k *Key) String() string {
	return string(k.Algorithm) + ":" + strings.ToUpper(hex.EncodeToString(k.Hash)) + "." + strings.ToUpper(hex.EncodeToString(k.Salt))
}

// ParseKey parses the "<ALG>:<KEYHASH>.<SALT>" token of an info line.
func ParseKey(s string) (*Key, error) {
	algName, rest, ok := strings.Cut(s, ":")
	if !ok {
		return nil, protocolErrorf("malformed key %q", s)
	}
	alg, err := ParseHashAlgorithm(algName)
	if err != nil {
		return nil, err
	}
	hashHex, saltHex, ok := strings.Cut(rest, ".")
	if !ok {
		return nil, protocolErrorf("key without salt %q", s)
	}
	sum, err := hex.DecodeString(hashHex)
	if err != nil {
		return nil, protocolErrorf("key hash: %v", err)
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return nil, protocolErrorf("key salt: %v", err)
	}
	return &Key{Algorithm: alg, Hash: sum, Salt: salt}, nil
}
