// Package password hashes and verifies credentials with Argon2id, encoded
// in PHC string format so parameters travel with the hash.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	minPassBytes          = 8
	maxPassBytes          = 256
	algorithmID           = "argon2id"
)

var (
	ErrPasswordTooShort = errors.New("password too short")
	ErrPasswordTooLong  = errors.New("password too long")
	ErrHashMalformed    = errors.New("stored hash malformed")
)

type Config struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Hasher derives and checks Argon2id hashes with a fixed parameter set.
// Safe for concurrent use.
type Hasher struct {
	config Config
}

func NewHasher(cfg Config) (*Hasher, error) {
	switch {
	case cfg.Memory < minMemoryKB:
		return nil, errors.New("argon2 memory below minimum")
	case cfg.Time < 1:
		return nil, errors.New("argon2 time cost below minimum")
	case cfg.Parallelism < 1:
		return nil, errors.New("argon2 parallelism below minimum")
	case cfg.SaltLength < minSaltLength:
		return nil, errors.New("argon2 salt length below minimum")
	case cfg.KeyLength < minKeyLength:
		return nil, errors.New("argon2 key length below minimum")
	}
	return &Hasher{config: cfg}, nil
}

// Hash derives a PHC-encoded hash from the plaintext. Password bytes are
// used exactly as provided, without Unicode normalization.
func (h *Hasher) Hash(plain string) (string, error) {
	if len(plain) < minPassBytes {
		return "", ErrPasswordTooShort
	}
	if len(plain) > maxPassBytes {
		return "", ErrPasswordTooLong
	}

	salt := make([]byte, h.config.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(plain), salt, h.config.Time, h.config.Memory, h.config.Parallelism, h.config.KeyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		h.config.Memory,
		h.config.Time,
		h.config.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether the plaintext matches the encoded hash. The
// comparison is constant-time over the derived keys. A malformed or
// foreign-algorithm encoding yields false with ErrHashMalformed, never a
// panic.
func (h *Hasher) Verify(plain, encoded string) (bool, error) {
	memory, timeCost, parallelism, salt, key, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(plain), salt, timeCost, memory, parallelism, uint32(len(key)))
	return subtle.ConstantTimeCompare(computed, key) == 1, nil
}

func decodePHC(encoded string) (memory, timeCost uint32, parallelism uint8, salt, key []byte, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return 0, 0, 0, nil, nil, ErrHashMalformed
	}
	if parts[1] != algorithmID {
		return 0, 0, 0, nil, nil, fmt.Errorf("%w: unsupported algorithm %q", ErrHashMalformed, parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return 0, 0, 0, nil, nil, fmt.Errorf("%w: bad version", ErrHashMalformed)
	}

	var p uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &timeCost, &p); err != nil {
		return 0, 0, 0, nil, nil, fmt.Errorf("%w: bad parameters", ErrHashMalformed)
	}
	if memory < minMemoryKB || timeCost < 1 || p < 1 || p > 255 {
		return 0, 0, 0, nil, nil, fmt.Errorf("%w: parameters out of range", ErrHashMalformed)
	}
	parallelism = uint8(p)

	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || uint32(len(salt)) < minSaltLength {
		return 0, 0, 0, nil, nil, fmt.Errorf("%w: bad salt", ErrHashMalformed)
	}
	key, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || uint32(len(key)) < minKeyLength {
		return 0, 0, 0, nil, nil, fmt.Errorf("%w: bad key", ErrHashMalformed)
	}
	return memory, timeCost, parallelism, salt, key, nil
}
