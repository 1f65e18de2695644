package normalize

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha3"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"
)

// DefaultAlgorithm is used when the properties leave pseudonym.algorithm empty.
const DefaultAlgorithm = "SHA-1"

var hashes = map[string]func() hash.Hash{
	"md5":       md5.New,
	"sha1":      sha1.New,
	"sha224":    sha256.New224,
	"sha256":    sha256.New,
	"sha384":    sha512.New384,
	"sha512":    sha512.New,
	"sha512224": sha512.New512_224,
	"sha512256": sha512.New512_256,
	"sha3224":   func() hash.Hash { return sha3.New224() },
	"sha3256":   func() hash.Hash { return sha3.New256() },
	"sha3384":   func() hash.Hash { return sha3.New384() },
	"sha3512":   func() hash.Hash { return sha3.New512() },
}

// Anonymizer derives the pseudonyms under which identifiers are stored in
// the fact store.
type Anonymizer struct {
	algorithm string
	newHash   func() hash.Hash
}

// NewAnonymizer resolves a Java-style digest name such as "SHA-1", "MD5" or
// "SHA-512/256". An empty name selects DefaultAlgorithm.
func NewAnonymizer(algorithm string) (*Anonymizer, error) {
	if strings.TrimSpace(algorithm) == "" {
		algorithm = DefaultAlgorithm
	}
	key := strings.ToLower(strings.NewReplacer("-", "", "/", "", "_", "", " ", "").Replace(algorithm))
	h, ok := hashes[key]
	if !ok {
		return nil, fmt.Errorf("unsupported pseudonym algorithm %q", algorithm)
	}
	return &Anonymizer{algorithm: algorithm, newHash: h}, nil
}

// Algorithm returns the configured digest name.
func (a *Anonymizer) Algorithm() string {
	return a.algorithm
}

// Pseudonym hashes salt+root+"/"+ext and returns it as URL-safe base64 with
// padding.
func (a *Anonymizer) Pseudonym(root, ext, salt string) string {
	h := a.newHash()
	io.WriteString(h, salt+root+"/"+ext)
	return base64.URLEncoding.EncodeToString(h.Sum(nil))
}

// FileHash computes the hex-encoded SHA-256 of the file at path.
func FileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file for hash: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
