package dedupe

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"
)

// Hasher computes hex content digests of files.
type Hasher struct {
	name    string
	newHash func() hash.Hash
}

func NewHasher(algorithm string) (*Hasher, error) {
	name := strings.ToLower(algorithm)
	switch name {
	case "", "md5":
		return &Hasher{name: "md5", newHash: md5.New}, nil
	case "sha1":
		return &Hasher{name: name, newHash: sha1.New}, nil
	case "sha256":
		return &Hasher{name: name, newHash: sha256.New}, nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %s", algorithm)
	}
}

func (h *Hasher) Name() string {
	return h.name
}

// HashFile streams the file at path through the hash.
func (h *Hasher) HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hasher := h.newHash()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
