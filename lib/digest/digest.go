// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

package digest

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/zeebo/blake3"
)

// Algorithm names the hash function a digest was computed with.
type Algorithm uint8

const (
	// None means no verifiable upstream: the local copy is trusted
	// whenever it exists.
	None Algorithm = iota
	MD5
	SHA1
	SHA256

	// BLAKE3 is used for content published by this server itself.
	BLAKE3
)

// String returns the catalog name of the algorithm.
func (a Algorithm) String() string {
	switch a {
	case None:
		return "NONE"
	case MD5:
		return "MD5"
	case SHA1:
		return "SHA1"
	case SHA256:
		return "SHA256"
	case BLAKE3:
		return "BLAKE3"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(a))
	}
}

// ParseAlgorithm parses an algorithm name. Matching is
// case-insensitive; the empty string is NONE.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "", "NONE":
		return None, nil
	case "MD5":
		return MD5, nil
	case "SHA1":
		return SHA1, nil
	case "SHA256":
		return SHA256, nil
	case "BLAKE3":
		return BLAKE3, nil
	default:
		return None, fmt.Errorf("unknown digest algorithm %q", name)
	}
}

// New returns a fresh hash for the algorithm. NONE has no hash.
func (a Algorithm) New() (hash.Hash, error) {
	switch a {
	case MD5:
		return md5.New(), nil
	case SHA1:
		return sha1.New(), nil
	case SHA256:
		return sha256.New(), nil
	case BLAKE3:
		return blake3.New(), nil
	case None:
		return nil, errors.New("digest algorithm NONE has no hash function")
	default:
		return nil, fmt.Errorf("unsupported digest algorithm %v", a)
	}
}

// Digest is a typed content digest.
type Digest struct {
	Algorithm Algorithm
	Value     string
}

// Parse parses the "ALGO|hex" text form. A bare "NONE" (or the empty
// string) parses to the NONE digest. Hex values are normalised to
// lowercase.
func Parse(text string) (Digest, error) {
	text = strings.TrimSpace(text)
	name, value, hasValue := strings.Cut(text, "|")
	algorithm, err := ParseAlgorithm(name)
	if err != nil {
		return Digest{}, err
	}
	if algorithm == None {
		if hasValue && value != "" {
			return Digest{}, fmt.Errorf("digest %q: NONE carries no value", text)
		}
		return Digest{Algorithm: None}, nil
	}
	if !hasValue || value == "" {
		return Digest{}, fmt.Errorf("digest %q: missing value", text)
	}
	value = strings.ToLower(value)
	if _, err := hex.DecodeString(value); err != nil {
		return Digest{}, fmt.Errorf("digest %q: value is not hex: %w", text, err)
	}
	return Digest{Algorithm: algorithm, Value: value}, nil
}

// String returns the "ALGO|hex" form, or "NONE".
func (d Digest) String() string {
	if d.Algorithm == None {
		return "NONE"
	}
	return d.Algorithm.String() + "|" + d.Value
}

// IsNone reports whether the digest carries no verifiable value.
func (d Digest) IsNone() bool { return d.Algorithm == None }

// Equal reports whether two digests name the same algorithm and value.
func (d Digest) Equal(other Digest) bool {
	return d.Algorithm == other.Algorithm && strings.EqualFold(d.Value, other.Value)
}

// Sum hashes everything read from r.
func Sum(algorithm Algorithm, r io.Reader) (Digest, error) {
	return sum(context.Background(), algorithm, r)
}

// Bytes hashes an in-memory buffer.
func Bytes(algorithm Algorithm, data []byte) (Digest, error) {
	h, err := algorithm.New()
	if err != nil {
		return Digest{}, err
	}
	h.Write(data)
	return Digest{Algorithm: algorithm, Value: hex.EncodeToString(h.Sum(nil))}, nil
}

// File hashes the file at path. The context is checked between reads.
func File(ctx context.Context, algorithm Algorithm, path string) (Digest, error) {
	file, err := os.Open(path)
	if err != nil {
		return Digest{}, err
	}
	defer file.Close()

	result, err := sum(ctx, algorithm, file)
	if err != nil {
		return Digest{}, fmt.Errorf("hashing %s: %w", path, err)
	}
	return result, nil
}

// Matches recomputes the digest of the file at path with want's
// algorithm and compares it against want. A missing file reports
// false with the os.ErrNotExist error; a NONE digest matches any
// existing file without reading it.
func Matches(ctx context.Context, path string, want Digest) (bool, error) {
	if want.IsNone() {
		info, err := os.Stat(path)
		if err != nil {
			return false, err
		}
		return info.Mode().IsRegular(), nil
	}
	got, err := File(ctx, want.Algorithm, path)
	if err != nil {
		return false, err
	}
	return got.Equal(want), nil
}

const readSize = 256 << 10

func sum(ctx context.Context, algorithm Algorithm, r io.Reader) (Digest, error) {
	h, err := algorithm.New()
	if err != nil {
		return Digest{}, err
	}
	buffer := make([]byte, readSize)
	for {
		if err := ctx.Err(); err != nil {
			return Digest{}, err
		}
		n, readErr := r.Read(buffer)
		if n > 0 {
			h.Write(buffer[:n])
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return Digest{}, readErr
		}
	}
	return Digest{Algorithm: algorithm, Value: hex.EncodeToString(h.Sum(nil))}, nil
}
