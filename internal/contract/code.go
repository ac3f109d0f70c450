package contract

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/tetratelabs/watzero"
)

// DomainCode separates contract hashes from any other SHA-256 use.
const DomainCode = "vmparity/code/v1"

// Code is raw contract bytecode plus its content identifier.
type Code struct {
	code []byte
	hash string
}

// New copies code and computes its hash unless hash is non-empty.
func New(code []byte, hash string) *Code {
	c := &Code{code: append([]byte{}, code...)}
	if hash == "" {
		hash = Hash(c.code)
	}
	c.hash = hash
	return c
}

// FromWAT converts WebAssembly text format to bytecode.
func FromWAT(src string) (*Code, error) {
	wasm, err := watzero.Wat2Wasm(src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse wat: %w", err)
	}
	return New(wasm, ""), nil
}

// Bytes returns the bytecode. Callers must not modify it.
func (c *Code) Bytes() []byte {
	return c.code
}

// Len is the bytecode size in bytes.
func (c *Code) Len() int {
	return len(c.code)
}

// Hash returns the content identifier.
func (c *Code) Hash() string {
	return c.hash
}

// Hash computes SHA256(DomainCode + 0x00 + code) as lowercase hex.
func Hash(code []byte) string {
	h := sha256.New()
	h.Write([]byte(DomainCode))
	h.Write([]byte{0x00})
	h.Write(code)
	return hex.EncodeToString(h.Sum(nil))
}
