package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"sync"
)

// Algorithm is the JWT signing algorithm used for every token.
const Algorithm = "RS256"

const keyBits = 2048

// KeyMaterial holds the process signing key pair. It is generated at boot
// and regenerated by Rotate; readers always see a consistent pair.
type KeyMaterial struct {
	mu      sync.RWMutex
	private *rsa.PrivateKey
}

// NewKeyMaterial generates a fresh RSA-2048 key pair.
func NewKeyMaterial() (*KeyMaterial, error) {
	k := &KeyMaterial{}
	if err := k.Rotate(); err != nil {
		return nil, err
	}
	return k, nil
}

// Rotate replaces the key pair. Tokens signed with the previous key stop
// verifying.
func (k *KeyMaterial) Rotate() error {
	priv, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return fmt.Errorf("auth: generate rsa key: %w", err)
	}
	k.mu.Lock()
	k.private = priv
	k.mu.Unlock()
	return nil
}

// Private returns the signing key.
func (k *KeyMaterial) Private() *rsa.PrivateKey {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.private
}

// Public returns the verification key.
func (k *KeyMaterial) Public() *rsa.PublicKey {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return &k.private.PublicKey
}
