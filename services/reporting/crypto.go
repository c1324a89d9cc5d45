// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package reporting

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/awnumar/memguard"
)

// KeyProvider yields the symmetric encryption key and its version tag.
// Production deployments back this with a managed secret store; tests and
// development use an in-process key. The version tag is recorded on every
// report so rotated keys can still decrypt old reports.
type KeyProvider interface {
	Key() (*memguard.LockedBuffer, string, error)
}

// StaticKeyProvider serves a fixed 32-byte key, e.g. one loaded from a
// secret store at startup. The key lives in guarded memory.
type StaticKeyProvider struct {
	enclave *memguard.Enclave
	version string
}

// NewStaticKeyProvider wraps raw key material. The key slice is wiped as a
// side effect of sealing it into guarded memory.
func NewStaticKeyProvider(key []byte, version string) (*StaticKeyProvider, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}
	if version == "" {
		return nil, errors.New("key version must not be empty")
	}
	return &StaticKeyProvider{
		enclave: memguard.NewEnclave(key),
		version: version,
	}, nil
}

// Key opens the sealed key. The caller must Destroy the returned buffer.
func (p *StaticKeyProvider) Key() (*memguard.LockedBuffer, string, error) {
	buf, err := p.enclave.Open()
	if err != nil {
		return nil, "", fmt.Errorf("open key enclave: %w", err)
	}
	return buf, p.version, nil
}

// DevKeyVersion marks reports encrypted with an ephemeral development key.
// Such reports are unreadable after restart; the version makes that
// unmistakable in the stored record.
const DevKeyVersion = "dev-ephemeral"

// NewDevKeyProvider generates a fresh random key for this process only.
// Never use in production: nothing encrypted with it survives a restart.
func NewDevKeyProvider() (*StaticKeyProvider, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("generate dev key: %w", err)
	}
	return NewStaticKeyProvider(key, DevKeyVersion)
}

// Encryptor encrypts report messages with AES-256-GCM. Output format is
// base64(nonce || ciphertext).
type Encryptor struct {
	provider KeyProvider
}

// NewEncryptor creates an encryptor over the given key provider.
func NewEncryptor(provider KeyProvider) (*Encryptor, error) {
	if provider == nil {
		return nil, errors.New("key provider must not be nil")
	}
	return &Encryptor{provider: provider}, nil
}

// Encrypt seals plaintext and returns the ciphertext with the key version
// used, for recording on the report.
func (e *Encryptor) Encrypt(plaintext string) (ciphertext, keyVersion string, err error) {
	gcm, version, err := e.gcm()
	if err != nil {
		return "", "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), version, nil
}

// Decrypt reverses Encrypt. Fails if the ciphertext was produced under a
// different key than the provider currently serves.
func (e *Encryptor) Decrypt(ciphertext string) (string, error) {
	gcm, _, err := e.gcm()
	if err != nil {
		return "", err
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(raw) < gcm.NonceSize() {
		return "", errors.New("ciphertext shorter than nonce")
	}

	plaintext, err := gcm.Open(nil, raw[:gcm.NonceSize()], raw[gcm.NonceSize():], nil)
	if err != nil {
		return "", fmt.Errorf("decrypt message: %w", err)
	}
	return string(plaintext), nil
}

func (e *Encryptor) gcm() (cipher.AEAD, string, error) {
	keyBuf, version, err := e.provider.Key()
	if err != nil {
		return nil, "", err
	}
	defer keyBuf.Destroy()

	block, err := aes.NewCipher(keyBuf.Bytes())
	if err != nil {
		return nil, "", fmt.Errorf("init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, "", fmt.Errorf("init gcm: %w", err)
	}
	return gcm, version, nil
}

// Anonymizer produces one-way salted hashes of user identifiers. The same
// user hashes to the same value, allowing correlation of reports, but the
// hash cannot be reversed. The salt lives in guarded memory and is never
// logged.
type Anonymizer struct {
	salt *memguard.Enclave
}

// NewAnonymizer seals the salt. The caller is responsible for having
// rejected placeholder salts at configuration time.
func NewAnonymizer(salt string) (*Anonymizer, error) {
	if salt == "" {
		return nil, errors.New("anonymization salt must not be empty")
	}
	return &Anonymizer{salt: memguard.NewEnclave([]byte(salt))}, nil
}

// Anonymize returns the first 16 hex characters of sha256(userID || salt).
func (a *Anonymizer) Anonymize(userID string) (string, error) {
	buf, err := a.salt.Open()
	if err != nil {
		return "", fmt.Errorf("open salt enclave: %w", err)
	}
	defer buf.Destroy()

	h := sha256.New()
	h.Write([]byte(userID))
	h.Write(buf.Bytes())
	return hex.EncodeToString(h.Sum(nil))[:16], nil
}
