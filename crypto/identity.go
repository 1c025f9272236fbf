// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package crypto

import (
	"crypto/ecdh"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Identity is a node's long-lived keypair set: an Ed25519 signing key and
// an X25519 encryption key. It is generated once and never rotated by the
// delivery core.
type Identity struct {
	SignPub  ed25519.PublicKey
	SignPriv ed25519.PrivateKey
	EncPub   *ecdh.PublicKey
	EncPriv  *ecdh.PrivateKey
}

// identityFile is the on-disk JSON shape at {data_dir}/keys/identity.json,
// URL-safe base64 strings per the wire format.
type identityFile struct {
	SignSK string `json:"sign_sk"`
	SignPK string `json:"sign_pk"`
	EncSK  string `json:"enc_sk"`
	EncPK  string `json:"enc_pk"`
}

// GenerateIdentity creates a fresh 32-byte signing and encryption keypair
// from a CSPRNG.
func GenerateIdentity() (*Identity, error) {
	signPub, signPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, newError(KindBadKey, "generate signing key", err)
	}

	encPriv, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return nil, newError(KindBadKey, "generate encryption key", err)
	}

	return &Identity{
		SignPub:  signPub,
		SignPriv: signPriv,
		EncPub:   encPriv.PublicKey(),
		EncPriv:  encPriv,
	}, nil
}

// Fingerprint returns the node's stable identifier (§6: fp =
// urlsafe_b64(sign_pk)[:16]).
func (id *Identity) Fingerprint() string {
	return Fingerprint(id.SignPub)
}

// Fingerprint computes the first 16 characters of the URL-safe, unpadded
// base64 encoding of an Ed25519 public key.
func Fingerprint(signPub ed25519.PublicKey) string {
	enc := base64.RawURLEncoding.EncodeToString(signPub)
	if len(enc) > 16 {
		return enc[:16]
	}
	return enc
}

// LoadOrCreateIdentity reads {dataDir}/keys/identity.json, creating and
// persisting a fresh identity on first start. File mode is 0600 throughout.
func LoadOrCreateIdentity(dataDir string) (*Identity, error) {
	path := identityPath(dataDir)

	if data, err := os.ReadFile(path); err == nil {
		return decodeIdentity(data)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read identity file: %w", err)
	}

	id, err := GenerateIdentity()
	if err != nil {
		return nil, err
	}
	if err := saveIdentity(dataDir, id); err != nil {
		return nil, err
	}
	return id, nil
}

func identityPath(dataDir string) string {
	return filepath.Join(dataDir, "keys", "identity.json")
}

func saveIdentity(dataDir string, id *Identity) error {
	path := identityPath(dataDir)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create key dir: %w", err)
	}

	file := identityFile{
		SignSK: base64.RawURLEncoding.EncodeToString(id.SignPriv),
		SignPK: base64.RawURLEncoding.EncodeToString(id.SignPub),
		EncSK:  base64.RawURLEncoding.EncodeToString(id.EncPriv.Bytes()),
		EncPK:  base64.RawURLEncoding.EncodeToString(id.EncPub.Bytes()),
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

func decodeIdentity(data []byte) (*Identity, error) {
	var file identityFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse identity file: %w", err)
	}

	signPriv, err := base64.RawURLEncoding.DecodeString(file.SignSK)
	if err != nil || len(signPriv) != ed25519.PrivateKeySize {
		return nil, newError(KindBadKey, "sign_sk", err)
	}
	signPub, err := base64.RawURLEncoding.DecodeString(file.SignPK)
	if err != nil || len(signPub) != ed25519.PublicKeySize {
		return nil, newError(KindBadKey, "sign_pk", err)
	}
	encPrivRaw, err := base64.RawURLEncoding.DecodeString(file.EncSK)
	if err != nil {
		return nil, newError(KindBadKey, "enc_sk", err)
	}
	encPubRaw, err := base64.RawURLEncoding.DecodeString(file.EncPK)
	if err != nil {
		return nil, newError(KindBadKey, "enc_pk", err)
	}

	encPriv, err := ecdh.X25519().NewPrivateKey(encPrivRaw)
	if err != nil {
		return nil, newError(KindBadKey, "enc_sk curve point", err)
	}
	encPub, err := ecdh.X25519().NewPublicKey(encPubRaw)
	if err != nil {
		return nil, newError(KindBadKey, "enc_pk curve point", err)
	}

	return &Identity{
		SignPub:  ed25519.PublicKey(signPub),
		SignPriv: ed25519.PrivateKey(signPriv),
		EncPub:   encPub,
		EncPriv:  encPriv,
	}, nil
}
