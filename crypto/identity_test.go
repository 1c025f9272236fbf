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
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fingerprintFormat = regexp.MustCompile(`^[A-Za-z0-9\-_]{16}$`)

func TestGenerateIdentity(t *testing.T) {
	id, err := GenerateIdentity()
	require.NoError(t, err)
	assert.NotNil(t, id.SignPub)
	assert.NotNil(t, id.EncPub)

	fp := id.Fingerprint()
	assert.Regexp(t, fingerprintFormat, fp)
}

func TestGenerateIdentityIsUnique(t *testing.T) {
	a, err := GenerateIdentity()
	require.NoError(t, err)
	b, err := GenerateIdentity()
	require.NoError(t, err)

	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestLoadOrCreateIdentityPersists(t *testing.T) {
	dir := t.TempDir()

	first, err := LoadOrCreateIdentity(dir)
	require.NoError(t, err)

	second, err := LoadOrCreateIdentity(dir)
	require.NoError(t, err)

	assert.Equal(t, first.Fingerprint(), second.Fingerprint())
	assert.Equal(t, first.SignPriv, second.SignPriv)
	assert.Equal(t, first.EncPriv.Bytes(), second.EncPriv.Bytes())
}

func TestLoadOrCreateIdentityFileMode(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadOrCreateIdentity(dir)
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dir, "keys", "identity.json"))
	require.NoError(t, err)
	assert.Equal(t, "-rw-------", info.Mode().String())
}

func TestDecodeIdentityRejectsGarbage(t *testing.T) {
	_, err := decodeIdentity([]byte(`{"sign_sk":"not-base64!!","sign_pk":"","enc_sk":"","enc_pk":""}`))
	require.Error(t, err)

	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, KindBadKey, cerr.Kind)
}

func TestFingerprintDeterministic(t *testing.T) {
	id, err := GenerateIdentity()
	require.NoError(t, err)

	assert.Equal(t, Fingerprint(id.SignPub), id.Fingerprint())
	assert.Equal(t, Fingerprint(id.SignPub), Fingerprint(id.SignPub))
}
