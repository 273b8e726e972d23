// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package export

import (
	"bytes"
	"crypto/tls"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTLSConfig(t *testing.T) {
	assert.NoError(t, ValidateTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12}))

	err := ValidateTLSConfig(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil")

	err = ValidateTLSConfig(&tls.Config{MinVersion: tls.VersionTLS10})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1.2")
}

func TestBuildTLSConfig(t *testing.T) {
	cfg, err := BuildTLSConfig(true, "")
	require.NoError(t, err)
	assert.Nil(t, cfg, "insecure exporters need no TLS config")

	cfg, err = BuildTLSConfig(false, "")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
	assert.Nil(t, cfg.RootCAs)
}

func TestBuildTLSConfig_BadCA(t *testing.T) {
	_, err := BuildTLSConfig(false, filepath.Join(t.TempDir(), "missing.pem"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "garbage.pem")
	require.NoError(t, os.WriteFile(path, []byte("not a certificate"), 0o600))
	_, err = BuildTLSConfig(false, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

func TestNewConsoleExporter(t *testing.T) {
	var buf bytes.Buffer
	exp, err := NewConsoleExporter(&buf, false)
	require.NoError(t, err)
	assert.NotNil(t, exp)
}
