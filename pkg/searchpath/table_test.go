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

package searchpath

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wicerrors "github.com/tombee/wic/pkg/errors"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("steps: []\n"), 0o644))
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	first := filepath.Join(root, "first")
	second := filepath.Join(root, "second")
	plugins := filepath.Join(root, "plugins")

	touch(t, filepath.Join(first, "a.wic"))
	touch(t, filepath.Join(first, "nested", "b.wic"))
	touch(t, filepath.Join(first, "ignored.cwl"))
	touch(t, filepath.Join(second, "a.wic"))
	touch(t, filepath.Join(second, "c.wic"))
	touch(t, filepath.Join(plugins, "p.wic"))

	table, err := Discover(map[string][]string{
		"global":  {first, second},
		"plugins": {plugins},
		"empty":   {filepath.Join(root, "missing")},
	}, nil)
	require.NoError(t, err)

	global, ok := table.Namespace("global")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(first, "a.wic"), global["a"], "first directory wins")
	assert.Equal(t, filepath.Join(first, "nested", "b.wic"), global["b"])
	assert.Equal(t, filepath.Join(second, "c.wic"), global["c"])
	assert.NotContains(t, global, "ignored")

	_, ok = table.Namespace("empty")
	assert.False(t, ok, "a namespace without files is unknown")

	assert.Equal(t, []string{"a", "b", "c", "p"}, table.Stems())
}

func TestDiscover_EmptyNamespaceName(t *testing.T) {
	_, err := Discover(map[string][]string{"": {t.TempDir()}}, nil)
	var cfgErr *wicerrors.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "search_paths_wic", cfgErr.Key)
}

func TestTable_Lookup(t *testing.T) {
	table := Table{
		"global": {"a": "/x/a.wic"},
		"empty":  {},
	}

	path, err := table.Lookup("global", "a")
	require.NoError(t, err)
	assert.Equal(t, "/x/a.wic", path)

	_, err = table.Lookup("global", "b")
	assert.True(t, errors.Is(err, ErrUnknownStem))

	_, err = table.Lookup("nowhere", "a")
	assert.True(t, errors.Is(err, ErrUnknownNamespace))

	_, err = table.Lookup("empty", "a")
	assert.True(t, errors.Is(err, ErrUnknownNamespace))
}
