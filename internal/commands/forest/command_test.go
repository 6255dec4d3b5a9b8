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

package forest

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/wic/internal/commands/shared"
	"github.com/tombee/wic/internal/testing/fixture"
	"github.com/tombee/wic/pkg/compiler"
)

func setup(t *testing.T) (*fixture.Workspace, string) {
	t.Helper()
	ws := fixture.New(t)
	ws.Write(t, ws.Workflows, "inner.wic", "steps:\n  - echo:\n")
	ws.Write(t, ws.Workflows, "middle.wic", "steps:\n  - inner:\n  - echo:\n")
	ws.Write(t, ws.Workflows, "choice.wic", `
wic:
  backends:
    fast:
      steps:
        - echo:
    slow:
      steps:
        - inner:
`)
	path := ws.Write(t, ws.Dir, "main.wic", "steps:\n  - middle:\n  - choice:\n  - echo:\n")
	return ws, path
}

func execute(t *testing.T, ws *fixture.Workspace, args ...string) (string, error) {
	t.Helper()
	shared.ResetFlagsForTest()
	shared.SetConfigPathForTest(ws.Config)
	t.Cleanup(shared.ResetFlagsForTest)

	cmd := newCommand([]compiler.Option{compiler.WithPortReader(&fixture.Ports{})})
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestForest_Text(t *testing.T) {
	ws, path := setup(t)

	out, err := execute(t, ws, path)
	require.NoError(t, err)

	want := `main [global] 3 steps
  middle [global] 2 steps
    inner [global] 1 steps
  choice [global] 2 backends
    fast [global] 1 steps
    slow [global] 1 steps
      inner [global] 1 steps
`
	assert.Equal(t, want, out)
}

func TestForest_JSON(t *testing.T) {
	ws, path := setup(t)

	out, err := execute(t, ws, path, "--format", "json")
	require.NoError(t, err)

	var got Node
	require.NoError(t, json.Unmarshal([]byte(out), &got))

	leaf := func(stem string, steps int) Node {
		return Node{Stem: stem, Namespace: "global", Kind: "static", Steps: steps}
	}
	slow := leaf("slow", 1)
	slow.Children = []Node{leaf("inner", 1)}
	middle := leaf("middle", 2)
	middle.Children = []Node{leaf("inner", 1)}
	want := Node{
		Stem: "main", Namespace: "global", Kind: "static", Steps: 3,
		Children: []Node{
			middle,
			{Stem: "choice", Namespace: "global", Kind: "static", Backends: 2, Children: []Node{leaf("fast", 1), slow}},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("forest mismatch (-want +got):\n%s", diff)
	}
}

func TestForest_UnknownFormat(t *testing.T) {
	ws, path := setup(t)
	_, err := execute(t, ws, path, "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}
