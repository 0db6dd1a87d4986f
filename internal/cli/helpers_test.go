package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const userScenario = `name: user_roundtrip
description: A subscribed entity is written once
steps:
  - op: subscribe
    id: user
    target: "User:1"
  - op: mutate
    target: { type: User, id: "1", name: Ada }
assertions:
  - type: resolve
    key: "User:1"
    expect: { type: User, id: "1", name: Ada }
  - type: notified
    subscription: user
    count: 1
`

const failingScenario = `name: wrong_name
description: The resolve assertion cannot hold
steps:
  - op: mutate
    target: { type: User, id: "1", name: Ada }
assertions:
  - type: resolve
    key: "User:1"
    expect: { type: User, id: "1", name: Grace }
`

const librarySchema = `type_field: "kind"
types: {
	Book: {
		key: "isbn"
		fields: {
			isbn:  string
			title: string
		}
	}
}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
