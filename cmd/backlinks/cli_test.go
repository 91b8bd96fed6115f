package main

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryotapoi/backlinks/internal/testutil"
)

const fixtureVault = "testdata/vault"

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"query", "stats", "diagnose", "export", "watch"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	for _, flag := range []string{"vault", "log-level", "debounce"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, "backlinks version dev\n", out)
}

func TestGolden(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"query_text", []string{"query", "--file", "B.md"}},
		{"query_json", []string{"query", "--file", "B.md", "--format", "json"}},
		{"query_canvas_text", []string{"query", "--file", "A.md", "--fast"}},
		{"query_ghost_text", []string{"query", "--file", "Nowhere.md"}},
		{"stats_text", []string{"stats"}},
		{"stats_json", []string{"stats", "--format", "json"}},
		{"stats_fields_text", []string{"stats", "--fields", "edges_total, dangling_total"}},
		{"diagnose_text", []string{"diagnose"}},
		{"diagnose_json", []string{"diagnose", "--format", "json"}},
	}
	g := goldie.New(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, append(tt.args, "--vault", fixtureVault)...)
			require.NoError(t, err)
			g.Assert(t, tt.name, []byte(out))
		})
	}
}

func TestQueryOriginalMatchesGraph(t *testing.T) {
	for _, file := range []string{"A.md", "B.md", "sub/C.md", "diagram.png"} {
		indexed, err := run(t, "query", "--file", file, "--vault", fixtureVault)
		require.NoError(t, err)
		scanned, err := run(t, "query", "--file", file, "--original", "--vault", fixtureVault)
		require.NoError(t, err)
		assert.Equal(t, indexed, scanned, file)
	}
}

func TestQuerySort(t *testing.T) {
	out, err := run(t, "query", "--file", "B.md", "--sort", "alphabeticalReverse", "--vault", fixtureVault)
	require.NoError(t, err)
	assert.Regexp(t, `(?s)- sub/C\.md.*- board\.canvas.*- A\.md`, out)
}

func TestExportCommand(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "vault")
	require.NoError(t, testutil.CopyDir(fixtureVault, dst))
	out := filepath.Join(t.TempDir(), "graph.sqlite")

	stdout, err := run(t, "export", "--out", out, "--vault", dst)
	require.NoError(t, err)
	assert.Contains(t, stdout, "wrote "+out)
	assert.Contains(t, stdout, "5 nodes, 9 edges")

	db, err := sql.Open("sqlite", out)
	require.NoError(t, err)
	defer db.Close()
	var dangling int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM nodes WHERE exists_flag = 0`).Scan(&dangling))
	assert.Zero(t, dangling)
}

func TestCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"query without file", []string{"query"}, `required flag(s) "file" not set`},
		{"query bad format", []string{"query", "--file", "A.md", "--format", "yaml"}, "invalid format"},
		{"query fast and original", []string{"query", "--file", "A.md", "--fast", "--original"}, "none of the others can be"},
		{"query bad sort", []string{"query", "--file", "A.md", "--sort", "bySize"}, "unknown sort order: bySize"},
		{"stats bad field", []string{"stats", "--fields", "tags_total"}, "unknown stats field: tags_total"},
		{"diagnose bad field", []string{"diagnose", "--fields", "phantoms"}, "unknown diagnose field: phantoms"},
		{"missing vault", []string{"stats", "--vault", "testdata/missing"}, "no such file or directory"},
		{"bad log level", []string{"stats", "--log-level", "loud"}, "unknown log level: loud"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := tt.args
			if tt.name != "missing vault" {
				args = append(args, "--vault", fixtureVault)
			}
			_, err := run(t, args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
