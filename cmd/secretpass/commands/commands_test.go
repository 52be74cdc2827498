package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offsoc/libsecret/internal/config"
	apperrors "github.com/offsoc/libsecret/internal/errors"
	"github.com/offsoc/libsecret/pkg/schema"
	"github.com/offsoc/libsecret/pkg/secret"
	"github.com/offsoc/libsecret/tests/fakes"
	"github.com/offsoc/libsecret/tests/testutil"
)

func mockConfig(t *testing.T) *testutil.TestConfigBuilder {
	t.Helper()

	return testutil.NewTestConfig(t).
		WithAlgorithm("plain").
		WithTimeoutMs(2000).
		WithMockSchema()
}

func fakeConnector(svc *fakes.FakeSecretService) Connector {
	return func(_ context.Context, cfg *config.Config) (*secret.Client, error) {
		return secret.New(svc, ClientOptions(cfg)...), nil
	}
}

func execute(t *testing.T, cmd *cobra.Command, stdin string, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestLookupCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr string
		noCalls bool
	}{
		{
			name: "raw password",
			args: []string{"--schema", "org.mock.Schema", "number=1", "string=one"},
			want: "111",
		},
		{
			name:    "not found",
			args:    []string{"--schema", "org.mock.Schema", "number=5", "even=true"},
			wantErr: "No matching password found",
		},
		{
			name:    "type mismatch",
			args:    []string{"--schema", "org.mock.Schema", "number=five"},
			wantErr: `invalid integer value for attribute "number"`,
			noCalls: true,
		},
		{
			name:    "malformed argument",
			args:    []string{"--schema", "org.mock.Schema", "number"},
			wantErr: `invalid attribute "number"`,
			noCalls: true,
		},
		{
			name:    "unknown schema",
			args:    []string{"--schema", "org.mock.Missing", "number=1"},
			wantErr: "unknown schema",
			noCalls: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := testutil.StartMockService(t)
			cmd := NewLookupCommand(mockConfig(t).Config(), fakeConnector(svc))
			out, _, err := execute(t, cmd, "", tt.args...)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, out)
			}
			if tt.noCalls {
				assert.Zero(t, svc.TotalCalls())
			}
		})
	}
}

func TestLookupCommand_JSON(t *testing.T) {
	t.Parallel()

	svc := testutil.StartMockService(t)
	cmd := NewLookupCommand(mockConfig(t).Config(), fakeConnector(svc))
	out, _, err := execute(t, cmd, "", "--schema", "org.mock.Schema", "--json", "number=2")
	require.NoError(t, err)

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "222", result["password"])
	assert.Equal(t, "org.mock.Schema", result["schema"])
	assert.Equal(t, "text/plain", result["content_type"])
}

func TestStoreCommand(t *testing.T) {
	t.Parallel()

	svc := testutil.StartMockService(t)
	cmd := NewStoreCommand(mockConfig(t).Config(), fakeConnector(svc))
	_, stderr, err := execute(t, cmd, "999\n",
		"--schema", "org.mock.Schema", "--label", "The number nine",
		"number=9", "string=nine", "even=false")
	require.NoError(t, err)
	assert.Contains(t, stderr, `Stored "The number nine"`)

	items := svc.Items()
	last := items[len(items)-1]
	assert.Equal(t, "The number nine", last.Label)
	assert.Equal(t, "999", string(last.Value))
	assert.Equal(t, fakes.CollectionPrefix+"login", string(last.Collection))
	assert.Equal(t, "9", last.Attributes["number"])
}

func TestStoreCommand_ConfiguredCollection(t *testing.T) {
	t.Parallel()

	svc := testutil.StartMockService(t)
	cmd := NewStoreCommand(mockConfig(t).WithCollection("session").Config(), fakeConnector(svc))
	_, _, err := execute(t, cmd, "temp", "--schema", "generic", "--label", "Temp", "id=42")
	require.NoError(t, err)

	items := svc.Items()
	last := items[len(items)-1]
	assert.Equal(t, fakes.CollectionPrefix+"session", string(last.Collection))
	assert.Equal(t, "temp", string(last.Value))
}

func TestStoreCommand_RedactsPassword(t *testing.T) {
	t.Parallel()

	tl := testutil.NewTestLoggerWithDebug(t, true)
	cfg := mockConfig(t).Config()
	cfg.Logger = tl.Logger()

	svc := testutil.StartMockService(t)
	cmd := NewStoreCommand(cfg, fakeConnector(svc))
	_, _, err := execute(t, cmd, "pw-sekrit-77\n", "--schema", "generic", "--label", "Redacted", "id=77")
	require.NoError(t, err)

	assert.NotEmpty(t, tl.Lines())
	tl.AssertRedacted(t, "pw-sekrit-77")
}

func TestStoreCommand_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		stdin   string
		args    []string
		wantErr string
	}{
		{
			name:    "missing label",
			stdin:   "pw\n",
			args:    []string{"--schema", "generic", "id=1"},
			wantErr: "Label is required",
		},
		{
			name:    "empty stdin",
			args:    []string{"--schema", "generic", "--label", "x", "id=1"},
			wantErr: "No password given on stdin",
		},
		{
			name:    "missing collection",
			stdin:   "pw\n",
			args:    []string{"--schema", "generic", "--label", "x", "--collection", "nonexistent", "id=1"},
			wantErr: "secret service error during store",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := testutil.StartMockService(t)
			cmd := NewStoreCommand(mockConfig(t).Config(), fakeConnector(svc))
			_, _, err := execute(t, cmd, tt.stdin, tt.args...)
			testutil.AssertErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestStoreCommand_ErrorCarriesSuggestion(t *testing.T) {
	t.Parallel()

	svc := testutil.StartMockService(t)
	cmd := NewStoreCommand(mockConfig(t).Config(), fakeConnector(svc))
	_, _, err := execute(t, cmd, "pw\n", "--schema", "generic", "--label", "x", "--collection", "nonexistent", "id=1")
	require.Error(t, err)

	var ue apperrors.UserError
	require.ErrorAs(t, err, &ue)
	assert.Contains(t, ue.Suggestion, "aliases")
	assert.ErrorIs(t, err, secret.ErrNoSuchCollection)
}

func TestClearCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "two", args: []string{"even=false"}, want: "Removed 2 items\n"},
		{name: "one", args: []string{"number=3"}, want: "Removed 1 item\n"},
		{name: "none", args: []string{"number=99"}, want: "No matching items\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := testutil.StartMockService(t)
			cmd := NewClearCommand(mockConfig(t).Config(), fakeConnector(svc))
			out, _, err := execute(t, cmd, "", append([]string{"--schema", "org.mock.Schema"}, tt.args...)...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestSearchCommand_Text(t *testing.T) {
	t.Parallel()

	svc := testutil.StartMockService(t)
	cmd := NewSearchCommand(mockConfig(t).Config(), fakeConnector(svc))
	out, _, err := execute(t, cmd, "", "--schema", "org.mock.Schema", "--all", "even=true")
	require.NoError(t, err)

	assert.Contains(t, out, "Number 2")
	assert.Contains(t, out, "Number 4 (locked)")
	assert.Contains(t, out, "schema   = org.mock.Schema")
	assert.NotContains(t, out, "222")
}

func TestSearchCommand_JSONWithSecrets(t *testing.T) {
	t.Parallel()

	svc := testutil.StartMockService(t)
	cmd := NewSearchCommand(mockConfig(t).Config(), fakeConnector(svc))
	out, _, err := execute(t, cmd, "", "--schema", "org.mock.Schema", "--all", "--unlock", "--secrets", "--json", "even=true")
	require.NoError(t, err)

	var results []searchResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)
	for i, want := range []string{"222", "444"} {
		require.NotNil(t, results[i].Password)
		assert.Equal(t, want, *results[i].Password)
		assert.False(t, results[i].Locked)
	}
}

func TestSearchCommand_NoMatches(t *testing.T) {
	t.Parallel()

	svc := testutil.StartMockService(t)
	cmd := NewSearchCommand(mockConfig(t).Config(), fakeConnector(svc))
	out, _, err := execute(t, cmd, "", "--schema", "org.mock.Schema", "number=99")
	require.NoError(t, err)
	assert.Equal(t, "No matching items\n", out)
}

func TestDoctorCommand(t *testing.T) {
	t.Parallel()

	svc := testutil.StartMockService(t)
	cmd := NewDoctorCommand(mockConfig(t).Config(), fakeConnector(svc))
	out, _, err := execute(t, cmd, "")
	require.NoError(t, err)

	testutil.AssertLinesContain(t, out, []string{"configuration", "org.mock.Schema", "plain", "All checks passed"})
	assert.Equal(t, 1, svc.Calls("OpenSession"))
}

func TestDoctorCommand_VerboseMetrics(t *testing.T) {
	t.Parallel()

	svc := testutil.StartMockService(t)
	cmd := NewDoctorCommand(mockConfig(t).WithMetrics(true).Config(), fakeConnector(svc))
	out, _, err := execute(t, cmd, "", "--verbose")
	require.NoError(t, err)

	testutil.AssertLinesContain(t, out, []string{"METRIC", "secretpass_calls_started_total", "OpenSession"})
}

func TestDoctorCommand_Unreachable(t *testing.T) {
	t.Parallel()

	connect := func(context.Context, *config.Config) (*secret.Client, error) {
		return nil, errors.New("dbus: couldn't determine address of session bus")
	}
	cmd := NewDoctorCommand(mockConfig(t).Config(), connect)
	out, _, err := execute(t, cmd, "")
	require.Error(t, err)

	assert.Contains(t, out, "✗ error")
	assert.Contains(t, out, "skipped")
	assert.Contains(t, out, "dbus-run-session")
}

func TestCompletionCommand(t *testing.T) {
	t.Parallel()

	root := &cobra.Command{Use: "secretpass"}
	root.AddCommand(NewCompletionCommand(&config.Config{}))
	out, _, err := execute(t, root, "", "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "secretpass")
}

func TestParseAttributes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		want    schema.Attributes
		wantErr string
	}{
		{name: "empty", args: nil, want: schema.Attributes{}},
		{name: "pairs", args: []string{"user=alice", "port=993"}, want: schema.Attributes{"user": "alice", "port": "993"}},
		{name: "value with equals", args: []string{"query=a=b"}, want: schema.Attributes{"query": "a=b"}},
		{name: "empty value", args: []string{"note="}, want: schema.Attributes{"note": ""}},
		{name: "no equals", args: []string{"user"}, wantErr: "invalid attribute"},
		{name: "no name", args: []string{"=x"}, wantErr: "invalid attribute"},
		{name: "duplicate", args: []string{"a=1", "a=2"}, wantErr: "given twice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseAttributes(tt.args)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
