package process_test

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/aretw0/hsmgrid/internal/testutils"
	"github.com/aretw0/hsmgrid/pkg/adapters/process"
	"github.com/aretw0/hsmgrid/pkg/domain"
	"github.com/aretw0/hsmgrid/pkg/hsm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
}

func TestRunner_Execute(t *testing.T) {
	skipOnWindows(t)

	runner := process.NewRunner()
	runner.Register("greet", "sh", "-c", "echo hello $WHO")

	t.Run("Executes Registered Command", func(t *testing.T) {
		out, err := runner.Execute(context.Background(), "greet", map[string]string{"WHO": "grid"})
		require.NoError(t, err)
		assert.Equal(t, "hello grid", out)
	})

	t.Run("Fails For Unregistered Command", func(t *testing.T) {
		_, err := runner.Execute(context.Background(), "hacker_script", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not registered")
	})

	t.Run("Reports Stderr On Failure", func(t *testing.T) {
		runner.Register("fail", "sh", "-c", "echo broken >&2; exit 3")
		_, err := runner.Execute(context.Background(), "fail", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broken")
	})
}

func TestRunner_ActionFailureBecomesDispatchException(t *testing.T) {
	skipOnWindows(t)

	dir := t.TempDir()
	runner := process.NewRunner(process.WithBaseDir(dir))
	runner.Register("record", "sh", "-c", `printf '%s %s %s' "$HSMGRID_MACHINE" "$HSMGRID_EVENT" "$HSMGRID_PAYLOAD" > out.txt`)
	runner.Register("fail", "sh", "-c", "exit 1")

	def := &domain.Definition{
		Initial: "A",
		States:  []domain.StateDef{{Name: "A"}, {Name: "B"}},
		Transitions: []domain.TransitionDef{
			{From: "A", To: "B", Event: "go", Actions: []domain.ActionDef{
				{Kind: domain.ActionCall, Name: "record", Payload: map[string]any{"n": 1}},
			}},
			{From: "B", To: "A", Event: "back", Actions: []domain.ActionDef{{Kind: domain.ActionCall, Name: "fail"}}},
		},
	}
	m := hsm.New("Pump", def, runner.Options()...)
	require.NoError(t, m.PreInit())

	var failure error
	m.OnDispatchException(func(ev domain.DispatchException) { failure = ev.Err })

	m.Dispatch(domain.Event{Name: "go"})
	assert.Equal(t, "B", m.State())
	assert.FileExists(t, filepath.Join(dir, "out.txt"))

	m.Dispatch(domain.Event{Name: "back"})
	assert.Equal(t, "B", m.State())
	require.Error(t, failure)
	assert.Contains(t, failure.Error(), "process action fail failed")
}

func TestLoadActions(t *testing.T) {
	dir := t.TempDir()
	path := testutils.WriteDefinition(t, dir, "actions.yaml", `
actions:
  - name: notify
    command: ./notify.sh
    args: [--quiet]
    env: {LEVEL: high}
  - name: incomplete
`)

	actions, err := process.LoadActions(path)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, []string{"--quiet"}, actions["notify"].Args)
	assert.Equal(t, "high", actions["notify"].Environment["LEVEL"])

	runner := process.NewRunner(process.WithRegistry(actions))
	assert.Equal(t, []string{"notify"}, runner.Names())

	missing, err := process.LoadActions(filepath.Join(dir, "absent.yaml"))
	require.NoError(t, err)
	assert.Empty(t, missing)

	bad := testutils.WriteDefinition(t, dir, "bad.yaml", "actions: {")
	_, err = process.LoadActions(bad)
	assert.Error(t, err)
}
