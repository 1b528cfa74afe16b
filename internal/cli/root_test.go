package cli

import (
	"bytes"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	adapterHTTP "github.com/comitanigiacomo/kanso-organizer/internal/adapters/handler/http"
	"github.com/comitanigiacomo/kanso-organizer/internal/adapters/repository"
	"github.com/comitanigiacomo/kanso-organizer/internal/core/domain"
	"github.com/comitanigiacomo/kanso-organizer/internal/core/services"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeCommand(cmd *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return buf.String(), err
}

// isolate points HOME, the working directory and the sync settings at a
// fresh temp dir and returns a local store path inside it.
func isolate(t *testing.T) string {
	t.Helper()

	tmp := t.TempDir()
	t.Setenv("HOME", tmp)
	t.Setenv("CONFIG_PATH", filepath.Join(tmp, "missing.yaml"))
	t.Setenv("REMOTE_URL", "")
	t.Setenv("REMOTE_TOKEN", "")
	t.Setenv("LOCAL_DRIVER", "")
	t.Setenv("LOCAL_PATH", "")
	t.Setenv("LOG_LEVEL", "error")
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(tmp); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	return filepath.Join(tmp, "organizer.db")
}

// run executes one CLI invocation against the local store at path.
func run(t *testing.T, path string, args ...string) (string, error) {
	t.Helper()
	return executeCommand(NewRootCmd("test"), append(args, "--local-path", path)...)
}

func addHabit(t *testing.T, path string, args ...string) domain.Habit {
	t.Helper()

	out, err := run(t, path, append([]string{"habit", "add", "--json"}, args...)...)
	require.NoError(t, err, out)

	var habit domain.Habit
	require.NoError(t, json.Unmarshal([]byte(out), &habit))
	require.NotEmpty(t, habit.ID)
	return habit
}

func TestRootCommandVersion(t *testing.T) {
	output, err := executeCommand(NewRootCmd("1.2.3"), "--version")
	require.NoError(t, err)
	assert.Equal(t, "organizer version 1.2.3\n", output)
}

func TestHabitCommands(t *testing.T) {
	path := isolate(t)

	habit := addHabit(t, path, "Read", "a", "book", "--weight", "3")
	assert.Equal(t, "Read a book", habit.Name)
	assert.Equal(t, 3, habit.Weight)

	t.Run("Success: done prints the new streak", func(t *testing.T) {
		out, err := run(t, path, "habit", "done", habit.ID)
		require.NoError(t, err)
		assert.Contains(t, out, "streak 1")
	})

	t.Run("Success: list shows the persisted streak", func(t *testing.T) {
		out, err := run(t, path, "habit", "list")
		require.NoError(t, err)
		assert.Contains(t, out, habit.ID)
		assert.Contains(t, out, "Read a book")

		out, err = run(t, path, "habit", "list", "--json")
		require.NoError(t, err)
		var habits []domain.Habit
		require.NoError(t, json.Unmarshal([]byte(out), &habits))
		require.Len(t, habits, 1)
		assert.Equal(t, 1, habits[0].Streak)
		require.NotNil(t, habits[0].LastCompleted)
		assert.Equal(t, domain.DateKey(time.Now()), *habits[0].LastCompleted)
	})

	t.Run("Fail: bad date", func(t *testing.T) {
		_, err := run(t, path, "habit", "done", habit.ID, "--date", "10/03/2024")
		assert.Error(t, err)
	})

	t.Run("Fail: unknown habit", func(t *testing.T) {
		_, err := run(t, path, "habit", "done", "missing")
		assert.ErrorIs(t, err, domain.ErrHabitNotFound)
	})

	t.Run("Success: rm deletes the habit", func(t *testing.T) {
		_, err := run(t, path, "habit", "rm", habit.ID)
		require.NoError(t, err)

		out, err := run(t, path, "habit", "list")
		require.NoError(t, err)
		assert.Contains(t, out, "No habits yet")
	})
}

func TestJournalCommands(t *testing.T) {
	path := isolate(t)

	out, err := run(t, path, "journal", "add", "quiet", "day", "--title", "Sunday", "--mood", "4", "--tags", "rest,home", "--date", "2024-03-10")
	require.NoError(t, err, out)

	out, err = run(t, path, "journal", "list", "--json")
	require.NoError(t, err)
	var entries []domain.JournalEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "Sunday", entries[0].Title)
	assert.Equal(t, []string{"rest", "home"}, entries[0].Tags)
}

func TestExecAndAudit(t *testing.T) {
	path := isolate(t)

	t.Run("Success: list names every command", func(t *testing.T) {
		out, err := executeCommand(NewRootCmd("test"), "exec", "--list")
		require.NoError(t, err)
		assert.Contains(t, out, "habit.create")
		assert.Contains(t, out, "summary.range")
	})

	t.Run("Success: create habit", func(t *testing.T) {
		out, err := run(t, path, "exec", `{"entity":"habit","action":"create","params":{"name":"Stretch"}}`)
		require.NoError(t, err, out)

		var res map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &res))
		assert.Equal(t, true, res["ok"])
	})

	t.Run("Fail: unknown command is reported and returned", func(t *testing.T) {
		out, err := run(t, path, "exec", `{"entity":"habit","action":"fly"}`)
		require.Error(t, err)
		assert.Contains(t, out, `"ok": false`)
	})

	t.Run("Fail: malformed document", func(t *testing.T) {
		_, err := run(t, path, "exec", `{not json`)
		assert.Error(t, err)
	})

	t.Run("Success: audit lists both executions newest first", func(t *testing.T) {
		out, err := run(t, path, "audit", "--json")
		require.NoError(t, err)

		var records []domain.AuditRecord
		require.NoError(t, json.Unmarshal([]byte(out), &records))
		require.Len(t, records, 2)
		assert.Equal(t, "fly", records[0].Action)
		assert.False(t, records[0].OK)
		assert.Equal(t, "create", records[1].Action)
		assert.True(t, records[1].OK)
	})
}

func TestExportImportReset(t *testing.T) {
	path := isolate(t)
	addHabit(t, path, "Walk")

	exported := filepath.Join(t.TempDir(), "export.json")
	_, err := run(t, path, "export", "-o", exported)
	require.NoError(t, err)

	t.Run("Fail: reset needs confirmation", func(t *testing.T) {
		_, err := run(t, path, "reset")
		assert.Error(t, err)
	})

	t.Run("Success: reset empties the store", func(t *testing.T) {
		_, err := run(t, path, "reset", "--yes")
		require.NoError(t, err)

		out, err := run(t, path, "habit", "list")
		require.NoError(t, err)
		assert.Contains(t, out, "No habits yet")
	})

	t.Run("Fail: malformed import keeps the data", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`[1,2`), 0o600))

		_, err := run(t, path, "import", bad)
		assert.ErrorIs(t, err, domain.ErrInvalidImport)
	})

	t.Run("Success: import restores the export", func(t *testing.T) {
		out, err := run(t, path, "import", exported)
		require.NoError(t, err)
		assert.Contains(t, out, "Imported 1 habits")

		out, err = run(t, path, "habit", "list")
		require.NoError(t, err)
		assert.Contains(t, out, "Walk")
	})
}

func TestStatusLocalOnly(t *testing.T) {
	path := isolate(t)
	habit := addHabit(t, path, "Meditate")
	_, err := run(t, path, "habit", "done", habit.ID)
	require.NoError(t, err)

	out, err := run(t, path, "status", "--json")
	require.NoError(t, err)

	var report statusReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Empty(t, report.Remote)
	assert.Equal(t, 1, report.Habits)
	assert.Zero(t, report.Pending)
	require.NotNil(t, report.Today)
	assert.Equal(t, 1, report.Today.CompletedHabits)
	assert.Equal(t, 100, report.Today.Percentage)

	t.Run("Fail: sync needs a server", func(t *testing.T) {
		_, err := run(t, path, "sync")
		assert.ErrorIs(t, err, errNoRemote)
	})
}

func TestTokenCommand(t *testing.T) {
	isolate(t)

	t.Run("Fail: missing secret", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "")
		_, err := executeCommand(NewRootCmd("test"), "token", "alice")
		assert.Error(t, err)
	})

	t.Run("Success: token validates for the owner", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "cli-secret")
		t.Setenv("JWT_ISSUER", "kanso-test")

		out, err := executeCommand(NewRootCmd("test"), "token", "alice")
		require.NoError(t, err)

		owner, err := services.NewTokenService("cli-secret", "kanso-test", time.Hour).ValidateToken(strings.TrimSpace(out))
		require.NoError(t, err)
		assert.Equal(t, "alice", owner)
	})
}

func TestSyncBetweenDevices(t *testing.T) {
	isolate(t)
	gin.SetMode(gin.TestMode)

	svc := services.NewSnapshotService(
		repository.NewInMemorySnapshotRepository(),
		repository.NewInMemoryNotifier(),
		zerolog.Nop(),
	)
	tokens := services.NewTokenService("sync-secret", "kanso-test", time.Hour)
	ts := httptest.NewServer(adapterHTTP.NewRouter(adapterHTTP.RouterDependencies{
		SnapshotHandler: adapterHTTP.NewSnapshotHandler(svc, zerolog.Nop()),
		AccountHandler: adapterHTTP.NewAccountHandler(
			services.NewAccountService(repository.NewInMemoryAccountRepository(), tokens, zerolog.Nop()),
			zerolog.Nop(),
		),
		Tokens:    tokens,
		StartTime: time.Now(),
		Logger:    zerolog.Nop(),
	}))
	t.Cleanup(ts.Close)
	t.Setenv("REMOTE_URL", ts.URL)

	out, err := executeCommand(NewRootCmd("test"), "account", "register", "me@kanso.app", "--password", "Password123!")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Registered me@kanso.app")

	out, err = executeCommand(NewRootCmd("test"), "account", "login", "me@kanso.app", "--password", "Password123!")
	require.NoError(t, err, out)
	token := strings.TrimSpace(out)
	_, err = tokens.ValidateToken(token)
	require.NoError(t, err)
	t.Setenv("REMOTE_TOKEN", token)

	laptop := filepath.Join(t.TempDir(), "laptop.db")
	phone := filepath.Join(t.TempDir(), "phone.db")

	habit := addHabit(t, laptop, "Journal")

	t.Run("Success: laptop pushed its change", func(t *testing.T) {
		out, err := run(t, laptop, "status", "--json")
		require.NoError(t, err)

		var report statusReport
		require.NoError(t, json.Unmarshal([]byte(out), &report))
		assert.Equal(t, ts.URL, report.Remote)
		assert.Zero(t, report.Pending)
	})

	t.Run("Success: phone pulls the newer copy", func(t *testing.T) {
		out, err := run(t, phone, "sync", "--json")
		require.NoError(t, err, out)

		var report syncReport
		require.NoError(t, json.Unmarshal([]byte(out), &report))
		assert.True(t, report.Pulled)
		assert.True(t, report.Delivered)

		out, err = run(t, phone, "habit", "list", "--json")
		require.NoError(t, err)
		var habits []domain.Habit
		require.NoError(t, json.Unmarshal([]byte(out), &habits))
		require.Len(t, habits, 1)
		assert.Equal(t, habit.ID, habits[0].ID)
	})

	t.Run("Success: offline flag keeps the change local", func(t *testing.T) {
		out, err := run(t, phone, "status", "--json", "--offline")
		require.NoError(t, err)

		var report statusReport
		require.NoError(t, json.Unmarshal([]byte(out), &report))
		assert.Empty(t, report.Remote)
	})
}
