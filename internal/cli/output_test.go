package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/attendance"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/model"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/reconcile"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Success(map[string]string{"result": "success"})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error("NOT_CLOCKED_IN", "no open session", map[string]string{"user": "alice"})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_CLOCKED_IN", resp.Error.Code)
	assert.Equal(t, "no open session", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextSuccessUsesStringer(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Success(viewTotals(model.Totals{})))
	assert.Equal(t, "work 00:00  break 00:00  overtime 00:00  client visit 00:00\n", buf.String())
}

func TestOutputFormatter_TextError(t *testing.T) {
	tests := []struct {
		name        string
		verbose     bool
		wantDetails bool
	}{
		{"quiet", false, false},
		{"verbose", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}

			require.NoError(t, formatter.Error("E_COMMAND", "database not found", "absensi.db"))
			assert.Contains(t, buf.String(), "Error [E_COMMAND]: database not found")
			if tt.wantDetails {
				assert.Contains(t, buf.String(), "Details: absensi.db")
			} else {
				assert.NotContains(t, buf.String(), "Details:")
			}
		})
	}
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		errBuf  bool
	}{
		{"disabled", false, false},
		{"to writer", true, false},
		{"to err writer", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			errOut := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: out, Verbose: tt.verbose}
			if tt.errBuf {
				formatter.ErrWriter = errOut
			}

			formatter.VerboseLog("saved %s", "2025-01-06")

			switch {
			case !tt.verbose:
				assert.Empty(t, out.String())
			case tt.errBuf:
				assert.Empty(t, out.String())
				assert.Equal(t, "saved 2025-01-06\n", errOut.String())
			default:
				assert.Equal(t, "saved 2025-01-06\n", out.String())
			}
		})
	}
}

func TestOutputFormatter_Fail(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		wantExit int
	}{
		{
			name:     "attendance error",
			err:      attendance.NewInvalidTransition(attendance.ActionEndBreak, model.StatusWorking),
			wantCode: "INVALID_TRANSITION",
			wantExit: ExitFailure,
		},
		{
			name:     "wrapped attendance error",
			err:      fmt.Errorf("record: %w", attendance.NewBreakNotAllowed(model.StatusWorking)),
			wantCode: "BREAK_NOT_ALLOWED",
			wantExit: ExitFailure,
		},
		{
			name:     "sync error",
			err:      reconcile.NewRemoteWriteFailed("s1", 3, 2, errors.New("disk full")),
			wantCode: "REMOTE_WRITE_FAILED",
			wantExit: ExitFailure,
		},
		{
			name:     "other error",
			err:      errors.New("no such file"),
			wantCode: CodeCommandError,
			wantExit: ExitCommandError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "json", Writer: buf}

			err := formatter.Fail("failed", tt.err)
			require.Error(t, err)
			assert.Equal(t, tt.wantExit, GetExitCode(err))
			assert.ErrorIs(t, err, tt.err)

			var resp CLIResponse
			require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flag")))
	assert.Equal(t, ExitFailure, GetExitCode(fmt.Errorf("wrapped: %w", NewExitError(ExitFailure, "failed"))))

	err := WrapExitError(ExitCommandError, "failed to open database", errors.New("permission denied"))
	assert.Equal(t, "failed to open database: permission denied", err.Error())
}
