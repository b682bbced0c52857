package generator

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm-gateway-go/pkg/limiter"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not available on windows")
	}
	path := filepath.Join(t.TempDir(), "docgen.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestExecRunner_CapturesOutput(t *testing.T) {
	path := writeScript(t, `printf 'YWJj\r\n'; echo "args: $1 $2 $3" >&2`)
	r := NewExecRunner(Options{Path: path, Timeout: 10 * time.Second, Pool: limiter.New("generators", 1)})

	res, err := r.Run(context.Background(), "db.local/3050:/data/crm.fdb", "invoice", "15")
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "YWJj\r\n", res.Stdout)
	assert.Equal(t, "args: db.local/3050:/data/crm.fdb invoice 15\n", res.Stderr)
}

func TestExecRunner_NonZeroExitIsNotAnError(t *testing.T) {
	path := writeScript(t, `echo "disk full" >&2; exit 1`)
	r := NewExecRunner(Options{Path: path})

	res, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)
	assert.Equal(t, "disk full\n", res.Stderr)
}

func TestExecRunner_MissingExecutable(t *testing.T) {
	r := NewExecRunner(Options{Path: filepath.Join(t.TempDir(), "nope")})

	_, err := r.Run(context.Background())
	assert.True(t, errors.Is(err, ErrExecutableNotFound))

	// 目录也不是可执行文件
	r = NewExecRunner(Options{Path: t.TempDir()})
	assert.True(t, errors.Is(r.Check(), ErrExecutableNotFound))
}

func TestExecRunner_StartFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not enforced on windows")
	}
	path := filepath.Join(t.TempDir(), "docgen")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\necho hi\n"), 0o644))

	_, err := NewExecRunner(Options{Path: path}).Run(context.Background())
	var startErr *StartError
	require.True(t, errors.As(err, &startErr), "got %v", err)
	assert.Equal(t, path, startErr.Path)
}

func TestExecRunner_Timeout(t *testing.T) {
	path := writeScript(t, `exec sleep 5`)
	r := NewExecRunner(Options{Path: path, Timeout: 100 * time.Millisecond})

	start := time.Now()
	_, err := r.Run(context.Background())
	assert.True(t, errors.Is(err, ErrTimeout), "got %v", err)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestClassifyWait(t *testing.T) {
	exitErr := exitError(t)
	ioErr := errors.New("copy stdout: broken pipe")

	testCases := []struct {
		name      string
		waitErr   error
		ctxErr    error
		exitCode  int
		wantLabel string
		wantErr   error
	}{
		{name: "exited ok", exitCode: 0, wantLabel: "exited_ok"},
		{name: "exited nonzero", waitErr: exitErr, exitCode: 3, wantLabel: "exited_nonzero"},
		// 进程已经正常退出，客户端随后断开不影响结果
		{name: "exited ok then canceled", ctxErr: context.Canceled, wantLabel: "exited_ok"},
		{name: "exited nonzero then deadline", ctxErr: context.DeadlineExceeded, exitCode: 2, wantLabel: "exited_nonzero"},
		{name: "killed by deadline", waitErr: exitErr, ctxErr: context.DeadlineExceeded, exitCode: -1, wantLabel: "timeout", wantErr: ErrTimeout},
		{name: "killed by cancel", waitErr: exitErr, ctxErr: context.Canceled, exitCode: -1, wantLabel: "canceled", wantErr: context.Canceled},
		{name: "wait failed", waitErr: ioErr, wantLabel: "wait_failed", wantErr: ioErr},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			label, err := classifyWait(tc.waitErr, tc.ctxErr, tc.exitCode)
			assert.Equal(t, tc.wantLabel, label)
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tc.wantErr), "got %v", err)
		})
	}
}

func TestExecRunner_FinishedBeforeCancelIsSuccess(t *testing.T) {
	path := writeScript(t, `echo done`)
	ctx, cancel := context.WithCancel(context.Background())
	r := NewExecRunner(Options{Path: path, Timeout: 10 * time.Second})

	res, err := r.Run(ctx)
	cancel()
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "done\n", res.Stdout)
}

// exitError 运行一个以非零码退出的 shell，拿到真实的 *exec.ExitError。
func exitError(t *testing.T) error {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("sh is not available on windows")
	}
	err := exec.Command("sh", "-c", "exit 3").Run()
	var exitErr *exec.ExitError
	require.True(t, errors.As(err, &exitErr), "got %v", err)
	return err
}
