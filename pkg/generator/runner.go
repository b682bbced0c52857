// Package generator 负责启动外部文档生成程序并收集它的输出。
package generator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"crm-gateway-go/pkg/limiter"
	"crm-gateway-go/pkg/log"
	"crm-gateway-go/pkg/metrics"
)

var (
	// ErrExecutableNotFound 表示配置的可执行文件不存在或不是普通文件，此时不会启动任何进程。
	ErrExecutableNotFound = errors.New("generator executable not found")
	// ErrTimeout 表示进程在截止时间前没有结束，已被终止。
	ErrTimeout = errors.New("generator timed out")
)

// StartError 表示进程未能启动（例如没有执行权限）。
type StartError struct {
	Path string
	Err  error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.Path, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

// Result 是一次进程运行的结果。
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Runner 运行外部程序，参数按位置传入。
type Runner interface {
	Run(ctx context.Context, args ...string) (*Result, error)
}

// Options 配置 ExecRunner。
type Options struct {
	Path    string
	WorkDir string
	Env     []string
	Timeout time.Duration
	Pool    *limiter.Pool
}

// ExecRunner 通过 os/exec 运行固定路径下的可执行文件。
type ExecRunner struct {
	opts Options
}

// NewExecRunner 创建一个新的 ExecRunner 实例。
func NewExecRunner(opts Options) *ExecRunner {
	return &ExecRunner{opts: opts}
}

// Check 确认可执行文件存在并且是普通文件。
func (r *ExecRunner) Check() error {
	if r.opts.Path == "" {
		return ErrExecutableNotFound
	}
	info, err := os.Stat(r.opts.Path)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrExecutableNotFound, r.opts.Path)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrExecutableNotFound, r.opts.Path)
	}
	return nil
}

// Run 启动进程并等待它结束。非零退出码不算错误，由调用方根据 Result.ExitCode 判断。
func (r *ExecRunner) Run(ctx context.Context, args ...string) (*Result, error) {
	if err := r.Check(); err != nil {
		return nil, err
	}

	release, err := r.opts.Pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("wait for generator slot: %w", err)
	}
	defer release()

	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, r.opts.Path, args...)
	cmd.Dir = r.opts.WorkDir
	if len(r.opts.Env) > 0 {
		cmd.Env = append(os.Environ(), r.opts.Env...)
	}
	// 进程被杀死后，子进程可能仍然持有输出管道，最多再等 5 秒
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		metrics.GeneratorRunsTotal.WithLabelValues("start_failed").Inc()
		return nil, &StartError{Path: r.opts.Path, Err: err}
	}
	log.Debugf("[Generator] 进程已启动, pid=%d, args=%v", cmd.Process.Pid, args)

	waitErr := cmd.Wait()
	res := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: cmd.ProcessState.ExitCode(),
		Duration: time.Since(start),
	}
	metrics.GeneratorDuration.Observe(res.Duration.Seconds())

	outcome, err := classifyWait(waitErr, ctx.Err(), res.ExitCode)
	metrics.GeneratorRunsTotal.WithLabelValues(outcome).Inc()
	return res, err
}

// classifyWait 把 Wait 的结果归类为指标标签和返回的错误。
// 进程自己退出（waitErr 为 nil）时以退出码为准，即使 ctx 随后已经结束；
// 只有 Wait 失败且 ctx 已结束时才认为进程是被超时或取消终止的。
func classifyWait(waitErr, ctxErr error, exitCode int) (string, error) {
	if waitErr == nil {
		if exitCode == 0 {
			return "exited_ok", nil
		}
		return "exited_nonzero", nil
	}
	if ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return "timeout", ErrTimeout
		}
		return "canceled", ctxErr
	}
	var exitErr *exec.ExitError
	if !errors.As(waitErr, &exitErr) {
		return "wait_failed", fmt.Errorf("wait for generator: %w", waitErr)
	}
	return "exited_nonzero", nil
}

var _ Runner = (*ExecRunner)(nil)
