package bpmn

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"bpmn-backend/internal/config"
	"bpmn-backend/pkg/logger"

	"github.com/google/uuid"
)

var ErrEmptyRender = errors.New("renderer produced no image")

// Destination 渲染输出位置与格式
type Destination struct {
	Dir    string
	Format string
}

// Renderer 把 PiperFlow 文本渲染为图片
type Renderer interface {
	Render(ctx context.Context, text string, dst Destination) ([]byte, error)
}

// CommandRunner 执行外部命令并返回合并后的输出
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// CommandRenderer 调用外部渲染程序，参数中的 {input}/{output} 会被替换为临时文件路径
type CommandRenderer struct {
	command string
	args    []string
	format  string
	workDir string
	timeout time.Duration
	run     CommandRunner
}

func NewCommandRenderer(cfg config.RendererConfig) *CommandRenderer {
	format := cfg.Format
	if format == "" {
		format = "png"
	}
	args := cfg.Args
	if len(args) == 0 {
		args = []string{"{input}", "{output}"}
	}
	return &CommandRenderer{
		command: cfg.Command,
		args:    args,
		format:  format,
		workDir: cfg.WorkDir,
		timeout: cfg.Timeout,
		run:     execRunner,
	}
}

// WithRunner 替换命令执行方式
func (r *CommandRenderer) WithRunner(run CommandRunner) *CommandRenderer {
	r.run = run
	return r
}

func (r *CommandRenderer) Format() string {
	return r.format
}

func (r *CommandRenderer) Render(ctx context.Context, text string, dst Destination) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty diagram text")
	}

	dir := dst.Dir
	if dir == "" {
		dir = r.workDir
	}
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create render dir: %w", err)
	}
	format := dst.Format
	if format == "" {
		format = r.format
	}

	name := "bpmn_" + strings.ReplaceAll(uuid.New().String(), "-", "")
	input := filepath.Join(dir, name+".txt")
	output := filepath.Join(dir, name+"."+format)
	defer removeQuietly(input)
	defer removeQuietly(output)

	if err := os.WriteFile(input, []byte(text), 0o644); err != nil {
		return nil, fmt.Errorf("write diagram text: %w", err)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	args := make([]string, len(r.args))
	for i, a := range r.args {
		a = strings.ReplaceAll(a, "{input}", input)
		args[i] = strings.ReplaceAll(a, "{output}", output)
	}

	if out, err := r.run(ctx, r.command, args...); err != nil {
		return nil, fmt.Errorf("render command %s: %w: %s", r.command, err, strings.TrimSpace(string(out)))
	}

	image, err := os.ReadFile(output)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrEmptyRender
		}
		return nil, fmt.Errorf("read rendered image: %w", err)
	}
	if len(image) == 0 {
		return nil, ErrEmptyRender
	}
	return image, nil
}

func removeQuietly(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warnf("failed to remove temp file %s: %v", path, err)
	}
}
