package provider

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"
)

// CLIProvider runs a local agent binary with the rendered conversation as its
// last argument and streams its stdout line by line.
type CLIProvider struct {
	binaryPath string
	args       []string
	timeout    time.Duration
}

func NewCLIProvider(binaryPath string, args []string, timeout time.Duration) (*CLIProvider, error) {
	if binaryPath == "" {
		return nil, fmt.Errorf("binary path is required for CLI provider")
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &CLIProvider{
		binaryPath: binaryPath,
		args:       args,
		timeout:    timeout,
	}, nil
}

func (p *CLIProvider) Name() string {
	return "cli-" + p.binaryPath
}

func (p *CLIProvider) Stream(ctx context.Context, req Request, fn StreamFunc) (*Response, error) {
	fullArgs := append(append([]string{}, p.args...), renderTranscript(req))

	execCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, p.binaryPath, fullArgs...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("cli agent failed: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("cli agent failed: %w", err)
	}

	var sb strings.Builder
	reader := bufio.NewReader(stdout)
	var streamErr error
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			sb.WriteString(line)
			if streamErr == nil {
				streamErr = emit(fn, line)
				if streamErr != nil {
					cancel()
				}
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			streamErr = errors.Join(streamErr, err)
			break
		}
	}

	waitErr := cmd.Wait()
	if streamErr != nil {
		return nil, streamErr
	}
	if waitErr != nil {
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("cli agent timed out: %w", waitErr)
		}
		return nil, fmt.Errorf("cli agent failed: %w\nOutput: %s", waitErr, stderr.String())
	}

	result := sb.String()
	return &Response{
		Content: result,
		Usage: Usage{
			TotalTokens: len(strings.Fields(result)),
		},
	}, nil
}

// renderTranscript flattens the request into a plain-text prompt.
func renderTranscript(req Request) string {
	var sb strings.Builder
	if req.System != "" {
		sb.WriteString("System: ")
		sb.WriteString(req.System)
		sb.WriteString("\n\n")
	}
	for _, m := range req.Messages {
		switch m.Role {
		case RoleAssistant:
			sb.WriteString("Assistant: ")
		default:
			sb.WriteString("User: ")
		}
		sb.WriteString(m.Content)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Assistant:")
	return sb.String()
}

func (p *CLIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("embeddings not supported by CLI provider")
}
