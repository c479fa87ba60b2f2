package probes

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"
)

// CLISpeedtester runs the Ookla speedtest binary.
type CLISpeedtester struct {
	Binary string
	Runner Runner
}

func NewCLISpeedtester() *CLISpeedtester {
	return &CLISpeedtester{Binary: "speedtest", Runner: ExecRunner{}}
}

func (c *CLISpeedtester) Name() string { return "cli" }

// Args builds the argument vector; license prompts would otherwise block.
func (c *CLISpeedtester) Args(server *uint64) []string {
	args := []string{"--accept-license", "--accept-gdpr", "--format=json"}
	if server != nil {
		args = append(args, "--server-id="+strconv.FormatUint(*server, 10))
	}
	return args
}

func (c *CLISpeedtester) Speedtest(ctx context.Context, server *uint64) (*SpeedtestResult, error) {
	args := c.Args(server)
	if server != nil {
		log.Infof("Speedtest: using server %d", *server)
	} else {
		log.Info("Speedtest: automatic server choice")
	}
	log.Debugf("Running %s %s", c.Binary, strings.Join(args, " "))

	out, err := c.Runner.Run(ctx, c.Binary, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrExec, c.Binary, err)
	}
	if len(out.Stderr) > 0 {
		log.Debugf("%s stderr: %s", c.Binary, strings.TrimSpace(string(out.Stderr)))
	}
	if out.ExitCode != 0 {
		return nil, fmt.Errorf("%w: %s exited with status %d: %s",
			ErrExec, c.Binary, out.ExitCode, strings.TrimSpace(string(out.Stderr)))
	}
	if !utf8.Valid(out.Stdout) {
		return nil, fmt.Errorf("%w: %s: output is not valid UTF-8", ErrExec, c.Binary)
	}

	return ParseSpeedtest(string(out.Stdout))
}
