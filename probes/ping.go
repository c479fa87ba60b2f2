package probes

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"
)

// PingResult is the summary of one ping run against one host. PacketLoss is
// a fraction in [0,1], round-trip times are in milliseconds.
type PingResult struct {
	PacketLoss float64 `json:"packet_loss"`
	RttMin     float64 `json:"rtt_min"`
	RttAvg     float64 `json:"rtt_avg"`
	RttMax     float64 `json:"rtt_max"`
}

// Pinger measures packet loss and round-trip times to a host.
type Pinger interface {
	Name() string
	Ping(ctx context.Context, host string, bytes, count int, timeout time.Duration) (PingResult, error)
}

// Platform knows the ping command line and output format of one OS.
type Platform interface {
	Name() string
	BuildCommand(host string, bytes, count int, timeout time.Duration) (string, []string)
	ParseOutput(output string) (PingResult, error)
}

// CommandPinger runs the system ping binary and parses what it prints.
type CommandPinger struct {
	Platform Platform
	Runner   Runner
}

func NewCommandPinger(p Platform) *CommandPinger {
	return &CommandPinger{Platform: p, Runner: ExecRunner{}}
}

func (c *CommandPinger) Name() string {
	return c.Platform.Name()
}

// Ping ignores the exit status: ping exits non-zero on packet loss and the
// summary lines are still worth reading.
func (c *CommandPinger) Ping(ctx context.Context, host string, bytes, count int, timeout time.Duration) (PingResult, error) {
	name, args := c.Platform.BuildCommand(host, bytes, count, timeout)
	log.Debugf("Running %s %s", name, strings.Join(args, " "))

	out, err := c.Runner.Run(ctx, name, args...)
	if err != nil {
		return PingResult{}, fmt.Errorf("%w: %s: %w", ErrExec, name, err)
	}
	if !utf8.Valid(out.Stdout) {
		return PingResult{}, fmt.Errorf("%w: %s: output is not valid UTF-8", ErrExec, name)
	}

	return c.Platform.ParseOutput(string(out.Stdout))
}

// outputFormat holds the two summary patterns of a ping implementation.
// rtt captures min, avg and max at the given group indexes.
type outputFormat struct {
	loss *regexp.Regexp
	rtt  *regexp.Regexp

	min, avg, max int
}

// parse scans output line by line. Lines matching neither pattern are
// skipped; when nothing matches every value stays zero.
func (f outputFormat) parse(output string) (PingResult, error) {
	var r PingResult
	var loss float64

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)

		if m := f.loss.FindStringSubmatch(line); m != nil {
			v, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				return PingResult{}, fmt.Errorf("%w: packet loss %q: %v", ErrParse, m[1], err)
			}
			loss = v
		} else if m := f.rtt.FindStringSubmatch(line); m != nil {
			vals := make([]float64, len(m))
			for i := 1; i < len(m); i++ {
				v, err := strconv.ParseFloat(m[i], 64)
				if err != nil {
					return PingResult{}, fmt.Errorf("%w: round-trip time %q: %v", ErrParse, m[i], err)
				}
				vals[i] = v
			}
			r.RttMin = vals[f.min]
			r.RttAvg = vals[f.avg]
			r.RttMax = vals[f.max]
		}
	}

	r.PacketLoss = loss / 100
	return r, nil
}
