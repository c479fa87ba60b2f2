package probes

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var (
	// iputils and busybox. Loss may be fractional ("33.3333%") and may
	// follow "+N errors," or "+N duplicates,".
	unixFormat = outputFormat{
		loss: regexp.MustCompile(`[0-9]+ packets transmitted, [0-9]+ (?:packets )?received,(?: \+[0-9]+ [a-z]+,)* ([0-9.]+)% packet loss`),
		rtt:  regexp.MustCompile(`(?:rtt|round-trip) min/avg/max(?:/(?:mdev|stddev))? = ([0-9.]+)/([0-9.]+)/([0-9.]+)(?:/[0-9.]+)? ms`),
		min:  1, avg: 2, max: 3,
	}

	// Windows prints Minimum, Maximum, Average in that order.
	windowsFormat = outputFormat{
		loss: regexp.MustCompile(`Packets: Sent = [0-9]+, Received = [0-9]+, Lost = [0-9]+ \(([0-9]+)% loss\),`),
		rtt:  regexp.MustCompile(`Minimum = ([0-9]+)ms, Maximum = ([0-9]+)ms, Average = ([0-9]+)ms`),
		min:  1, max: 2, avg: 3,
	}
)

// Linux uses a deadline in whole seconds.
type Linux struct{}

func (Linux) Name() string { return "linux" }

func (Linux) BuildCommand(host string, bytes, count int, timeout time.Duration) (string, []string) {
	return "ping", []string{
		"-c", strconv.Itoa(count),
		"-s", strconv.Itoa(bytes),
		"-w", strconv.Itoa(seconds(timeout)),
		host,
	}
}

func (Linux) ParseOutput(output string) (PingResult, error) {
	return unixFormat.parse(output)
}

// Windows uses a per-reply timeout in milliseconds.
type Windows struct{}

func (Windows) Name() string { return "windows" }

func (Windows) BuildCommand(host string, bytes, count int, timeout time.Duration) (string, []string) {
	return "ping", []string{
		"-n", strconv.Itoa(count),
		"-l", strconv.Itoa(bytes),
		"-w", strconv.FormatInt(timeout.Milliseconds(), 10),
		host,
	}
}

func (Windows) ParseOutput(output string) (PingResult, error) {
	return windowsFormat.parse(output)
}

// Darwin takes the overall timeout in seconds with -t.
type Darwin struct{}

func (Darwin) Name() string { return "darwin" }

func (Darwin) BuildCommand(host string, bytes, count int, timeout time.Duration) (string, []string) {
	return "ping", []string{
		"-c", strconv.Itoa(count),
		"-s", strconv.Itoa(bytes),
		"-t", strconv.Itoa(seconds(timeout)),
		host,
	}
}

func (Darwin) ParseOutput(output string) (PingResult, error) {
	return unixFormat.parse(output)
}

// PlatformByName returns the command strategy for linux, windows or darwin.
func PlatformByName(name string) (Platform, error) {
	switch name {
	case "linux":
		return Linux{}, nil
	case "windows":
		return Windows{}, nil
	case "darwin":
		return Darwin{}, nil
	default:
		return nil, fmt.Errorf("unsupported ping platform %q", name)
	}
}

// NewPinger picks the ping strategy once. An empty name detects the host OS,
// "native" pings in-process.
func NewPinger(name string) (Pinger, error) {
	if name == "" {
		detected, err := DetectPlatform()
		if err != nil {
			return nil, err
		}
		name = detected
	}

	if name == "native" {
		return NewNativePinger(), nil
	}

	p, err := PlatformByName(name)
	if err != nil {
		return nil, err
	}
	return NewCommandPinger(p), nil
}

// seconds rounds down but never to zero, which would disable the deadline.
func seconds(d time.Duration) int {
	s := int(d / time.Second)
	if s < 1 {
		return 1
	}
	return s
}
