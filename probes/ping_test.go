package probes

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	out  CommandOutput
	err  error
	name string
	args []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (CommandOutput, error) {
	f.name = name
	f.args = args
	return f.out, f.err
}

const linuxOutput = `PING a.com (93.184.216.34) 32(60) bytes of data.
40 bytes from 93.184.216.34: icmp_seq=1 ttl=56 time=11.2 ms
40 bytes from 93.184.216.34: icmp_seq=2 ttl=56 time=12.3 ms

--- a.com ping statistics ---
5 packets transmitted, 5 received, 0% packet loss, time 4005ms
rtt min/avg/max/mdev = 10.123/12.456/15.789/1.234 ms
`

const windowsOutput = "\r\nPinging a.com [93.184.216.34] with 32 bytes of data:\r\n" +
	"Reply from 93.184.216.34: bytes=32 time=11ms TTL=56\r\n" +
	"\r\n" +
	"Ping statistics for 93.184.216.34:\r\n" +
	"    Packets: Sent = 5, Received = 4, Lost = 1 (20% loss),\r\n" +
	"Approximate round trip times in milli-seconds:\r\n" +
	"    Minimum = 10ms, Maximum = 30ms, Average = 15ms\r\n"

func TestLinuxParse(t *testing.T) {
	r, err := Linux{}.ParseOutput(linuxOutput)
	require.NoError(t, err)
	assert.Equal(t, PingResult{PacketLoss: 0, RttMin: 10.123, RttAvg: 12.456, RttMax: 15.789}, r)
}

func TestLinuxParseLoss(t *testing.T) {
	out := "5 packets transmitted, 4 received, 20% packet loss, time 4005ms\n"
	r, err := Linux{}.ParseOutput(out)
	require.NoError(t, err)
	assert.InDelta(t, 0.20, r.PacketLoss, 1e-9)
	assert.Zero(t, r.RttMin)
	assert.Zero(t, r.RttAvg)
	assert.Zero(t, r.RttMax)
}

func TestLinuxParseErrors(t *testing.T) {
	out := "5 packets transmitted, 0 received, +5 errors, 100% packet loss, time 4005ms\n"
	r, err := Linux{}.ParseOutput(out)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, r.PacketLoss, 1e-9)
}

func TestParseNoMatch(t *testing.T) {
	for _, p := range []Platform{Linux{}, Windows{}, Darwin{}} {
		r, err := p.ParseOutput("ping: unknown host nowhere.invalid\n")
		require.NoError(t, err, p.Name())
		assert.Equal(t, PingResult{}, r, p.Name())
	}
}

func TestWindowsParse(t *testing.T) {
	r, err := Windows{}.ParseOutput(windowsOutput)
	require.NoError(t, err)
	assert.InDelta(t, 0.20, r.PacketLoss, 1e-9)
	assert.Equal(t, 10.0, r.RttMin)
	assert.Equal(t, 30.0, r.RttMax)
	assert.Equal(t, 15.0, r.RttAvg)
}

func TestDarwinParse(t *testing.T) {
	out := `--- a.com ping statistics ---
5 packets transmitted, 5 packets received, 0.0% packet loss
round-trip min/avg/max/stddev = 9.870/11.002/13.500/1.120 ms
`
	r, err := Darwin{}.ParseOutput(out)
	require.NoError(t, err)
	assert.Equal(t, PingResult{RttMin: 9.87, RttAvg: 11.002, RttMax: 13.5}, r)
}

func TestBuildCommand(t *testing.T) {
	name, args := Linux{}.BuildCommand("a.com", 32, 5, 1500*time.Millisecond)
	assert.Equal(t, "ping", name)
	assert.Equal(t, []string{"-c", "5", "-s", "32", "-w", "1", "a.com"}, args)

	_, args = Linux{}.BuildCommand("a.com", 32, 5, 200*time.Millisecond)
	assert.Equal(t, "1", args[5])

	_, args = Windows{}.BuildCommand("a.com", 64, 3, 1000*time.Millisecond)
	assert.Equal(t, []string{"-n", "3", "-l", "64", "-w", "1000", "a.com"}, args)

	_, args = Darwin{}.BuildCommand("a.com", 32, 5, 3*time.Second)
	assert.Equal(t, []string{"-c", "5", "-s", "32", "-t", "3", "a.com"}, args)
}

func TestCommandPinger(t *testing.T) {
	runner := &fakeRunner{out: CommandOutput{Stdout: []byte(linuxOutput), ExitCode: 1}}
	p := &CommandPinger{Platform: Linux{}, Runner: runner}

	r, err := p.Ping(context.Background(), "a.com", 32, 5, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "ping", runner.name)
	assert.Equal(t, "a.com", runner.args[len(runner.args)-1])
	assert.Equal(t, 12.456, r.RttAvg)
	assert.Equal(t, "linux", p.Name())
}

func TestCommandPingerErrors(t *testing.T) {
	p := &CommandPinger{Platform: Linux{}, Runner: &fakeRunner{err: errors.New("executable file not found")}}
	_, err := p.Ping(context.Background(), "a.com", 32, 5, time.Second)
	assert.ErrorIs(t, err, ErrExec)

	p.Runner = &fakeRunner{out: CommandOutput{Stdout: []byte{0xff, 0xfe}}}
	_, err = p.Ping(context.Background(), "a.com", 32, 5, time.Second)
	assert.ErrorIs(t, err, ErrExec)
}

func TestPlatformByName(t *testing.T) {
	for _, name := range []string{"linux", "windows", "darwin"} {
		p, err := PlatformByName(name)
		require.NoError(t, err)
		assert.Equal(t, name, p.Name())
	}
	_, err := PlatformByName("plan9")
	assert.Error(t, err)
}

func TestNewPinger(t *testing.T) {
	p, err := NewPinger("native")
	require.NoError(t, err)
	assert.Equal(t, "native", p.Name())

	p, err = NewPinger("windows")
	require.NoError(t, err)
	assert.IsType(t, &CommandPinger{}, p)

	_, err = NewPinger("plan9")
	assert.Error(t, err)
}

func TestPlatformForOS(t *testing.T) {
	assert.Equal(t, "darwin", platformForOS("macos"))
	assert.Equal(t, "darwin", platformForOS("freebsd"))
	assert.Equal(t, "linux", platformForOS("linux"))
	assert.Equal(t, "windows", platformForOS("windows"))
}
