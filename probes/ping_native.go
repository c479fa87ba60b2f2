package probes

import (
	"context"
	"fmt"
	"runtime"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// NativePinger sends ICMP echo requests itself instead of running ping.
// Unprivileged mode uses UDP sockets and needs net.ipv4.ping_group_range on
// Linux; Windows always needs privileged mode.
type NativePinger struct {
	Privileged bool
}

func NewNativePinger() *NativePinger {
	return &NativePinger{Privileged: runtime.GOOS == "windows"}
}

func (n *NativePinger) Name() string { return "native" }

func (n *NativePinger) Ping(ctx context.Context, host string, bytes, count int, timeout time.Duration) (PingResult, error) {
	pinger, err := probing.NewPinger(host)
	if err != nil {
		return PingResult{}, fmt.Errorf("%w: resolve %s: %v", ErrExec, host, err)
	}

	pinger.Count = count
	pinger.Size = bytes
	pinger.Timeout = timeout
	pinger.SetPrivileged(n.Privileged)

	if err := pinger.RunWithContext(ctx); err != nil {
		return PingResult{}, fmt.Errorf("%w: ping %s: %v", ErrExec, host, err)
	}

	return statsToResult(pinger.Statistics()), nil
}

func statsToResult(stats *probing.Statistics) PingResult {
	return PingResult{
		PacketLoss: stats.PacketLoss / 100,
		RttMin:     millis(stats.MinRtt),
		RttAvg:     millis(stats.AvgRtt),
		RttMax:     millis(stats.MaxRtt),
	}
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
