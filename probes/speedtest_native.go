package probes

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/showwin/speedtest-go/speedtest"
	log "github.com/sirupsen/logrus"
)

const serverListKey = "servers"

// NativeSpeedtester measures against speedtest.net servers in-process and
// reports in the same shape as the CLI. The server list is refreshed
// every 12 hours.
type NativeSpeedtester struct {
	client  *speedtest.Speedtest
	servers *cache.Cache
}

func NewNativeSpeedtester() *NativeSpeedtester {
	return &NativeSpeedtester{
		client:  speedtest.New(),
		servers: cache.New(12*time.Hour, time.Hour),
	}
}

func (n *NativeSpeedtester) Name() string { return "native" }

func (n *NativeSpeedtester) serverList(ctx context.Context) (speedtest.Servers, error) {
	if v, ok := n.servers.Get(serverListKey); ok {
		return v.(speedtest.Servers), nil
	}
	list, err := n.client.FetchServerListContext(ctx)
	if err != nil {
		return nil, err
	}
	n.servers.Set(serverListKey, list, cache.DefaultExpiration)
	return list, nil
}

func (n *NativeSpeedtester) Speedtest(ctx context.Context, server *uint64) (*SpeedtestResult, error) {
	// a cancelled run reports ctx.Err() rather than the transport error
	fail := func(step string, err error) (*SpeedtestResult, error) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrExec, step, err)
	}

	user, err := n.client.FetchUserInfoContext(ctx)
	if err != nil {
		return fail("fetch user info", err)
	}

	list, err := n.serverList(ctx)
	if err != nil {
		return fail("fetch servers", err)
	}

	var ids []int
	if server != nil {
		ids = []int{int(*server)}
	}
	targets, err := list.FindServer(ids)
	if err != nil {
		return fail("find server", err)
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: no speedtest server available", ErrExec)
	}
	target := targets[0]
	log.Infof("Speedtest: testing against %s (%s, %s)", target.Host, target.Sponsor, target.Name)

	// byte counters accumulate on the shared client across runs
	if target.Context != nil {
		defer target.Context.Reset()
	}

	steps := []func(context.Context) error{
		func(ctx context.Context) error {
			return target.PingTestContext(ctx, func(d time.Duration) {
				log.Debugf("Speedtest: ping %v", d)
			})
		},
		target.DownloadTestContext,
		target.UploadTestContext,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			return fail(target.Host, err)
		}
	}

	var totals transferTotals
	if target.Context != nil {
		totals.download = target.Context.Manager.GetTotalDownload()
		totals.upload = target.Context.Manager.GetTotalUpload()
	}
	return nativeResult(user, target, totals, time.Now()), nil
}

// transferTotals are the bytes moved during one run.
type transferTotals struct {
	download, upload int64
}

// speedtest-go reports DLSpeed and ULSpeed in Mbit/s; the CLI reports
// bytes per second.
const bytesPerMbit = 125000

func nativeResult(user *speedtest.User, s *speedtest.Server, totals transferTotals, now time.Time) *SpeedtestResult {
	r := &SpeedtestResult{
		Type:      "result",
		Timestamp: SpeedtestTime{now.UTC().Truncate(time.Second)},
		Ping: SpeedtestPing{
			Jitter:  millis(s.Jitter),
			Latency: millis(s.Latency),
			Low:     millis(s.MinLatency),
			High:    millis(s.MaxLatency),
		},
		Download: SpeedtestTransfer{
			Bandwidth: float64(s.DLSpeed) * bytesPerMbit,
			Bytes:     nonNegative(totals.download),
			Elapsed:   elapsedMillis(s.TestDuration.Download),
		},
		Upload: SpeedtestTransfer{
			Bandwidth: float64(s.ULSpeed) * bytesPerMbit,
			Bytes:     nonNegative(totals.upload),
			Elapsed:   elapsedMillis(s.TestDuration.Upload),
		},
		Server: SpeedtestServer{
			Name:     s.Sponsor,
			Location: s.Name,
			Country:  s.Country,
			Host:     s.Host,
		},
	}
	if user != nil {
		r.ISP = user.Isp
		r.Interface.ExternalIP = user.IP
	}
	if id, err := strconv.ParseUint(s.ID, 10, 64); err == nil {
		r.Server.ID = id
	}
	if host, port, err := net.SplitHostPort(s.Host); err == nil {
		r.Server.Host = host
		if p, err := strconv.ParseUint(port, 10, 16); err == nil {
			r.Server.Port = uint16(p)
		}
	}
	return r
}

func nonNegative(n int64) uint64 {
	if n < 0 {
		return 0
	}
	return uint64(n)
}

func elapsedMillis(d *time.Duration) uint64 {
	if d == nil || *d < 0 {
		return 0
	}
	return uint64(d.Milliseconds())
}
