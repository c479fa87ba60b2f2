package probes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Speedtester runs one bandwidth measurement. A nil server lets the
// backend pick the closest one.
type Speedtester interface {
	Name() string
	Speedtest(ctx context.Context, server *uint64) (*SpeedtestResult, error)
}

// SpeedtestTime is the CLI's timestamp, always UTC with a literal Z.
type SpeedtestTime struct {
	time.Time
}

const (
	speedtestTimeLayout = "2006-01-02T15:04:05Z"
	speedtestTimeField  = "2006-01-02 15:04:05"
)

func (t *SpeedtestTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := time.Parse(speedtestTimeLayout, s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func (t SpeedtestTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(speedtestTimeLayout))
}

func (t SpeedtestTime) String() string {
	return t.UTC().Format(speedtestTimeField)
}

// SpeedtestResult mirrors the JSON the speedtest CLI prints with
// --format=json.
type SpeedtestResult struct {
	Type       string             `json:"type"`
	Timestamp  SpeedtestTime      `json:"timestamp"`
	Ping       SpeedtestPing      `json:"ping"`
	Download   SpeedtestTransfer  `json:"download"`
	Upload     SpeedtestTransfer  `json:"upload"`
	PacketLoss float64            `json:"packetLoss"`
	ISP        string             `json:"isp"`
	Interface  SpeedtestInterface `json:"interface"`
	Server     SpeedtestServer    `json:"server"`
	Result     SpeedtestLink      `json:"result"`
}

type SpeedtestPing struct {
	Jitter  float64 `json:"jitter"`
	Latency float64 `json:"latency"`
	Low     float64 `json:"low"`
	High    float64 `json:"high"`
}

// SpeedtestTransfer is one direction. Bandwidth is in bytes per second,
// Elapsed in milliseconds.
type SpeedtestTransfer struct {
	Bandwidth float64          `json:"bandwidth"`
	Bytes     uint64           `json:"bytes"`
	Elapsed   uint64           `json:"elapsed"`
	Latency   SpeedtestLatency `json:"latency"`
}

type SpeedtestLatency struct {
	IQM    float64 `json:"iqm"`
	Low    float64 `json:"low"`
	High   float64 `json:"high"`
	Jitter float64 `json:"jitter"`
}

type SpeedtestInterface struct {
	InternalIP string `json:"internalIp"`
	Name       string `json:"name"`
	MacAddr    string `json:"macAddr"`
	IsVPN      bool   `json:"isVpn"`
	ExternalIP string `json:"externalIp"`
}

type SpeedtestServer struct {
	ID       uint64 `json:"id"`
	Host     string `json:"host"`
	Port     uint16 `json:"port"`
	Name     string `json:"name"`
	Location string `json:"location"`
	Country  string `json:"country"`
	IP       string `json:"ip"`
}

type SpeedtestLink struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Persisted bool   `json:"persisted"`
}

// DeserializeError keeps the payload that could not be decoded so it can
// be logged.
type DeserializeError struct {
	Payload string
	Err     error
}

func (e *DeserializeError) Error() string {
	return fmt.Sprintf("%v: %v", ErrDeserialize, e.Err)
}

func (e *DeserializeError) Unwrap() []error {
	return []error{ErrDeserialize, e.Err}
}

// every leaf must be present and non-null
var speedtestRequired = []string{
	"type", "timestamp", "packetLoss", "isp",
	"ping.jitter", "ping.latency", "ping.low", "ping.high",
	"download.bandwidth", "download.bytes", "download.elapsed",
	"download.latency.iqm", "download.latency.low", "download.latency.high", "download.latency.jitter",
	"upload.bandwidth", "upload.bytes", "upload.elapsed",
	"upload.latency.iqm", "upload.latency.low", "upload.latency.high", "upload.latency.jitter",
	"interface.internalIp", "interface.name", "interface.macAddr", "interface.isVpn", "interface.externalIp",
	"server.id", "server.host", "server.port", "server.name", "server.location", "server.country", "server.ip",
	"result.id", "result.url", "result.persisted",
}

// ParseSpeedtest decodes the CLI's JSON output. Extra keys are ignored,
// missing or mistyped ones are an error.
func ParseSpeedtest(text string) (*SpeedtestResult, error) {
	text = strings.TrimSpace(text)
	fail := func(err error) (*SpeedtestResult, error) {
		return nil, &DeserializeError{Payload: text, Err: err}
	}

	var tree map[string]interface{}
	if err := json.Unmarshal([]byte(text), &tree); err != nil {
		return fail(err)
	}
	for _, path := range speedtestRequired {
		if !hasPath(tree, path) {
			return fail(fmt.Errorf("missing field %q", path))
		}
	}

	var r SpeedtestResult
	if err := json.Unmarshal([]byte(text), &r); err != nil {
		return fail(err)
	}
	return &r, nil
}

func hasPath(tree map[string]interface{}, path string) bool {
	keys := strings.Split(path, ".")
	node := tree
	for i, k := range keys {
		v, ok := node[k]
		if !ok || v == nil {
			return false
		}
		if i == len(keys)-1 {
			return true
		}
		if node, ok = v.(map[string]interface{}); !ok {
			return false
		}
	}
	return false
}

// Value is a named leaf of the flattened measurement. Value holds a
// string, int64, float64 or bool.
type Value struct {
	Name  string
	Value interface{}
}

// Values keeps the flattening order, which is also the order of the
// wildcard selection.
type Values []Value

func (vs Values) Lookup(name string) (interface{}, bool) {
	for _, v := range vs {
		if v.Name == name {
			return v.Value, true
		}
	}
	return nil, false
}

func (vs Values) prefixed(prefix string) Values {
	out := make(Values, len(vs))
	for i, v := range vs {
		out[i] = Value{Name: prefix + "_" + v.Name, Value: v.Value}
	}
	return out
}

// Stringify renders a leaf value for use as a tag.
func Stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// Fields flattens the tree into typed leaves named <section>_<leaf>.
func (r *SpeedtestResult) Fields() Values {
	vs := Values{
		{"output_type", r.Type},
		{"timestamp", r.Timestamp.String()},
	}
	return append(vs, r.leaves()...)
}

// Tags is Fields without output_type and timestamp, every value as a string.
func (r *SpeedtestResult) Tags() map[string]string {
	tags := make(map[string]string)
	for _, v := range r.leaves() {
		tags[v.Name] = Stringify(v.Value)
	}
	return tags
}

// TagValues is Tags in flattening order.
func (r *SpeedtestResult) TagValues() Values {
	leaves := r.leaves()
	out := make(Values, len(leaves))
	for i, v := range leaves {
		out[i] = Value{Name: v.Name, Value: Stringify(v.Value)}
	}
	return out
}

func (r *SpeedtestResult) leaves() Values {
	vs := Values{
		{"packet_loss", r.PacketLoss},
		{"isp", r.ISP},
	}
	vs = append(vs, r.Ping.values().prefixed("ping")...)
	vs = append(vs, r.Download.values().prefixed("download")...)
	vs = append(vs, r.Upload.values().prefixed("upload")...)
	vs = append(vs, r.Interface.values().prefixed("interface")...)
	vs = append(vs, r.Server.values().prefixed("server")...)
	vs = append(vs, r.Result.values().prefixed("result")...)
	return vs
}

func (p SpeedtestPing) values() Values {
	return Values{
		{"jitter", p.Jitter},
		{"latency", p.Latency},
		{"low", p.Low},
		{"high", p.High},
	}
}

func (t SpeedtestTransfer) values() Values {
	vs := Values{
		{"bandwidth", t.Bandwidth},
		{"bytes", int64(t.Bytes)},
		{"elapsed", int64(t.Elapsed)},
	}
	return append(vs, t.Latency.values().prefixed("latency")...)
}

func (l SpeedtestLatency) values() Values {
	return Values{
		{"iqm", l.IQM},
		{"low", l.Low},
		{"high", l.High},
		{"jitter", l.Jitter},
	}
}

func (i SpeedtestInterface) values() Values {
	return Values{
		{"internal_ip", i.InternalIP},
		{"name", i.Name},
		{"mac_addr", i.MacAddr},
		{"is_vpn", i.IsVPN},
		{"external_ip", i.ExternalIP},
	}
}

func (s SpeedtestServer) values() Values {
	return Values{
		{"id", int64(s.ID)},
		{"host", s.Host},
		{"port", int64(s.Port)},
		{"name", s.Name},
		{"location", s.Location},
		{"country", s.Country},
		{"ip", s.IP},
	}
}

func (l SpeedtestLink) values() Values {
	return Values{
		{"id", l.ID},
		{"url", l.URL},
		{"persisted", l.Persisted},
	}
}

// Mbps converts the CLI's bytes per second.
func Mbps(bandwidth float64) float64 {
	return bandwidth / 125000
}

// Summary is the one-line human readout logged after each run.
func (r *SpeedtestResult) Summary() string {
	return fmt.Sprintf("ping %.2fms, download %.2f Mbit/s, upload %.2f Mbit/s, isp %s, server %d (%s @ %s)",
		r.Ping.Latency, Mbps(r.Download.Bandwidth), Mbps(r.Upload.Bandwidth),
		r.ISP, r.Server.ID, r.Server.Name, r.Server.Location)
}

// IsDeserializeError reports whether err carries the raw payload.
func IsDeserializeError(err error) (*DeserializeError, bool) {
	var de *DeserializeError
	ok := errors.As(err, &de)
	return de, ok
}

// NewSpeedtester returns the backend named "cli" or "native".
func NewSpeedtester(backend string) (Speedtester, error) {
	switch backend {
	case "", "cli":
		return NewCLISpeedtester(), nil
	case "native":
		return NewNativeSpeedtester(), nil
	default:
		return nil, fmt.Errorf("unsupported speedtest backend %q", backend)
	}
}
