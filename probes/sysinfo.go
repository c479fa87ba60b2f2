package probes

import (
	"runtime"

	"github.com/elastic/go-sysinfo"
	log "github.com/sirupsen/logrus"
)

// DetectPlatform maps the host operating system onto a ping command
// strategy name. go-sysinfo is asked first; runtime.GOOS is the fallback
// when the host cannot be inspected.
func DetectPlatform() (string, error) {
	osType := runtime.GOOS

	host, err := sysinfo.Host()
	if err != nil {
		log.Debugf("sysinfo: falling back to %s: %v", osType, err)
	} else if info := host.Info(); info.OS != nil && info.OS.Type != "" {
		osType = info.OS.Type
	}

	name := platformForOS(osType)
	if _, err := PlatformByName(name); err != nil {
		return "", err
	}
	return name, nil
}

func platformForOS(osType string) string {
	switch osType {
	case "macos", "darwin", "unix", "freebsd", "openbsd", "netbsd":
		// BSD ping takes -t like macOS.
		return "darwin"
	default:
		return osType
	}
}

// Hostname labels the agent's run metrics. It is empty when the host
// cannot be inspected.
func Hostname() string {
	host, err := sysinfo.Host()
	if err != nil {
		return ""
	}
	return host.Info().Hostname
}
