// Package standard provides standard components registered next to the event
// tracker.
package standard

import (
	"context"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/st-keller/event-counter/registry"
	"github.com/st-keller/event-counter/schema"
)

// ServiceInfoName is the registration name used by the command line tools.
const ServiceInfoName = "service-info"

// ServiceType represents how the service is running
type ServiceType string

const (
	ServiceTypeSystemd    ServiceType = "systemd"
	ServiceTypeDocker     ServiceType = "docker"
	ServiceTypeStandalone ServiceType = "standalone"
)

// ServiceInfo is a static, read-only component describing the running process.
type ServiceInfo struct {
	descriptor *schema.Descriptor
	values     map[string]any
}

var _ registry.Component = (*ServiceInfo)(nil)

// AutoDetect creates ServiceInfo with auto-detected runtime information.
func AutoDetect(serviceName, version string) *ServiceInfo {
	// Captured once; the component is static.
	startTime := time.Now().UTC()

	binaryPath, _ := os.Executable()
	if binaryPath != "" {
		if resolved, err := filepath.EvalSymlinks(binaryPath); err == nil {
			binaryPath = resolved
		}
	}

	workingDir, _ := os.Getwd()

	userName := "unknown"
	var uid, gid int64
	if currentUser, err := user.Current(); err == nil {
		userName = currentUser.Username
		if parsed, err := strconv.ParseInt(currentUser.Uid, 10, 64); err == nil {
			uid = parsed
		}
		if parsed, err := strconv.ParseInt(currentUser.Gid, 10, 64); err == nil {
			gid = parsed
		}
	}

	return newServiceInfo(map[string]any{
		"name":                    serviceName,
		"version":                 version,
		"pid":                     int64(os.Getpid()),
		"start_time":              startTime.Format("2006-01-02T15:04:05+00:00"),
		"type":                    string(detectServiceType()),
		"implementation_language": "go",
		"go_version":              runtime.Version(),
		"binary_path":             binaryPath,
		"working_directory":       workingDir,
		"user":                    userName,
		"uid":                     uid,
		"gid":                     gid,
	})
}

func newServiceInfo(values map[string]any) *ServiceInfo {
	attrs := make([]schema.Attribute, 0, len(values))
	for name, v := range values {
		typ := schema.TypeString
		if _, ok := v.(int64); ok {
			typ = schema.TypeInt64
		}
		attrs = append(attrs, schema.Attribute{Name: name, Type: typ, Readable: true})
	}
	return &ServiceInfo{
		descriptor: schema.New("standard.ServiceInfo", "Runtime information about this process.", attrs, nil),
		values:     values,
	}
}

// Descriptor implements registry.Component.
func (s *ServiceInfo) Descriptor(context.Context) (*schema.Descriptor, error) {
	return s.descriptor, nil
}

// GetAttribute implements registry.Component.
func (s *ServiceInfo) GetAttribute(name string) (any, bool) {
	v, ok := s.values[name]
	return v, ok
}

// SetAttribute implements registry.Component. Every attribute is read-only, so
// the write is ignored.
func (*ServiceInfo) SetAttribute(string, any) error {
	return nil
}

// Invoke implements registry.Component. ServiceInfo has no operations.
func (*ServiceInfo) Invoke(context.Context, string, ...any) (any, error) {
	return nil, nil
}

// serviceTypeProbes are checked in order; the first match wins.
var serviceTypeProbes = []struct {
	typ   ServiceType
	match func() bool
}{
	// systemd exports INVOCATION_ID to every unit it starts.
	{ServiceTypeSystemd, func() bool { return os.Getenv("INVOCATION_ID") != "" }},
	{ServiceTypeDocker, func() bool { return fileExists("/.dockerenv") }},
	{ServiceTypeDocker, func() bool {
		return fileContainsAny("/proc/self/cgroup", "docker", "containerd")
	}},
	{ServiceTypeSystemd, func() bool {
		comm, err := os.ReadFile("/proc/1/comm")
		return err == nil && strings.TrimSpace(string(comm)) == "systemd"
	}},
}

func detectServiceType() ServiceType {
	for _, probe := range serviceTypeProbes {
		if probe.match() {
			return probe.typ
		}
	}
	return ServiceTypeStandalone
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func fileContainsAny(path string, needles ...string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	for _, needle := range needles {
		if strings.Contains(string(data), needle) {
			return true
		}
	}
	return false
}
