// Package target collects descriptors of the profiled JVM (JDK version, OS,
// JVM arguments, start time) and hands them to the session once at startup.
// Attaching to the process is not done here; jcmd is run as an external tool.
package target

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/mabhi256/jprof/internal/session"
	"github.com/mabhi256/jprof/utils"
)

// Descriptor is what the attach layer learned about a target process.
type Descriptor struct {
	PID               int
	JDKVersion        string
	FullJDKVersion    string
	OSName            string
	JVMArguments      string
	JVMFlags          string
	JavaCommand       string
	MaxHeapSize       int64
	StartupTimeMillis int64
}

// Apply copies the descriptor into the session's target scalars, keeping the
// fields it has no information about.
func (d *Descriptor) Apply(s *session.Status, attached bool) {
	s.UpdateTarget(func(info *session.TargetInfo) {
		info.JDKVersion = d.JDKVersion
		info.FullJDKVersion = d.FullJDKVersion
		info.OSName = d.OSName
		info.JVMArguments = d.JVMArguments
		info.JavaCommand = d.JavaCommand
		info.MaxHeapSize = d.MaxHeapSize
		info.StartupTimeMillis = d.StartupTimeMillis
		info.RunningInAttachedMode = attached
	})
}

// CommandRunner runs an external tool and returns its standard output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

type Describer struct {
	run    CommandRunner
	logger zerolog.Logger
}

func NewDescriber(logger zerolog.Logger) *Describer {
	return &Describer{
		run:    execRunner,
		logger: logger.With().Str("component", "target").Logger(),
	}
}

// WithRunner replaces the command runner, mainly for tests.
func (d *Describer) WithRunner(run CommandRunner) *Describer {
	d.run = run
	return d
}

// Describe gathers everything known about pid. Missing pieces are logged and
// left empty; only a failure to find the process at all is an error.
func (d *Describer) Describe(ctx context.Context, pid int) (*Descriptor, error) {
	proc, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return nil, fmt.Errorf("process %d: %w", pid, err)
	}

	desc := &Descriptor{PID: pid}

	if created, err := proc.CreateTimeWithContext(ctx); err == nil {
		desc.StartupTimeMillis = created
	} else {
		d.logger.Debug().Err(err).Int("pid", pid).Msg("process create time unavailable")
	}

	if info, err := host.InfoWithContext(ctx); err == nil {
		desc.OSName = info.OS
		if info.Platform != "" {
			desc.OSName = fmt.Sprintf("%s (%s %s)", info.OS, info.Platform, info.PlatformVersion)
		}
	}

	pidArg := strconv.Itoa(pid)
	if out, err := d.run(ctx, "jcmd", pidArg, "VM.command_line"); err == nil {
		cl := ParseCommandLine(string(out))
		desc.JVMArguments = cl.JVMArgs
		desc.JVMFlags = cl.JVMFlags
		desc.JavaCommand = cl.JavaCommand
	} else {
		d.logger.Warn().Err(err).Int("pid", pid).Msg("jcmd VM.command_line failed")
		if cmdline, err := proc.CmdlineWithContext(ctx); err == nil {
			desc.JVMArguments, desc.JavaCommand = SplitCmdline(cmdline)
		}
	}

	if out, err := d.run(ctx, "jcmd", pidArg, "VM.version"); err == nil {
		desc.JDKVersion, desc.FullJDKVersion = ParseVersion(string(out))
	} else {
		d.logger.Warn().Err(err).Int("pid", pid).Msg("jcmd VM.version failed")
	}

	desc.MaxHeapSize = MaxHeapFromArgs(desc.JVMArguments)
	return desc, nil
}

// CommandLine is the parsed output of "jcmd <pid> VM.command_line".
type CommandLine struct {
	JVMArgs     string
	JVMFlags    string
	JavaCommand string
}

func ParseCommandLine(output string) CommandLine {
	var cl CommandLine
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "jvm_args":
			cl.JVMArgs = value
		case "jvm_flags":
			cl.JVMFlags = value
		case "java_command":
			cl.JavaCommand = value
		}
	}
	return cl
}

// ParseVersion extracts the short ("jdk17", "jdk18" for 1.8) and full JDK
// versions from "jcmd <pid> VM.version" output.
func ParseVersion(output string) (short, full string) {
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if v, ok := strings.CutPrefix(line, "JDK "); ok {
			full = strings.TrimSpace(v)
			break
		}
		if _, v, ok := strings.Cut(line, " version "); ok && full == "" {
			full = strings.TrimSpace(v)
		}
	}
	if full == "" {
		return "", ""
	}
	return shortVersion(full), full
}

func shortVersion(full string) string {
	parts := strings.FieldsFunc(full, func(r rune) bool {
		return r == '.' || r == '_' || r == '+' || r == '-'
	})
	if len(parts) == 0 {
		return ""
	}
	if parts[0] == "1" && len(parts) > 1 {
		return "jdk1" + parts[1]
	}
	return "jdk" + parts[0]
}

// MaxHeapFromArgs returns the -Xmx value in bytes, or 0 when none is given.
// The last -Xmx wins, as it does for the JVM.
func MaxHeapFromArgs(args string) int64 {
	var size int64
	for _, arg := range strings.Fields(args) {
		v, ok := strings.CutPrefix(arg, "-Xmx")
		if !ok {
			continue
		}
		parsed, err := utils.ParseMemorySize(v)
		if err != nil {
			continue
		}
		size = parsed.Bytes()
	}
	return size
}

// SplitCmdline separates JVM options from the main class (or jar) and its
// arguments in a raw "java ..." command line. Class path options are dropped,
// as they are from jcmd's jvm_args.
func SplitCmdline(cmdline string) (jvmArgs, javaCommand string) {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return "", ""
	}

	var opts []string
	for i := 1; i < len(fields); i++ {
		f := fields[i]
		switch {
		case f == "-jar":
			return strings.Join(opts, " "), strings.Join(fields[i+1:], " ")
		case f == "-cp" || f == "-classpath" || f == "--class-path":
			i++
		case strings.HasPrefix(f, "-"):
			opts = append(opts, f)
		default:
			return strings.Join(opts, " "), strings.Join(fields[i:], " ")
		}
	}
	return strings.Join(opts, " "), ""
}
