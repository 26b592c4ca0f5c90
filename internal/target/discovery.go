package target

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// JavaProcess is one JVM reported by jps.
type JavaProcess struct {
	PID       int
	MainClass string
	Args      string
}

// DiscoverJavaProcesses lists the JVMs on this host using jps.
func DiscoverJavaProcesses(ctx context.Context) ([]*JavaProcess, error) {
	output, err := exec.CommandContext(ctx, "jps", "-l", "-v").Output()
	if err != nil {
		return nil, fmt.Errorf("failed to run jps: %w (ensure Java development tools are installed)", err)
	}
	return ParseJps(string(output)), nil
}

// ParseJps parses the output of "jps -l -v".
func ParseJps(output string) []*JavaProcess {
	var processes []*JavaProcess
	scanner := bufio.NewScanner(strings.NewReader(output))

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.SplitN(line, " ", 3)
		if len(parts) < 2 {
			continue
		}

		pid, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}

		mainClass := parts[1]
		if shouldSkipProcess(mainClass) {
			continue
		}

		args := ""
		if len(parts) > 2 {
			args = parts[2]
		}

		processes = append(processes, &JavaProcess{
			PID:       pid,
			MainClass: strings.TrimSuffix(mainClass, ".jar"),
			Args:      args,
		})
	}

	return processes
}

func shouldSkipProcess(mainClass string) bool {
	mainClass = strings.TrimSpace(mainClass)
	if mainClass == "" || strings.HasPrefix(mainClass, "--") {
		return true
	}

	// IDE language servers
	if strings.Contains(mainClass, ".vscode") && strings.Contains(mainClass, "extensions") {
		return true
	}

	skipPatterns := []string{
		"sun.tools.jps.Jps",
		"jdk.jcmd",
		"jcmd",
		"-- process information unavailable",
		"org.eclipse.equinox.launcher",
	}
	for _, pattern := range skipPatterns {
		if strings.Contains(mainClass, pattern) {
			return true
		}
	}

	return false
}
