package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/mabhi256/jprof/internal/target"
	"github.com/mabhi256/jprof/internal/tui"
	"github.com/mabhi256/jprof/utils"
)

var psDescribe bool

var psCmd = &cobra.Command{
	Use:   "ps",
	Short: "List JVMs that can be profiled",
	Long: `List running Java processes found by jps. With --describe each process is
also inspected for the details a session records about its target: JDK
version, OS, maximum heap and start time.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		processes, err := target.DiscoverJavaProcesses(cmd.Context())
		if err != nil {
			return err
		}
		if len(processes) == 0 {
			fmt.Println(tui.MutedStyle.Render("No Java processes found"))
			return nil
		}

		describer := target.NewDescriber(logger)
		for _, proc := range processes {
			line := fmt.Sprintf("%s  %s",
				tui.InfoStyle.Render(fmt.Sprintf("%7d", proc.PID)),
				tui.TextStyle.Render(proc.MainClass))
			fmt.Println(line)

			if !psDescribe {
				continue
			}

			desc, err := describer.Describe(cmd.Context(), proc.PID)
			if err != nil {
				fmt.Println(tui.WarningStyle.Render("         " + err.Error()))
				continue
			}
			fmt.Println(lipgloss.NewStyle().PaddingLeft(9).Render(describeLines(desc)))
		}
		return nil
	},
}

func describeLines(d *target.Descriptor) string {
	kv := func(k, v string) string { return tui.FormatKeyValue(k, v, 10) }
	lines := []string{
		kv("JDK", strings.TrimSpace(d.JDKVersion+" "+d.FullJDKVersion)),
		kv("OS", d.OSName),
		kv("Max heap", utils.MemorySize(d.MaxHeapSize).String()),
	}
	if d.StartupTimeMillis > 0 {
		uptime := time.Since(time.UnixMilli(d.StartupTimeMillis))
		lines = append(lines, kv("Uptime", utils.FormatDuration(uptime)))
	}
	return strings.Join(lines, "\n")
}

func init() {
	rootCmd.AddCommand(psCmd)
	psCmd.Flags().BoolVarP(&psDescribe, "describe", "d", false, "Describe each process")
}
