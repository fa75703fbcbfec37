package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/Iron-Ham/hostbridge/internal/config"
	"github.com/Iron-Ham/hostbridge/internal/logging"
	"github.com/Iron-Ham/hostbridge/internal/tui"
	"github.com/spf13/cobra"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View bridge logs",
	Long: `View and filter bridge.log, the JSON log written by hosts.

Examples:
  # Show the last 50 lines
  hostbridge logs

  # Follow logs in real-time
  hostbridge logs -f

  # Only warnings and errors from the session layer
  hostbridge logs --level warn --component session

  # Show logs from the last hour matching a pattern
  hostbridge logs --since 1h --grep "token|auth"`,
	RunE: runLogs,
}

var (
	logsTail      int
	logsFollow    bool
	logsLevel     string
	logsSince     string
	logsGrep      string
	logsComponent string
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "Number of lines to show (0 for all)")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output (like tail -f)")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Filter by minimum level (debug/info/warn/error)")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show logs since duration ago (e.g., 1h, 30m)")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "Filter logs matching pattern (regex)")
	logsCmd.Flags().StringVar(&logsComponent, "component", "", "Only show entries from this component")
}

// logEntry is one parsed line of bridge.log
type logEntry struct {
	Time      time.Time      `json:"time"`
	Level     string         `json:"level"`
	Msg       string         `json:"msg"`
	Component string         `json:"component,omitempty"`
	HandleID  string         `json:"handle_id,omitempty"`
	Endpoint  string         `json:"endpoint,omitempty"`
	Extra     map[string]any `json:"-"`
}

// UnmarshalJSON captures fields beyond the known ones in Extra
func (e *logEntry) UnmarshalJSON(data []byte) error {
	type alias logEntry
	if err := json.Unmarshal(data, (*alias)(e)); err != nil {
		return err
	}

	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, known := range []string{"time", "level", "msg", "component", "handle_id", "endpoint"} {
		delete(all, known)
	}
	if len(all) > 0 {
		e.Extra = all
	}
	return nil
}

// logFilter selects entries to display
type logFilter struct {
	minLevel  int
	since     time.Time
	grep      *regexp.Regexp
	component string
}

// levelPriority orders levels for filtering; unknown levels sort first.
func levelPriority(level string) int {
	return slices.Index(logging.ValidLevels(), strings.ToUpper(level))
}

func (f logFilter) matches(e *logEntry) bool {
	if f.minLevel >= 0 && levelPriority(e.Level) < f.minLevel {
		return false
	}
	if !f.since.IsZero() && e.Time.Before(f.since) {
		return false
	}
	if f.component != "" && e.Component != f.component {
		return false
	}
	if f.grep != nil {
		text := e.Msg
		for _, v := range e.Extra {
			text += " " + fmt.Sprint(v)
		}
		if !f.grep.MatchString(text) {
			return false
		}
	}
	return true
}

// formatLogEntry renders an entry for the terminal
func formatLogEntry(e *logEntry) string {
	var sb strings.Builder
	sb.WriteString(tui.Muted.Render("[" + e.Time.Format("15:04:05.000") + "]"))
	sb.WriteString(" ")
	sb.WriteString(tui.LevelStyle(e.Level).Render("[" + strings.ToUpper(e.Level) + "]"))
	if e.Component != "" {
		sb.WriteString(" ")
		sb.WriteString(tui.Title.Render(e.Component))
	}
	sb.WriteString(" ")
	sb.WriteString(e.Msg)

	fields := map[string]any{}
	maps.Copy(fields, e.Extra)
	if e.HandleID != "" {
		fields["handle_id"] = e.HandleID
	}
	if e.Endpoint != "" {
		fields["endpoint"] = e.Endpoint
	}
	for _, key := range slices.Sorted(maps.Keys(fields)) {
		sb.WriteString(" ")
		sb.WriteString(tui.Muted.Render(key + "="))
		sb.WriteString(fmt.Sprint(fields[key]))
	}
	return sb.String()
}

// formatLogLine parses and filters one raw line. ok is false when the
// line should be skipped; unparseable lines are shown as they are.
func formatLogLine(line string, f logFilter) (string, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", false
	}
	var entry logEntry
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		return line, true
	}
	if !f.matches(&entry) {
		return "", false
	}
	return formatLogEntry(&entry), true
}

func runLogs(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	logPath := filepath.Join(config.Get().Logging.ResolveDir(), logging.LogFileName)

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		fmt.Fprintln(out, "No logs found.")
		fmt.Fprintln(out, "Logs are stored at:", logPath)
		return nil
	}

	f := logFilter{minLevel: -1, component: logsComponent}
	if logsLevel != "" {
		f.minLevel = levelPriority(logging.ParseLevel(logsLevel))
	}
	if logsSince != "" {
		d, err := time.ParseDuration(logsSince)
		if err != nil {
			return fmt.Errorf("invalid duration format: %w", err)
		}
		f.since = time.Now().Add(-d)
	}
	if logsGrep != "" {
		re, err := regexp.Compile(logsGrep)
		if err != nil {
			return fmt.Errorf("invalid grep pattern: %w", err)
		}
		f.grep = re
	}

	if logsFollow {
		return followLogs(cmd.Context(), out, logPath, f)
	}
	return displayLogs(out, logPath, logsTail, f)
}

// displayLogs prints the filtered tail of the log file
func displayLogs(out io.Writer, logPath string, tail int, f logFilter) error {
	file, err := os.Open(logPath)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line, ok := formatLogLine(scanner.Text(), f); ok {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading log file: %w", err)
	}

	if tail > 0 && len(lines) > tail {
		lines = lines[len(lines)-tail:]
	}
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
	if len(lines) == 0 {
		fmt.Fprintln(out, "No matching log entries found.")
	}
	return nil
}

// followLogs implements tail -f until ctx is done
func followLogs(ctx context.Context, out io.Writer, logPath string, f logFilter) error {
	file, err := os.Open(logPath)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}
	fmt.Fprint(out, "Following logs... (Ctrl+C to stop)\n\n")

	reader := bufio.NewReader(file)
	var partial string
	for {
		chunk, err := reader.ReadString('\n')
		partial += chunk
		if err == io.EOF {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("error reading log file: %w", err)
		}
		if line, ok := formatLogLine(partial, f); ok {
			fmt.Fprintln(out, line)
		}
		partial = ""
	}
}
