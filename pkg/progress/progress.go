// Package progress provides timestamped resolution tracing to stdout and an
// optional trace file, color coded by the tier that served each decision.
package progress

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"golang.org/x/term"
)

// Phase classifies trace lines for color coding.
type Phase string

// phase constants for resolution stages.
const (
	PhaseSkill  Phase = "skill-api"     // dedicated skill key resolution (green)
	PhaseLLM    Phase = "user-llm"      // provider capability resolution (cyan)
	PhaseFree   Phase = "free-fallback" // free tool resolution (yellow)
	PhaseModel  Phase = "model"         // chat model resolution (magenta)
	PhaseSystem Phase = "system"        // catalog/key plumbing (white)
)

// phase colors using fatih/color.
var (
	skillColor     = color.New(color.FgGreen)
	llmColor       = color.New(color.FgCyan)
	freeColor      = color.New(color.FgYellow)
	modelColor     = color.New(color.FgMagenta)
	systemColor    = color.New(color.FgWhite)
	warnColor      = color.New(color.FgYellow)
	errorColor     = color.New(color.FgRed)
	timestampColor = color.New(color.FgWhite)
)

// phaseColors maps phases to their color functions.
var phaseColors = map[Phase]*color.Color{
	PhaseSkill:  skillColor,
	PhaseLLM:    llmColor,
	PhaseFree:   freeColor,
	PhaseModel:  modelColor,
	PhaseSystem: systemColor,
}

// Logger writes timestamped trace output to stdout and an optional trace file.
type Logger struct {
	file      *os.File
	stdout    io.Writer
	startTime time.Time
	phase     Phase
}

// Config holds logger configuration.
type Config struct {
	TraceFile string // optional path for a plain-text trace copy
	NoColor   bool   // disable color output (sets color.NoColor globally)
}

// NewLogger creates a logger. the trace file is optional; stdout always gets
// the colored stream.
func NewLogger(cfg Config) (*Logger, error) {
	if cfg.NoColor {
		color.NoColor = true
	}

	l := &Logger{
		stdout:    os.Stdout,
		startTime: time.Now(),
		phase:     PhaseSystem,
	}

	if cfg.TraceFile != "" {
		f, err := os.Create(cfg.TraceFile) //nolint:gosec // path comes from user config
		if err != nil {
			return nil, fmt.Errorf("create trace file: %w", err)
		}
		l.file = f
		l.writeFile("# Resolution Trace\n")
		l.writeFile("Started: %s\n", time.Now().Format("2006-01-02 15:04:05"))
		l.writeFile("%s\n\n", strings.Repeat("-", 60))
	}

	return l, nil
}

// Path returns the trace file path, "" when tracing only to stdout.
func (l *Logger) Path() string {
	if l.file == nil {
		return ""
	}
	return l.file.Name()
}

// SetPhase sets the current phase for color coding.
func (l *Logger) SetPhase(phase Phase) {
	l.phase = phase
}

// timestampFormat is the format for timestamps: YY-MM-DD HH:MM:SS
const timestampFormat = "06-01-02 15:04:05"

// Print writes a timestamped message to both file and stdout.
func (l *Logger) Print(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	timestamp := time.Now().Format(timestampFormat)

	// file copy stays uncolored
	l.writeFile("[%s] %s\n", timestamp, msg)

	phaseColor := phaseColors[l.phase]
	if phaseColor == nil {
		phaseColor = systemColor
	}
	tsStr := timestampColor.Sprintf("[%s]", timestamp)
	l.writeStdout("%s %s\n", tsStr, phaseColor.Sprint(msg))
}

// PrintAligned writes multi-line content with the timestamp on the first line
// and aligned indentation on continuations, wrapping to the terminal width.
// used for rendered explanation chains.
func (l *Logger) PrintAligned(text string) {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return
	}

	timestamp := time.Now().Format(timestampFormat)
	phaseColor := phaseColors[l.phase]
	if phaseColor == nil {
		phaseColor = systemColor
	}
	tsPrefix := timestampColor.Sprintf("[%s]", timestamp)
	indent := strings.Repeat(" ", 20) // aligns with "[YY-MM-DD HH:MM:SS] "

	width := terminalWidth()
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if len(line) > width {
			for _, wrapped := range strings.Split(wrapText(line, width), "\n") {
				lines = append(lines, wrapped)
			}
		} else {
			lines = append(lines, line)
		}
	}

	for i, line := range lines {
		if line == "" {
			l.writeFile("\n")
			l.writeStdout("\n")
			continue
		}
		if i == 0 {
			l.writeFile("[%s] %s\n", timestamp, line)
			l.writeStdout("%s %s\n", tsPrefix, phaseColor.Sprint(line))
		} else {
			l.writeFile("%s%s\n", indent, line)
			l.writeStdout("%s%s\n", indent, phaseColor.Sprint(line))
		}
	}
}

// Warn writes a warning message in yellow.
func (l *Logger) Warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	timestamp := time.Now().Format(timestampFormat)

	l.writeFile("[%s] WARN: %s\n", timestamp, msg)

	tsStr := timestampColor.Sprintf("[%s]", timestamp)
	l.writeStdout("%s %s\n", tsStr, warnColor.Sprintf("WARN: %s", msg))
}

// Error writes an error message in red.
func (l *Logger) Error(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	timestamp := time.Now().Format(timestampFormat)

	l.writeFile("[%s] ERROR: %s\n", timestamp, msg)

	tsStr := timestampColor.Sprintf("[%s]", timestamp)
	l.writeStdout("%s %s\n", tsStr, errorColor.Sprintf("ERROR: %s", msg))
}

// Elapsed returns formatted elapsed time since start.
func (l *Logger) Elapsed() string {
	return humanize.RelTime(l.startTime, time.Now(), "", "")
}

// Close writes the footer and closes the trace file if one is open.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}

	l.writeFile("\n%s\n", strings.Repeat("-", 60))
	l.writeFile("Completed: %s (%s)\n", time.Now().Format("2006-01-02 15:04:05"), l.Elapsed())

	if err := l.file.Close(); err != nil {
		return fmt.Errorf("close trace file: %w", err)
	}
	return nil
}

func (l *Logger) writeFile(format string, args ...any) {
	if l.file != nil {
		fmt.Fprintf(l.file, format, args...)
	}
}

func (l *Logger) writeStdout(format string, args ...any) {
	fmt.Fprintf(l.stdout, format, args...)
}

// terminalWidth returns content width: COLUMNS env var or syscall, minus the
// timestamp prefix, defaulting to 60 when detection fails.
func terminalWidth() int {
	const minWidth = 40

	if cols := os.Getenv("COLUMNS"); cols != "" {
		if w, err := strconv.Atoi(cols); err == nil && w > 0 {
			return max(w-20, minWidth)
		}
	}

	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return max(w-20, minWidth)
	}

	return 80 - 20
}

// wrapText wraps text to the given width on word boundaries.
func wrapText(text string, width int) string {
	if width <= 0 || len(text) <= width {
		return text
	}

	var result strings.Builder
	lineLen := 0
	for i, word := range strings.Fields(text) {
		if i == 0 {
			result.WriteString(word)
			lineLen = len(word)
			continue
		}
		if lineLen+1+len(word) <= width {
			result.WriteString(" ")
			result.WriteString(word)
			lineLen += 1 + len(word)
		} else {
			result.WriteString("\n")
			result.WriteString(word)
			lineLen = len(word)
		}
	}
	return result.String()
}
