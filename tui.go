package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUI message types
type RecordingStartMsg struct{}
type RecordingStopMsg struct{}
type RecordingTickMsg struct{ Duration float64 }
type AudioLevelMsg struct{ Level float64 }
type DraftMsg struct{ Text string }
type TranscriptionMsg struct {
	Text     string
	Copied   bool
	NoSpeech bool // nothing usable came out of the session
}
type ModeLineMsg struct{ Text string }
type DeviceLineMsg struct{ Text string }
type BluetoothWarningMsg struct{ IsBT bool }
type HybridHelpMsg struct{ Enabled bool }
type NoVoiceWarningMsg struct{}
type VoiceClearedMsg struct{}
type SilenceAutoCloseMsg struct{}
type ErrorMsg struct{ Text string }
type tickMsg time.Time

type tuiState int

const (
	tuiStateIdle tuiState = iota
	tuiStateRecording
)

var (
	tuiProgram   *tea.Program
	tuiMu        sync.Mutex
	tuiReady     = make(chan struct{})
	tuiReadyOnce sync.Once
)

// tuiSend delivers a message to the TUI if one is running; headless and
// test modes just drop it.
func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

var (
	styleRec     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleStandby = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleMode    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	styleDim     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleWarn    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	styleError   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleText    = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	styleDraft   = lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Italic(true)
	styleOK      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleMeter   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	styleHelp    = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	styleHelpKey = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
)

type tuiModel struct {
	state             tuiState
	recordingDuration float64
	audioLevel        float64
	peakLevel         float64
	msgCount          int
	width, height     int
	modeLine          string
	deviceLine        string
	btWarning         bool
	hybrid            bool
	noVoiceWarning    bool
	autoClosed        bool
	draft             string
	lastText          string
	lastError         string
	copiedToClipboard bool
	noSpeech          bool
}

func NewTUIProgram() *tea.Program {
	m := tuiModel{}
	return tea.NewProgram(m, tea.WithAltScreen())
}

func tuiTick() tea.Cmd {
	return tea.Tick(60*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	tuiReadyOnce.Do(func() { close(tuiReady) })
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}

	case tickMsg:
		return m, tuiTick()

	case RecordingStartMsg:
		m.state = tuiStateRecording
		m.recordingDuration = 0
		m.audioLevel = 0
		m.peakLevel = 0
		m.noVoiceWarning = false
		m.autoClosed = false
		m.draft = ""
		m.lastError = ""

	case RecordingStopMsg:
		m.state = tuiStateIdle
		m.audioLevel = 0
		m.noVoiceWarning = false

	case RecordingTickMsg:
		m.recordingDuration = msg.Duration

	case AudioLevelMsg:
		if m.state == tuiStateRecording {
			m.audioLevel = m.audioLevel*0.6 + msg.Level*0.4
			if msg.Level > m.peakLevel {
				m.peakLevel = msg.Level
			}
		}

	case DraftMsg:
		m.draft = msg.Text

	case TranscriptionMsg:
		m.msgCount++
		m.lastText = msg.Text
		m.copiedToClipboard = msg.Copied
		m.noSpeech = msg.NoSpeech

	case ModeLineMsg:
		m.modeLine = msg.Text

	case DeviceLineMsg:
		m.deviceLine = msg.Text

	case BluetoothWarningMsg:
		m.btWarning = msg.IsBT

	case HybridHelpMsg:
		m.hybrid = msg.Enabled

	case NoVoiceWarningMsg:
		m.noVoiceWarning = true

	case VoiceClearedMsg:
		m.noVoiceWarning = false

	case SilenceAutoCloseMsg:
		m.autoClosed = true

	case ErrorMsg:
		m.lastError = msg.Text
	}
	return m, nil
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var b strings.Builder

	if m.state == tuiStateRecording {
		b.WriteString(styleRec.Render(fmt.Sprintf("● REC %.1fs", m.recordingDuration)))
		b.WriteString("  ")
		b.WriteString(styleMeter.Render(levelMeter(m.audioLevel, 20)))
		b.WriteString("\n")
		if m.noVoiceWarning {
			b.WriteString(styleWarn.Render("  ⚠ no voice detected") + "\n")
		}
		if m.draft != "" {
			wrapWidth := m.width - 4
			for _, line := range wrapText(m.draft, wrapWidth) {
				b.WriteString(styleDraft.Render("  "+line) + "\n")
			}
		}
	} else {
		b.WriteString(styleStandby.Render("○ STANDBY") + "\n")
	}
	b.WriteString("\n")

	if m.modeLine != "" {
		b.WriteString(styleMode.Render(m.modeLine) + "\n")
	}
	if m.deviceLine != "" {
		b.WriteString(styleDim.Render(m.deviceLine) + "\n")
	}
	if m.btWarning {
		b.WriteString(styleWarn.Render("⚠ Bluetooth mic: expect latency and reduced quality") + "\n")
	}
	if m.autoClosed {
		b.WriteString(styleWarn.Render("recording auto-closed after long silence") + "\n")
	}
	if m.lastError != "" {
		b.WriteString(styleError.Render("✗ "+m.lastError) + "\n")
	}
	b.WriteString("\n")

	if m.lastText != "" {
		b.WriteString(styleDim.Render(fmt.Sprintf("Last transcription (#%d)", m.msgCount)) + "\n")
		textStyle := styleText
		if m.noSpeech {
			textStyle = styleWarn
		}
		wrapWidth := m.width - 2
		lines := wrapText(m.lastText, wrapWidth)
		for i, line := range lines {
			b.WriteString(textStyle.Render(line))
			if i == len(lines)-1 && m.copiedToClipboard && !m.noSpeech {
				b.WriteString(" " + styleOK.Render("[✓ copied]"))
			}
			b.WriteString("\n")
		}
	} else {
		b.WriteString(styleDim.Render("No transcriptions yet") + "\n")
	}
	b.WriteString("\n")

	help := styleHelpKey.Render("Ctrl+Shift+Space")
	if m.hybrid {
		help += styleHelp.Render(" tap to toggle, hold to talk")
	} else {
		help += styleHelp.Render(" to record")
	}
	b.WriteString(help + "\n")
	b.WriteString(styleHelp.Render("hush "+version) + "\n")

	return b.String()
}

func levelMeter(level float64, width int) string {
	// Typical speech RMS sits well under 0.3; scale so it fills the bar.
	filled := int(level * 3.3 * float64(width))
	if filled > width {
		filled = width
	}
	return strings.Repeat("▰", filled) + strings.Repeat("▱", width-filled)
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}
