package main

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/jwebster45206/narrative-engine/pkg/chat"
	"github.com/jwebster45206/narrative-engine/pkg/world"
)

const (
	NarratorName    = "Narrator"
	PlaceHolderText = "Paste narrator text, or /help for commands..."
)

// historyEntry is one rendered line group in the chat log.
type historyEntry struct {
	role string
	text string
}

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config        *ConsoleConfig
	client        *http.Client
	state         *world.State
	snapshot      *world.Snapshot
	history       []historyEntry
	choices       []chat.Choice
	inlineChoices []string
	chatViewport  viewport.Model
	worldViewport viewport.Model
	textarea      textarea.Model
	ready         bool
	width         int
	height        int
	err           error
	loading       bool
	statusLine    string

	// Quit confirmation state
	showQuitModal bool

	// Progress bar state
	progressTick int
}

type messageResponseMsg struct {
	response *chat.MessageResponse
	err      error
}

type snapshotMsg struct {
	snapshot *world.Snapshot
	err      error
}

// sessionReplacedMsg reports a wholesale state replacement (reset or
// import).
type sessionReplacedMsg struct {
	state *world.State
	note  string
	err   error
}

type exportDoneMsg struct {
	copied bool
	err    error
}

type timeAdvancedMsg struct {
	err error
}

type progressTickMsg struct{}

var (
	chatPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	worldPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	narratorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	choiceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey
)

func NewConsoleUI(cfg *ConsoleConfig, client *http.Client, st *world.State) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 4000
	ta.SetWidth(50)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	chatVp := viewport.New(50, 20)
	chatVp.MouseWheelEnabled = true

	worldVp := viewport.New(20, 20)

	snap := st.Snapshot()
	return ConsoleUI{
		config:        cfg,
		client:        client,
		state:         st,
		snapshot:      &snap,
		textarea:      ta,
		chatViewport:  chatVp,
		worldViewport: worldVp,
		ready:         false,
	}
}

func (m *ConsoleUI) writeChatContent() {
	chatWidth := m.chatViewport.Width - 6 // Account for left(3) + right(3) padding

	var content strings.Builder
	content.WriteString(titleStyle.Render("NARRATIVE ENGINE") + "\n\n")
	content.WriteString("Paste or type narrator text below. Update tags are applied to the world panel.\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", max(chatWidth-6, 10))) + "\n\n")

	for _, entry := range m.history {
		switch entry.role {
		case "narrator":
			content.WriteString(narratorStyle.Render(NarratorName+": ") + wordwrap.String(entry.text, chatWidth-6) + "\n\n")
		case "choice":
			content.WriteString(choiceStyle.Render(wordwrap.String(entry.text, chatWidth-6)) + "\n")
		case "error":
			content.WriteString(errorStyle.Render("Error: "+entry.text) + "\n\n")
		default:
			content.WriteString(userStyle.Render("You: ") + wordwrap.String(entry.text, chatWidth-6) + "\n\n")
		}
	}

	if m.loading {
		content.WriteString(m.renderProgressBar())
	}

	m.chatViewport.SetContent(content.String())
	m.chatViewport.GotoBottom()
}

func (m *ConsoleUI) writeWorldContent() {
	snap := m.snapshot
	var content strings.Builder
	content.WriteString(titleStyle.Render("WORLD") + "\n\n")

	if snap == nil {
		content.WriteString("No snapshot yet.\n")
		m.worldViewport.SetContent(content.String())
		return
	}

	content.WriteString(sectionStyle.Render("Location") + "\n")
	content.WriteString(snap.Location + "\n")
	content.WriteString(snap.Region + "\n\n")

	content.WriteString(sectionStyle.Render("Time") + "\n")
	content.WriteString(snap.TimeOfDay + "\n")
	content.WriteString(snap.Date + "\n\n")

	content.WriteString(sectionStyle.Render(fmt.Sprintf("Inventory (%d)", snap.InventoryCount)) + "\n")
	if len(snap.Inventory) == 0 {
		content.WriteString("Empty\n")
	}
	for _, item := range snap.Inventory {
		if item.Quantity > 1 {
			content.WriteString(fmt.Sprintf("• %s x%d\n", item.Name, item.Quantity))
		} else {
			content.WriteString("• " + item.Name + "\n")
		}
		if item.Description != "" {
			content.WriteString("  " + item.Description + "\n")
		}
	}
	content.WriteString("\n")

	content.WriteString(sectionStyle.Render(fmt.Sprintf("Characters (%d)", snap.RelationshipCount)) + "\n")
	if len(snap.Relationships) == 0 {
		content.WriteString("None met\n")
	}
	for _, rel := range snap.Relationships {
		content.WriteString(fmt.Sprintf("• %s (%s, %+d)\n", rel.Name, rel.Category, rel.Affection))
		if rel.MetAt != "" {
			content.WriteString("  met " + rel.MetAt + "\n")
		}
	}
	content.WriteString("\n")

	if len(snap.Journal) > 0 {
		content.WriteString(sectionStyle.Render("Journal") + "\n")
		for _, entry := range snap.Journal {
			content.WriteString(fmt.Sprintf("• %s: %s\n", entry.Name, entry.Status))
			if entry.Notes != "" {
				content.WriteString("  " + entry.Notes + "\n")
			}
		}
		content.WriteString("\n")
	}

	content.WriteString(sectionStyle.Render(fmt.Sprintf("Visited (%d)", snap.VisitedCount)) + "\n")
	for _, loc := range snap.VisitedLocations {
		content.WriteString("• " + loc + "\n")
	}
	content.WriteString("\n")

	content.WriteString(sectionStyle.Render("Commands") + "\n")
	content.WriteString("• Enter: Send\n")
	content.WriteString("• /help: Help\n")
	content.WriteString("• /reset: Reset world\n")
	content.WriteString("• /export: Copy save\n")
	content.WriteString("• /import: Load save\n")
	content.WriteString("• Ctrl+C: Quit\n")

	if m.statusLine != "" {
		content.WriteString("\n" + promptStyle.Render(m.statusLine) + "\n")
	}

	m.worldViewport.SetContent(content.String())
}

func (m ConsoleUI) Init() tea.Cmd {
	return textarea.Blink
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		wvCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.chatViewport, vpCmd = m.chatViewport.Update(msg)
		m.textarea, tiCmd = m.textarea.Update(msg)
		m.worldViewport, wvCmd = m.worldViewport.Update(msg)
		return m, tea.Batch(tiCmd, vpCmd, wvCmd)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		chatWidth := int(float64(m.width)*0.7) - 4
		worldWidth := m.width - chatWidth - 6

		m.chatViewport.Width = chatWidth - 2
		m.chatViewport.Height = m.height - 7
		m.worldViewport.Width = worldWidth - 2
		m.worldViewport.Height = m.height - 4
		m.textarea.SetWidth(chatWidth - 4)

		m.ready = true
		m.writeChatContent()
		m.writeWorldContent()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyEnter:
			if m.loading {
				return m, nil
			}

			input := strings.TrimSpace(m.textarea.Value())
			if input == "" {
				return m, nil
			}

			if strings.HasPrefix(input, "/") {
				return m.handleCommand(input)
			}

			// A bare number picks from the offered choices.
			if n, err := strconv.Atoi(input); err == nil && n >= 1 {
				if text, ok := m.choiceText(n); ok {
					m.textarea.Reset()
					m.history = append(m.history, historyEntry{role: "user", text: text})
					m.writeChatContent()
					return m, nil
				}
			}

			m.textarea.Reset()
			m.loading = true
			m.progressTick = 0

			m.history = append(m.history, historyEntry{role: "user", text: input})
			m.writeChatContent()

			return m, tea.Batch(m.sendNarratorText(input), progressTick())
		}

	case messageResponseMsg:
		m.loading = false
		if msg.err != nil {
			m.history = append(m.history, historyEntry{role: "error", text: msg.err.Error()})
		} else {
			m.history = append(m.history, historyEntry{role: "narrator", text: msg.response.Text})
			m.choices = msg.response.Generated
			m.inlineChoices = nil
			for _, c := range msg.response.Choices {
				m.inlineChoices = append(m.inlineChoices, c.Text)
				m.history = append(m.history, historyEntry{role: "choice", text: fmt.Sprintf("[%d] %s", c.Index, c.Text)})
			}
			for i, c := range msg.response.Generated {
				m.history = append(m.history, historyEntry{role: "choice", text: fmt.Sprintf("[%d] %s", i+1, c.Action)})
			}
			snap := msg.response.Snapshot
			m.snapshot = &snap
		}
		m.writeChatContent()
		m.writeWorldContent()
		m.chatViewport.GotoBottom()
		return m, nil

	case snapshotMsg:
		if msg.err == nil && msg.snapshot != nil {
			m.snapshot = msg.snapshot
			m.writeWorldContent()
		}

	case sessionReplacedMsg:
		if msg.err != nil {
			m.history = append(m.history, historyEntry{role: "error", text: msg.err.Error()})
		} else {
			m.state = msg.state
			snap := msg.state.Snapshot()
			m.snapshot = &snap
			m.history = append(m.history, historyEntry{role: "narrator", text: msg.note})
			m.choices = nil
			m.inlineChoices = nil
		}
		m.writeChatContent()
		m.writeWorldContent()

	case exportDoneMsg:
		if msg.err != nil {
			m.statusLine = "Export failed: " + msg.err.Error()
		} else if msg.copied {
			m.statusLine = "Save data copied to clipboard"
		} else {
			m.statusLine = "Save data exported"
		}
		m.writeWorldContent()

	case timeAdvancedMsg:
		if msg.err != nil {
			m.history = append(m.history, historyEntry{role: "error", text: msg.err.Error()})
			m.writeChatContent()
		}
		return m, m.refreshSnapshot()

	case progressTickMsg:
		if m.loading {
			m.progressTick++
			m.writeChatContent()
			return m, progressTick()
		}
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.chatViewport, vpCmd = m.chatViewport.Update(msg)
	m.worldViewport, wvCmd = m.worldViewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, wvCmd)
}

// choiceText resolves a 1-based pick against inline choices first, then
// generated ones.
func (m ConsoleUI) choiceText(n int) (string, bool) {
	if n <= len(m.inlineChoices) {
		return m.inlineChoices[n-1], true
	}
	if n <= len(m.choices) {
		return m.choices[n-1].Action, true
	}
	return "", false
}

func (m ConsoleUI) handleCommand(input string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(strings.TrimSpace(input))
	cmd := strings.ToLower(fields[0])
	m.textarea.Reset()

	switch cmd {
	case "/help":
		helpText := `
Commands:
• /help - Show this help
• /reset - Reset the world to fresh defaults
• /export - Copy save data to the clipboard
• /import - Import save data from the clipboard
• /time <minutes> - Advance the world clock
• Ctrl+C - Quit

How it works:
• Paste narrator text containing update tags and they are applied to the world
• Type a choice number to record a pick
`
		m.history = append(m.history, historyEntry{role: "narrator", text: helpText})
		m.writeChatContent()
		return m, nil

	case "/reset":
		return m, m.resetWorld()

	case "/export":
		return m, m.exportSave()

	case "/import":
		return m, m.importSave()

	case "/time":
		if len(fields) < 2 {
			m.history = append(m.history, historyEntry{role: "error", text: "usage: /time <minutes>"})
			m.writeChatContent()
			return m, nil
		}
		minutes, err := strconv.Atoi(fields[1])
		if err != nil || minutes <= 0 {
			m.history = append(m.history, historyEntry{role: "error", text: "minutes must be a positive number"})
			m.writeChatContent()
			return m, nil
		}
		return m, m.advanceClock(minutes)

	case "/quit":
		m.showQuitModal = true
		return m, nil

	default:
		m.history = append(m.history, historyEntry{role: "error", text: "unknown command: " + cmd})
		m.writeChatContent()
		return m, nil
	}
}

func (m ConsoleUI) sendNarratorText(text string) tea.Cmd {
	return func() tea.Msg {
		resp, err := sendMessage(m.client, m.config.APIBaseURL, m.state.ID, chat.RoleAssistant, text)
		return messageResponseMsg{resp, err}
	}
}

func (m ConsoleUI) refreshSnapshot() tea.Cmd {
	return func() tea.Msg {
		snap, err := getSnapshot(m.client, m.config.APIBaseURL, m.state.ID)
		return snapshotMsg{snap, err}
	}
}

func (m ConsoleUI) resetWorld() tea.Cmd {
	return func() tea.Msg {
		st, err := resetSession(m.client, m.config.APIBaseURL, m.state.ID)
		return sessionReplacedMsg{state: st, note: "The world has been reset.", err: err}
	}
}

func (m ConsoleUI) exportSave() tea.Cmd {
	return func() tea.Msg {
		blob, err := exportSession(m.client, m.config.APIBaseURL, m.state.ID)
		if err != nil {
			return exportDoneMsg{err: err}
		}
		if err := clipboard.WriteAll(string(blob)); err != nil {
			// Headless terminals have no clipboard. The export still
			// succeeded server-side.
			return exportDoneMsg{copied: false}
		}
		return exportDoneMsg{copied: true}
	}
}

func (m ConsoleUI) importSave() tea.Cmd {
	return func() tea.Msg {
		blob, err := clipboard.ReadAll()
		if err != nil || strings.TrimSpace(blob) == "" {
			return sessionReplacedMsg{err: fmt.Errorf("clipboard has no save data to import")}
		}
		st, err := importSession(m.client, m.config.APIBaseURL, m.state.ID, []byte(blob))
		return sessionReplacedMsg{state: st, note: "Save data imported.", err: err}
	}
}

func (m ConsoleUI) advanceClock(minutes int) tea.Cmd {
	return func() tea.Msg {
		_, err := advanceTime(m.client, m.config.APIBaseURL, m.state.ID, minutes)
		return timeAdvancedMsg{err}
	}
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				m.textarea.Focus()
				return m, textarea.Blink
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit?"))
	content.WriteString("\n\n")
	content.WriteString("Are you sure you want to quit? Unsaved sessions expire after 24 hours.")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}

	if !m.ready {
		return "\n  Initializing..."
	}

	chatWidth := int(float64(m.width)*0.7) - 4
	worldWidth := m.width - chatWidth - 6

	chatPanel := chatPanelStyle.Width(chatWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.chatViewport.View(),
			"",
			separatorStyle.Render(strings.Repeat("─", max(chatWidth-4, 10))),
			m.textarea.View(),
		),
	)

	worldPanel := worldPanelStyle.Width(worldWidth).Height(m.height - 2).Render(
		m.worldViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, chatPanel, worldPanel)
}

// renderProgressBar creates an animated progress bar for loading states
func (m ConsoleUI) renderProgressBar() string {
	usable := m.chatViewport.Width - 6
	if usable <= 0 {
		usable = 30
	}
	if usable > 80 {
		usable = 80
	} else if usable < 10 {
		usable = 10
	}

	const totalFrames = 40
	frame := m.progressTick % totalFrames
	filled := (frame * usable) / totalFrames

	var bar strings.Builder
	for i := 0; i < usable; i++ {
		if i < filled {
			bar.WriteString("█")
		} else if i == filled && frame%4 < 2 {
			bar.WriteString("▓")
		} else {
			bar.WriteString("░")
		}
	}
	return separatorStyle.Render(bar.String())
}

// progressTick creates a command that sends a progress tick message
func progressTick() tea.Cmd {
	return tea.Tick(time.Millisecond*200, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}
