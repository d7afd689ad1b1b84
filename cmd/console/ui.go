package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/storyloom/storyloom/internal/config"
	"github.com/storyloom/storyloom/internal/runner"
)

const (
	NarratorName    = "Narrator"
	PlaceHolderText = "What do you do?"
)

type transcriptLine struct {
	role string // "user" or "narrator"
	text string
}

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	cfg           *config.Config
	provider      llmProvider
	session       *localSession
	transcript    []transcriptLine
	lastNarrative string

	storyViewport viewport.Model
	metaViewport  viewport.Model
	textarea      textarea.Model
	ready         bool
	width         int
	height        int
	err           error
	loading       bool

	// Story selection state
	showStoryModal bool
	stories        []storyEntry
	selectedStory  int
	loadingStories bool

	// Quit confirmation state
	showQuitModal bool

	// Progress bar state
	progressTick int
}

type stepMsg struct {
	result *runner.StepResult
	err    error
}

type storiesLoadedMsg struct {
	stories []storyEntry
	err     error
}

type sessionStartedMsg struct {
	session *localSession
	err     error
}

type progressTickMsg struct{}

var (
	storyPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	narratorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	endingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("213")).
			Bold(true)

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

	modalItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	modalSelectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("205")).
				Bold(true)

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey
)

var endingTitleCaser = cases.Title(language.English)

func NewConsoleUI(cfg *config.Config, provider llmProvider) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 1000
	ta.SetWidth(50)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	storyVp := viewport.New(50, 20)
	storyVp.MouseWheelEnabled = true

	metaVp := viewport.New(20, 20)

	return ConsoleUI{
		cfg:            cfg,
		provider:       provider,
		textarea:       ta,
		storyViewport:  storyVp,
		metaViewport:   metaVp,
		ready:          false,
		showStoryModal: true,
		loadingStories: true,
		selectedStory:  0,
	}
}

func (m *ConsoleUI) writeMetadata() string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("SESSION") + "\n\n")

	if m.session == nil {
		content.WriteString("No session.\n")
		return content.String()
	}

	sess := m.session.runner.Session()

	content.WriteString("Story:\n")
	content.WriteString(sess.StoryName + "\n\n")

	content.WriteString("Scene:\n")
	content.WriteString(sess.CurrentScene + "\n\n")

	content.WriteString("Turns:\n")
	content.WriteString(fmt.Sprintf("%d total\n\n", len(sess.TurnHistory)))

	mem := m.session.runner.Memories(0)
	content.WriteString("Memories:\n")
	content.WriteString(fmt.Sprintf("%d kept\n\n", mem.TotalCount))

	if len(sess.Vars) > 0 {
		content.WriteString("Facts:\n")
		for _, k := range sess.Vars.Keys() {
			content.WriteString(fmt.Sprintf("• %s: %v\n", k, sess.Vars[k]))
		}
	} else {
		content.WriteString("Facts:\nNone yet\n")
	}

	content.WriteString("\n")
	content.WriteString("Commands:\n")
	content.WriteString("• Ctrl+C: Quit\n")
	content.WriteString("• Enter: Send\n")
	content.WriteString("• /help: Help\n")
	content.WriteString("• /facts: Facts\n")
	content.WriteString("• /copy: Copy last\n")

	return content.String()
}

// writeStoryContent rebuilds the transcript pane for the current viewport
// width.
func (m *ConsoleUI) writeStoryContent() {
	storyWidth := m.storyViewport.Width - 6

	var content strings.Builder
	content.WriteString(titleStyle.Render("STORYLOOM") + "\n\n")
	content.WriteString("Type what you do below. The narrator takes it from there.\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", max(storyWidth-6, 1))) + "\n\n")

	for _, line := range m.transcript {
		switch line.role {
		case "narrator":
			prefix := narratorStyle.Render(NarratorName + ": ")
			content.WriteString(prefix + wordwrap.String(line.text, storyWidth-len(NarratorName)-2) + "\n\n")
		case "user":
			content.WriteString(userStyle.Render("You: ") + wordwrap.String(line.text, storyWidth-6) + "\n\n")
		case "ending":
			content.WriteString(endingStyle.Render("✦ "+line.text) + "\n\n")
		}
	}

	if m.loading {
		content.WriteString(m.renderProgressBar())
	}

	m.storyViewport.SetContent(content.String())
	m.storyViewport.GotoBottom()
}

func (m ConsoleUI) Init() tea.Cmd {
	if m.showStoryModal {
		return m.loadStories()
	}
	return textarea.Blink
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showStoryModal {
		return m.updateStoryModal(msg)
	}
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		mvCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.storyViewport, vpCmd = m.storyViewport.Update(msg)
		m.textarea, tiCmd = m.textarea.Update(msg)
		m.metaViewport, mvCmd = m.metaViewport.Update(msg)
		return m, tea.Batch(tiCmd, vpCmd, mvCmd)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.writeStoryContent()
		m.metaViewport.SetContent(m.writeMetadata())
		m.ready = true

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

			if sess := m.session.runner.Session(); sess.IsComplete {
				m.textarea.Reset()
				return m, nil
			}

			m.textarea.Reset()
			m.loading = true
			m.progressTick = 0

			m.transcript = append(m.transcript, transcriptLine{role: "user", text: input})
			m.writeStoryContent()

			return m, tea.Batch(m.stepSession(input), progressTick())
		}

	case stepMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			m.writeStoryContent()
			currentContent := m.storyViewport.View()
			errorMsg := errorStyle.Render("Error: "+msg.err.Error()) + "\n" +
				promptStyle.Render("Nothing was applied. Try again.") + "\n\n"
			m.storyViewport.SetContent(currentContent + errorMsg)
			m.storyViewport.GotoBottom()
		} else {
			if msg.result.Narrative != "" {
				m.lastNarrative = msg.result.Narrative
				m.transcript = append(m.transcript, transcriptLine{role: "narrator", text: msg.result.Narrative})
			}
			if msg.result.Complete {
				banner := endingTitleCaser.String(strings.ReplaceAll(msg.result.EndingID, "_", " "))
				if banner == "" {
					banner = "The End"
				}
				if msg.result.EndingDescription != "" {
					banner += " — " + msg.result.EndingDescription
				}
				m.transcript = append(m.transcript, transcriptLine{role: "ending", text: banner})
			}
			m.writeStoryContent()
		}
		m.metaViewport.SetContent(m.writeMetadata())
		return m, nil

	case progressTickMsg:
		if m.loading {
			m.progressTick++
			m.writeStoryContent()
			return m, progressTick()
		}
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.storyViewport, vpCmd = m.storyViewport.Update(msg)
	m.metaViewport, mvCmd = m.metaViewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, mvCmd)
}

func (m *ConsoleUI) resize() {
	storyWidth := int(float64(m.width)*0.75) - 4
	metaWidth := m.width - storyWidth - 6

	m.storyViewport.Width = storyWidth - 2
	m.storyViewport.Height = m.height - 7
	m.metaViewport.Width = metaWidth - 2
	m.metaViewport.Height = m.height - 4
	m.textarea.SetWidth(storyWidth - 4)
}

func (m ConsoleUI) handleCommand(input string) (tea.Model, tea.Cmd) {
	cmd := strings.ToLower(strings.TrimSpace(input))

	switch cmd {
	case "/help":
		helpText := `
Commands:
• /help  - Show this help
• /facts - Show established facts
• /copy  - Copy the last narrator response
• Ctrl+C - Quit

How to play:
• Type your actions and press Enter
• The narrator weaves them into the story
• What you establish stays established
`
		currentContent := m.storyViewport.View()
		m.storyViewport.SetContent(currentContent + titleStyle.Render("Help:") + helpText + "\n")
		m.storyViewport.GotoBottom()

	case "/facts":
		var factsText strings.Builder
		factsText.WriteString(titleStyle.Render("Facts:") + "\n")
		sess := m.session.runner.Session()
		if len(sess.Vars) == 0 {
			factsText.WriteString("Nothing established yet.\n")
		} else {
			for _, k := range sess.Vars.Keys() {
				factsText.WriteString(fmt.Sprintf("• %s = %v\n", k, sess.Vars[k]))
			}
		}
		factsText.WriteString("\n")

		currentContent := m.storyViewport.View()
		m.storyViewport.SetContent(currentContent + factsText.String())
		m.storyViewport.GotoBottom()

	case "/copy":
		var note string
		if m.lastNarrative == "" {
			note = promptStyle.Render("Nothing to copy yet.") + "\n\n"
		} else if err := clipboard.WriteAll(m.lastNarrative); err != nil {
			note = errorStyle.Render("Copy failed: "+err.Error()) + "\n\n"
		} else {
			note = promptStyle.Render("Copied last narrator response.") + "\n\n"
		}
		currentContent := m.storyViewport.View()
		m.storyViewport.SetContent(currentContent + note)
		m.storyViewport.GotoBottom()
	}

	m.textarea.Reset()
	return m, nil
}

func (m ConsoleUI) stepSession(input string) tea.Cmd {
	session := m.session
	return func() tea.Msg {
		result, err := session.step(input)
		return stepMsg{result, err}
	}
}

func (m ConsoleUI) loadStories() tea.Cmd {
	dataDir := m.cfg.DataDir
	return func() tea.Msg {
		stories, err := listLocalStories(dataDir)
		return storiesLoadedMsg{stories, err}
	}
}

func (m ConsoleUI) startStory(entry storyEntry) tea.Cmd {
	cfg, provider := m.cfg, m.provider
	return func() tea.Msg {
		session, err := startSession(cfg, provider, entry, consoleLogger())
		return sessionStartedMsg{session, err}
	}
}

func (m ConsoleUI) updateStoryModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case storiesLoadedMsg:
		m.loadingStories = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.stories = msg.stories
		}

	case sessionStartedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.session = msg.session
			m.showStoryModal = false
			if m.width > 0 && m.height > 0 {
				m.resize()
			}
			m.writeStoryContent()
			m.metaViewport.SetContent(m.writeMetadata())
			m.textarea.Focus()
			m.ready = true
		}
		return m, textarea.Blink

	case tea.KeyMsg:
		if m.loadingStories {
			if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEsc {
				return m, tea.Quit
			}
			return m, nil
		}

		if m.err != nil {
			if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEsc {
				return m, tea.Quit
			}
			return m, nil
		}

		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyUp:
			if m.selectedStory > 0 {
				m.selectedStory--
			}
		case tea.KeyDown:
			if m.selectedStory < len(m.stories)-1 {
				m.selectedStory++
			}
		case tea.KeyEnter:
			if len(m.stories) > 0 {
				m.loading = true
				return m, m.startStory(m.stories[m.selectedStory])
			}
		}
	}

	return m, nil
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
				if m.showStoryModal {
					return m, nil
				}
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
	content.WriteString("Leave the story where it stands?")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) renderStoryModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder

	switch {
	case m.loadingStories:
		content.WriteString(modalTitleStyle.Render("Loading Stories..."))
		content.WriteString("\n\n")
		content.WriteString(loadingStyle.Render("Scanning the stories directory..."))
	case m.err != nil:
		content.WriteString(modalTitleStyle.Render("Error"))
		content.WriteString("\n\n")
		content.WriteString(errorStyle.Render(m.err.Error()))
		content.WriteString("\n\n")
		content.WriteString("Press Ctrl+C to exit")
	case m.loading:
		content.WriteString(modalTitleStyle.Render("Opening Story..."))
		content.WriteString("\n\n")
		content.WriteString(loadingStyle.Render("Setting the scene..."))
	default:
		content.WriteString(modalTitleStyle.Render("Select a Story"))
		content.WriteString("\n\n")

		for i, entry := range m.stories {
			label := fmt.Sprintf("%s (%s)", entry.Name, entry.File)
			if i == m.selectedStory {
				content.WriteString(modalSelectedItemStyle.Render("▶ " + label))
			} else {
				content.WriteString(modalItemStyle.Render("  " + label))
			}
			content.WriteString("\n")
		}

		content.WriteString("\n")
		content.WriteString(promptStyle.Render("Use ↑/↓ to navigate, Enter to select, Ctrl+C to exit"))
	}

	modal := modalStyle.Width(60).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showStoryModal {
		return m.renderStoryModal()
	}
	if m.showQuitModal {
		return m.renderQuitModal()
	}
	if !m.ready {
		return "\n  Initializing..."
	}

	storyWidth := int(float64(m.width)*0.75) - 4
	metaWidth := m.width - storyWidth - 6

	storyPanel := storyPanelStyle.Width(storyWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.storyViewport.View(),
			"",
			separatorStyle.Render(strings.Repeat("─", max(storyWidth-4, 1))),
			m.textarea.View(),
		),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, storyPanel, metaPanel)
}

// renderProgressBar animates a bar while a turn is being generated.
func (m ConsoleUI) renderProgressBar() string {
	usable := m.storyViewport.Width - 6
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
		switch {
		case i < filled:
			bar.WriteString("█")
		case i == filled && frame%4 < 2:
			bar.WriteString("▓")
		default:
			bar.WriteString("░")
		}
	}
	return separatorStyle.Render(bar.String())
}

func progressTick() tea.Cmd {
	return tea.Tick(time.Millisecond*200, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}
