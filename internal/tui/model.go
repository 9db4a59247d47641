package tui

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"policybot/internal/domain"
	"policybot/internal/index"
	"policybot/internal/llm"
	"policybot/internal/loader"
	"policybot/internal/service"
)

// ChatPort is the TUI-facing subset of the policy service.
type ChatPort interface {
	Ask(ctx context.Context, question string) (domain.Answer, error)
	Reindex(ctx context.Context) (service.Stats, error)
	Ready() bool
}

type role int

const (
	roleUser role = iota
	roleAssistant
	roleSystem
)

type entry struct {
	role     role
	text     string
	sources  []string
	evidence string
}

type answerMsg struct {
	answer domain.Answer
	err    error
}

type reindexMsg struct {
	stats service.Stats
	err   error
}

// Model is the Bubble Tea model for the chat application.
type Model struct {
	ctx        context.Context
	service    ChatPort
	input      textinput.Model
	viewport   viewport.Model
	spinner    spinner.Model
	transcript []entry
	status     string
	busy       string
	ready      bool
}

// New creates a chat model. The service may not have an index yet; the user
// is told to press ctrl+r in that case.
func New(ctx context.Context, svc ChatPort) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about company policy..."
	ti.Focus()
	ti.CharLimit = 500
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	m := Model{ctx: ctx, service: svc, input: ti, viewport: viewport.New(0, 0), spinner: sp}
	if svc.Ready() {
		m.status = "Index loaded. Ask a question, ctrl+r to re-index, ctrl+c to quit."
	} else {
		m.status = describeError(index.ErrIndexNotFound)
	}
	return m
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and async result events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 1 + 1 + qh + 1 // header, status, input box, input line
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-th)
		m.refresh()
		return m, nil

	case answerMsg:
		m.busy = ""
		if msg.err != nil {
			m.status = describeError(msg.err)
			m.transcript = append(m.transcript, entry{role: roleSystem, text: m.status})
		} else {
			m.transcript = append(m.transcript, entry{
				role:     roleAssistant,
				text:     msg.answer.Text,
				sources:  msg.answer.Sources,
				evidence: evidence(msg.answer),
			})
			m.status = fmt.Sprintf("Answered from %d passages.", len(msg.answer.Results))
		}
		m.refresh()
		return m, nil

	case reindexMsg:
		m.busy = ""
		if msg.err != nil {
			m.status = describeError(msg.err)
		} else {
			m.status = fmt.Sprintf("Vector database updated: %d documents, %d chunks, %d sections.",
				msg.stats.Documents, msg.stats.Chunks, len(msg.stats.Sections))
		}
		m.transcript = append(m.transcript, entry{role: roleSystem, text: m.status})
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if m.busy == "" {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.busy != "" {
				return m, nil
			}
			m.input.Reset()
			m.transcript = append(m.transcript, entry{role: roleUser, text: q})
			m.busy = "Thinking..."
			m.refresh()
			return m, tea.Batch(m.spinner.Tick, m.ask(q))
		case "ctrl+r":
			if m.busy != "" {
				return m, nil
			}
			m.busy = "Processing documents..."
			return m, tea.Batch(m.spinner.Tick, m.reindex())
		case "pgup", "pgdown", "up", "down":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the TUI layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("PolicyBot HR Chatbot")
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	if m.busy != "" {
		status = m.spinner.View() + " " + busyStyle.Render(m.busy)
	}
	return header + "\n" + transcript + "\n" + input + "\n" + status
}

func (m Model) ask(q string) tea.Cmd {
	ctx, svc := m.ctx, m.service
	return func() tea.Msg {
		ans, err := svc.Ask(ctx, q)
		return answerMsg{answer: ans, err: err}
	}
}

func (m Model) reindex() tea.Cmd {
	ctx, svc := m.ctx, m.service
	return func() tea.Msg {
		st, err := svc.Reindex(ctx)
		return reindexMsg{stats: st, err: err}
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) renderTranscript() string {
	if len(m.transcript) == 0 {
		return dimStyle.Render("No messages yet.")
	}
	wrap := lipgloss.NewStyle().Width(max(10, m.viewport.Width-2))
	var b strings.Builder
	for i, e := range m.transcript {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch e.role {
		case roleUser:
			b.WriteString(userStyle.Render("You: ") + wrap.Render(e.text))
		case roleAssistant:
			b.WriteString(botStyle.Render("PolicyBot:") + "\n" + wrap.Render(e.text))
			if e.evidence != "" {
				b.WriteString("\n" + wrap.Render(e.evidence))
			}
			for _, s := range e.sources {
				b.WriteString("\n" + dimStyle.Render("  · "+s))
			}
		case roleSystem:
			b.WriteString(dimStyle.Render(wrap.Render(e.text)))
		}
	}
	return b.String()
}

// describeError turns service failures into the distinct messages the user sees.
func describeError(err error) string {
	switch {
	case errors.Is(err, index.ErrIndexNotFound):
		return "Vector DB not found. Press ctrl+r to re-index the documents."
	case errors.Is(err, loader.ErrDataDirNotFound):
		return "Data folder not found. Place your PDF/DOCX files in the data folder and press ctrl+r."
	case errors.Is(err, loader.ErrNoDocuments):
		return "No policy documents found. Place your PDF/DOCX files in the data folder and press ctrl+r."
	case errors.Is(err, service.ErrEmptyQuestion):
		return "Please type a question."
	case errors.Is(err, llm.ErrUnavailable):
		return "The answer service is temporarily unavailable. Try again shortly."
	case errors.Is(err, context.Canceled):
		return "Cancelled."
	default:
		return "Error: " + err.Error()
	}
}

// evidence quotes the sentence of the top passage that best matches the question.
func evidence(ans domain.Answer) string {
	if len(ans.Sources) == 0 || len(ans.Results) == 0 {
		return ""
	}
	best := bestSentence(ans.Results[0].Chunk.Text, ans.Question)
	if best == "" {
		return ""
	}
	return dimStyle.Render("Evidence: ") + highlightStyle.Render(best)
}

var (
	headerStyle        = lipgloss.NewStyle().Bold(true)
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	userStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	botStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	dimStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	busyStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	unicodeWordRe      = regexp.MustCompile(`\d+(?:\.\d+)+|[\p{L}\p{N}]+(?:['’]\p{L}+)*`)
	sentenceRe         = regexp.MustCompile(`(?:[^.!?]|[.!?][^\s.!?])+(?:[.!?]+|$)`)
)

// bestSentence returns the sentence of text sharing the most words with query.
func bestSentence(text, query string) string {
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return ""
	}
	best, bestScore := "", 0
	for _, s := range sentenceRe.FindAllString(text, -1) {
		s = strings.Join(strings.Fields(s), " ")
		if score := tokenOverlapScore(qTokens, s); score > bestScore {
			best, bestScore = s, score
		}
	}
	return best
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	seen := map[string]struct{}{}
	for _, t := range unicodeWordRe.FindAllString(strings.ToLower(sentence), -1) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
