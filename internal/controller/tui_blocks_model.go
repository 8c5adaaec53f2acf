package controller

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// blockDelegate renders one block row in the outline list.
type blockDelegate struct {
	offset int
}

func (d blockDelegate) Height() int  { return 1 }
func (d blockDelegate) Spacing() int { return 0 }
func (d blockDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

func (d blockDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	block, ok := item.(blockItem)
	if !ok {
		return
	}

	isSelected := index == m.Index()

	// Fixed columns: page(10) + type(8) + id(14) + spacing(6).
	previewWidth := m.Width() - 38

	var pageStyle, typeStyle, idStyle, previewStyle lipgloss.Style

	var displayPreview string

	if isSelected {
		selected := lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("6")).
			Bold(true)

		pageStyle = selected
		typeStyle = selected
		idStyle = selected
		previewStyle = selected

		displayPreview = animateScroll(block.preview, previewWidth, d.offset)
	} else {
		pageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
		typeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
		idStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
		previewStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))

		if block.void {
			previewStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
		}

		displayPreview = truncateToWidth(block.preview, previewWidth)
	}

	line := fmt.Sprintf("%s  %s  %s  %s",
		pageStyle.Render(fmt.Sprintf("%-10s", truncateToWidth(block.page, 10))),
		typeStyle.Render(fmt.Sprintf("%-8s", truncateToWidth(block.typ, 8))),
		idStyle.Render(fmt.Sprintf("%-14s", truncateToWidth(block.id, 14))),
		previewStyle.Render(displayPreview),
	)
	_, _ = fmt.Fprint(w, line)
}

func animateScroll(text string, width int, offset int) string {
	if width <= 0 {
		return ""
	}

	textWidth := lipgloss.Width(text)
	if textWidth <= width {
		return text
	}

	// Gap between repeats
	gap := "   "

	// Initial pause before scrolling starts (in ticks)
	pause := 5

	if offset < pause {
		return truncateToWidth(text, width)
	}

	effectiveStep := offset - pause

	// Create the repeating pattern: text + gap
	// We work with runes to handle multi-byte characters correctly
	runes := []rune(text + gap)
	n := len(runes)

	if n == 0 {
		return ""
	}

	start := effectiveStep % n

	// Construct the window
	res := make([]rune, 0, width)
	for i := range width {
		idx := (start + i) % n
		res = append(res, runes[idx])
	}

	return string(res)
}

func truncateToWidth(text string, width int) string {
	if width <= 0 {
		return ""
	}

	if lipgloss.Width(text) <= width {
		return text
	}

	const ellipsis = "…"

	if width <= 1 {
		return ellipsis
	}

	maxWidth := width - lipgloss.Width(ellipsis)
	if maxWidth <= 0 {
		return ellipsis
	}

	currentWidth := 0

	result := make([]rune, 0, len(text))
	for _, r := range text {
		rWidth := lipgloss.Width(string(r))
		if currentWidth+rWidth > maxWidth {
			break
		}

		result = append(result, r)
		currentWidth += rWidth
	}

	return string(result) + ellipsis
}

// blocksModel is the scrollable, filterable outline of every block across
// the scanned pages.
type blocksModel struct {
	width        int
	height       int
	blockList    list.Model
	delegate     blockDelegate
	total        int
	pages        int
	problems     []string
	rendered     bool
	animOffset   int
	lastSelected int
}

func newBlocksModel() blocksModel {
	delegate := blockDelegate{}
	blockList := list.New([]list.Item{}, delegate, 80, 20)
	blockList.SetShowPagination(false)
	blockList.SetShowFilter(true)
	blockList.SetShowHelp(false)
	blockList.SetShowTitle(false)
	blockList.SetShowStatusBar(false)
	blockList.FilterInput.Placeholder = "Filter blocks…"

	return blocksModel{
		blockList:    blockList,
		delegate:     delegate,
		lastSelected: -1,
	}
}

func (m blocksModel) Init() tea.Cmd {
	return tea.Tick(time.Second/2, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m blocksModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.blockList.SetWidth(m.width)

	case tickMsg:
		if m.blockList.FilterState() != list.Filtering && m.rendered {
			m.animOffset++
			m.delegate.offset = m.animOffset
			m.blockList.SetDelegate(m.delegate)
		}

		return m, tea.Tick(time.Millisecond*150, func(t time.Time) tea.Msg {
			return tickMsg(t)
		})

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case blocksMsg:
		m = m.handleBlocksMsg(msg)
	}

	return m, cmd
}

func (m blocksModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	filtering := m.blockList.FilterState() == list.Filtering

	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "q":
		if !filtering {
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd

	var newList list.Model

	newList, cmd = m.blockList.Update(msg)
	m.blockList = newList

	// Detect selection change to reset animation
	if m.blockList.Index() != m.lastSelected {
		m.lastSelected = m.blockList.Index()
		m.animOffset = 0
		m.delegate.offset = 0
		m.blockList.SetDelegate(m.delegate)
	}

	return m, cmd
}

func (m blocksModel) handleBlocksMsg(msg blocksMsg) blocksModel {
	items := make([]list.Item, 0)

	var problems []string

	for _, report := range msg.reports {
		page := string(report.Path.PageID())

		for _, e := range report.Errors {
			problems = append(problems, fmt.Sprintf("%s: %s", report.Path, e))
		}

		if report.Doc == nil {
			continue
		}

		for _, b := range report.Doc.Blocks {
			preview := clipText(b.PlainText(), 200)
			if b.Void {
				preview = "(void)"
			}

			items = append(items, blockItem{
				page:    page,
				id:      string(b.ID),
				typ:     b.Type,
				anchor:  b.Anchor,
				void:    b.Void,
				preview: preview,
			})
		}
	}

	m.pages = len(msg.reports)
	m.total = len(items)
	m.problems = problems
	m.blockList.SetItems(items)
	m.rendered = true

	if len(items) > 0 && m.lastSelected == -1 {
		m.lastSelected = 0
	}

	return m
}

func (m blocksModel) View() string {
	if !m.rendered {
		return "Scanning pages…\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("205")).
		Bold(true).
		Padding(1, 0, 0, 2)

	summaryStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("252")).
		Padding(0, 0, 1, 2)

	accentStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("6")) // Cyan

	title := titleStyle.Render("Quire Blocks")

	summary := summaryStyle.Render(fmt.Sprintf(
		"Blocks: %s   Pages: %s",
		accentStyle.Render(fmt.Sprintf("%d", m.total)),
		accentStyle.Render(fmt.Sprintf("%d", m.pages)),
	))

	table := m.renderTable()

	sections := []string{title, summary, table}

	if len(m.problems) > 0 {
		problemStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Padding(0, 0, 0, 2)

		shown := m.problems
		if len(shown) > 3 {
			shown = append(append([]string{}, shown[:3]...),
				fmt.Sprintf("(%d more)", len(m.problems)-3))
		}

		for _, p := range shown {
			sections = append(sections, problemStyle.Render(truncateToWidth(p, m.width-4)))
		}
	}

	footerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("8")).
		Align(lipgloss.Center).
		Width(m.width)

	sections = append(sections,
		footerStyle.Render("↑/k up • ↓/j down • g/G top/bottom • / filter • q quit"))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m blocksModel) renderTable() string {
	// Screen height minus title, summary, problems, footer and the
	// table chrome.
	listHeight := m.height - 9 - len(m.problems)
	if listHeight < 5 {
		listHeight = 5
	}

	listWidth := m.width - 6

	m.blockList.SetHeight(listHeight)
	m.blockList.SetWidth(listWidth)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("8")).
		Bold(true).
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("8")).
		Width(listWidth)

	headers := headerStyle.Render(fmt.Sprintf("%-10s  %-8s  %-14s  %s", "Page", "Type", "Block", "Text"))

	tableContainer := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("6")).
		Margin(0, 1).
		Padding(0, 1)

	return tableContainer.Render(
		lipgloss.JoinVertical(lipgloss.Left,
			headers,
			m.blockList.View(),
		),
	)
}
