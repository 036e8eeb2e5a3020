package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/Iyanyourbae/Updater-Releases/internal/logger"
	"github.com/Iyanyourbae/Updater-Releases/internal/modules/downloads"
	"github.com/Iyanyourbae/Updater-Releases/internal/repolist"
	"github.com/Iyanyourbae/Updater-Releases/internal/ui/components"
	"github.com/Iyanyourbae/Updater-Releases/internal/ui/events"
	"github.com/Iyanyourbae/Updater-Releases/internal/updater"
)

type mode int

const (
	modeList mode = iota
	modeAddURL
	modeAddFolder
	modeConfirmDelete
	modeConfirmOverwrite
	modeAssetPicker
)

// selection is the row whose releases were fetched with enter
type selection struct {
	index    int
	entry    repolist.Entry
	releases []string
	release  int
}

func (s *selection) tag() string {
	if s == nil || len(s.releases) == 0 {
		return updater.LatestTag
	}
	return s.releases[s.release]
}

// jobView is the progress card state of the current or last job
type jobView struct {
	job      *updater.Job
	asset    updater.Asset
	tag      string
	entry    repolist.Entry
	started  time.Time
	progress updater.Progress
	status   string
	level    string
}

// Model represents the repositories module state
type Model struct {
	ctx     context.Context
	client  *updater.Client
	worker  *updater.Worker
	repos   *repolist.List
	history *downloads.History

	width   int
	height  int
	focused bool
	cursor  int
	mode    mode
	input   string
	newURL  string

	selection *selection
	loading   string
	frame     int

	assets      []updater.Asset
	assetCursor int

	current *jobView

	statusMsg  string
	statusType string
	now        func() time.Time
}

// Deps are the collaborators of the module
type Deps struct {
	Context context.Context
	Client  *updater.Client
	Worker  *updater.Worker
	Repos   *repolist.List
	History *downloads.History
}

// New creates the repositories module
func New(d Deps) *Model {
	ctx := d.Context
	if ctx == nil {
		ctx = context.Background()
	}
	history := d.History
	if history == nil {
		history = downloads.NewHistory()
	}
	m := &Model{
		ctx:     ctx,
		client:  d.Client,
		worker:  d.Worker,
		repos:   d.Repos,
		history: history,
		now:     time.Now,
	}
	if err := d.Repos.LoadErr(); err != nil {
		m.setStatus("error", err.Error()+" (press O to reload, S to overwrite)")
	}
	return m
}

type releasesLoadedMsg struct {
	index    int
	entry    repolist.Entry
	releases []string
	err      error
}

type assetsLoadedMsg struct {
	index  int
	tag    string
	assets []updater.Asset
	err    error
}

type spinnerTickMsg struct{}

func spin() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg {
		return spinnerTickMsg{}
	})
}

type jobEventMsg struct {
	job   *updater.Job
	event updater.Event
	ok    bool
}

// Init initializes the module
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (interface{}, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case events.Focus:
		m.focused = true

	case events.Blur:
		m.focused = false

	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case releasesLoadedMsg:
		return m, m.onReleases(msg)

	case assetsLoadedMsg:
		return m, m.onAssets(msg)

	case jobEventMsg:
		return m, m.onJobEvent(msg)

	case spinnerTickMsg:
		if m.loading == "" {
			return m, nil
		}
		m.frame++
		return m, spin()
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch m.mode {
	case modeAddURL, modeAddFolder:
		return m.handleInput(msg)
	case modeConfirmDelete:
		return m.handleConfirm(msg)
	case modeConfirmOverwrite:
		return m.handleOverwrite(msg)
	case modeAssetPicker:
		return m.handleAssetPicker(msg)
	}

	key := strings.ToLower(msg.String())

	// a running job only accepts cancellation
	if m.jobRunning() {
		switch key {
		case "c", "esc":
			m.current.job.Cancel()
			m.current.status = "Canceling..."
			m.setStatus("info", "Cancellation requested")
		}
		return nil
	}

	if m.loading != "" {
		return nil
	}

	switch key {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < m.repos.Len()-1 {
			m.cursor++
		}

	case "a":
		m.mode = modeAddURL
		m.input = ""
		m.newURL = ""

	case "d":
		if m.repos.Len() > 0 {
			m.mode = modeConfirmDelete
		}

	case "s":
		err := m.repos.Save()
		switch {
		case errors.Is(err, repolist.ErrUnreadableFile):
			m.mode = modeConfirmOverwrite
		case err != nil:
			logger.Error("Saving repositories failed: %v", err)
			m.setStatus("error", err.Error())
		default:
			m.setStatus("success", fmt.Sprintf("Saved %d repositories to %s", m.repos.Len(), m.repos.Path()))
		}

	case "o":
		if err := m.repos.Reload(); err != nil {
			logger.Error("Loading repositories failed: %v", err)
			m.setStatus("error", err.Error())
		} else {
			m.selection = nil
			m.clampCursor()
			m.setStatus("success", fmt.Sprintf("Loaded %d repositories", m.repos.Len()))
		}

	case "enter":
		entry, ok := m.repos.At(m.cursor)
		if !ok {
			return nil
		}
		m.loading = "Fetching releases..."
		return tea.Batch(m.fetchReleases(m.cursor, entry), spin())

	case "left", "h":
		if m.selection != nil && m.selection.release > 0 {
			m.selection.release--
		}

	case "right", "l":
		if m.selection != nil && m.selection.release < len(m.selection.releases)-1 {
			m.selection.release++
		}

	case "i":
		if m.selection == nil {
			m.setStatus("warning", "Select a repository with Enter first")
			return nil
		}
		m.loading = "Fetching assets..."
		return tea.Batch(m.fetchAssets(m.selection.index, m.selection.entry, m.selection.tag()), spin())
	}

	return nil
}

func (m *Model) handleInput(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = modeList
		m.input = ""
		m.setStatus("info", "Add canceled")
	case tea.KeyBackspace:
		if r := []rune(m.input); len(r) > 0 {
			m.input = string(r[:len(r)-1])
		}
	case tea.KeySpace:
		m.input += " "
	case tea.KeyRunes:
		m.input += string(msg.Runes)
	case tea.KeyEnter:
		value := strings.TrimSpace(m.input)
		if m.mode == modeAddURL {
			if !strings.Contains(value, repolist.HostMarker) {
				m.setStatus("error", fmt.Sprintf("Repository URL must contain %q", repolist.HostMarker))
				return nil
			}
			m.newURL = value
			m.input = ""
			m.mode = modeAddFolder
			return nil
		}
		entry, err := m.repos.Add(m.newURL, value)
		if err != nil {
			m.setStatus("error", err.Error())
			return nil
		}
		m.mode = modeList
		m.input = ""
		m.cursor = m.repos.Len() - 1
		logger.Info("Added repository %s -> %s", entry.RepoURL, entry.DownloadFolder)
		m.setStatus("success", "Added "+entry.RepoURL+" (press S to save)")
	}
	return nil
}

func (m *Model) handleConfirm(msg tea.KeyMsg) tea.Cmd {
	switch strings.ToLower(msg.String()) {
	case "y":
		removed, err := m.repos.Remove(m.cursor)
		m.mode = modeList
		if err != nil {
			m.setStatus("error", err.Error())
			return nil
		}
		if m.selection != nil {
			if m.selection.index == m.cursor {
				m.selection = nil
			} else if m.selection.index > m.cursor {
				m.selection.index--
			}
		}
		m.clampCursor()
		m.setStatus("success", "Removed "+removed.RepoURL+" (press S to save)")
	case "n", "esc", "q":
		m.mode = modeList
	}
	return nil
}

func (m *Model) handleOverwrite(msg tea.KeyMsg) tea.Cmd {
	switch strings.ToLower(msg.String()) {
	case "y":
		m.mode = modeList
		if err := m.repos.Overwrite(); err != nil {
			logger.Error("Overwriting repositories failed: %v", err)
			m.setStatus("error", err.Error())
			return nil
		}
		logger.Warn("Replaced unreadable repository file %s", m.repos.Path())
		m.setStatus("success", fmt.Sprintf("Saved %d repositories to %s", m.repos.Len(), m.repos.Path()))
	case "n", "esc", "q":
		m.mode = modeList
		m.setStatus("warning", "Not saved. Fix the file and press O to reload it.")
	}
	return nil
}

func (m *Model) handleAssetPicker(msg tea.KeyMsg) tea.Cmd {
	switch strings.ToLower(msg.String()) {
	case "up", "k":
		if m.assetCursor > 0 {
			m.assetCursor--
		}
	case "down", "j":
		if m.assetCursor < len(m.assets)-1 {
			m.assetCursor++
		}
	case "esc", "q":
		m.mode = modeList
		m.assets = nil
	case "enter":
		if m.assetCursor >= len(m.assets) {
			return nil
		}
		asset := m.assets[m.assetCursor]
		m.mode = modeList
		m.assets = nil
		return m.startJob(asset)
	}
	return nil
}

func (m *Model) onReleases(msg releasesLoadedMsg) tea.Cmd {
	m.loading = ""
	if msg.err != nil && !updater.IsQueryFailure(msg.err) {
		m.setStatus("error", msg.err.Error())
		return nil
	}
	m.selection = &selection{
		index:    msg.index,
		entry:    msg.entry,
		releases: msg.releases,
	}
	if msg.err != nil {
		m.setStatus("warning", msg.err.Error())
		return nil
	}
	m.setStatus("info", fmt.Sprintf("%d release(s) found; ←/→ to choose, I to install", len(msg.releases)-1))
	return nil
}

func (m *Model) onAssets(msg assetsLoadedMsg) tea.Cmd {
	m.loading = ""
	if msg.err != nil && !updater.IsQueryFailure(msg.err) {
		m.setStatus("error", msg.err.Error())
		return nil
	}
	if err := updater.RequireAssets(msg.assets); err != nil {
		// a query warning explains why the list is empty
		if msg.err != nil {
			m.setStatus("warning", msg.err.Error())
		} else {
			m.setStatus("error", err.Error())
		}
		return nil
	}
	m.assets = msg.assets
	m.assetCursor = 0
	m.mode = modeAssetPicker
	return nil
}

func (m *Model) startJob(asset updater.Asset) tea.Cmd {
	sel := m.selection
	if sel == nil {
		return nil
	}
	job, err := m.worker.Start(m.ctx, updater.RequestFor(asset, sel.entry.DownloadFolder))
	if err != nil {
		m.setStatus("error", err.Error())
		return nil
	}
	m.current = &jobView{
		job:     job,
		asset:   asset,
		tag:     sel.tag(),
		entry:   sel.entry,
		started: m.now(),
		status:  "Downloading " + asset.Name,
		level:   "info",
	}
	m.setStatus("info", "Started "+asset.Name+"; press C to cancel")
	return waitForEvent(job)
}

func (m *Model) onJobEvent(msg jobEventMsg) tea.Cmd {
	if m.current == nil || msg.job != m.current.job || !msg.ok {
		return nil
	}
	if p := msg.event.Progress; p != nil {
		m.current.progress = *p
		return waitForEvent(msg.job)
	}
	if o := msg.event.Outcome; o != nil {
		m.finishJob(*o)
	}
	return nil
}

func (m *Model) finishJob(o updater.Outcome) {
	cur := m.current
	cur.status = o.Message
	cur.level = "error"
	m.setStatus("error", o.Message)
	if o.Success {
		cur.level = "success"
		m.setStatus("success", o.Message)
	}
	m.history.Add(downloads.Record{
		JobID:       cur.job.ID,
		Repo:        cur.entry.RepoURL,
		Tag:         cur.tag,
		Asset:       cur.asset.Name,
		Size:        cur.asset.Size,
		Destination: cur.entry.DownloadFolder,
		Success:     o.Success,
		Message:     o.Message,
		Started:     cur.started,
		Finished:    m.now(),
	})
}

func (m *Model) jobRunning() bool {
	return m.current != nil && m.current.level == "info"
}

func (m *Model) clampCursor() {
	if m.cursor >= m.repos.Len() {
		m.cursor = m.repos.Len() - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *Model) setStatus(kind, msg string) {
	m.statusType = kind
	m.statusMsg = msg
}

func (m *Model) fetchReleases(index int, entry repolist.Entry) tea.Cmd {
	client := m.client
	ctx := m.ctx
	return func() tea.Msg {
		releases, err := client.ListReleases(ctx, entry.RepoURL)
		return releasesLoadedMsg{index: index, entry: entry, releases: releases, err: err}
	}
}

func (m *Model) fetchAssets(index int, entry repolist.Entry, tag string) tea.Cmd {
	client := m.client
	ctx := m.ctx
	return func() tea.Msg {
		assets, err := client.ListAssets(ctx, entry.RepoURL, tag)
		return assetsLoadedMsg{index: index, tag: tag, assets: assets, err: err}
	}
}

// waitForEvent delivers the next job event on the UI goroutine
func waitForEvent(job *updater.Job) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-job.Events()
		return jobEventMsg{job: job, event: ev, ok: ok}
	}
}

// View renders the module
func (m *Model) View() string {
	styles := components.NewBaseStyles()

	var b strings.Builder
	b.WriteString(styles.Title().Render("📦 REPOSITORIES"))
	b.WriteString("\n\n")

	switch m.mode {
	case modeAddURL, modeAddFolder:
		b.WriteString(m.renderPrompt())
		b.WriteString("\n\n")
	case modeConfirmDelete:
		if e, ok := m.repos.At(m.cursor); ok {
			b.WriteString(styles.Warning().Render(fmt.Sprintf("Remove %s? (y/n)", e.RepoURL)))
			b.WriteString("\n\n")
		}
	case modeConfirmOverwrite:
		b.WriteString(styles.Warning().Render(fmt.Sprintf(
			"%s could not be read. Replace it with the %d entries shown? (y/n)", m.repos.Path(), m.repos.Len())))
		b.WriteString("\n\n")
	}

	b.WriteString(m.renderTable())

	if m.selection != nil {
		b.WriteString("\n")
		b.WriteString(m.renderRelease())
		b.WriteString("\n")
	}

	if m.mode == modeAssetPicker {
		b.WriteString("\n")
		b.WriteString(m.renderAssetPicker())
		b.WriteString("\n")
	}

	if m.current != nil {
		card := &components.ProgressCard{
			Title:     m.current.asset.Name + " → " + m.current.entry.DownloadFolder,
			Percent:   m.current.progress.Percent,
			SizeText:  m.current.progress.SizeText,
			SpeedText: m.current.progress.SpeedText,
			Status:    m.current.status,
			Level:     m.current.level,
			Width:     m.panelWidth(),
		}
		b.WriteString("\n")
		b.WriteString(card.Render())
		b.WriteString("\n")
	}

	if m.loading != "" {
		b.WriteString("\n" + styles.Spinner(m.frame) + " " + m.loading + "\n")
	}

	if m.statusMsg != "" {
		b.WriteString("\n")
		b.WriteString((&components.StatusCard{Type: m.statusType, Message: m.statusMsg}).Render())
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(styles.Muted().Render(m.controls()))
	return b.String()
}

func (m *Model) renderTable() string {
	styles := components.NewBaseStyles()
	if m.repos.Len() == 0 {
		return styles.Muted().Render("No repositories yet. Press A to add one.") + "\n"
	}

	urlWidth := m.panelWidth()/2 + 4
	folderWidth := m.panelWidth() - urlWidth - 8
	if folderWidth < 12 {
		folderWidth = 12
	}

	var b strings.Builder
	header := fmt.Sprintf("    %-3s %-*s %s", "#", urlWidth, "REPOSITORY", "DOWNLOAD FOLDER")
	b.WriteString(styles.Subtitle().Render(header))
	b.WriteString("\n")

	for i, e := range m.repos.Entries() {
		marker := "  "
		if i == m.cursor {
			marker = "▶ "
		}
		chosen := " "
		if m.selection != nil && m.selection.index == i {
			chosen = "●"
		}
		line := fmt.Sprintf("%s%s %-3d %-*s %s", marker, chosen, i+1,
			urlWidth, components.TruncateString(e.RepoURL, urlWidth),
			components.TruncateString(e.DownloadFolder, folderWidth))
		if i == m.cursor {
			b.WriteString(styles.Selected().Render(line))
		} else {
			b.WriteString(styles.Value().Render(line))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) renderRelease() string {
	styles := components.NewBaseStyles()
	tag := m.selection.tag()
	kind := updater.DescribeTag(tag)
	level := "success"
	if kind == "prerelease" {
		level = "warning"
	}
	line := fmt.Sprintf("Release: ◀ %s ▶ %s  (%d/%d)", tag, styles.Badge(kind, level),
		m.selection.release+1, len(m.selection.releases))
	return styles.Value().Render(line)
}

func (m *Model) renderAssetPicker() string {
	items := make([]string, 0, len(m.assets))
	for _, a := range m.assets {
		items = append(items, fmt.Sprintf("%s  (%s)", a.Name, humanize.IBytes(uint64(a.Size))))
	}
	height := len(items) + 6
	if height > 16 {
		height = 16
	}
	card := &components.ListCard{
		Title:        "Choose an asset of " + m.selection.tag(),
		Items:        items,
		SelectedItem: m.assetCursor,
		Width:        m.panelWidth(),
		Height:       height,
	}
	return card.Render()
}

func (m *Model) renderPrompt() string {
	styles := components.NewBaseStyles()
	label := "Repository URL (https://github.com/owner/repo):"
	if m.mode == modeAddFolder {
		label = "Download folder for " + m.newURL + ":"
	}
	field := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Theme.Primary).
		Padding(0, 1).
		Width(m.panelWidth()).
		Render(m.input + "█")
	return styles.Subtitle().Render(label) + "\n" + field
}

func (m *Model) controls() string {
	switch {
	case m.mode == modeAddURL || m.mode == modeAddFolder:
		return "Enter Confirm • Esc Cancel"
	case m.mode == modeAssetPicker:
		return "↑/↓ Choose • Enter Install • Esc Close"
	case m.jobRunning():
		return "C/Esc Cancel download"
	}
	return "↑/↓ Navigate • Enter Releases • ←/→ Release • I Install • A Add • D Delete • S Save • O Reload"
}

func (m *Model) panelWidth() int {
	w := m.width - 8
	if w > 110 {
		w = 110
	}
	if w < 50 {
		w = 50
	}
	return w
}

// Title returns the module title
func (m *Model) Title() string {
	return "Repositories"
}

// HasOpenModal returns true if the module has an open modal/dialog or a
// download that Esc should cancel
func (m *Model) HasOpenModal() bool {
	return m.mode != modeList || m.jobRunning()
}
