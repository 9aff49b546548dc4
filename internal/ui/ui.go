package ui

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/rolx/internal/dsp"
	"github.com/desertthunder/rolx/internal/formatter"
	"github.com/desertthunder/rolx/internal/models"
	"github.com/desertthunder/rolx/internal/player"
	"github.com/desertthunder/rolx/internal/queue"
	"github.com/desertthunder/rolx/internal/services"
	"github.com/desertthunder/rolx/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	NowPlayingView ViewState = iota
	QueueView
	EqualizerView
	SearchView
)

var viewNames = []string{"Now Playing", "Queue", "Equalizer", "Search"}

func (v ViewState) String() string {
	if int(v) < len(viewNames) {
		return viewNames[v]
	}
	return ""
}

const (
	seekStep       = 10.0
	defaultResults = 20
	defaultWidth   = 80
	defaultHeight  = 24
)

// Player is the engine surface the TUI drives.
type Player interface {
	State() models.PlaybackState
	TogglePlay()
	Seek(seconds float64) error
	ToggleLoop() bool
	SkipNext()
	SkipPrevious()
	Subscribe(fn player.Listener) (unsubscribe func())
}

// Queue is the upcoming-tracks list.
type Queue interface {
	Tracks() []models.Track
	Remove(id string) bool
	Reorder(from, to int) error
	Clear()
	Subscribe(fn queue.Listener) (unsubscribe func())
}

// Equalizer is the signal graph settings surface.
type Equalizer interface {
	State() models.EqualizerState
	SetBand(index int, gainDB float64) error
	SetPreset(name string) error
	ResetToFlat()
	SetHallEnabled(on bool)
	Subscribe(fn dsp.Listener) (unsubscribe func())
}

// Requests resolves tracks before playing or queueing them.
type Requests interface {
	Play(ctx context.Context, progress chan<- tasks.ProgressUpdate, track models.Track) (models.Track, error)
	Enqueue(ctx context.Context, progress chan<- tasks.ProgressUpdate, track models.Track) (models.Track, error)
	EnqueueNext(ctx context.Context, progress chan<- tasks.ProgressUpdate, track models.Track) (models.Track, error)
}

type requestFunc func(context.Context, chan<- tasks.ProgressUpdate, models.Track) (models.Track, error)

// Options wires the TUI to the playback core. Catalog is optional; without it search is disabled.
type Options struct {
	Player      Player
	Queue       Queue
	Equalizer   Equalizer
	Requests    Requests
	Catalog     services.Catalog
	SearchLimit int
}

// pending coalesces observer callbacks into one snapshot until the TUI consumes it.
type pending struct {
	mu     sync.Mutex
	s      snapshot
	notify chan struct{}
}

func newPending() *pending {
	return &pending{notify: make(chan struct{}, 1)}
}

func (p *pending) setPlayback(state models.PlaybackState) {
	p.mu.Lock()
	p.s.playback = &state
	p.signal()
}

func (p *pending) setQueue(change queue.Change) {
	p.mu.Lock()
	p.s.queue = change.Tracks
	p.s.queueSeen = true
	p.signal()
}

func (p *pending) setEqualizer(state models.EqualizerState) {
	p.mu.Lock()
	p.s.equalizer = &state
	p.signal()
}

// signal must be called with mu held; it releases it.
func (p *pending) signal() {
	p.mu.Unlock()
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

func (p *pending) take() snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.s
	p.s = snapshot{}
	return s
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	opts         Options
	view         ViewState
	width        int
	height       int
	playback     models.PlaybackState
	queue        []models.Track
	eq           models.EqualizerState
	band         int
	queueList    list.Model
	searchList   list.Model
	input        textinput.Model
	bar          progress.Model
	status       string
	failed       bool
	progressChan chan tasks.ProgressUpdate
	events       *pending
	unsubs       []func()
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model subscribed to the player, queue and equalizer.
//
// Call [Model.Close] after the program exits to remove the subscriptions.
func NewModel(ctx context.Context, opts Options) *Model {
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = defaultResults
	}

	input := textinput.New()
	input.Placeholder = "Search songs"
	input.Prompt = "/ "
	input.CharLimit = 120

	m := &Model{
		ctx:          ctx,
		opts:         opts,
		view:         NowPlayingView,
		playback:     opts.Player.State(),
		queue:        opts.Queue.Tracks(),
		eq:           opts.Equalizer.State(),
		input:        input,
		bar:          progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		progressChan: make(chan tasks.ProgressUpdate, 50),
		events:       newPending(),
		help:         help.New(),
		keys:         newKeyMap(),
	}
	m.queueList = newTrackList("Up Next", m.queue, defaultWidth, defaultHeight-10)
	m.searchList = newTrackList("Results", nil, defaultWidth, defaultHeight-12)

	m.unsubs = []func(){
		opts.Player.Subscribe(m.events.setPlayback),
		opts.Queue.Subscribe(m.events.setQueue),
		opts.Equalizer.Subscribe(m.events.setEqualizer),
	}
	return m
}

// Close removes the model's observers.
func (m *Model) Close() {
	for _, unsub := range m.unsubs {
		unsub()
	}
	m.unsubs = nil
}

// ActiveView returns the view being shown.
func (m *Model) ActiveView() ViewState { return m.view }

// Init starts listening for state changes and request progress.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.waitForEvent(), m.waitForProgress())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.queueList.SetSize(max(1, msg.Width-4), max(4, msg.Height-10))
		m.searchList.SetSize(max(1, msg.Width-4), max(4, msg.Height-12))
		m.bar.Width = max(10, min(msg.Width-4, 60))
		m.input.Width = max(10, msg.Width-8)
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgSnapshot:
		m.apply(msg.data.(snapshot))
		return m, m.waitForEvent()

	case MsgSearchResults:
		res := msg.data.(searchResults)
		if res.err != nil {
			m.setStatus(fmt.Sprintf("Search failed: %v", res.err), true)
			return m, nil
		}
		m.searchList.SetItems(trackItems(res.result.Results))
		m.searchList.Title = fmt.Sprintf("Results for %q (%d)", res.query, res.result.Total)
		m.searchList.Select(0)
		m.setStatus(fmt.Sprintf("%d results", len(res.result.Results)), false)
		return m, nil

	case MsgRequestDone:
		done := msg.data.(requestDone)
		if done.err != nil {
			m.setStatus(fmt.Sprintf("✗ %s %s: %v", done.verb, done.track.Title, done.err), true)
		} else {
			m.setStatus(fmt.Sprintf("✓ %s %s", done.verb, done.track), false)
		}
		return m, nil

	case MsgProgressUpdate:
		update := msg.data.(tasks.ProgressUpdate)
		m.setStatus(update.Message, update.Phase == tasks.Failed)
		return m, m.waitForProgress()
	}
	return m, nil
}

func (m *Model) apply(s snapshot) {
	if s.playback != nil {
		m.playback = *s.playback
	}
	if s.queueSeen {
		m.queue = s.queue
		m.queueList.SetItems(trackItems(s.queue))
	}
	if s.equalizer != nil {
		m.eq = *s.equalizer
	}
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	if m.view == SearchView && m.input.Focused() {
		return m.handleInputKeys(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.nextView):
		m.switchView((m.view + 1) % ViewState(len(viewNames)))
		return m, nil
	case key.Matches(msg, m.keys.prevView):
		m.switchView((m.view + ViewState(len(viewNames)) - 1) % ViewState(len(viewNames)))
		return m, nil
	case key.Matches(msg, m.keys.toggle):
		m.opts.Player.TogglePlay()
		return m, nil
	case key.Matches(msg, m.keys.next):
		m.opts.Player.SkipNext()
		return m, nil
	case key.Matches(msg, m.keys.previous):
		m.opts.Player.SkipPrevious()
		return m, nil
	case key.Matches(msg, m.keys.loop):
		if m.opts.Player.ToggleLoop() {
			m.setStatus("Loop on", false)
		} else {
			m.setStatus("Loop off", false)
		}
		return m, nil
	case key.Matches(msg, m.keys.rewind):
		m.seekBy(-seekStep)
		return m, nil
	case key.Matches(msg, m.keys.forward):
		m.seekBy(seekStep)
		return m, nil
	}

	switch m.view {
	case QueueView:
		return m.handleQueueKeys(msg)
	case EqualizerView:
		return m.handleEqualizerKeys(msg)
	case SearchView:
		return m.handleSearchKeys(msg)
	}
	if key.Matches(msg, m.keys.search) {
		return m, m.focusSearch()
	}
	return m, nil
}

func (m *Model) handleQueueKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	i := m.queueList.Index()
	selected, ok := m.selected(m.queueList)

	switch {
	case key.Matches(msg, m.keys.search):
		return m, m.focusSearch()
	case key.Matches(msg, m.keys.clear):
		m.opts.Queue.Clear()
		m.setStatus("Queue cleared", false)
		return m, nil
	case !ok:
		return m.updateLists(msg)
	case key.Matches(msg, m.keys.enter):
		m.opts.Queue.Remove(selected.ID)
		return m, m.runRequest("Playing", m.opts.Requests.Play, selected)
	case key.Matches(msg, m.keys.remove):
		if m.opts.Queue.Remove(selected.ID) {
			m.setStatus(fmt.Sprintf("Removed %s", selected.Title), false)
		}
		return m, nil
	case key.Matches(msg, m.keys.moveUp):
		m.move(i, i-1)
		return m, nil
	case key.Matches(msg, m.keys.moveDown):
		m.move(i, i+1)
		return m, nil
	}
	return m.updateLists(msg)
}

func (m *Model) move(from, to int) {
	if to < 0 || to >= len(m.queue) {
		return
	}
	if err := m.opts.Queue.Reorder(from, to); err != nil {
		m.setStatus(err.Error(), true)
		return
	}
	m.queue = m.opts.Queue.Tracks()
	m.queueList.SetItems(trackItems(m.queue))
	m.queueList.Select(to)
}

func (m *Model) handleEqualizerKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	eq := m.opts.Equalizer

	switch {
	case key.Matches(msg, m.keys.search):
		return m, m.focusSearch()
	case key.Matches(msg, m.keys.left):
		m.band = max(0, m.band-1)
	case key.Matches(msg, m.keys.right):
		m.band = min(models.BandCount-1, m.band+1)
	case key.Matches(msg, m.keys.up), key.Matches(msg, m.keys.down):
		step := 1.0
		if key.Matches(msg, m.keys.down) {
			step = -1
		}
		gain := models.ClampGain(eq.State().Gains[m.band] + step)
		if err := eq.SetBand(m.band, gain); err != nil {
			m.setStatus(err.Error(), true)
		}
	case key.Matches(msg, m.keys.preset):
		name := nextPreset(eq.State().Preset)
		if err := eq.SetPreset(name); err != nil {
			m.setStatus(err.Error(), true)
		} else {
			m.setStatus(fmt.Sprintf("Preset %s", name), false)
		}
	case key.Matches(msg, m.keys.hall):
		eq.SetHallEnabled(!eq.State().Hall)
	case key.Matches(msg, m.keys.flat):
		eq.ResetToFlat()
		m.setStatus("Equalizer reset", false)
	}
	m.eq = eq.State()
	return m, nil
}

func nextPreset(current string) string {
	names := dsp.PresetNames()
	i := slices.IndexFunc(names, func(n string) bool { return strings.EqualFold(n, current) })
	return names[(i+1)%len(names)]
}

func (m *Model) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.search) {
		return m, m.focusSearch()
	}

	selected, ok := m.selected(m.searchList)
	if !ok {
		return m.updateLists(msg)
	}

	switch {
	case key.Matches(msg, m.keys.enter):
		return m, m.runRequest("Playing", m.opts.Requests.Play, selected)
	case key.Matches(msg, m.keys.enqueue):
		return m, m.runRequest("Queued", m.opts.Requests.Enqueue, selected)
	case key.Matches(msg, m.keys.playNext):
		return m, m.runRequest("Playing next", m.opts.Requests.EnqueueNext, selected)
	}
	return m.updateLists(msg)
}

func (m *Model) handleInputKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.input.Blur()
		return m, nil
	case "tab":
		m.input.Blur()
		m.switchView((m.view + 1) % ViewState(len(viewNames)))
		return m, nil
	case "enter":
		query := strings.TrimSpace(m.input.Value())
		if query == "" {
			return m, nil
		}
		m.input.Blur()
		m.setStatus(fmt.Sprintf("Searching for %q...", query), false)
		return m, m.search(query)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) focusSearch() tea.Cmd {
	m.view = SearchView
	return m.input.Focus()
}

func (m *Model) switchView(v ViewState) {
	m.view = v
}

func (m *Model) seekBy(delta float64) {
	state := m.opts.Player.State()
	if state.Current == nil {
		return
	}
	if err := m.opts.Player.Seek(max(0, state.Progress+delta)); err != nil {
		m.setStatus(err.Error(), true)
	}
}

func (m *Model) selected(l list.Model) (models.Track, bool) {
	item, ok := l.SelectedItem().(trackItem)
	if !ok {
		return models.Track{}, false
	}
	return item.track, true
}

func (m *Model) setStatus(s string, failed bool) {
	m.status = s
	m.failed = failed
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case QueueView:
		m.queueList, cmd = m.queueList.Update(msg)
	case SearchView:
		m.searchList, cmd = m.searchList.Update(msg)
	}
	return m, cmd
}

func (m *Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.ctx.Done():
			return nil
		case <-m.events.notify:
			return snapshotMsg(m.events.take())
		}
	}
}

func (m *Model) waitForProgress() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.ctx.Done():
			return nil
		case update := <-m.progressChan:
			return progressUpdateMsg(update)
		}
	}
}

func (m *Model) search(query string) tea.Cmd {
	catalog, limit := m.opts.Catalog, m.opts.SearchLimit
	return func() tea.Msg {
		if catalog == nil {
			return searchResultsMsg(query, nil, fmt.Errorf("no catalog configured"))
		}
		result, err := catalog.SearchTracks(m.ctx, query, 0, limit)
		return searchResultsMsg(query, result, err)
	}
}

func (m *Model) runRequest(verb string, fn requestFunc, track models.Track) tea.Cmd {
	progress := m.progressChan
	return func() tea.Msg {
		t, err := fn(m.ctx, progress, track)
		if err != nil {
			t = track
		}
		return requestDoneMsg(verb, t, err)
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	var body string
	switch m.view {
	case NowPlayingView:
		body = m.renderNowPlaying()
	case QueueView:
		body = m.renderQueue()
	case EqualizerView:
		body = m.renderEqualizer()
	case SearchView:
		body = m.renderSearch()
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s\n%s", m.renderTabs(), body, m.renderStatus(), m.renderHelp())
}

func (m *Model) renderTabs() string {
	tabs := make([]string, len(viewNames))
	for i, name := range viewNames {
		if ViewState(i) == m.view {
			tabs[i] = styles.active.Render(name)
		} else {
			tabs[i] = styles.tab.Render(name)
		}
	}
	return strings.Join(tabs, "│")
}

func (m *Model) renderNowPlaying() string {
	state := m.playback
	if state.Current == nil {
		return styles.help.Render("Nothing playing. Press / to search.")
	}

	t := state.Current
	title := styles.title.Render(t.Title)
	info := t.ArtistName
	if t.Album != "" {
		info = fmt.Sprintf("%s • %s", info, t.Album)
	}

	flags := state.Status.String()
	if state.Loop {
		flags += " • loop"
	}

	clock := fmt.Sprintf("%s / %s", formatter.FormatDuration(state.Progress), formatter.FormatDuration(state.Duration))
	out := fmt.Sprintf("%s\n%s\n[%s]\n\n%s %s", title, info, flags, m.bar.ViewAs(state.ProgressPercent()/100), clock)

	if state.Error != "" {
		out += "\n" + styles.err.Render(state.Error)
	}
	if len(m.queue) > 0 {
		out += fmt.Sprintf("\n\nUp next: %s (%d queued)", m.queue[0], len(m.queue))
	} else {
		out += "\n\n" + styles.help.Render("Queue is empty")
	}
	return out
}

func (m *Model) renderQueue() string {
	if len(m.queue) == 0 {
		return styles.help.Render("Queue is empty. Add tracks from search with a or A.")
	}
	return m.queueList.View()
}

func (m *Model) renderEqualizer() string {
	var b strings.Builder
	preset := m.eq.Preset
	if preset == "" {
		preset = "Custom"
	}
	hall := "off"
	if m.eq.Hall {
		hall = "on"
	}
	b.WriteString(styles.title.Render(fmt.Sprintf("Equalizer • %s", preset)))
	b.WriteString("\n")

	for i, freq := range models.BandFrequencies {
		cursor := "  "
		if i == m.band {
			cursor = "> "
		}
		fmt.Fprintf(&b, "%s%-6s %+5.1f dB %s\n", cursor, freqLabel(freq), m.eq.Gains[i], gainBar(m.eq.Gains[i]))
	}
	fmt.Fprintf(&b, "\nHall: %s • Master: %.2f", hall, m.eq.MasterGain)
	return b.String()
}

func freqLabel(hz float64) string {
	if hz >= 1000 {
		return fmt.Sprintf("%gk", hz/1000)
	}
	return fmt.Sprintf("%g", hz)
}

// gainBar draws a gain as cells either side of a center line, one cell per dB.
func gainBar(db float64) string {
	half := int(models.MaxBandGain)
	n := int(models.ClampGain(db))
	left := strings.Repeat(" ", half)
	right := strings.Repeat(" ", half)
	if n < 0 {
		left = strings.Repeat(" ", half+n) + strings.Repeat("█", -n)
	} else if n > 0 {
		right = strings.Repeat("█", n) + strings.Repeat(" ", half-n)
	}
	return styles.band.Render(left + "│" + right)
}

func (m *Model) renderSearch() string {
	if len(m.searchList.Items()) == 0 {
		return fmt.Sprintf("%s\n\n%s", m.input.View(), styles.help.Render("Type a query and press enter."))
	}
	return fmt.Sprintf("%s\n\n%s", m.input.View(), m.searchList.View())
}

func (m *Model) renderStatus() string {
	switch {
	case m.status == "":
		return ""
	case m.failed:
		return styles.err.Render(m.status)
	default:
		return styles.ok.Render(m.status)
	}
}

func (m *Model) renderHelp() string {
	keys := []key.Binding{m.keys.toggle, m.keys.next, m.keys.previous, m.keys.nextView}
	switch m.view {
	case QueueView:
		keys = append(keys, m.keys.enter, m.keys.remove, m.keys.moveUp, m.keys.moveDown, m.keys.clear)
	case EqualizerView:
		keys = append(keys, m.keys.left, m.keys.right, m.keys.up, m.keys.down, m.keys.preset, m.keys.hall, m.keys.flat)
	case SearchView:
		if m.input.Focused() {
			keys = []key.Binding{m.keys.enter, m.keys.back}
		} else {
			keys = append(keys, m.keys.search, m.keys.enter, m.keys.enqueue, m.keys.playNext)
		}
	default:
		keys = append(keys, m.keys.loop, m.keys.rewind, m.keys.forward, m.keys.search)
	}
	keys = append(keys, m.keys.quit)
	return m.help.ShortHelpView(keys)
}
