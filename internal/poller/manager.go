package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"npkchat/internal/blockkit"
	"npkchat/internal/campaign"
	"npkchat/internal/chat"
	"npkchat/internal/config"
)

// Refresh/cancel buttons carry the campaign id in the action id and the
// serialized session in the action value.
const (
	ActRefreshPrefix = "campaign_refresh_"
	ActCancelPrefix  = "campaign_cancel_"
)

// CampaignAPI is the job-orchestration surface the poller needs.
type CampaignAPI interface {
	Get(ctx context.Context, campaignID string) (*campaign.Status, error)
	Cancel(ctx context.Context, campaignID string) error
}

// ArtifactStore reads result artifacts out of object storage.
type ArtifactStore interface {
	ListFiles(ctx context.Context, bucket, prefix, region string) ([]string, error)
	GetObject(ctx context.Context, bucket, key, region string) ([]byte, error)
}

// session is one polling loop's round-trip state. It rides in the status
// message's button values, so a refresh or cancel press restarts the loop
// with the same message and cancelling latch.
type session struct {
	CampaignID string       `json:"campaignId"`
	Message    chat.Message `json:"message"`
	MessageTS  string       `json:"messageTs,omitempty"`
	// Cancelling latches once a cancellation has been issued so later ticks
	// never re-issue it, and so a missing record reads as confirmed deletion
	// instead of an inconsistency.
	Cancelling bool `json:"cancelling,omitempty"`
}

func (s session) encode() string {
	raw, _ := json.Marshal(s)
	return string(raw)
}

func parseSession(value string) (session, error) {
	var s session
	if err := json.Unmarshal([]byte(value), &s); err != nil {
		return session{}, fmt.Errorf("decode poll session: %w", err)
	}
	if s.CampaignID == "" {
		return session{}, fmt.Errorf("poll session without a campaign id")
	}
	return s, nil
}

// stepResult tells tick what to do after one status evaluation.
type stepResult int

const (
	stepReschedule stepResult = iota
	stepFinalize
	stepAbort
)

// Manager owns one timer per campaign id. Starting a session for an id that
// already has one stops the old timer first, so rapid refresh presses never
// stack loops.
type Manager struct {
	log       *slog.Logger
	transport chat.Transport
	campaigns CampaignAPI
	storage   ArtifactStore
	cfg       *config.Config

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewManager(log *slog.Logger, transport chat.Transport, campaigns CampaignAPI, storage ArtifactStore, cfg *config.Config) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		log:       log,
		transport: transport,
		campaigns: campaigns,
		storage:   storage,
		cfg:       cfg,
		timers:    make(map[string]*time.Timer),
	}
}

// Register wires the per-campaign refresh and cancel buttons.
func (m *Manager) Register(r *chat.Router) {
	r.ActionPrefix(ActRefreshPrefix, m.onRefresh)
	r.ActionPrefix(ActCancelPrefix, m.onCancel)
}

// StartPolling begins a loop for a freshly started campaign. The first tick
// runs immediately.
func (m *Manager) StartPolling(campaignID string, origin chat.Message) {
	m.restart(campaignID, 0, session{CampaignID: campaignID, Message: origin})
}

// restart atomically replaces any pending timer for the id.
func (m *Manager) restart(campaignID string, delay time.Duration, s session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.timers[campaignID]; ok {
		t.Stop()
	}
	m.timers[campaignID] = time.AfterFunc(delay, func() { m.tick(s) })
}

// done drops the id from the registry; with no timer armed, stale responses
// from in-flight calls cannot reschedule further work.
func (m *Manager) done(campaignID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.timers[campaignID]; ok {
		t.Stop()
		delete(m.timers, campaignID)
	}
}

func (m *Manager) tick(s session) {
	ctx := context.Background()
	next, result := m.step(ctx, s)
	switch result {
	case stepReschedule:
		m.restart(next.CampaignID, m.cfg.PollInterval, next)
	case stepFinalize:
		m.finalize(ctx, next)
		m.done(next.CampaignID)
	case stepAbort:
		m.done(next.CampaignID)
	}
}

// step evaluates one status fetch and returns the session to carry forward.
func (m *Manager) step(ctx context.Context, s session) (session, stepResult) {
	status, err := m.campaigns.Get(ctx, s.CampaignID)
	if err != nil {
		// Transient fetch failure; the campaign is still assumed live.
		m.log.Warn("campaign status fetch failed", "campaign_id", s.CampaignID, "err", err)
		return s, stepReschedule
	}

	if status == nil {
		if s.Cancelling {
			// Deletion confirmed.
			return s, stepFinalize
		}
		m.reportFatal(ctx, s, fmt.Sprintf("Campaign %s no longer exists; polling stopped.", s.CampaignID))
		return s, stepAbort
	}

	if strings.EqualFold(status.Status, campaign.StatusAvailable) {
		// Start is always called right after create; still seeing the
		// just-created state means the start never took effect.
		m.reportFatal(ctx, s, fmt.Sprintf("Campaign %s was never started; polling stopped.", s.CampaignID))
		return s, stepAbort
	}

	if status.AllNodesTerminal() && !s.Cancelling {
		if err := m.campaigns.Cancel(ctx, s.CampaignID); err != nil {
			m.log.Warn("compensating cancel failed", "campaign_id", s.CampaignID, "err", err)
		}
		s.Cancelling = true
	}

	terminal := campaign.IsTerminalStatus(status.Status)
	if err := m.renderStatus(ctx, &s, status, !terminal); err != nil {
		m.log.Warn("failed to render campaign status", "campaign_id", s.CampaignID, "err", err)
	}
	if terminal {
		return s, stepFinalize
	}
	return s, stepReschedule
}

// renderStatus posts the status message on the first tick and rewrites it in
// place afterwards. Refresh/cancel controls are dropped once the campaign is
// terminal.
func (m *Manager) renderStatus(ctx context.Context, s *session, status *campaign.Status, withControls bool) error {
	text := statusText(s.CampaignID, status)
	render := func() []*blockkit.Block {
		blocks := []*blockkit.Block{
			blockkit.Section("campaign_status_"+s.CampaignID, blockkit.Markdown(text)),
		}
		if withControls {
			blocks = append(blocks, m.controlBlock(*s))
		}
		return blocks
	}

	if s.MessageTS == "" {
		ts, err := m.transport.PostMessage(ctx, s.Message, text, render()...)
		if err != nil {
			return err
		}
		s.MessageTS = ts
		if !withControls {
			return nil
		}
		// The buttons carry the session, and the session must carry the
		// message timestamp so a press updates this message instead of
		// posting a new one. The timestamp only exists after the post, so
		// rewrite the controls with it.
		return m.transport.UpdateMessage(ctx, s.Message, ts, text, render()...)
	}
	return m.transport.UpdateMessage(ctx, s.Message, s.MessageTS, text, render()...)
}

func (m *Manager) controlBlock(s session) *blockkit.Block {
	value := s.encode()
	refresh := blockkit.Button(ActRefreshPrefix+s.CampaignID, "Refresh").WithValue(value)
	cancel := blockkit.Button(ActCancelPrefix+s.CampaignID, "Cancel").WithStyle(blockkit.StyleDanger).WithValue(value)
	return blockkit.Actions("campaign_controls_"+s.CampaignID, refresh, cancel)
}

func statusText(campaignID string, status *campaign.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Campaign %s* — %s\n", campaignID, strings.ToLower(status.Status))
	if status.Progress > 0 {
		fmt.Fprintf(&b, "Progress: %.1f%%\n", status.Progress)
	}
	if status.HashRate > 0 {
		fmt.Fprintf(&b, "Hash rate: %.0f h/s\n", status.HashRate)
	}
	fmt.Fprintf(&b, "Recovered hashes: %d\n", status.RecoveredHashes)
	if status.RejectedPercentage > 0 {
		fmt.Fprintf(&b, "Rejected: %.1f%%\n", status.RejectedPercentage)
	}
	if status.EstimatedEndTime > 0 {
		end := time.Unix(status.EstimatedEndTime, 0).UTC()
		fmt.Fprintf(&b, "Estimated end: %s\n", end.Format(time.RFC1123))
	}
	fmt.Fprintf(&b, "Nodes: %s", nodeSummary(status.Nodes))
	return b.String()
}

func nodeSummary(nodes []campaign.Node) string {
	if len(nodes) == 0 {
		return "none yet"
	}
	counts := make(map[string]int)
	order := make([]string, 0, 4)
	for _, n := range nodes {
		key := strings.ToLower(n.Status)
		if _, seen := counts[key]; !seen {
			order = append(order, key)
		}
		counts[key]++
	}
	parts := make([]string, 0, len(order))
	for _, key := range order {
		parts = append(parts, fmt.Sprintf("%d %s", counts[key], key))
	}
	return strings.Join(parts, ", ")
}

func (m *Manager) reportFatal(ctx context.Context, s session, text string) {
	m.log.Error("campaign polling aborted", "campaign_id", s.CampaignID, "reason", text)
	if err := m.transport.PostError(ctx, s.Message, text); err != nil {
		m.log.Error("failed to report polling abort", "campaign_id", s.CampaignID, "err", err)
	}
}

func (m *Manager) onRefresh(ctx context.Context, p *chat.ActionPayload) error {
	s, err := parseSession(p.First().Value)
	if err != nil {
		return err
	}
	m.restart(s.CampaignID, 0, s)
	return nil
}

// onCancel issues the cancellation once and re-enters polling with the latch
// set; a press on an already-cancelling campaign just refreshes.
func (m *Manager) onCancel(ctx context.Context, p *chat.ActionPayload) error {
	s, err := parseSession(p.First().Value)
	if err != nil {
		return err
	}
	if !s.Cancelling {
		if err := m.campaigns.Cancel(ctx, s.CampaignID); err != nil {
			return fmt.Errorf("cancel campaign %s: %w", s.CampaignID, err)
		}
		s.Cancelling = true
	}
	m.restart(s.CampaignID, 0, s)
	return nil
}
