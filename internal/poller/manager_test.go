package poller

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"npkchat/internal/blockkit"
	"npkchat/internal/campaign"
	"npkchat/internal/chat"
	"npkchat/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testOrigin() chat.Message {
	return chat.Message{Channel: "C01", User: "U01", Thread: "1111.2222"}
}

func testConfig() *config.Config {
	return &config.Config{
		AWSRegion:      "us-west-2",
		UserdataBucket: "npk-userdata",
		PollInterval:   time.Hour,
	}
}

type postedMessage struct {
	text   string
	blocks []*blockkit.Block
}

type fakeTransport struct {
	mu       sync.Mutex
	posted   []postedMessage
	updated  []postedMessage
	errors   []string
	uploads  map[string][]byte
	nextTS   int
	postErr  error
	uploaded int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{uploads: make(map[string][]byte)}
}

func (f *fakeTransport) OpenForm(context.Context, string, *blockkit.View) (string, error) {
	return "", fmt.Errorf("not a form transport")
}

func (f *fakeTransport) UpdateForm(context.Context, string, func(*blockkit.View) error) error {
	return fmt.Errorf("not a form transport")
}

func (f *fakeTransport) PushView(context.Context, string, *blockkit.View) error {
	return fmt.Errorf("not a form transport")
}

func (f *fakeTransport) PostMessage(_ context.Context, _ chat.Message, text string, blocks ...*blockkit.Block) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return "", f.postErr
	}
	f.posted = append(f.posted, postedMessage{text: text, blocks: blocks})
	f.nextTS++
	return fmt.Sprintf("%d.0", f.nextTS), nil
}

func (f *fakeTransport) UpdateMessage(_ context.Context, _ chat.Message, _ string, text string, blocks ...*blockkit.Block) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, postedMessage{text: text, blocks: blocks})
	return nil
}

func (f *fakeTransport) PostError(_ context.Context, _ chat.Message, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, text)
	return nil
}

func (f *fakeTransport) UploadFile(_ context.Context, _ chat.Message, filename string, content []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploaded++
	f.uploads[filename] = content
	return nil
}

func (f *fakeTransport) DownloadFile(context.Context, string) ([]byte, error) {
	return nil, nil
}

func (f *fakeTransport) StoreOptions(context.Context, string, []*blockkit.Option) error {
	return nil
}

func (f *fakeTransport) GetOptions(context.Context, string) ([]*blockkit.Option, error) {
	return nil, nil
}

type fakeAPI struct {
	mu          sync.Mutex
	status      *campaign.Status
	getErr      error
	cancelCalls int
}

func (f *fakeAPI) Get(context.Context, string) (*campaign.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, f.getErr
}

func (f *fakeAPI) Cancel(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelCalls++
	return nil
}

type fakeStore struct {
	objects map[string][]byte
}

func (f *fakeStore) ListFiles(_ context.Context, _, prefix, _ string) ([]string, error) {
	var names []string
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			names = append(names, strings.TrimPrefix(key, prefix))
		}
	}
	return names, nil
}

func (f *fakeStore) GetObject(_ context.Context, _, key, _ string) ([]byte, error) {
	content, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("no such object %q", key)
	}
	return content, nil
}

func newTestManager(api *fakeAPI, store *fakeStore) (*Manager, *fakeTransport) {
	transport := newFakeTransport()
	if store == nil {
		store = &fakeStore{objects: map[string][]byte{}}
	}
	return NewManager(discardLogger(), transport, api, store, testConfig()), transport
}

func TestRestartKeepsOneTimerPerCampaign(t *testing.T) {
	m, _ := newTestManager(&fakeAPI{}, nil)

	s := session{CampaignID: "c-1", Message: testOrigin()}
	m.restart("c-1", time.Hour, s)
	m.restart("c-1", time.Hour, s)
	m.restart("c-1", time.Hour, s)

	m.mu.Lock()
	defer m.mu.Unlock()
	require.Len(t, m.timers, 1)
}

func TestStepReschedulesWhileRunning(t *testing.T) {
	api := &fakeAPI{status: &campaign.Status{
		Status: "running",
		Nodes:  []campaign.Node{{Status: "running"}, {Status: "completed"}},
	}}
	m, transport := newTestManager(api, nil)

	s, result := m.step(context.Background(), session{CampaignID: "c-1", Message: testOrigin()})
	require.Equal(t, stepReschedule, result)
	require.False(t, s.Cancelling)
	require.Equal(t, 0, api.cancelCalls)

	// First tick posts, capturing the timestamp, then rewrites the controls
	// with it.
	require.Len(t, transport.posted, 1)
	require.Equal(t, "1.0", s.MessageTS)
	require.Len(t, transport.updated, 1)
	require.Len(t, transport.updated[0].blocks, 2, "running campaign keeps its controls")

	_, result = m.step(context.Background(), s)
	require.Equal(t, stepReschedule, result)
	require.Len(t, transport.posted, 1)
	require.Len(t, transport.updated, 2)
}

func TestFirstTickControlsCarryMessageTS(t *testing.T) {
	api := &fakeAPI{status: &campaign.Status{
		Status: "running",
		Nodes:  []campaign.Node{{Status: "running"}},
	}}
	m, transport := newTestManager(api, nil)

	_, result := m.step(context.Background(), session{CampaignID: "c-1", Message: testOrigin()})
	require.Equal(t, stepReschedule, result)
	require.Len(t, transport.updated, 1)

	controls := transport.updated[0].blocks[1]
	require.NotEmpty(t, controls.Elements)
	carried, err := parseSession(controls.Elements[0].Value)
	require.NoError(t, err)
	require.Equal(t, "1.0", carried.MessageTS)

	// A button press within the first interval must update the original
	// message, not post a second one.
	_, result = m.step(context.Background(), carried)
	require.Equal(t, stepReschedule, result)
	require.Len(t, transport.posted, 1)
	require.Len(t, transport.updated, 2)
}

func TestStepCancelsOnceWhenAllNodesDone(t *testing.T) {
	api := &fakeAPI{status: &campaign.Status{
		Status: "running",
		Nodes:  []campaign.Node{{Status: "COMPLETED"}, {Status: "Error"}},
	}}
	m, _ := newTestManager(api, nil)

	s := session{CampaignID: "c-1", Message: testOrigin()}
	for i := 0; i < 3; i++ {
		var result stepResult
		s, result = m.step(context.Background(), s)
		require.Equal(t, stepReschedule, result)
		require.True(t, s.Cancelling)
	}
	require.Equal(t, 1, api.cancelCalls, "the compensating cancel must be issued exactly once")
}

func TestStepTerminalDropsControlsAndFinalizes(t *testing.T) {
	api := &fakeAPI{status: &campaign.Status{Status: "Completed"}}
	m, transport := newTestManager(api, nil)

	_, result := m.step(context.Background(), session{CampaignID: "c-1", Message: testOrigin()})
	require.Equal(t, stepFinalize, result)
	require.Len(t, transport.posted, 1)
	require.Len(t, transport.posted[0].blocks, 1, "terminal status message has no controls")
}

func TestStepMissingRecordWithoutCancelAborts(t *testing.T) {
	m, transport := newTestManager(&fakeAPI{}, nil)

	_, result := m.step(context.Background(), session{CampaignID: "c-1", Message: testOrigin()})
	require.Equal(t, stepAbort, result)
	require.Len(t, transport.errors, 1)
	require.Contains(t, transport.errors[0], "no longer exists")
}

func TestStepMissingRecordWhileCancellingFinalizes(t *testing.T) {
	m, transport := newTestManager(&fakeAPI{}, nil)

	_, result := m.step(context.Background(), session{CampaignID: "c-1", Message: testOrigin(), Cancelling: true})
	require.Equal(t, stepFinalize, result)
	require.Empty(t, transport.errors, "confirmed deletion is not an error")
}

func TestStepNeverStartedAborts(t *testing.T) {
	api := &fakeAPI{status: &campaign.Status{Status: "AVAILABLE"}}
	m, transport := newTestManager(api, nil)

	_, result := m.step(context.Background(), session{CampaignID: "c-1", Message: testOrigin()})
	require.Equal(t, stepAbort, result)
	require.Len(t, transport.errors, 1)
	require.Contains(t, transport.errors[0], "never started")
}

func TestStepFetchErrorReschedules(t *testing.T) {
	api := &fakeAPI{getErr: fmt.Errorf("timeout")}
	m, transport := newTestManager(api, nil)

	_, result := m.step(context.Background(), session{CampaignID: "c-1", Message: testOrigin()})
	require.Equal(t, stepReschedule, result)
	require.Empty(t, transport.errors)
}

func TestFinalizeBundlesArtifactsAndReportsResults(t *testing.T) {
	store := &fakeStore{objects: map[string][]byte{
		"self/campaigns/c-9/potfiles/cracked_hashes-1.txt": []byte("hunter2\npassword1\n"),
		"self/campaigns/c-9/potfiles/hashcat.potfile":      []byte("aa:bb\n"),
	}}
	m, transport := newTestManager(&fakeAPI{}, store)

	m.finalize(context.Background(), session{CampaignID: "c-9", Message: testOrigin()})

	archive, ok := transport.uploads["c-9-potfiles.zip"]
	require.True(t, ok, "result bundle must be uploaded")
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		require.Equal(t, store.objects["self/campaigns/c-9/potfiles/"+f.Name], content)
	}

	require.Len(t, transport.posted, 1)
	require.Contains(t, transport.posted[0].text, "hunter2")
}

func TestFinalizeWithoutArtifactsStaysSilent(t *testing.T) {
	m, transport := newTestManager(&fakeAPI{}, nil)

	m.finalize(context.Background(), session{CampaignID: "c-9", Message: testOrigin()})

	require.Empty(t, transport.posted)
	require.Equal(t, 0, transport.uploaded)
}

func TestFinalizeWithoutCrackedHashesReportsNoResults(t *testing.T) {
	store := &fakeStore{objects: map[string][]byte{
		"self/campaigns/c-9/potfiles/hashcat.potfile": []byte("aa:bb\n"),
	}}
	m, transport := newTestManager(&fakeAPI{}, store)

	m.finalize(context.Background(), session{CampaignID: "c-9", Message: testOrigin()})

	require.Len(t, transport.posted, 1)
	require.Contains(t, transport.posted[0].text, "no cracked hashes")
}

func TestCancelActionLatchesAndIsIdempotent(t *testing.T) {
	api := &fakeAPI{status: &campaign.Status{Status: "running"}}
	m, _ := newTestManager(api, nil)

	s := session{CampaignID: "c-1", Message: testOrigin(), MessageTS: "1.0"}
	payload := &chat.ActionPayload{
		Message: testOrigin(),
		Actions: []chat.Action{{ActionID: ActCancelPrefix + "c-1", Value: s.encode()}},
	}
	require.NoError(t, m.onCancel(context.Background(), payload))
	require.Equal(t, 1, api.cancelCalls)

	s.Cancelling = true
	payload.Actions[0].Value = s.encode()
	require.NoError(t, m.onCancel(context.Background(), payload))
	require.Equal(t, 1, api.cancelCalls, "a second cancel press must not re-issue")

	m.done("c-1")
}

func TestRefreshActionRejectsBadSession(t *testing.T) {
	m, _ := newTestManager(&fakeAPI{}, nil)
	err := m.onRefresh(context.Background(), &chat.ActionPayload{
		Actions: []chat.Action{{ActionID: ActRefreshPrefix + "c-1", Value: "{"}},
	})
	require.Error(t, err)
}
