package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"npkchat/internal/blockkit"
	"npkchat/internal/campaign"
	"npkchat/internal/chat"
	"npkchat/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testConfig() *config.Config {
	return &config.Config{
		AWSRegion:      "us-west-2",
		UserdataBucket: "npk-userdata",
		DictionaryBuckets: map[string]string{
			"us-west-2": "npk-dictionary-west-2",
		},
	}
}

type fakeTransport struct {
	mu       sync.Mutex
	posted   []string
	files    map[string][]byte
	postErr  error
	download []string
}

func (f *fakeTransport) OpenForm(context.Context, string, *blockkit.View) (string, error) {
	return "", fmt.Errorf("unused")
}

func (f *fakeTransport) UpdateForm(context.Context, string, func(*blockkit.View) error) error {
	return fmt.Errorf("unused")
}

func (f *fakeTransport) PushView(context.Context, string, *blockkit.View) error {
	return fmt.Errorf("unused")
}

func (f *fakeTransport) PostMessage(_ context.Context, _ chat.Message, text string, _ ...*blockkit.Block) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return "", f.postErr
	}
	f.posted = append(f.posted, text)
	return "1.0", nil
}

func (f *fakeTransport) UpdateMessage(context.Context, chat.Message, string, string, ...*blockkit.Block) error {
	return nil
}

func (f *fakeTransport) PostError(context.Context, chat.Message, string) error {
	return nil
}

func (f *fakeTransport) UploadFile(context.Context, chat.Message, string, []byte) error {
	return nil
}

func (f *fakeTransport) DownloadFile(_ context.Context, fileID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.download = append(f.download, fileID)
	content, ok := f.files[fileID]
	if !ok {
		return nil, fmt.Errorf("no such file %q", fileID)
	}
	return content, nil
}

func (f *fakeTransport) StoreOptions(context.Context, string, []*blockkit.Option) error {
	return nil
}

func (f *fakeTransport) GetOptions(context.Context, string) ([]*blockkit.Option, error) {
	return nil, nil
}

type fakeCampaigns struct {
	statuses  []campaign.Status
	cancelled []string
}

func (f *fakeCampaigns) GetAll(context.Context) ([]campaign.Status, error) {
	return f.statuses, nil
}

func (f *fakeCampaigns) Get(_ context.Context, campaignID string) (*campaign.Status, error) {
	for i := range f.statuses {
		if f.statuses[i].CampaignID == campaignID {
			return &f.statuses[i], nil
		}
	}
	return nil, nil
}

func (f *fakeCampaigns) Cancel(_ context.Context, campaignID string) error {
	f.cancelled = append(f.cancelled, campaignID)
	return nil
}

type fakeStorage struct {
	names []string
	puts  map[string][]byte
	calls []string
}

func (f *fakeStorage) ListFiles(_ context.Context, bucket, prefix, region string) ([]string, error) {
	f.calls = append(f.calls, bucket+"|"+prefix+"|"+region)
	return f.names, nil
}

func (f *fakeStorage) PutObject(_ context.Context, bucket, key string, data []byte, _ string) error {
	if f.puts == nil {
		f.puts = make(map[string][]byte)
	}
	f.puts[bucket+"/"+key] = data
	return nil
}

type fakeOpener struct {
	opened int
}

func (f *fakeOpener) Open(context.Context, *chat.DotCommandEvent) error {
	f.opened++
	return nil
}

func newTestBot(transport *fakeTransport, campaigns *fakeCampaigns, storage *fakeStorage) (*Bot, *fakeOpener) {
	opener := &fakeOpener{}
	return New(discardLogger(), transport, opener, campaigns, storage, testConfig()), opener
}

func origin() chat.Message {
	return chat.Message{Channel: "C01", User: "U01"}
}

func TestCrackCommandOpensForm(t *testing.T) {
	transport := &fakeTransport{}
	b, opener := newTestBot(transport, &fakeCampaigns{}, &fakeStorage{})

	r := chat.NewRouter(discardLogger(), transport)
	b.Register(r)
	r.DispatchDotCommand(context.Background(), &chat.DotCommandEvent{Command: "crack", Message: origin()})

	if opener.opened != 1 {
		t.Fatalf("opened = %d, want 1", opener.opened)
	}
}

func TestCampaignsListing(t *testing.T) {
	transport := &fakeTransport{}
	campaigns := &fakeCampaigns{statuses: []campaign.Status{
		{CampaignID: "c-1", Status: "RUNNING"},
		{CampaignID: "c-2", Status: "completed"},
	}}
	b, _ := newTestBot(transport, campaigns, &fakeStorage{})

	if err := b.onCampaigns(context.Background(), &chat.DotCommandEvent{Command: "campaigns", Message: origin()}); err != nil {
		t.Fatal(err)
	}
	if len(transport.posted) != 1 {
		t.Fatalf("posted %d messages, want 1", len(transport.posted))
	}
	msg := transport.posted[0]
	if !strings.Contains(msg, "c-1  running") || !strings.Contains(msg, "c-2  completed") {
		t.Fatalf("unexpected listing: %q", msg)
	}
}

func TestCampaignsStatusSubcommand(t *testing.T) {
	transport := &fakeTransport{}
	campaigns := &fakeCampaigns{statuses: []campaign.Status{
		{CampaignID: "c-1", Status: "RUNNING", RecoveredHashes: 7, Nodes: []campaign.Node{
			{InstanceID: "i-abc", Status: "running"},
		}},
	}}
	b, _ := newTestBot(transport, campaigns, &fakeStorage{})

	err := b.onCampaigns(context.Background(), &chat.DotCommandEvent{
		Command: "campaigns", Payload: "status c-1", Message: origin(),
	})
	if err != nil {
		t.Fatal(err)
	}
	msg := transport.posted[0]
	if !strings.Contains(msg, "recovered hashes: 7") || !strings.Contains(msg, "node i-abc: running") {
		t.Fatalf("unexpected status output: %q", msg)
	}

	if err := b.onCampaigns(context.Background(), &chat.DotCommandEvent{
		Command: "campaigns", Payload: "status c-404", Message: origin(),
	}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(transport.posted[1], "No campaign") {
		t.Fatalf("missing-campaign reply: %q", transport.posted[1])
	}
}

func TestCampaignsCancelSubcommand(t *testing.T) {
	transport := &fakeTransport{}
	campaigns := &fakeCampaigns{}
	b, _ := newTestBot(transport, campaigns, &fakeStorage{})

	err := b.onCampaigns(context.Background(), &chat.DotCommandEvent{
		Command: "campaigns", Payload: "cancel c-7", Message: origin(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(campaigns.cancelled) != 1 || campaigns.cancelled[0] != "c-7" {
		t.Fatalf("cancelled = %v, want [c-7]", campaigns.cancelled)
	}
}

func TestWordlistsListsDictionaryBucket(t *testing.T) {
	transport := &fakeTransport{}
	storage := &fakeStorage{names: []string{"rockyou.7z", "crackstation.7z"}}
	b, _ := newTestBot(transport, &fakeCampaigns{}, storage)

	if err := b.onWordlists(context.Background(), &chat.DotCommandEvent{Command: "wordlists", Message: origin()}); err != nil {
		t.Fatal(err)
	}
	if len(storage.calls) != 1 || storage.calls[0] != "npk-dictionary-west-2|wordlist/|us-west-2" {
		t.Fatalf("calls = %v", storage.calls)
	}
	if !strings.Contains(transport.posted[0], "rockyou.7z") {
		t.Fatalf("listing missing entries: %q", transport.posted[0])
	}
}

func TestHashesEmptyListingHintsAtUpload(t *testing.T) {
	transport := &fakeTransport{}
	b, _ := newTestBot(transport, &fakeCampaigns{}, &fakeStorage{})

	if err := b.onHashes(context.Background(), &chat.DotCommandEvent{Command: "hashes", Message: origin()}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(transport.posted[0], "Share a file") {
		t.Fatalf("unexpected empty listing message: %q", transport.posted[0])
	}
}

func TestFileSharedUploadsToSelfPrefix(t *testing.T) {
	transport := &fakeTransport{files: map[string][]byte{"F9": []byte("deadbeef:salt\n")}}
	storage := &fakeStorage{}
	b, _ := newTestBot(transport, &fakeCampaigns{}, storage)

	err := b.onFileShared(context.Background(), &chat.FileSharedEvent{
		FileID: "F9", Name: "dumps/ntlm-dump.txt", Message: origin(),
	})
	if err != nil {
		t.Fatal(err)
	}
	content, ok := storage.puts["npk-userdata/self/uploads/ntlm-dump.txt"]
	if !ok {
		t.Fatalf("object not stored, puts = %v", storage.puts)
	}
	if string(content) != "deadbeef:salt\n" {
		t.Fatalf("stored content = %q", content)
	}
}

func TestFileSharedAckFailureIsSwallowed(t *testing.T) {
	transport := &fakeTransport{
		files:   map[string][]byte{"F9": []byte("x")},
		postErr: fmt.Errorf("channel gone"),
	}
	b, _ := newTestBot(transport, &fakeCampaigns{}, &fakeStorage{})

	err := b.onFileShared(context.Background(), &chat.FileSharedEvent{
		FileID: "F9", Name: "hashes.txt", Message: origin(),
	})
	if err != nil {
		t.Fatalf("upload must succeed even when the ack post fails: %v", err)
	}
}
