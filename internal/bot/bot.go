package bot

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"npkchat/internal/campaign"
	"npkchat/internal/chat"
	"npkchat/internal/config"
)

// FormOpener opens the campaign configuration form.
type FormOpener interface {
	Open(ctx context.Context, ev *chat.DotCommandEvent) error
}

// CampaignService is the orchestration surface behind the .campaigns command.
type CampaignService interface {
	GetAll(ctx context.Context) ([]campaign.Status, error)
	Get(ctx context.Context, campaignID string) (*campaign.Status, error)
	Cancel(ctx context.Context, campaignID string) error
}

// StorageService backs the listing commands and hash-file uploads.
type StorageService interface {
	ListFiles(ctx context.Context, bucket, prefix, region string) ([]string, error)
	PutObject(ctx context.Context, bucket, key string, data []byte, region string) error
}

// Bot is the command front door: dot commands typed into a channel and
// shared files land here.
type Bot struct {
	log       *slog.Logger
	transport chat.Transport
	form      FormOpener
	campaigns CampaignService
	storage   StorageService
	cfg       *config.Config
}

func New(log *slog.Logger, transport chat.Transport, form FormOpener, campaigns CampaignService, storage StorageService, cfg *config.Config) *Bot {
	if log == nil {
		log = slog.Default()
	}
	return &Bot{
		log:       log,
		transport: transport,
		form:      form,
		campaigns: campaigns,
		storage:   storage,
		cfg:       cfg,
	}
}

func (b *Bot) Register(r *chat.Router) {
	r.DotCommand("crack", b.form.Open)
	r.DotCommand("campaigns", b.onCampaigns)
	r.DotCommand("wordlists", b.onWordlists)
	r.DotCommand("rules", b.onRules)
	r.DotCommand("hashes", b.onHashes)
	r.FileShared(b.onFileShared)
}

// onCampaigns lists all campaigns, shows one, or cancels one:
// ".campaigns", ".campaigns status <id>", ".campaigns cancel <id>".
func (b *Bot) onCampaigns(ctx context.Context, ev *chat.DotCommandEvent) error {
	fields := strings.Fields(ev.Payload)
	if len(fields) == 2 && strings.EqualFold(fields[0], "cancel") {
		return b.cancelCampaign(ctx, ev, fields[1])
	}
	if len(fields) == 2 && strings.EqualFold(fields[0], "status") {
		return b.campaignStatus(ctx, ev, fields[1])
	}
	if len(fields) > 0 && !strings.EqualFold(fields[0], "list") {
		return b.post(ctx, ev.Message, "Usage: `.campaigns`, `.campaigns status <id>` or `.campaigns cancel <id>`")
	}

	statuses, err := b.campaigns.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("list campaigns: %w", err)
	}
	if len(statuses) == 0 {
		return b.post(ctx, ev.Message, "No campaigns.")
	}
	var sb strings.Builder
	for _, s := range statuses {
		fmt.Fprintf(&sb, "%s  %s\n", s.CampaignID, strings.ToLower(s.Status))
	}
	return b.post(ctx, ev.Message, codeBlock(sb.String()))
}

func (b *Bot) campaignStatus(ctx context.Context, ev *chat.DotCommandEvent, campaignID string) error {
	status, err := b.campaigns.Get(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("get campaign %s: %w", campaignID, err)
	}
	if status == nil {
		return b.post(ctx, ev.Message, "No campaign with id "+campaignID+".")
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s  %s\n", campaignID, strings.ToLower(status.Status))
	fmt.Fprintf(&sb, "recovered hashes: %d\n", status.RecoveredHashes)
	if status.Progress > 0 {
		fmt.Fprintf(&sb, "progress: %.1f%%\n", status.Progress)
	}
	for _, n := range status.Nodes {
		fmt.Fprintf(&sb, "node %s: %s\n", n.InstanceID, strings.ToLower(n.Status))
	}
	return b.post(ctx, ev.Message, codeBlock(sb.String()))
}

func (b *Bot) cancelCampaign(ctx context.Context, ev *chat.DotCommandEvent, campaignID string) error {
	if err := b.campaigns.Cancel(ctx, campaignID); err != nil {
		return fmt.Errorf("cancel campaign %s: %w", campaignID, err)
	}
	return b.post(ctx, ev.Message, "Cancellation requested for campaign "+campaignID+".")
}

func (b *Bot) onWordlists(ctx context.Context, ev *chat.DotCommandEvent) error {
	bucket := b.cfg.DictionaryBucket(b.cfg.AWSRegion)
	return b.postListing(ctx, ev.Message, bucket, "wordlist/", "No wordlists available.")
}

func (b *Bot) onRules(ctx context.Context, ev *chat.DotCommandEvent) error {
	bucket := b.cfg.DictionaryBucket(b.cfg.AWSRegion)
	return b.postListing(ctx, ev.Message, bucket, "rules/", "No rule files available.")
}

func (b *Bot) onHashes(ctx context.Context, ev *chat.DotCommandEvent) error {
	return b.postListing(ctx, ev.Message, b.cfg.UserdataBucket, "self/uploads/", "No hash files uploaded yet. Share a file with me to upload one.")
}

func (b *Bot) postListing(ctx context.Context, origin chat.Message, bucket, prefix, emptyText string) error {
	names, err := b.storage.ListFiles(ctx, bucket, prefix, b.cfg.AWSRegion)
	if err != nil {
		return fmt.Errorf("list %s%s: %w", bucket, prefix, err)
	}
	if len(names) == 0 {
		return b.post(ctx, origin, emptyText)
	}
	return b.post(ctx, origin, codeBlock(strings.Join(names, "\n")))
}

// onFileShared copies a shared file into the caller's upload area. The
// acknowledgment is best effort; a failed post must not fail the upload.
func (b *Bot) onFileShared(ctx context.Context, ev *chat.FileSharedEvent) error {
	content, err := b.transport.DownloadFile(ctx, ev.FileID)
	if err != nil {
		return fmt.Errorf("download shared file %s: %w", ev.FileID, err)
	}
	name := path.Base(ev.Name)
	if name == "" || name == "." || name == "/" {
		return fmt.Errorf("shared file %s has no usable name", ev.FileID)
	}
	key := "self/uploads/" + name
	if err := b.storage.PutObject(ctx, b.cfg.UserdataBucket, key, content, b.cfg.AWSRegion); err != nil {
		return fmt.Errorf("store shared file %s: %w", name, err)
	}
	if err := b.post(ctx, ev.Message, "Uploaded "+name+". Use `.crack` to start a campaign with it."); err != nil {
		b.log.Warn("failed to acknowledge upload", "file", name, "err", err)
	}
	return nil
}

func (b *Bot) post(ctx context.Context, origin chat.Message, text string) error {
	_, err := b.transport.PostMessage(ctx, origin, text)
	return err
}

func codeBlock(s string) string {
	return "```" + strings.TrimRight(s, "\n") + "```"
}
