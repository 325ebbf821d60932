package poller

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"strings"
)

// crackedHashesPrefix names the artifact whose contents are the outcome
// report.
const crackedHashesPrefix = "cracked_hashes"

func potfilePrefix(campaignID string) string {
	return "self/campaigns/" + campaignID + "/potfiles/"
}

// finalize runs exactly once per session: it bundles every result artifact
// into a single archive, uploads it to the originating thread, and posts the
// cracked-hashes contents as the outcome report. Bundling and upload
// failures are logged and swallowed; the session always reaches its end.
func (m *Manager) finalize(ctx context.Context, s session) {
	prefix := potfilePrefix(s.CampaignID)
	names, err := m.storage.ListFiles(ctx, m.cfg.UserdataBucket, prefix, m.cfg.AWSRegion)
	if err != nil {
		m.log.Warn("failed to list result artifacts", "campaign_id", s.CampaignID, "err", err)
		return
	}
	if len(names) == 0 {
		return
	}

	var cracked []byte
	archive, err := m.bundleArtifacts(ctx, prefix, names, func(name string, content []byte) {
		if strings.HasPrefix(name, crackedHashesPrefix) {
			cracked = content
		}
	})
	if err != nil {
		m.log.Warn("failed to bundle result artifacts", "campaign_id", s.CampaignID, "err", err)
	} else {
		filename := s.CampaignID + "-potfiles.zip"
		if err := m.transport.UploadFile(ctx, s.Message, filename, archive); err != nil {
			m.log.Warn("failed to upload result bundle", "campaign_id", s.CampaignID, "err", err)
		}
	}

	m.postOutcome(ctx, s, cracked)
}

// bundleArtifacts fetches every artifact and writes it into one zip,
// observing each file's contents along the way.
func (m *Manager) bundleArtifacts(ctx context.Context, prefix string, names []string, observe func(name string, content []byte)) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		content, err := m.storage.GetObject(ctx, m.cfg.UserdataBucket, prefix+name, m.cfg.AWSRegion)
		if err != nil {
			return nil, fmt.Errorf("fetch artifact %s: %w", name, err)
		}
		observe(name, content)
		f, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("add %s to archive: %w", name, err)
		}
		if _, err := f.Write(content); err != nil {
			return nil, fmt.Errorf("write %s to archive: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), nil
}

func (m *Manager) postOutcome(ctx context.Context, s session, cracked []byte) {
	text := fmt.Sprintf("Campaign %s finished with no cracked hashes.", s.CampaignID)
	if body := strings.TrimSpace(string(cracked)); body != "" {
		text = fmt.Sprintf("Campaign %s results:\n```%s```", s.CampaignID, body)
	}
	if _, err := m.transport.PostMessage(ctx, s.Message, text); err != nil {
		m.log.Warn("failed to post campaign outcome", "campaign_id", s.CampaignID, "err", err)
	}
}
