package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"npkchat/internal/blockkit"
	"npkchat/internal/campaign"
	"npkchat/internal/chat"
	"npkchat/internal/config"
	"npkchat/internal/hashcat"
	"npkchat/internal/pricing"
)

// PricingGateway is the compute-pricing collaborator.
type PricingGateway interface {
	GetInstancePrices(ctx context.Context, forceRegion string) (pricing.InstancePrices, error)
	GetHashPricing(ctx context.Context, hashType int, forceRegion string) (map[string]pricing.HashPricing, error)
}

// FileLister lists object base names for the file autocompletes.
type FileLister interface {
	ListFiles(ctx context.Context, bucket, prefix, region string) ([]string, error)
}

// CampaignLauncher creates and starts campaigns.
type CampaignLauncher interface {
	Create(ctx context.Context, order campaign.Order) (string, error)
	Start(ctx context.Context, campaignID string) error
}

// PollStarter takes over a successfully started campaign.
type PollStarter interface {
	StartPolling(campaignID string, origin chat.Message)
}

// Workflow drives the campaign configuration form: it opens the form,
// reacts to each field change by mutating metadata and the owned block
// subtree, and validates and submits on launch.
type Workflow struct {
	log       *slog.Logger
	transport chat.Transport
	pricing   PricingGateway
	files     FileLister
	campaigns CampaignLauncher
	poller    PollStarter
	cfg       *config.Config
}

func New(log *slog.Logger, transport chat.Transport, pricingGW PricingGateway, files FileLister, campaigns CampaignLauncher, poller PollStarter, cfg *config.Config) *Workflow {
	if log == nil {
		log = slog.Default()
	}
	return &Workflow{
		log:       log,
		transport: transport,
		pricing:   pricingGW,
		files:     files,
		campaigns: campaigns,
		poller:    poller,
		cfg:       cfg,
	}
}

// Register wires every form interaction into the router.
func (w *Workflow) Register(r *chat.Router) {
	r.Options(ActHashType, w.hashTypeOptions)
	r.Options(ActHashFile, w.hashFileOptions)
	r.Options(ActWordlist, w.wordlistOptions)
	r.Options(ActRules, w.rulesOptions)

	r.Action(ActHashType, w.onHashTypeSelected)
	r.Action(ActRegion, w.onRegionForced)
	r.ActionPrefix(ActInstancePrefix, w.onInstanceSelected)
	r.Action(ActCount, w.onCountChanged)
	r.Action(ActDuration, w.onDurationChanged)
	r.Action(ActWordlistToggle, w.onWordlistToggle)
	r.Action(ActMaskToggle, w.onMaskToggle)

	r.ViewSubmission(CallbackID, w.onSubmit)
}

// Open shows the placeholder form synchronously, resolves the pricing and
// file-listing lookups, then swaps the placeholder for the full field set in
// place.
func (w *Workflow) Open(ctx context.Context, ev *chat.DotCommandEvent) error {
	state := NewFormState(ev.Message)
	formID, err := w.transport.OpenForm(ctx, ev.TriggerID, LoadingView(state))
	if err != nil {
		return fmt.Errorf("open configuration form: %w", err)
	}

	prices, err := w.pricing.GetInstancePrices(ctx, "")
	if err != nil {
		// The placeholder is already on screen; it must not stay there
		// spinning with no way out.
		if uerr := w.transport.UpdateForm(ctx, formID, func(v *blockkit.View) error {
			*v = *LoadFailedView(state)
			return nil
		}); uerr != nil {
			w.log.Warn("failed to render load failure", "form_id", formID, "err", uerr)
		}
		return fmt.Errorf("load instance prices: %w", err)
	}
	state.ApplyInstancePrices(prices)

	if err := w.storeHashTypeOptions(ctx); err != nil {
		w.log.Warn("failed to store hash type options", "err", err)
	}
	// Prime the upload listing; autocomplete re-lists live, so a failure
	// here costs nothing but a warm cache.
	if _, err := w.files.ListFiles(ctx, w.cfg.UserdataBucket, "self/uploads/", w.cfg.AWSRegion); err != nil {
		w.log.Warn("failed to list uploads", "err", err)
	}

	return w.transport.UpdateForm(ctx, formID, func(v *blockkit.View) error {
		*v = *ReadyView(state)
		return nil
	})
}

func (w *Workflow) storeHashTypeOptions(ctx context.Context) error {
	options := make([]*blockkit.Option, 0, len(hashcat.Catalog))
	for _, h := range hashcat.Catalog {
		options = append(options, blockkit.NewOption(h.Name, h.ModeValue()))
	}
	return w.transport.StoreOptions(ctx, "hash_types", options)
}

// mutateState runs a field transition: it re-reads the authoritative state
// from the form's metadata, applies the mutation to state and block tree,
// and re-serializes the state.
func (w *Workflow) mutateState(ctx context.Context, formID string, fn func(v *blockkit.View, s *FormState) error) error {
	return w.transport.UpdateForm(ctx, formID, func(v *blockkit.View) error {
		s, err := ParseState(v.PrivateMetadata)
		if err != nil {
			return err
		}
		if err := fn(v, s); err != nil {
			return err
		}
		v.PrivateMetadata = s.Encode()
		return nil
	})
}

// stateHint decodes the metadata echoed with an interaction payload. It is
// only a hint for pre-fetching; the mutator re-reads the live state.
func stateHint(metadata string) *FormState {
	s, err := ParseState(metadata)
	if err != nil {
		return &FormState{Version: StateVersion}
	}
	return s
}

func (w *Workflow) onRegionForced(ctx context.Context, p *chat.ActionPayload) error {
	region := ""
	if opt := p.First().SelectedOption; opt != nil {
		region = opt.Value
	}

	prices, err := w.pricing.GetInstancePrices(ctx, region)
	if err != nil {
		return fmt.Errorf("refresh instance prices: %w", err)
	}
	hint := stateHint(p.Metadata)
	var hashPrices map[string]pricing.HashPricing
	if hint.HashType != nil {
		hashPrices, err = w.pricing.GetHashPricing(ctx, *hint.HashType, region)
		if err != nil {
			return fmt.Errorf("refresh hash pricing: %w", err)
		}
	}

	return w.mutateState(ctx, p.FormID, func(v *blockkit.View, s *FormState) error {
		s.SetForceRegion(region)
		s.ApplyInstancePrices(prices)
		if hashPrices != nil {
			s.ApplyHashPricing(hashPrices)
		}
		reflectSelections(v, s)
		return nil
	})
}

func (w *Workflow) onHashTypeSelected(ctx context.Context, p *chat.ActionPayload) error {
	opt := p.First().SelectedOption
	if opt == nil {
		return fmt.Errorf("hash type action without a selection")
	}
	h, ok := hashcat.ByModeValue(opt.Value)
	if !ok {
		return fmt.Errorf("unknown hash type %q", opt.Value)
	}

	hint := stateHint(p.Metadata)
	hashPrices, err := w.pricing.GetHashPricing(ctx, h.Mode, hint.ForceRegion)
	if err != nil {
		return fmt.Errorf("look up hash pricing: %w", err)
	}

	return w.mutateState(ctx, p.FormID, func(v *blockkit.View, s *FormState) error {
		mode := h.Mode
		s.HashType = &mode
		s.ApplyHashPricing(hashPrices)
		reflectSelections(v, s)
		return nil
	})
}

func (w *Workflow) onInstanceSelected(ctx context.Context, p *chat.ActionPayload) error {
	action := p.First()
	class := strings.TrimPrefix(action.ActionID, ActInstancePrefix)
	return w.mutateState(ctx, p.FormID, func(v *blockkit.View, s *FormState) error {
		// Selecting any class, including the current one, just (re)sets it;
		// only a region change clears the selection.
		s.SelectedInstance = class
		applyInstanceCards(v, s)
		return nil
	})
}

func (w *Workflow) onCountChanged(ctx context.Context, p *chat.ActionPayload) error {
	n, err := selectedNumber(p)
	if err != nil {
		return err
	}
	return w.mutateState(ctx, p.FormID, func(v *blockkit.View, s *FormState) error {
		s.InstanceCount = n
		applyTotal(v, s)
		return nil
	})
}

func (w *Workflow) onDurationChanged(ctx context.Context, p *chat.ActionPayload) error {
	n, err := selectedNumber(p)
	if err != nil {
		return err
	}
	return w.mutateState(ctx, p.FormID, func(v *blockkit.View, s *FormState) error {
		s.InstanceDuration = n
		applyTotal(v, s)
		return nil
	})
}

func selectedNumber(p *chat.ActionPayload) (int, error) {
	opt := p.First().SelectedOption
	if opt == nil {
		return 0, fmt.Errorf("number action without a selection")
	}
	n, err := strconv.Atoi(opt.Value)
	if err != nil {
		return 0, fmt.Errorf("bad number option %q: %w", opt.Value, err)
	}
	return n, nil
}

func (w *Workflow) onWordlistToggle(ctx context.Context, p *chat.ActionPayload) error {
	return w.mutateState(ctx, p.FormID, func(v *blockkit.View, s *FormState) error {
		s.WordlistEnabled = !s.WordlistEnabled
		v.Replace(blockWordlistToggle, wordlistToggleBlock(s))
		if s.WordlistEnabled {
			v.InsertAfter(blockWordlistToggle, wordlistBlocks(s)...)
		} else {
			v.RemoveAll(wordlistGroup...)
		}
		return nil
	})
}

func (w *Workflow) onMaskToggle(ctx context.Context, p *chat.ActionPayload) error {
	return w.mutateState(ctx, p.FormID, func(v *blockkit.View, s *FormState) error {
		s.MaskEnabled = !s.MaskEnabled
		v.Replace(blockMaskToggle, maskToggleBlock(s))
		if s.MaskEnabled {
			v.InsertAfter(blockMaskToggle, maskBlocks(s)...)
		} else {
			v.RemoveAll(maskGroup...)
		}
		return nil
	})
}

func (w *Workflow) hashTypeOptions(_ context.Context, p *chat.OptionsPayload) ([]*blockkit.Option, error) {
	matches := hashcat.Filter(p.Query)
	options := make([]*blockkit.Option, 0, len(matches))
	for _, h := range matches {
		options = append(options, blockkit.NewOption(h.Name, h.ModeValue()))
	}
	return options, nil
}

func (w *Workflow) hashFileOptions(ctx context.Context, p *chat.OptionsPayload) ([]*blockkit.Option, error) {
	files, err := w.files.ListFiles(ctx, w.cfg.UserdataBucket, "self/uploads/", w.cfg.AWSRegion)
	if err != nil {
		return nil, fmt.Errorf("list hash files: %w", err)
	}
	return fileOptions(files), nil
}

func (w *Workflow) wordlistOptions(ctx context.Context, p *chat.OptionsPayload) ([]*blockkit.Option, error) {
	return w.dictionaryOptions(ctx, p, "wordlist/")
}

func (w *Workflow) rulesOptions(ctx context.Context, p *chat.OptionsPayload) ([]*blockkit.Option, error) {
	return w.dictionaryOptions(ctx, p, "rules/")
}

// dictionaryOptions lists the per-region dictionary bucket, scoped by the
// currently forced region when one is set.
func (w *Workflow) dictionaryOptions(ctx context.Context, p *chat.OptionsPayload, prefix string) ([]*blockkit.Option, error) {
	region := stateHint(p.Metadata).ForceRegion
	if region == "" {
		region = w.cfg.AWSRegion
	}
	files, err := w.files.ListFiles(ctx, w.cfg.DictionaryBucket(region), prefix, region)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", strings.TrimSuffix(prefix, "/"), err)
	}
	return fileOptions(files), nil
}

func fileOptions(files []string) []*blockkit.Option {
	options := make([]*blockkit.Option, 0, len(files))
	for _, f := range files {
		options = append(options, blockkit.NewOption(f, f))
	}
	return options
}

// onSubmit validates the assembled configuration and either surfaces every
// failure or launches the campaign and hands the id to the poller.
func (w *Workflow) onSubmit(ctx context.Context, p *chat.ViewSubmission) error {
	s, err := ParseState(p.Metadata)
	if err != nil {
		return err
	}
	mergeSubmittedValues(s, p.Values)

	if errs := Validate(s); len(errs) > 0 {
		// Before surfacing the error view, push the action-backed field
		// values back into metadata and each control's initial option, or
		// the recovered form would appear reset.
		if err := w.mutateState(ctx, p.FormID, func(v *blockkit.View, live *FormState) error {
			*live = *s
			reflectSelections(v, live)
			return nil
		}); err != nil {
			w.log.Warn("failed to persist form state before error view", "err", err)
		}
		return w.transport.PushView(ctx, p.FormID, ErrorView(errs))
	}

	order := BuildOrder(s)
	// Launch must not block the submission callback on the long-running
	// campaign; control transfers to the poller.
	go w.launch(context.WithoutCancel(ctx), s.Message, order)
	return nil
}

// mergeSubmittedValues folds the input-style control values into state; the
// transport preserves these itself, so they only arrive at submission.
func mergeSubmittedValues(s *FormState, values map[string]map[string]chat.InputValue) {
	if v, ok := values[blockHashFile][ActHashFile]; ok && v.SelectedOption != nil {
		s.HashFile = v.SelectedOption.Value
	}
	if v, ok := values[blockWordlist][ActWordlist]; ok && v.SelectedOption != nil {
		s.Wordlist = v.SelectedOption.Value
	}
	if v, ok := values[blockRules][ActRules]; ok && len(v.SelectedOptions) > 0 {
		s.RulesFiles = s.RulesFiles[:0]
		for _, opt := range v.SelectedOptions {
			s.RulesFiles = append(s.RulesFiles, opt.Value)
		}
	}
	// The mask is free text, so an empty value is a deliberate clear and
	// must overwrite whatever the metadata still holds.
	if v, ok := values[blockMask][ActMask]; ok {
		s.Mask = v.Value
	}
}

func (w *Workflow) launch(ctx context.Context, origin chat.Message, order campaign.Order) {
	campaignID, err := w.campaigns.Create(ctx, order)
	if err != nil {
		w.log.Error("campaign creation failed", "err", err)
		w.reportLaunchFailure(ctx, origin, "Failed to create the campaign", err)
		return
	}
	if err := w.campaigns.Start(ctx, campaignID); err != nil {
		w.log.Error("campaign start failed", "campaign_id", campaignID, "err", err)
		w.reportLaunchFailure(ctx, origin, "Failed to start campaign "+campaignID, err)
		return
	}
	w.poller.StartPolling(campaignID, origin)
}

func (w *Workflow) reportLaunchFailure(ctx context.Context, origin chat.Message, what string, err error) {
	if postErr := w.transport.PostError(ctx, origin, fmt.Sprintf("%s: %v", what, err)); postErr != nil {
		w.log.Error("failed to report launch failure", "err", postErr)
	}
}
