package workflow

import (
	"fmt"
	"strconv"
	"strings"

	"npkchat/internal/blockkit"
	"npkchat/internal/hashcat"
)

// CallbackID identifies the configuration form on submission callbacks.
const CallbackID = "campaign_config"

// Block and action ids. Block ids are unique within the view's current block
// list; the toggle-owned groups are spliced in and out as named sets.
const (
	blockLoading = "loading"

	blockHashFile = "hash_file"
	ActHashFile   = "hash_file_select"

	blockHashType = "hash_type"
	ActHashType   = "hash_type_select"

	blockRegion = "force_region"
	ActRegion   = "force_region_select"

	blockInstancePrefix = "instance_"
	ActInstancePrefix   = "select_instance_"

	blockCount = "instance_count"
	ActCount   = "instance_count_select"

	blockDuration = "instance_duration"
	ActDuration   = "instance_duration_select"

	blockTotal = "total_cost"

	blockWordlistToggle = "wordlist_toggle"
	ActWordlistToggle   = "wordlist_toggle_btn"

	blockWordlist = "wordlist"
	ActWordlist   = "wordlist_select"

	blockRules = "rules"
	ActRules   = "rules_select"

	blockMaskToggle = "mask_toggle"
	ActMaskToggle   = "mask_toggle_btn"

	blockMask = "mask"
	ActMask   = "mask_input"
)

// wordlistGroup and maskGroup are the dependent block ids each toggle owns.
var (
	wordlistGroup = []string{blockWordlist, blockRules}
	maskGroup     = []string{blockMask}
)

var forceRegions = []string{"us-east-1", "us-east-2", "us-west-1", "us-west-2"}

const (
	maxInstanceCount    = 6
	maxInstanceDuration = 24
)

// LoadingView is the placeholder shown synchronously at open time; the open
// handshake expires quickly and the real content needs two lookups.
func LoadingView(s *FormState) *blockkit.View {
	v := blockkit.Modal(CallbackID, "New campaign",
		blockkit.Section(blockLoading, blockkit.Markdown(":hourglass: Loading campaign configuration...")),
	)
	v.PrivateMetadata = s.Encode()
	return v
}

// LoadFailedView replaces the placeholder when the opening lookups fail.
func LoadFailedView(s *FormState) *blockkit.View {
	v := blockkit.Modal(CallbackID, "New campaign",
		blockkit.Section(blockLoading, blockkit.Markdown(":x: Could not load campaign configuration. Close this form and try again.")),
	)
	v.WithClose("Close")
	v.PrivateMetadata = s.Encode()
	return v
}

// ReadyView derives the full field set from the current state.
func ReadyView(s *FormState) *blockkit.View {
	blocks := []*blockkit.Block{
		blockkit.Header("header", "Campaign configuration"),
		blockkit.Input(blockHashFile, "Hash file", blockkit.ExternalSelect(ActHashFile, "Select an uploaded hash file")),
		blockkit.Section(blockHashType, blockkit.Markdown("*Hash type*")).WithAccessory(hashTypeSelect(s)),
		blockkit.Section(blockRegion, blockkit.Markdown("*Region*")).WithAccessory(regionSelect(s)),
		blockkit.Divider(),
	}
	for _, class := range InstanceClasses {
		blocks = append(blocks, instanceSection(s, class))
	}
	blocks = append(blocks,
		blockkit.Section(blockCount, blockkit.Markdown("*Instances*")).WithAccessory(countSelect(s)),
		blockkit.Section(blockDuration, blockkit.Markdown("*Duration (hours)*")).WithAccessory(durationSelect(s)),
		totalSection(s),
		blockkit.Divider(),
		wordlistToggleBlock(s),
	)
	if s.WordlistEnabled {
		blocks = append(blocks, wordlistBlocks(s)...)
	}
	blocks = append(blocks, maskToggleBlock(s))
	if s.MaskEnabled {
		blocks = append(blocks, maskBlocks(s)...)
	}

	v := blockkit.Modal(CallbackID, "New campaign", blocks...)
	v.WithSubmit("Launch").WithClose("Cancel")
	v.PrivateMetadata = s.Encode()
	return v
}

func hashTypeSelect(s *FormState) *blockkit.Element {
	sel := blockkit.ExternalSelect(ActHashType, "Select a hash type")
	if s.HashType != nil {
		if h, ok := hashcat.ByMode(*s.HashType); ok {
			sel.InitialOption = blockkit.NewOption(h.Name, h.ModeValue())
		}
	}
	return sel
}

func regionSelect(s *FormState) *blockkit.Element {
	options := make([]*blockkit.Option, 0, len(forceRegions)+1)
	options = append(options, blockkit.NewOption("Any region", ""))
	for _, r := range forceRegions {
		options = append(options, blockkit.NewOption(r, r))
	}
	sel := blockkit.StaticSelect(ActRegion, "Force a region", options)
	if s.ForceRegion != "" {
		sel.InitialOption = blockkit.NewOption(s.ForceRegion, s.ForceRegion)
	}
	return sel
}

func instanceBlockID(class string) string {
	return blockInstancePrefix + class
}

// instanceSection is one class card: price and throughput figures with a
// select button, highlighted when the class is the current selection.
func instanceSection(s *FormState, class string) *blockkit.Block {
	display := s.Instances[class]
	text := fmt.Sprintf("*%s* — %s/hr — %s",
		strings.ToUpper(class),
		FormatPrice(display.Price),
		FormatHashRate(display.Hashes),
	)
	button := blockkit.Button(ActInstancePrefix+class, "Select").WithValue(class)
	if s.SelectedInstance == class {
		button = blockkit.Button(ActInstancePrefix+class, "Selected").WithValue(class).WithStyle(blockkit.StylePrimary)
	}
	return blockkit.Section(instanceBlockID(class), blockkit.Markdown(text)).WithAccessory(button)
}

func countSelect(s *FormState) *blockkit.Element {
	return numberSelect(ActCount, maxInstanceCount, s.InstanceCount)
}

func durationSelect(s *FormState) *blockkit.Element {
	return numberSelect(ActDuration, maxInstanceDuration, s.InstanceDuration)
}

func numberSelect(actionID string, max, current int) *blockkit.Element {
	options := make([]*blockkit.Option, 0, max)
	for i := 1; i <= max; i++ {
		options = append(options, blockkit.NewOption(strconv.Itoa(i), strconv.Itoa(i)))
	}
	sel := blockkit.StaticSelect(actionID, "", options)
	if current >= 1 && current <= max {
		sel.InitialOption = blockkit.NewOption(strconv.Itoa(current), strconv.Itoa(current))
	}
	return sel
}

func totalSection(s *FormState) *blockkit.Block {
	return blockkit.Section(blockTotal, blockkit.Markdown("*Total:* "+TotalCost(s)))
}

func wordlistToggleBlock(s *FormState) *blockkit.Block {
	label := "Enable wordlist attack"
	btn := blockkit.Button(ActWordlistToggle, label)
	if s.WordlistEnabled {
		btn = blockkit.Button(ActWordlistToggle, "Disable wordlist attack").WithStyle(blockkit.StyleDanger)
	}
	return blockkit.Actions(blockWordlistToggle, btn)
}

func wordlistBlocks(s *FormState) []*blockkit.Block {
	return []*blockkit.Block{
		blockkit.Input(blockWordlist, "Wordlist", blockkit.ExternalSelect(ActWordlist, "Select a wordlist")),
		blockkit.Input(blockRules, "Rules", blockkit.MultiExternalSelect(ActRules, "Select rule files")),
	}
}

func maskToggleBlock(s *FormState) *blockkit.Block {
	btn := blockkit.Button(ActMaskToggle, "Enable mask attack")
	if s.MaskEnabled {
		btn = blockkit.Button(ActMaskToggle, "Disable mask attack").WithStyle(blockkit.StyleDanger)
	}
	return blockkit.Actions(blockMaskToggle, btn)
}

func maskBlocks(s *FormState) []*blockkit.Block {
	input := blockkit.PlainTextInput(ActMask, "?l?l?l?l?d?d?d?d")
	input.InitialValue = s.Mask
	return []*blockkit.Block{
		blockkit.Input(blockMask, "Mask", input),
	}
}

// applyInstanceCards recomputes the card subtree and the total from state.
func applyInstanceCards(v *blockkit.View, s *FormState) {
	for _, class := range InstanceClasses {
		v.Replace(instanceBlockID(class), instanceSection(s, class))
	}
	applyTotal(v, s)
}

func applyTotal(v *blockkit.View, s *FormState) {
	v.Replace(blockTotal, totalSection(s))
}

// reflectSelections writes every action-backed field's current value back
// into its control's initial option. The transport does not preserve
// selection state for action-style controls across a re-render the way it
// does for input-style controls; without this the error-recovery view would
// appear reset.
func reflectSelections(v *blockkit.View, s *FormState) {
	v.Replace(blockHashType, blockkit.Section(blockHashType, blockkit.Markdown("*Hash type*")).WithAccessory(hashTypeSelect(s)))
	v.Replace(blockRegion, blockkit.Section(blockRegion, blockkit.Markdown("*Region*")).WithAccessory(regionSelect(s)))
	v.Replace(blockCount, blockkit.Section(blockCount, blockkit.Markdown("*Instances*")).WithAccessory(countSelect(s)))
	v.Replace(blockDuration, blockkit.Section(blockDuration, blockkit.Markdown("*Duration (hours)*")).WithAccessory(durationSelect(s)))
	applyInstanceCards(v, s)
}

// ErrorView lists every validation failure.
func ErrorView(messages []string) *blockkit.View {
	blocks := make([]*blockkit.Block, 0, len(messages)+1)
	blocks = append(blocks, blockkit.Header("error_header", "Cannot launch campaign"))
	for i, msg := range messages {
		blocks = append(blocks, blockkit.Section(fmt.Sprintf("error_%d", i), blockkit.Markdown(":warning: "+msg)))
	}
	v := blockkit.Modal("campaign_config_errors", "Check configuration", blocks...)
	v.WithClose("Back")
	return v
}
