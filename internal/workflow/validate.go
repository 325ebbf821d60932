package workflow

import (
	"strconv"

	"npkchat/internal/campaign"
)

// Validate collects every configuration failure; submission never fails
// fast, the user sees the full list at once.
func Validate(s *FormState) []string {
	var errs []string
	if s.HashType == nil {
		errs = append(errs, "Select a hash type.")
	}
	if s.SelectedInstance == "" {
		errs = append(errs, "Select an instance class.")
	}
	if !s.WordlistEnabled && !s.MaskEnabled {
		errs = append(errs, "Enable a wordlist attack, a mask attack, or both.")
	}
	if s.HashFile == "" {
		errs = append(errs, "Select a hash file.")
	}
	return errs
}

// BuildOrder converts a validated state into the submission payload. The
// region is the availability zone minus its trailing zone letter; count and
// duration travel as strings; attack-mode keys appear only when enabled.
func BuildOrder(s *FormState) campaign.Order {
	ideal := s.Ideal[s.SelectedInstance]
	az := ideal.AvailabilityZone
	region := az
	if len(az) > 1 {
		region = az[:len(az)-1]
	}

	order := campaign.Order{
		HashType:         *s.HashType,
		HashFile:         "uploads/" + s.HashFile,
		Region:           region,
		AvailabilityZone: az,
		PriceTarget:      ideal.Price * float64(s.InstanceCount) * float64(s.InstanceDuration),
		InstanceType:     ideal.InstanceType,
		InstanceCount:    strconv.Itoa(s.InstanceCount),
		InstanceDuration: strconv.Itoa(s.InstanceDuration),
	}
	if s.MaskEnabled {
		order.Mask = s.Mask
	}
	if s.WordlistEnabled {
		order.DictionaryFile = "wordlist/" + s.Wordlist
		order.RulesFiles = make([]string, 0, len(s.RulesFiles))
		for _, r := range s.RulesFiles {
			order.RulesFiles = append(order.RulesFiles, "rules/"+r)
		}
	}
	return order
}
