package models

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"corai/internal/config"
)

// BranchSpec describes one pending branch inside a fan-out request.
// Question may be empty: that branch is created without a seeded user turn
// and without an assistant generation.
type BranchSpec struct {
	Name     string `json:"name"`
	Color    string `json:"color"`
	Question string `json:"question"`
}

// BranchCreationConfig is the transient description of a branch fan-out:
// 1-5 sibling branches created from one fork point in a single operation.
// It exists only for the duration of the request and is never persisted.
type BranchCreationConfig struct {
	BranchCount int          `json:"branch_count"`
	Branches    []BranchSpec `json:"branches"`
	Purpose     *string      `json:"purpose,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
	Priority    *string      `json:"priority,omitempty"`
}

// Validate enforces the fan-out bounds: 1-5 branches, one spec per branch,
// every spec named.
func (c BranchCreationConfig) Validate() error {
	if err := validation.ValidateStruct(&c,
		validation.Field(&c.BranchCount,
			validation.Required,
			validation.Min(config.MinBranchFanout),
			validation.Max(config.MaxBranchFanout),
		),
		validation.Field(&c.Branches,
			validation.Required,
			validation.Length(config.MinBranchFanout, config.MaxBranchFanout),
		),
	); err != nil {
		return err
	}

	if len(c.Branches) != c.BranchCount {
		return fmt.Errorf("branch_count %d does not match %d branch specs", c.BranchCount, len(c.Branches))
	}

	for i, spec := range c.Branches {
		if err := validation.ValidateStruct(&spec,
			validation.Field(&spec.Name,
				validation.Required,
				validation.Length(1, config.MaxBranchNameLength),
			),
		); err != nil {
			return fmt.Errorf("branch %d: %w", i+1, err)
		}
	}

	return nil
}

// DefaultBranchConfig returns a config of count empty-question branches with
// generated names and palette colors, mirroring what the creation modal
// starts from.
func DefaultBranchConfig(count int) BranchCreationConfig {
	specs := make([]BranchSpec, count)
	for i := range specs {
		specs[i] = BranchSpec{
			Name:  fmt.Sprintf("Branch %d", i+1),
			Color: DefaultBranchColors[i%len(DefaultBranchColors)],
		}
	}
	return BranchCreationConfig{
		BranchCount: count,
		Branches:    specs,
	}
}
