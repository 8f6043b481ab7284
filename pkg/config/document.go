// Copyright 2025 RagForge
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"time"
)

// DocumentConfig tunes chunking and upload handling.
type DocumentConfig struct {
	ChunkSize    int `yaml:"chunk_size,omitempty"`
	ChunkOverlap int `yaml:"chunk_overlap,omitempty"`

	MaxFileSizeMB int `yaml:"max_file_size_mb,omitempty"`

	// MaxConcurrentExtractions bounds parallel document extractions so
	// long-running VLM uploads cannot occupy every worker.
	MaxConcurrentExtractions int `yaml:"max_concurrent_extractions,omitempty"`
}

func (c *DocumentConfig) SetDefaults() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 1000
	}
	if c.ChunkOverlap < 0 {
		c.ChunkOverlap = 0
	}
	if c.ChunkOverlap == 0 {
		c.ChunkOverlap = 200
	}
	if c.MaxFileSizeMB <= 0 {
		c.MaxFileSizeMB = 50
	}
	if c.MaxConcurrentExtractions <= 0 {
		c.MaxConcurrentExtractions = 4
	}
}

func (c *DocumentConfig) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive")
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("chunk_overlap must be non-negative")
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk_overlap must be less than chunk_size")
	}
	return nil
}

// MaxFileSizeBytes returns the upload size limit in bytes.
func (c *DocumentConfig) MaxFileSizeBytes() int64 {
	return int64(c.MaxFileSizeMB) * 1024 * 1024
}

// ExtractorConfig tunes text extraction and cleaning.
type ExtractorConfig struct {
	// CleanArtifacts enables OCR artifact cleanup (glyph escapes,
	// control characters, leader lines).
	CleanArtifacts *bool `yaml:"clean_artifacts,omitempty"`

	// FixThaiEncoding repairs broken Thai combining-mark sequences.
	FixThaiEncoding *bool `yaml:"fix_thai_encoding,omitempty"`

	// MinPageChars drops cleaned pages shorter than this.
	MinPageChars int `yaml:"min_page_chars,omitempty"`

	// ValidateQuality runs the quality checker on extracted text.
	ValidateQuality *bool `yaml:"validate_quality,omitempty"`
}

func (c *ExtractorConfig) SetDefaults() {
	if c.CleanArtifacts == nil {
		c.CleanArtifacts = BoolPtr(true)
	}
	if c.FixThaiEncoding == nil {
		c.FixThaiEncoding = BoolPtr(true)
	}
	if c.MinPageChars <= 0 {
		c.MinPageChars = 3
	}
	if c.ValidateQuality == nil {
		c.ValidateQuality = BoolPtr(true)
	}
}

func (c *ExtractorConfig) Validate() error {
	return nil
}

// ProgressiveConfig configures tiered extraction.
//
// Example YAML:
//
//	progressive:
//	  enabled: true
//	  target_quality: 0.70
//	  api_key: ${GEMINI_API_KEY}
//	  tiers:
//	    premium:
//	      enabled: false
type ProgressiveConfig struct {
	Enabled *bool `yaml:"enabled,omitempty"`

	// TargetQuality is the overall score at which escalation stops.
	TargetQuality float64 `yaml:"target_quality,omitempty"`

	// AutoRetry escalates to the next tier when quality falls short.
	AutoRetry *bool `yaml:"auto_retry,omitempty"`

	// APIKey authenticates the VLM tiers.
	APIKey string `yaml:"api_key,omitempty"`

	// PerPageTimeout bounds VLM extraction proportionally to page count.
	PerPageTimeout time.Duration `yaml:"per_page_timeout,omitempty"`

	Tiers TiersConfig `yaml:"tiers,omitempty"`
}

// TiersConfig holds per-tier settings in escalation order.
type TiersConfig struct {
	Fast     TierConfig `yaml:"fast,omitempty"`
	Balanced TierConfig `yaml:"balanced,omitempty"`
	Premium  TierConfig `yaml:"premium,omitempty"`
}

// TierConfig configures one extraction tier.
type TierConfig struct {
	Enabled *bool `yaml:"enabled,omitempty"`

	// Threshold is the quality score this tier is expected to reach.
	Threshold float64 `yaml:"threshold,omitempty"`

	// CostPerPage in USD, accumulated over every attempted page.
	CostPerPage float64 `yaml:"cost_per_page,omitempty"`

	// Model names the VLM for this tier; ignored by the fast tier.
	Model string `yaml:"model,omitempty"`
}

func (c *ProgressiveConfig) SetDefaults() {
	if c.Enabled == nil {
		c.Enabled = BoolPtr(true)
	}
	if c.TargetQuality <= 0 {
		c.TargetQuality = 0.70
	}
	if c.AutoRetry == nil {
		c.AutoRetry = BoolPtr(true)
	}
	if c.PerPageTimeout <= 0 {
		c.PerPageTimeout = 60 * time.Second
	}

	if c.Tiers.Fast.Enabled == nil {
		c.Tiers.Fast.Enabled = BoolPtr(true)
	}
	if c.Tiers.Fast.Threshold <= 0 {
		c.Tiers.Fast.Threshold = 0.70
	}

	if c.Tiers.Balanced.Enabled == nil {
		c.Tiers.Balanced.Enabled = BoolPtr(true)
	}
	if c.Tiers.Balanced.Threshold <= 0 {
		c.Tiers.Balanced.Threshold = 0.80
	}
	if c.Tiers.Balanced.Model == "" {
		c.Tiers.Balanced.Model = "gemini-2.0-flash"
	}

	if c.Tiers.Premium.Enabled == nil {
		c.Tiers.Premium.Enabled = BoolPtr(true)
	}
	if c.Tiers.Premium.Threshold <= 0 {
		c.Tiers.Premium.Threshold = 0.85
	}
	if c.Tiers.Premium.CostPerPage <= 0 {
		c.Tiers.Premium.CostPerPage = 0.0013
	}
	if c.Tiers.Premium.Model == "" {
		c.Tiers.Premium.Model = "gemini-2.5-pro"
	}
}

func (c *ProgressiveConfig) Validate() error {
	if c.TargetQuality < 0 || c.TargetQuality > 1 {
		return fmt.Errorf("target_quality must be between 0 and 1")
	}
	for _, t := range []struct {
		name string
		tier TierConfig
	}{
		{"fast", c.Tiers.Fast},
		{"balanced", c.Tiers.Balanced},
		{"premium", c.Tiers.Premium},
	} {
		if t.tier.Threshold < 0 || t.tier.Threshold > 1 {
			return fmt.Errorf("tiers.%s.threshold must be between 0 and 1", t.name)
		}
		if t.tier.CostPerPage < 0 {
			return fmt.Errorf("tiers.%s.cost_per_page must be non-negative", t.name)
		}
	}
	return nil
}
