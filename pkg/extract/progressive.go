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

// Package extract escalates document extraction through quality tiers:
// native parsing first, then increasingly capable vision models until
// the text meets the target quality score. Costs accumulate across
// every attempt so callers can account for failed escalations too.
package extract

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/ragforge/mcprag/pkg/config"
	"github.com/ragforge/mcprag/pkg/document"
	"github.com/ragforge/mcprag/pkg/errs"
)

// Tier names in escalation order.
const (
	TierFast     = "fast"
	TierBalanced = "balanced"
	TierPremium  = "premium"
)

// File is a document held in memory.
type File struct {
	Name    string
	Content []byte
}

// ImageFile reports whether the filename is a raster image. Images
// have no native parser; only the vision tiers can read them.
func ImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}

// LadderFile reports whether the tier ladder understands the file
// format: PDFs run every tier, images run the vision tiers.
func LadderFile(name string) bool {
	return ImageFile(name) || strings.ToLower(filepath.Ext(name)) == ".pdf"
}

// Tier is one rung of the escalation ladder.
type Tier struct {
	Name        string
	Extract     func(ctx context.Context, file File) ([]string, error)
	CostPerPage float64
	Threshold   float64
	Enabled     bool
}

// Result is the outcome of progressive extraction. Cost covers every
// attempted tier, not just the winning one.
type Result struct {
	Pages          []string                `json:"-"`
	TierUsed       string                  `json:"tier_used"`
	TiersAttempted []string                `json:"tiers_attempted"`
	QualityScore   float64                 `json:"quality_score"`
	Quality        *document.QualityReport `json:"quality_report,omitempty"`
	Cost           float64                 `json:"cost"`
	ExtractionTime time.Duration           `json:"extraction_time"`
	TotalTime      time.Duration           `json:"total_time"`
	Success        bool                    `json:"success"`
	Error          string                  `json:"error,omitempty"`
}

// Processor runs files through the tier ladder.
type Processor struct {
	cfg   *config.ProgressiveConfig
	tiers []Tier
}

// NewProcessor wires the ladder from config. The fast tier uses the
// native parsers; the VLM tiers are disabled when no vlm client is
// available (typically a missing API key).
func NewProcessor(cfg *config.ProgressiveConfig, native *document.Processor, vlm *VLM) *Processor {
	tiers := []Tier{
		{
			Name:        TierFast,
			Enabled:     config.BoolValue(cfg.Tiers.Fast.Enabled, true) && native != nil,
			Threshold:   cfg.Tiers.Fast.Threshold,
			CostPerPage: cfg.Tiers.Fast.CostPerPage,
			Extract: func(ctx context.Context, file File) ([]string, error) {
				result, err := native.Extract(ctx, file.Name, file.Content)
				if err != nil {
					return nil, err
				}
				return result.Pages, nil
			},
		},
		{
			Name:        TierBalanced,
			Enabled:     config.BoolValue(cfg.Tiers.Balanced.Enabled, true) && vlm != nil,
			Threshold:   cfg.Tiers.Balanced.Threshold,
			CostPerPage: cfg.Tiers.Balanced.CostPerPage,
			Extract:     vlmTier(vlm, cfg.Tiers.Balanced.Model),
		},
		{
			Name:        TierPremium,
			Enabled:     config.BoolValue(cfg.Tiers.Premium.Enabled, true) && vlm != nil,
			Threshold:   cfg.Tiers.Premium.Threshold,
			CostPerPage: cfg.Tiers.Premium.CostPerPage,
			Extract:     vlmTier(vlm, cfg.Tiers.Premium.Model),
		},
	}
	return &Processor{cfg: cfg, tiers: tiers}
}

// NewProcessorWithTiers injects an explicit ladder.
func NewProcessorWithTiers(cfg *config.ProgressiveConfig, tiers []Tier) *Processor {
	return &Processor{cfg: cfg, tiers: tiers}
}

func vlmTier(vlm *VLM, model string) func(ctx context.Context, file File) ([]string, error) {
	return func(ctx context.Context, file File) ([]string, error) {
		if vlm == nil {
			return nil, errs.Ef(errs.Internal, "extract.vlm", "vision extraction is not configured")
		}
		return vlm.Extract(ctx, file, model)
	}
}

type attempt struct {
	pages  []string
	report *document.QualityReport
	tier   string
	took   time.Duration
}

// ExtractWithSmartRouting walks the enabled tiers from startTier, keeps
// the best-scoring extraction seen, and stops once the target quality
// is met. On a quota failure it falls back to the fast tier if that
// has not run yet and stops escalating, keeping whichever result
// scored highest. A zero target or empty startTier falls back to the
// configured defaults.
func (p *Processor) ExtractWithSmartRouting(ctx context.Context, file File, target float64, startTier string, autoRetry bool) *Result {
	start := time.Now()
	if target <= 0 {
		target = p.cfg.TargetQuality
	}
	if startTier == "" {
		startTier = TierFast
	}

	tiers := p.sequence(startTier)

	var (
		best      *attempt
		attempted []string
		totalCost float64
	)

	for i, tier := range tiers {
		attempted = append(attempted, tier.Name)
		slog.Info("extraction tier starting",
			"tier", tier.Name, "file", file.Name, "target", target)

		tierStart := time.Now()
		pages, err := tier.Extract(ctx, file)
		took := time.Since(tierStart)

		if err != nil {
			slog.Error("extraction tier failed", "tier", tier.Name, "error", err)
			if quotaExceeded(err) && tier.Name != TierFast {
				// The fallback is not part of the escalation order, so
				// it does not join the attempted list.
				if fb := p.emergencyFallback(ctx, file, attempted); fb != nil {
					totalCost += float64(len(fb.pages)) * p.costPerPage(TierFast)
					if best == nil || fb.report.OverallScore > best.report.OverallScore {
						best = fb
					}
				}
				break
			}
			if !autoRetry {
				break
			}
			continue
		}

		cost := float64(len(pages)) * tier.CostPerPage
		totalCost += cost
		report := document.CheckQuality(pages)
		slog.Info("extraction tier finished",
			"tier", tier.Name, "pages", len(pages),
			"quality", report.OverallScore, "cost", cost)

		if len(pages) > 0 && (best == nil || report.OverallScore > best.report.OverallScore) {
			best = &attempt{pages: pages, report: report, tier: tier.Name, took: took}
		}
		if report.OverallScore >= target {
			break
		}
		if !autoRetry || i == len(tiers)-1 {
			break
		}
		slog.Info("quality below target, escalating",
			"tier", tier.Name, "quality", report.OverallScore, "target", target)
	}

	totalTime := time.Since(start)
	if best == nil {
		return &Result{
			Pages:          []string{},
			TierUsed:       startTier,
			TiersAttempted: attempted,
			Quality:        document.CheckQuality(nil),
			Cost:           totalCost,
			TotalTime:      totalTime,
			Error:          "all extraction tiers failed",
		}
	}
	return &Result{
		Pages:          best.pages,
		TierUsed:       best.tier,
		TiersAttempted: attempted,
		QualityScore:   best.report.OverallScore,
		Quality:        best.report,
		Cost:           totalCost,
		ExtractionTime: best.took,
		TotalTime:      totalTime,
		Success:        true,
	}
}

// emergencyFallback runs the fast tier after a quota failure, provided
// it is enabled and has not been attempted yet.
func (p *Processor) emergencyFallback(ctx context.Context, file File, attempted []string) *attempt {
	for _, name := range attempted {
		if name == TierFast {
			return nil
		}
	}
	fast, ok := p.tier(TierFast)
	if !ok {
		return nil
	}

	slog.Info("quota exhausted, falling back to fast tier", "file", file.Name)
	start := time.Now()
	pages, err := fast.Extract(ctx, file)
	if err != nil || len(pages) == 0 {
		if err != nil {
			slog.Error("fast fallback failed", "error", err)
		}
		return nil
	}
	return &attempt{
		pages:  pages,
		report: document.CheckQuality(pages),
		tier:   TierFast,
		took:   time.Since(start),
	}
}

// sequence returns the enabled tiers in order, starting at startTier.
// Unknown names start from the top of the ladder.
func (p *Processor) sequence(startTier string) []Tier {
	from := 0
	for i, tier := range p.tiers {
		if tier.Name == startTier {
			from = i
			break
		}
	}

	var out []Tier
	for _, tier := range p.tiers[from:] {
		if tier.Enabled {
			out = append(out, tier)
		}
	}
	return out
}

func (p *Processor) tier(name string) (Tier, bool) {
	for _, tier := range p.tiers {
		if tier.Name == name && tier.Enabled {
			return tier, true
		}
	}
	return Tier{}, false
}

func (p *Processor) costPerPage(name string) float64 {
	for _, tier := range p.tiers {
		if tier.Name == name {
			return tier.CostPerPage
		}
	}
	return 0
}

// quotaExceeded reports whether err is provider rate limiting, either
// typed or raw from an SDK.
func quotaExceeded(err error) bool {
	if err == nil {
		return false
	}
	if errs.Is(err, errs.RateLimited) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "quota")
}
