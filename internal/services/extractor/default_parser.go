package extractor

import (
	"regexp"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tenderwatch/internal/common"
	"github.com/ternarybob/tenderwatch/internal/models"
)

// defaultLabels are the field labels recognized by the default parser, in
// the order they map onto BidRecord fields.
var defaultLabels = []string{
	"项目名称", // project name
	"预算金额", // budget
	"采购人",  // purchaser
	"获取采购文件", // document availability window
	"项目编号", // project number
	"服务期限", // service period
	"采购内容", // content
}

// blockMarkerRe marks the start of a project block: a run of digits
// immediately followed by the project-name label.
var blockMarkerRe = regexp.MustCompile(`\d+\s*项目名称`)

// projectNumberRe restricts the project-number value to its expected charset.
var projectNumberRe = regexp.MustCompile(`^[A-Za-z0-9\-]+`)

// DefaultParser extracts bids from the standard announcement format:
// numbered project blocks with colon-separated labeled fields.
type DefaultParser struct {
	rules  common.ExtractorConfig
	logger arbor.ILogger
}

// NewDefaultParser creates the default parser with the given validation rules.
func NewDefaultParser(rules common.ExtractorConfig, logger arbor.ILogger) *DefaultParser {
	return &DefaultParser{rules: rules, logger: logger}
}

// Parse splits the article text into project blocks and extracts one bid
// record per block that passes validation. Malformed blocks are dropped,
// not surfaced as errors.
func (p *DefaultParser) Parse(article *models.Article) []*models.BidRecord {
	blocks := splitProjectBlocks(article.ContentText)
	p.logger.Info().Int("blocks", len(blocks)).Msg("Found project blocks in article")

	var bids []*models.BidRecord
	for i, block := range blocks {
		block = strings.TrimSpace(block)

		bid := &models.BidRecord{
			ProjectName:   captureField(block, "项目名称", defaultLabels),
			Budget:        captureField(block, "预算金额", defaultLabels),
			Purchaser:     captureField(block, "采购人", defaultLabels),
			DocTime:       captureField(block, "获取采购文件", defaultLabels),
			ProjectNumber: trimProjectNumber(captureField(block, "项目编号", defaultLabels)),
			ServicePeriod: captureField(block, "服务期限", defaultLabels),
			Content:       captureField(block, "采购内容", defaultLabels),
		}

		if !p.validate(bid) {
			p.logger.Warn().Int("block", i+1).Msg("Skipping block due to missing required fields")
			continue
		}
		bids = append(bids, bid)
	}

	return bids
}

// validate enforces the required-field rules: project name, budget,
// purchaser and document window must be present; the budget must carry the
// currency marker; the project name must reach the configured minimum
// length in runes.
func (p *DefaultParser) validate(bid *models.BidRecord) bool {
	for _, v := range []string{bid.ProjectName, bid.Budget, bid.Purchaser, bid.DocTime} {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	if p.rules.CurrencyMarker != "" && !strings.Contains(bid.Budget, p.rules.CurrencyMarker) {
		return false
	}
	if len([]rune(bid.ProjectName)) < p.rules.MinProjectNameLen {
		return false
	}
	return true
}

// splitProjectBlocks cuts article text into per-project chunks at each
// block marker. Text before the first marker is discarded. If no marker
// exists but the project-name label appears, the whole text is one block;
// without the label there are no blocks.
func splitProjectBlocks(text string) []string {
	marks := blockMarkerRe.FindAllStringIndex(text, -1)
	if len(marks) == 0 {
		if strings.Contains(text, "项目名称") {
			return []string{text}
		}
		return nil
	}

	blocks := make([]string, 0, len(marks))
	for i, m := range marks {
		end := len(text)
		if i+1 < len(marks) {
			end = marks[i+1][0]
		}
		blocks = append(blocks, text[m[0]:end])
	}
	return blocks
}

// captureField returns the value following label in text: everything after
// the label (and any separator) up to the next occurrence of any other
// known label, or end of text. Label order within the block is irrelevant.
func captureField(text, label string, labels []string) string {
	idx := strings.Index(text, label)
	if idx < 0 {
		return ""
	}

	rest := text[idx+len(label):]
	rest = strings.TrimLeft(rest, ":： \t\r\n")

	end := len(rest)
	for _, other := range labels {
		if other == label {
			continue
		}
		if j := strings.Index(rest, other); j >= 0 && j < end {
			end = j
		}
	}

	return strings.TrimSpace(rest[:end])
}

// trimProjectNumber keeps the leading alphanumeric run of a captured
// project number, discarding trailing prose the boundary scan let through.
func trimProjectNumber(value string) string {
	return projectNumberRe.FindString(value)
}
