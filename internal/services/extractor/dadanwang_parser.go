package extractor

import (
	"regexp"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tenderwatch/internal/models"
)

// dadanwangLabels are the field labels used by 大单网 announcements.
var dadanwangLabels = []string{
	"项目名称",   // project name
	"预算金额",   // budget
	"单位名称",   // purchaser
	"采购目标",   // content
	"采购要求",   // requirements, boundary only
	"预计采购时间", // expected purchase time
	"云头条声明",  // site disclaimer, boundary only
}

// awardKeywords in a title mean the article reports a decided tender, not
// an open solicitation. Those articles are excluded entirely.
var awardKeywords = []string{"中标", "成交", "结果", "赢家", "第一名", "候选人"}

// Fallback extractors for the short prose format that carries no labels.
var (
	bookTitleRe       = regexp.MustCompile(`《(.*?)》`)
	publisherOrgRe    = regexp.MustCompile(`([\p{Han}]+公司|[\p{Han}]+局)发布`)
	publisherClauseRe = regexp.MustCompile(`，(.*?)发布`)
	budgetFallbackRe  = regexp.MustCompile(`预算[:：\s]*([\d\.]+\s*[万亿]?元?)`)
)

// DadanwangParser handles 大单网 articles: a different label set, title
// filtering of award announcements, and prose fallbacks for unlabeled
// short posts. Its validation is deliberately looser than the default
// parser's; this source labels budgets reliably but often omits the
// purchaser and document window.
type DadanwangParser struct {
	logger arbor.ILogger
}

// NewDadanwangParser creates the 大单网 parser.
func NewDadanwangParser(logger arbor.ILogger) *DadanwangParser {
	return &DadanwangParser{logger: logger}
}

// Parse extracts at most one bid record from a 大单网 article.
func (p *DadanwangParser) Parse(article *models.Article) []*models.BidRecord {
	text := article.ContentText
	if text == "" {
		return nil
	}

	for _, kw := range awardKeywords {
		if strings.Contains(article.Title, kw) {
			p.logger.Info().Str("title", article.Title).Msg("Skipping article, appears to be an award announcement")
			return nil
		}
	}

	bid := &models.BidRecord{
		ProjectName: captureField(text, "项目名称", dadanwangLabels),
		Budget:      captureField(text, "预算金额", dadanwangLabels),
		Purchaser:   captureField(text, "单位名称", dadanwangLabels),
		DocTime:     captureField(text, "预计采购时间", dadanwangLabels),
		Content:     captureField(text, "采购目标", dadanwangLabels),
	}

	if bid.ProjectName == "" {
		if m := bookTitleRe.FindStringSubmatch(text); m != nil {
			bid.ProjectName = strings.TrimSpace(m[1])
		}
	}
	if bid.Purchaser == "" {
		if m := publisherOrgRe.FindStringSubmatch(text); m != nil {
			bid.Purchaser = strings.TrimSpace(m[1])
		} else if m := publisherClauseRe.FindStringSubmatch(text); m != nil {
			bid.Purchaser = strings.TrimSpace(m[1])
		}
	}
	if bid.Budget == "" {
		if m := budgetFallbackRe.FindStringSubmatch(text); m != nil {
			bid.Budget = strings.TrimSpace(m[1])
		}
	}

	if bid.ProjectName == "" || bid.Budget == "" {
		p.logger.Warn().Str("title", article.Title).Msg("Skipping article, missing project name or budget")
		return nil
	}

	if bid.DocTime == "" {
		bid.DocTime = time.Now().Format("2006-01-02")
	}

	return []*models.BidRecord{bid}
}
