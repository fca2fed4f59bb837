package models

import "strings"

// Keyword filter logic values
const (
	FilterLogicAnd = "AND"
	FilterLogicOr  = "OR"
)

// SourceAccount is one externally configured publisher feed. The core
// consumes it read-only; account CRUD lives outside this system.
type SourceAccount struct {
	ID             string   `toml:"id" json:"id" validate:"required"`
	Name           string   `toml:"name" json:"name" validate:"required"`
	FakeID         string   `toml:"fakeid" json:"fakeid"`
	Token          string   `toml:"token" json:"token"`
	Cookie         string   `toml:"cookie" json:"cookie"`
	PageSize       int      `toml:"page_size" json:"page_size" validate:"omitempty,gte=1,lte=100"`
	ArticleLimit   int      `toml:"article_limit" json:"article_limit" validate:"gte=0"`
	FilterKeywords []string `toml:"filter_keywords" json:"filter_keywords"`
	FilterLogic    string   `toml:"filter_logic" json:"filter_logic" validate:"omitempty,oneof=AND OR"`
	Enabled        bool     `toml:"enabled" json:"enabled"`
}

// MatchesKeywords applies the account's keyword filter to an article title.
// AND requires every keyword substring present; OR requires at least one.
// An empty keyword list matches everything.
func (s *SourceAccount) MatchesKeywords(title string) bool {
	if len(s.FilterKeywords) == 0 {
		return true
	}
	if strings.EqualFold(s.FilterLogic, FilterLogicAnd) {
		for _, kw := range s.FilterKeywords {
			if !strings.Contains(title, kw) {
				return false
			}
		}
		return true
	}
	for _, kw := range s.FilterKeywords {
		if strings.Contains(title, kw) {
			return true
		}
	}
	return false
}
