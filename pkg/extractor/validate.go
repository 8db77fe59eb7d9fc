package extractor

import (
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	DefaultMinChars    = 50
	DefaultMinKeywords = 2
)

// ResumeKeywords are terms whose presence suggests the text is a résumé.
// Matching is by case-insensitive substring, not word boundary.
var ResumeKeywords = []string{
	"education", "work", "experience", "skills", "project",
	"name", "contact", "phone", "email", "responsibilities",
	"bachelor", "master", "phd", "degree", "university", "company",
	"教育", "学历", "工作", "经验", "技能", "项目",
	"姓名", "联系", "电话", "邮箱", "职责", "任职",
	"大学", "本科", "硕士", "博士", "公司", "负责",
}

type ValidatorConfig struct {
	MinChars    int
	MinKeywords int
	Logger      *zap.Logger
}

type Validator struct {
	config ValidatorConfig
	logger *zap.Logger
}

// Verdict records why a text passed or failed validation.
type Verdict struct {
	Valid    bool
	Length   int
	Keywords int
	Reason   string
}

func NewValidator(config ValidatorConfig) *Validator {
	if config.MinChars == 0 {
		config.MinChars = DefaultMinChars
	}
	if config.MinKeywords == 0 {
		config.MinKeywords = DefaultMinKeywords
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &Validator{config: config, logger: config.Logger}
}

var defaultValidator = NewValidator(ValidatorConfig{})

// IsValidResume applies the default length and keyword gates.
func IsValidResume(text string) bool {
	return defaultValidator.Validate(text).Valid
}

func (v *Validator) Validate(text string) Verdict {
	verdict := Verdict{Length: utf8.RuneCountInString(strings.TrimSpace(text))}

	if verdict.Length < v.config.MinChars {
		verdict.Reason = "text too short"
		v.logger.Warn("resume validation failed",
			zap.String("reason", verdict.Reason),
			zap.Int("length", verdict.Length),
		)
		return verdict
	}

	verdict.Keywords = countKeywords(text)
	if verdict.Keywords < v.config.MinKeywords {
		verdict.Reason = "too few resume keywords"
		v.logger.Warn("resume validation failed",
			zap.String("reason", verdict.Reason),
			zap.Int("keywords", verdict.Keywords),
		)
		return verdict
	}

	verdict.Valid = true
	v.logger.Info("resume validated",
		zap.Int("length", verdict.Length),
		zap.Int("keywords", verdict.Keywords),
	)
	return verdict
}

func countKeywords(text string) int {
	lower := strings.ToLower(text)
	n := 0
	for _, kw := range ResumeKeywords {
		if strings.Contains(lower, kw) {
			n++
		}
	}
	return n
}
