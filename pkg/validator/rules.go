package validator

import (
	"strings"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/kart-io/sentinel-cluster/pkg/id"
)

// 聚类请求专用的校验标签。
const (
	TagULID         = "ulid"
	TagTrimmed      = "trimmed"
	TagNoWhitespace = "nowhitespace"
)

type rule struct {
	tag    string
	fn     func(s string) bool
	en, zh string
}

var rules = []rule{
	// 复用既有聚类任务时传入的 ID
	{TagULID, id.IsValid, "{0} must be a valid ULID", "{0}必须是有效的 ULID"},
	{TagTrimmed, func(s string) bool { return s == strings.TrimSpace(s) },
		"{0} must not have leading or trailing spaces", "{0}不能有前导或尾随空格"},
	// 模型标识
	{TagNoWhitespace, func(s string) bool { return strings.IndexFunc(s, unicode.IsSpace) < 0 },
		"{0} must not contain whitespace", "{0}不能包含空白字符"},
}

func (v *Validator) register(r rule) {
	_ = v.engine.RegisterValidation(r.tag, func(fl validator.FieldLevel) bool {
		return r.fn(fl.Field().String())
	})
	for lang, text := range map[string]string{LangEN: r.en, LangZH: r.zh} {
		text := text
		_ = v.engine.RegisterTranslation(r.tag, v.trans[lang],
			func(t ut.Translator) error { return t.Add(r.tag, text, true) },
			func(t ut.Translator, fe validator.FieldError) string {
				msg, _ := t.T(fe.Tag(), fe.Field())
				return msg
			},
		)
	}
}
