// Package validator 基于 go-playground/validator 校验聚类请求，
// 字段名取 json 标签，错误信息支持中英文。
package validator

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
)

const (
	LangEN = "en"
	LangZH = "zh"
)

// FieldError 单个字段的校验失败。
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Errors 一次校验的全部失败，按字段声明顺序排列。
type Errors []FieldError

func (e Errors) Error() string {
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Message
	}
	return "invalid request: " + strings.Join(msgs, "; ")
}

// Fields 返回失败字段名。
func (e Errors) Fields() []string {
	out := make([]string, len(e))
	for i, fe := range e {
		out[i] = fe.Field
	}
	return out
}

// Validator 已注册翻译与自定义规则的校验器。
type Validator struct {
	engine *validator.Validate
	trans  map[string]ut.Translator
}

var (
	std     *Validator
	stdOnce sync.Once
)

// Global 返回进程内共享的校验器。
func Global() *Validator {
	stdOnce.Do(func() { std = New() })
	return std
}

func New() *Validator {
	engine := validator.New(validator.WithRequiredStructEnabled())
	engine.RegisterTagNameFunc(jsonName)

	uni := ut.New(en.New(), en.New(), zh.New())
	enTrans, _ := uni.GetTranslator(LangEN)
	zhTrans, _ := uni.GetTranslator(LangZH)
	_ = en_translations.RegisterDefaultTranslations(engine, enTrans)
	_ = zh_translations.RegisterDefaultTranslations(engine, zhTrans)

	v := &Validator{
		engine: engine,
		trans:  map[string]ut.Translator{LangEN: enTrans, LangZH: zhTrans},
	}
	for _, r := range rules {
		v.register(r)
	}
	return v
}

func jsonName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return fld.Name
	}
	return name
}

// Struct 以英文信息校验 s。
func (v *Validator) Struct(s any) error {
	return v.StructLang(s, LangEN)
}

// StructLang 校验 s，失败时返回 Errors，信息使用 lang，未知语言回退英文。
func (v *Validator) StructLang(s any, lang string) error {
	err := v.engine.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	trans := v.translator(lang)
	out := make(Errors, len(verrs))
	for i, fe := range verrs {
		out[i] = FieldError{Field: fe.Field(), Rule: fe.Tag(), Message: fe.Translate(trans)}
	}
	return out
}

func (v *Validator) translator(lang string) ut.Translator {
	if t, ok := v.trans[lang]; ok {
		return t
	}
	return v.trans[LangEN]
}

// Struct 使用全局校验器。
func Struct(s any) error {
	return Global().Struct(s)
}
