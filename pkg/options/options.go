// Package options defines the contract shared by every option group.
package options

import (
	"strings"

	"github.com/spf13/pflag"
)

// IOptions 一组可注册命令行参数并自校验的配置。
type IOptions interface {
	// Validate 返回全部校验错误，不在第一个错误处停止。
	Validate() []error

	// AddFlags 以 prefixes 拼接出的前缀注册参数。
	AddFlags(fs *pflag.FlagSet, prefixes ...string)
}

// Join 以 "." 拼接前缀并补上结尾的 "."，结果为空时返回空串。
//
//	Join("a", "b") == "a.b."
func Join(prefixes ...string) string {
	if p := strings.Join(prefixes, "."); p != "" {
		return p + "."
	}
	return ""
}

// ValidateAll 依次校验并汇总错误，跳过 nil。
func ValidateAll(opts ...IOptions) []error {
	var errs []error
	for _, o := range opts {
		if o == nil {
			continue
		}
		errs = append(errs, o.Validate()...)
	}
	return errs
}
