// Package textutil 提供聚类流水线使用的文本处理工具函数。
package textutil

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

// CosineSimilarity 计算两个向量的余弦相似度。
// 长度不一致、为空或任一向量为零向量时返回 0。
func CosineSimilarity[T float32 | float64](a, b []T) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// CenterTruncate 将文本截断到 maxLen 个字符以内，保留首尾，中间以省略号代替。
func CenterTruncate(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	const ellipsis = "\n...\n"
	keep := maxLen - utf8.RuneCountInString(ellipsis)
	runes := []rune(s)
	if keep <= 0 {
		return string(runes[:maxLen])
	}
	head := keep / 2
	tail := keep - head
	return string(runes[:head]) + ellipsis + string(runes[len(runes)-tail:])
}

// TruncateString 截断字符串到指定的最大 Unicode 字符数。
func TruncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen])
}

const quoteChars = "\"'`“”‘’«»"

// StripQuotes 去除首尾空白和引号。
func StripQuotes(s string) string {
	return strings.Trim(strings.TrimSpace(s), quoteChars+" \t\n")
}

// 模型常见的前缀套话，按小写匹配。
var boilerplatePrefixes = []string{
	"here is a description of the cluster:",
	"here is the description:",
	"here is a short title:",
	"here is the title:",
	"description:",
	"title:",
	"summary:",
	"the user intent is:",
	"user intent:",
	"persona:",
	"sure!",
	"sure,",
}

// StripBoilerplate 去除引号以及模型常见的前缀套话，可重复出现。
func StripBoilerplate(s string) string {
	s = StripQuotes(s)
	for {
		lower := strings.ToLower(s)
		stripped := false
		for _, p := range boilerplatePrefixes {
			if strings.HasPrefix(lower, p) {
				s = StripQuotes(s[len(p):])
				stripped = true
				break
			}
		}
		if !stripped {
			return s
		}
	}
}

// Tokenize 转小写、去除标点并按空白切分。
func Tokenize(s string) []string {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return ' '
		}
		return unicode.ToLower(r)
	}, s)
	return strings.Fields(clean)
}
