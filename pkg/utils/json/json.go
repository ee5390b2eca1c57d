// Package json 统一项目内的 JSON 编解码入口，底层为 sonic 的标准库兼容配置。
// sonic 在不支持 JIT 的架构上自动退回 encoding/json。
package json

import (
	"io"

	"github.com/bytedance/sonic"
)

var api = sonic.ConfigStd

func Marshal(v any) ([]byte, error) { return api.Marshal(v) }

func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return api.MarshalIndent(v, prefix, indent)
}

func Unmarshal(data []byte, v any) error { return api.Unmarshal(data, v) }

// NewEncoder 用于流式写出，如 LLM 请求体。
func NewEncoder(w io.Writer) sonic.Encoder { return api.NewEncoder(w) }

// NewDecoder 用于流式读取 provider 响应。
func NewDecoder(r io.Reader) sonic.Decoder { return api.NewDecoder(r) }
