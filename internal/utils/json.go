package utils

import (
	"encoding/json"
	"strings"

	"k8s.io/klog/v2"
)

// ExtractJSON 从文本中提取第一个配平的 JSON 对象
// 模型输出常在 JSON 前后附带说明文字，未找到时返回原始内容，交由上层解析报错
func ExtractJSON(content string) string {
	start := -1
	end := -1
	depth := 0

	for i, ch := range content {
		if ch == '{' {
			if depth == 0 {
				start = i
			}
			depth++
		} else if ch == '}' {
			depth--
			if depth == 0 && start != -1 {
				end = i + 1
				break
			}
		}
	}

	if start >= 0 && end > start {
		return content[start:end]
	}

	return content
}

// ExtractJSONArray 从文本中提取第一个配平的 JSON 数组
// 与 ExtractJSON 同理，未找到时返回原始内容
func ExtractJSONArray(content string) string {
	start := -1
	end := -1
	depth := 0

	for i, ch := range content {
		if ch == '[' {
			if depth == 0 {
				start = i
			}
			depth++
		} else if ch == ']' {
			depth--
			if depth == 0 && start != -1 {
				end = i + 1
				break
			}
		}
	}

	if start >= 0 && end > start {
		return content[start:end]
	}

	return content
}

func ToJSON(v any) string {
	jsonData, err := json.Marshal(v)
	if err != nil {
		klog.Errorf("JSON序列化失败: %v", err)
		return ""
	}
	return string(jsonData)
}

// ExtractMarkdown 从文本中提取 Markdown 内容
// 尝试提取 ```markdown ... ``` 代码块，如果没有代码块则返回原始内容
func ExtractMarkdown(content string) string {
	start := -1
	end := -1
	depth := 0
	inCodeBlock := false
	codeBlockPrefix := "```"

	for i := 0; i < len(content); {
		// 检查是否是代码块开始标记
		if i+3 <= len(content) && content[i:i+3] == codeBlockPrefix {
			if !inCodeBlock {
				// 找到代码块开始
				inCodeBlock = true
				// 跳过 ``` 和可能的 markdown 标识
				j := i + 3
				for j < len(content) && (content[j] == ' ' || content[j] == 'm' || content[j] == 'M') {
					j++
				}
				// 跳过换行符
				for j < len(content) && (content[j] == '\r' || content[j] == '\n') {
					j++
				}
				if depth == 0 {
					start = j
				}
				depth++
				i = j
			} else {
				// 找到代码块结束
				depth--
				if depth == 0 && start != -1 {
					end = i
					break
				}
				inCodeBlock = false
				i += 3
			}
		} else {
			i++
		}
	}

	if start >= 0 && end > start {
		klog.V(6).Infof("[ExtractMarkdown] 提取到 Markdown 代码块，起始位置: %d, 结束位置: %d", start, end)
		return content[start:end]
	}

	klog.V(6).Infof("[ExtractMarkdown] 未找到 Markdown 代码块，返回原始内容")
	return content
}

// SplitSections 按字面分隔标记切分文本并去除首尾空白
// 用于「N 个分隔段落」形态的模型输出，空段会被丢弃
func SplitSections(content, marker string) []string {
	parts := strings.Split(content, marker)
	sections := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			sections = append(sections, p)
		}
	}
	return sections
}
