package coursegen

import (
	"fmt"
	"strings"
)

// 文字稿摘录上限（按 rune 计）
// 详情阶段需要更多原文支撑，摘录明显长于大纲阶段
const (
	outlineExcerptLimit = 4000
	detailExcerptLimit  = 12000
)

// BuildOutlinePrompt 构造大纲阶段提示词
// 仅做字符串拼装，不访问网络；title 为空视为调用方编程错误
func BuildOutlinePrompt(title, transcript string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", fmt.Errorf("outline prompt requires a course title")
	}

	var b strings.Builder
	b.WriteString("你是一名课程设计专家，请为下面的学习主题拆分章节大纲。\n\n")
	fmt.Fprintf(&b, "学习主题: %s\n\n", title)

	if excerpt := excerptText(transcript, outlineExcerptLimit); excerpt != "" {
		b.WriteString("以下是主题相关的参考文字稿节选，请据此组织章节：\n")
		b.WriteString(excerpt)
		b.WriteString("\n\n")
	}

	b.WriteString(`请输出一个 JSON 数组，每个元素代表一个章节，格式如下：
[
  {
    "title": "章节标题",
    "summary": "章节摘要",
    "estimated_effort": "预计学习时长，如 30分钟",
    "objectives": ["学习目标1", "学习目标2"]
  }
]
章节数量控制在 3 到 8 个，按学习顺序排列，不要输出 JSON 以外的解释。`)

	return b.String(), nil
}

// BuildDetailPrompt 构造单元详情阶段提示词
func BuildDetailPrompt(courseTitle string, unit OutlineUnit, transcript string) (string, error) {
	courseTitle = strings.TrimSpace(courseTitle)
	unitTitle := strings.TrimSpace(unit.Title)
	if courseTitle == "" || unitTitle == "" {
		return "", fmt.Errorf("detail prompt requires course and unit titles")
	}

	var b strings.Builder
	b.WriteString("你是一名课程内容撰写专家，请为下面的章节编写完整的学习内容。\n\n")
	fmt.Fprintf(&b, "课程: %s\n章节: %s\n", courseTitle, unitTitle)
	if unit.Summary != "" {
		fmt.Fprintf(&b, "章节摘要: %s\n", unit.Summary)
	}
	if len(unit.Objectives) > 0 {
		fmt.Fprintf(&b, "学习目标: %s\n", strings.Join(unit.Objectives, "；"))
	}
	b.WriteString("\n")

	if excerpt := excerptText(transcript, detailExcerptLimit); excerpt != "" {
		b.WriteString("以下是课程来源的文字稿节选，内容编写需以此为依据：\n")
		b.WriteString(excerpt)
		b.WriteString("\n\n")
	}

	b.WriteString(`请输出一个 JSON 对象，格式如下：
{
  "content": "章节正文，Markdown 格式",
  "key_points": ["要点1", "要点2"],
  "tasks": [{"title": "练习标题", "description": "练习说明"}],
  "notes": ["补充说明或延伸阅读"]
}
content 为必填项，不要输出 JSON 以外的解释。`)

	return b.String(), nil
}

// excerptText 截取文字稿摘录，超长时按 rune 截断
func excerptText(transcript string, limit int) string {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return ""
	}
	runes := []rune(transcript)
	if len(runes) <= limit {
		return transcript
	}
	return string(runes[:limit])
}
