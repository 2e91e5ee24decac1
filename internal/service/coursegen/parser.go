package coursegen

import (
	"encoding/json"
	"strings"

	"github.com/peerspark/backend/internal/utils"
	"k8s.io/klog/v2"
)

// ParseOutline 从模型输出解析章节大纲
// 期望形态为 JSON 数组；部分模型会包一层 {"units": [...]}，同样接受
func ParseOutline(content string) ([]OutlineUnit, error) {
	klog.V(6).Infof("[ParseOutline] 开始解析大纲输出，内容长度: %d", len(content))

	raw := utils.ExtractJSONArray(content)

	var units []OutlineUnit
	if err := json.Unmarshal([]byte(raw), &units); err != nil {
		// 回退：尝试对象包装形态
		var wrapper struct {
			Units []OutlineUnit `json:"units"`
		}
		objRaw := utils.ExtractJSON(content)
		if objErr := json.Unmarshal([]byte(objRaw), &wrapper); objErr != nil || len(wrapper.Units) == 0 {
			return nil, &ExtractionError{Reason: "no parsable outline array in output"}
		}
		units = wrapper.Units
	}

	// 过滤无标题的坏条目
	valid := make([]OutlineUnit, 0, len(units))
	for _, u := range units {
		u.Title = strings.TrimSpace(u.Title)
		if u.Title == "" {
			continue
		}
		if u.Objectives == nil {
			u.Objectives = []string{}
		}
		valid = append(valid, u)
	}
	if len(valid) == 0 {
		return nil, &ExtractionError{Reason: "outline contains no usable units"}
	}

	klog.V(6).Infof("[ParseOutline] 解析成功: units=%d", len(valid))
	return valid, nil
}

// ParseUnitDetail 从模型输出解析单元详情
// content 键为必填；可选键缺失时回落为空值而非报错
func ParseUnitDetail(content string) (*UnitDetail, error) {
	klog.V(6).Infof("[ParseUnitDetail] 开始解析详情输出，内容长度: %d", len(content))

	raw := utils.ExtractJSON(content)

	var detail UnitDetail
	if err := json.Unmarshal([]byte(raw), &detail); err != nil {
		return nil, &ExtractionError{Reason: "no parsable detail object in output"}
	}

	detail.Content = strings.TrimSpace(detail.Content)
	if detail.Content == "" {
		return nil, &ExtractionError{Reason: "detail object missing content"}
	}

	if detail.KeyPoints == nil {
		detail.KeyPoints = []string{}
	}
	if detail.Tasks == nil {
		detail.Tasks = []GeneratedTask{}
	}
	if detail.Notes == nil {
		detail.Notes = []string{}
	}

	klog.V(6).Infof("[ParseUnitDetail] 解析成功: contentLength=%d, keyPoints=%d, tasks=%d",
		len(detail.Content), len(detail.KeyPoints), len(detail.Tasks))
	return &detail, nil
}
