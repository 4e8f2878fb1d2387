// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package session

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// DefaultProfileLanguage 新建画像的默认语言，使用规范名称
const DefaultProfileLanguage = "French"

// UserProfile 从对话中抽取的用户事实；空值表示未知
type UserProfile struct {
	Language          string `json:"language"`
	Name              string `json:"name,omitempty"`
	Age               int    `json:"age,omitempty"`
	Nationality       string `json:"nationality,omitempty"`
	ResidencyStatus   string `json:"residency_status,omitempty"`
	HasLegalResidency *bool  `json:"has_legal_residency,omitempty"`
	VisaType          string `json:"visa_type,omitempty"`
	DurationOfStay    string `json:"duration_of_stay,omitempty"`
	Location          string `json:"location,omitempty"`
	FiscalResidence   string `json:"fiscal_residence,omitempty"`
	IncomeSource      string `json:"income_source,omitempty"`
}

// NewUserProfile 创建默认画像
func NewUserProfile() UserProfile {
	return UserProfile{Language: DefaultProfileLanguage}
}

// fieldSetter 尝试把 v 写入画像；返回值是否发生变化
type fieldSetter func(p *UserProfile, v any) bool

func stringField(get func(*UserProfile) *string) fieldSetter {
	return func(p *UserProfile, v any) bool {
		s, ok := v.(string)
		if !ok {
			return false
		}
		s = strings.TrimSpace(s)
		dst := get(p)
		if s == "" || isNullString(s) || *dst == s {
			return false
		}
		*dst = s
		return true
	}
}

func intField(get func(*UserProfile) *int) fieldSetter {
	return func(p *UserProfile, v any) bool {
		n, ok := toInt(v)
		dst := get(p)
		if !ok || *dst == n {
			return false
		}
		*dst = n
		return true
	}
}

func boolField(get func(*UserProfile) **bool) fieldSetter {
	return func(p *UserProfile, v any) bool {
		b, ok := toBool(v)
		dst := get(p)
		if !ok || (*dst != nil && **dst == b) {
			return false
		}
		*dst = &b
		return true
	}
}

// profileFields 可由抽取结果写入的字段；language 由语言解析规则单独处理
var profileFields = map[string]fieldSetter{
	"name":                stringField(func(p *UserProfile) *string { return &p.Name }),
	"age":                 intField(func(p *UserProfile) *int { return &p.Age }),
	"nationality":         stringField(func(p *UserProfile) *string { return &p.Nationality }),
	"residency_status":    stringField(func(p *UserProfile) *string { return &p.ResidencyStatus }),
	"has_legal_residency": boolField(func(p *UserProfile) **bool { return &p.HasLegalResidency }),
	"visa_type":           stringField(func(p *UserProfile) *string { return &p.VisaType }),
	"duration_of_stay":    stringField(func(p *UserProfile) *string { return &p.DurationOfStay }),
	"location":            stringField(func(p *UserProfile) *string { return &p.Location }),
	"fiscal_residence":    stringField(func(p *UserProfile) *string { return &p.FiscalResidence }),
	"income_source":       stringField(func(p *UserProfile) *string { return &p.IncomeSource }),
}

// Set 按字段名覆盖画像；nil、未知字段或类型不符时忽略。返回是否发生变化。
func (p *UserProfile) Set(field string, value any) bool {
	if value == nil {
		return false
	}
	setter, ok := profileFields[field]
	if !ok {
		return false
	}
	return setter(p, value)
}

// IsProfileField 是否为可写入的画像字段
func IsProfileField(field string) bool {
	_, ok := profileFields[field]
	return ok
}

// Snapshot 返回已知字段的映射，用于提示词
func (p UserProfile) Snapshot() map[string]any {
	out := map[string]any{"language": p.Language}
	data, err := json.Marshal(p)
	if err != nil {
		return out
	}
	_ = json.Unmarshal(data, &out)
	return out
}

// Has 字段是否已知
func (p UserProfile) Has(field string) bool {
	if field == "language" {
		return p.Language != ""
	}
	v, ok := p.Snapshot()[field]
	return ok && v != nil
}

func isNullString(s string) bool {
	switch strings.ToLower(s) {
	case "null", "none", "unknown", "n/a":
		return true
	}
	return false
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, n > 0
	case int64:
		return int(n), n > 0
	case float64:
		if n <= 0 || n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil && i > 0
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil && i > 0
	}
	return 0, false
}

func toBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "yes", "oui", "có":
			return true, true
		case "false", "no", "non", "không":
			return false, true
		}
	}
	return false, false
}
