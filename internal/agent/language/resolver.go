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

// Package language 决定每轮回复的有效语言
package language

import (
	"strings"

	"admin-assistant/internal/runtime/session"
)

// 规范语言名称
const (
	French     = "French"
	English    = "English"
	Vietnamese = "Vietnamese"
)

// Default 系统默认语言（知识库工作语言）
const Default = French

var codeToName = map[string]string{
	"fr":         French,
	"french":     French,
	"en":         English,
	"english":    English,
	"vi":         Vietnamese,
	"vietnamese": Vietnamese,
}

var nonDefault = map[string]bool{English: true, Vietnamese: true}

// reservedFields 抽取结果中的诊断字段，永不写入画像
var reservedFields = map[string]bool{"_reasoning": true, "reasoning": true}

// Normalize 语言代码转规范名称；无法识别时原样返回
func Normalize(code string) string {
	c := strings.TrimSpace(code)
	if name, ok := codeToName[strings.ToLower(c)]; ok {
		return name
	}
	return c
}

// Code 返回两字母语言代码（用于免责声明、本地化消息）；未知时返回 fr
func Code(lang string) string {
	switch Normalize(lang) {
	case English:
		return "en"
	case Vietnamese:
		return "vi"
	}
	return "fr"
}

// IsNonDefault 是否为非默认语言
func IsNonDefault(lang string) bool { return nonDefault[Normalize(lang)] }

// Resolve 由检测语言、调用方显式选择与当前状态语言得出有效语言。
// hasHistory 不改变结果：首轮与对话中途的切换同样生效。
func Resolve(detected, explicit, current string, hasHistory bool) string {
	d, e, c := Normalize(detected), Normalize(explicit), Normalize(current)
	if c == "" {
		c = Default
	}
	if d == "" {
		return c
	}
	if nonDefault[e] && e != d {
		return e
	}
	if d == Default && nonDefault[c] {
		return c
	}
	if nonDefault[d] && c == Default {
		return d
	}
	return d
}

// ApplyToState 把画像抽取结果写入 profile：language 先经 Resolve，其余已知字段非空且不同则覆盖。
// 返回是否有字段变化。
func ApplyToState(extracted map[string]any, explicit string, profile *session.UserProfile, hasHistory bool) bool {
	changed := false

	detected, _ := extracted["language"].(string)
	if lang := Resolve(detected, explicit, profile.Language, hasHistory); lang != profile.Language {
		profile.Language = lang
		changed = true
	}

	for field, value := range extracted {
		if field == "language" || reservedFields[field] {
			continue
		}
		if profile.Set(field, value) {
			changed = true
		}
	}
	return changed
}
