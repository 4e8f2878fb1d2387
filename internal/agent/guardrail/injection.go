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

package guardrail

import (
	"regexp"
	"strings"
)

// 词边界：RE2 的 \b 只识别 ASCII，越南语/法语重音字母需要按 Unicode 字母判断
const (
	wb = `(?:^|[^\p{L}\p{N}_])`
	we = `(?:$|[^\p{L}\p{N}_])`
)

var injectionPatterns = []string{
	`(?i)` + wb + `(ignore|oublie?|bỏ qua)` + we + `.*(instructions?|prompt|directions?|hướng dẫn)`,
	`(?i)` + wb + `(system prompt|instructions de base)` + we,
	`(?i)` + wb + `(you are now|tu es maintenant|bạn bây giờ là)` + we,
	`(?i)` + wb + `(forget|bỏ|xoá)` + we + `.*(context|contexte|ngữ cảnh)`,
	`(?i)` + wb + `(act as|agis comme|hãy đóng vai)` + we + `.*(uncensored|jailbreak|no rules|sans règles|không có luật)`,
	`(?i)^[\s\W]*(ignore|forget|bypass|override)[\s\W]+`,
	`(?i)` + wb + `(print|show|display|affiche).*(previous|system|précédent) (instructions?|prompt)` + we,
}

// InjectionGuard 基于正则的提示注入拦截（EN/FR/VI）
type InjectionGuard struct {
	patterns []*regexp.Regexp
}

// NewInjectionGuard 编译内置规则
func NewInjectionGuard() *InjectionGuard {
	g := &InjectionGuard{patterns: make([]*regexp.Regexp, 0, len(injectionPatterns))}
	for _, p := range injectionPatterns {
		g.patterns = append(g.patterns, regexp.MustCompile(p))
	}
	return g
}

// Validate 命中任一规则返回 false 与命中的规则
func (g *InjectionGuard) Validate(query string) (bool, string) {
	q := strings.TrimSpace(query)
	for _, re := range g.patterns {
		if re.MatchString(q) {
			return false, re.String()
		}
	}
	return true, ""
}
