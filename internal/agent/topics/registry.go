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

// Package topics 从 YAML 加载话题规则，用于话题识别与专家 prompt 片段
package topics

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"admin-assistant/internal/runtime/session"
)

// DefaultTopic 无关键词命中且意图无提示时的话题
const DefaultTopic = "daily_life"

//go:embed topics.yaml
var defaultTopics []byte

// Variable 需要向用户确认的字段
type Variable struct {
	Name string `yaml:"name"`
	Why  string `yaml:"why"`
	When string `yaml:"when,omitempty"`
}

// Exemplar 示例输入输出
type Exemplar struct {
	Input  string `yaml:"input"`
	Output string `yaml:"output"`
}

// Topic 单个话题的规则
type Topic struct {
	Key                  string     `yaml:"-"`
	DisplayName          string     `yaml:"display_name"`
	Description          string     `yaml:"description"`
	DefaultStep          string     `yaml:"default_step"`
	MandatoryVariables   []Variable `yaml:"mandatory_variables"`
	ConditionalVariables []Variable `yaml:"conditional_variables"`
	Exemplar             Exemplar   `yaml:"exemplar"`
	GuardrailKeywords    []string   `yaml:"guardrail_keywords"`
}

type document struct {
	GlobalRules map[string][]string `yaml:"global_rules"`
	Topics      map[string]*Topic   `yaml:"topics"`
}

// Registry 话题注册表，加载后只读
type Registry struct {
	topics      map[string]*Topic
	globalRules map[string][]string
	keywords    map[string]string
}

// Load 解析 YAML
func Load(r io.Reader) (*Registry, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("解析话题配置失败: %w", err)
	}
	reg := &Registry{
		topics:      make(map[string]*Topic, len(doc.Topics)),
		globalRules: doc.GlobalRules,
		keywords:    make(map[string]string),
	}
	for key, t := range doc.Topics {
		if t == nil {
			continue
		}
		t.Key = key
		if t.DisplayName == "" {
			t.DisplayName = key
		}
		if t.DefaultStep == "" {
			t.DefaultStep = string(session.StepClarification)
		}
		reg.topics[key] = t
		for _, kw := range t.GuardrailKeywords {
			reg.keywords[strings.ToLower(kw)] = key
		}
	}
	return reg, nil
}

// LoadFile 从文件加载；path 为空时使用内置话题
func LoadFile(path string) (*Registry, error) {
	if path == "" {
		return Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开话题配置失败: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Default 内置话题
func Default() (*Registry, error) {
	return Load(bytes.NewReader(defaultTopics))
}

// Get 按 key 获取话题
func (r *Registry) Get(key string) (*Topic, bool) {
	t, ok := r.topics[key]
	return t, ok
}

// Keys 已注册话题，按字母序
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.topics))
	for k := range r.topics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Detect 关键词计数取最高；无命中时 LEGAL→identity，FORM→immigration，否则 daily_life
func (r *Registry) Detect(query string, intent session.Intent) string {
	q := strings.ToLower(query)
	scores := make(map[string]int)
	for kw, key := range r.keywords {
		if strings.Contains(q, kw) {
			scores[key]++
		}
	}
	best, bestScore := "", 0
	for key, score := range scores {
		if score > bestScore || (score == bestScore && key < best) {
			best, bestScore = key, score
		}
	}
	if best != "" {
		return best
	}
	switch intent {
	case session.IntentLegalInquiry:
		return "identity"
	case session.IntentFormFilling:
		return "immigration"
	}
	return DefaultTopic
}

// MissingVariables 画像中缺失（空或 "None"）的必填字段
func (t *Topic) MissingVariables(profile map[string]any) []Variable {
	var missing []Variable
	for _, v := range t.MandatoryVariables {
		val, ok := profile[v.Name]
		if !ok || val == nil {
			missing = append(missing, v)
			continue
		}
		if s, isStr := val.(string); isStr && (s == "" || s == "None") {
			missing = append(missing, v)
		}
	}
	return missing
}

// ApplicableConditionals 查询中出现触发词的条件字段
func (t *Topic) ApplicableConditionals(query string) []Variable {
	q := strings.ToLower(query)
	var out []Variable
	for _, v := range t.ConditionalVariables {
		if v.When != "" && strings.Contains(q, strings.ToLower(v.When)) {
			out = append(out, v)
		}
	}
	return out
}

// PromptFragment 生成只含当前话题规则的 prompt 片段；未知话题返回空串
func (r *Registry) PromptFragment(key string, profile map[string]any, query string) string {
	t, ok := r.topics[key]
	if !ok {
		return ""
	}
	vars := append(t.MissingVariables(profile), t.ApplicableConditionals(query)...)

	var b strings.Builder
	fmt.Fprintf(&b, "TOPIC: %s\n\nVARIABLES YOU MUST ASK FOR (if not already known):\n", t.DisplayName)
	if len(vars) == 0 {
		b.WriteString("All key variables are already known. Provide a direct answer.")
	}
	for i, v := range vars {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- %s: %s", v.Name, v.Why)
	}
	if t.Exemplar.Input != "" {
		fmt.Fprintf(&b, "\n\nEXAMPLE for this topic:\nInput: %s\nExpected output:\n%s",
			t.Exemplar.Input, strings.TrimSpace(t.Exemplar.Output))
	}
	return b.String()
}

// GlobalRules 全局规则片段，分类按字母序
func (r *Registry) GlobalRules() string {
	cats := make([]string, 0, len(r.globalRules))
	for c := range r.globalRules {
		cats = append(cats, c)
	}
	sort.Strings(cats)

	var b strings.Builder
	for _, c := range cats {
		fmt.Fprintf(&b, "%s:\n", strings.ToUpper(strings.ReplaceAll(c, "_", " ")))
		for _, rule := range r.globalRules[c] {
			fmt.Fprintf(&b, "- %s\n", rule)
		}
	}
	return strings.TrimSpace(b.String())
}
