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

import "strings"

// Intent 意图标签
type Intent string

const (
	IntentSimpleQA         Intent = "SIMPLE_QA"
	IntentComplexProcedure Intent = "COMPLEX_PROCEDURE"
	IntentFormFilling      Intent = "FORM_FILLING"
	IntentLegalInquiry     Intent = "LEGAL_INQUIRY"
	IntentUnknown          Intent = "UNKNOWN"
)

// IntentContinuation 上下文续答时强制使用的意图
const IntentContinuation = IntentComplexProcedure

// ParseIntent 归一化分类器输出；无法识别的标签返回 IntentUnknown
func ParseIntent(s string) Intent {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.Trim(s, "\"'`.")
	switch i := Intent(s); i {
	case IntentSimpleQA, IntentComplexProcedure, IntentFormFilling, IntentLegalInquiry:
		return i
	}
	for _, i := range []Intent{IntentComplexProcedure, IntentFormFilling, IntentLegalInquiry, IntentSimpleQA} {
		if strings.Contains(s, string(i)) {
			return i
		}
	}
	return IntentUnknown
}

// IsComplex 是否走慢车道（专家工作流）
func (i Intent) IsComplex() bool {
	switch i {
	case IntentComplexProcedure, IntentFormFilling, IntentLegalInquiry:
		return true
	}
	return false
}

// Step 工作流阶段
type Step string

const (
	StepNone          Step = ""
	StepClarification Step = "CLARIFICATION"
	StepRetrieval     Step = "RETRIEVAL"
	StepExplanation   Step = "EXPLANATION"
	StepCompleted     Step = "COMPLETED"
)

// ParseStep 归一化阶段标签；未知值返回 StepRetrieval（继续正常检索）
func ParseStep(s string) Step {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, st := range []Step{StepClarification, StepRetrieval, StepExplanation, StepCompleted} {
		if strings.Contains(s, string(st)) {
			return st
		}
	}
	return StepRetrieval
}

// AwaitingAnswer 当前是否在等待用户回答澄清问题
func (s Step) AwaitingAnswer() bool { return s == StepClarification }
