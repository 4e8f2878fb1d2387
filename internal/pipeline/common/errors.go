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


package common

import (
	"errors"
	"fmt"
)

// 检索与生成阶段名，用于日志与错误定位
const (
	StageRetrieval  = "retrieval"
	StageRerank     = "rerank"
	StageGeneration = "generation"
)

var (
	ErrInvalidInput     = errors.New("无效的输入")
	ErrNotConfigured    = errors.New("组件未配置")
	ErrRetrievalFailed  = errors.New("检索失败")
	ErrGenerationFailed = errors.New("生成失败")
)

// PipelineError 携带出错阶段的错误
type PipelineError struct {
	Stage   string
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Message, e.Err)
	}
	return e.Stage + ": " + e.Message
}

func (e *PipelineError) Unwrap() error { return e.Err }

// NewPipelineError 创建阶段错误
func NewPipelineError(stage, message string, err error) *PipelineError {
	return &PipelineError{Stage: stage, Message: message, Err: err}
}

// IsPipelineError 检查错误链中是否有 PipelineError
func IsPipelineError(err error) bool {
	_, ok := GetPipelineError(err)
	return ok
}

// GetPipelineError 取出错误链中第一个 PipelineError
func GetPipelineError(err error) (*PipelineError, bool) {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// StageOf 返回出错阶段，非阶段错误返回 "unknown"
func StageOf(err error) string {
	if pe, ok := GetPipelineError(err); ok && pe.Stage != "" {
		return pe.Stage
	}
	return "unknown"
}

// IsPermanent 输入非法或组件未配置，重试不会改变结果
func IsPermanent(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrNotConfigured)
}
