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

package orchestrator

import (
	"context"
	"sync"
)

// EventType 流式事件类型
type EventType string

const (
	// EventStatus 阶段进度
	EventStatus EventType = "status"
	// EventToken 增量文本
	EventToken EventType = "token"
	// EventReplace 已推送的文本作废，以 Content 整体替换
	EventReplace EventType = "replace"
	// EventDone 结束；Content 为完整回答
	EventDone EventType = "done"
)

// 状态事件内容
const (
	StatusCache       = "cache"
	StatusAnalyzing   = "analyzing"
	StatusRetrieving  = "retrieving"
	StatusGenerating  = "generating"
	StatusExpert      = "expert"
	StatusVerifying   = "verifying"
	StatusTranslating = "translating"
)

// Event 流式事件
type Event struct {
	Type    EventType `json:"type"`
	Content string    `json:"content"`
}

// emitter 关闭后丢弃事件；超时后仍在运行的 turn 不会写入已关闭的通道
type emitter struct {
	mu     sync.Mutex
	ctx    context.Context
	ch     chan Event
	closed bool
	tokens bool
}

func newEmitter(ctx context.Context) *emitter {
	return &emitter{ctx: ctx, ch: make(chan Event, 64)}
}

func (e *emitter) send(ev Event) {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	if ev.Type == EventToken {
		e.tokens = true
	}
	select {
	case e.ch <- ev:
	case <-e.ctx.Done():
	}
}

func (e *emitter) status(s string) { e.send(Event{Type: EventStatus, Content: s}) }

func (e *emitter) token(s string) { e.send(Event{Type: EventToken, Content: s}) }

// live 是否处于流式模式
func (e *emitter) live() bool { return e != nil }

func (e *emitter) sentTokens() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tokens
}

// finish 补发未流式输出的回答，发送 done 并关闭通道
func (e *emitter) finish(a *Answer) {
	if !a.streamed {
		if e.sentTokens() {
			e.send(Event{Type: EventReplace, Content: a.Text})
		} else {
			e.token(a.Text)
		}
	}
	e.send(Event{Type: EventDone, Content: a.Text})

	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	close(e.ch)
}
