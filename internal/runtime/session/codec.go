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
	"fmt"

	"admin-assistant/pkg/errors"
)

// SchemaVersion 持久化记录的结构版本
const SchemaVersion = 2

// ErrSchemaMismatch 记录版本不符或无法解码
var ErrSchemaMismatch = fmt.Errorf("agent state schema mismatch: %w", errors.ErrNotFound)

type record struct {
	Version int         `json:"version"`
	State   *AgentState `json:"state"`
}

// Encode 将状态序列化为带版本的单个 blob
func Encode(s *AgentState) ([]byte, error) {
	return json.Marshal(record{Version: SchemaVersion, State: s})
}

// Decode 解析 blob；版本不符、缺少 state 或 JSON 损坏时返回 ErrSchemaMismatch
func Decode(data []byte, sessionID string) (*AgentState, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, errors.Wrap(ErrSchemaMismatch, err.Error())
	}
	if r.Version != SchemaVersion || r.State == nil {
		return nil, errors.Wrapf(ErrSchemaMismatch, "version %d", r.Version)
	}
	s := r.State
	s.SessionID = sessionID
	if s.UserProfile.Language == "" {
		s.UserProfile.Language = DefaultProfileLanguage
	}
	if s.Metadata == nil {
		s.Metadata = make(map[string]any)
	}
	return s, nil
}
