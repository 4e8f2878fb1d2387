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

package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChatModel 实现 eino model.BaseChatModel
type fakeChatModel struct {
	chunks []string
	got    []*schema.Message
	err    error
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.got = input
	if f.err != nil {
		return nil, f.err
	}
	full := ""
	for _, c := range f.chunks {
		full += c
	}
	return schema.AssistantMessage(full, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	f.got = input
	if f.err != nil {
		return nil, f.err
	}
	msgs := make([]*schema.Message, len(f.chunks))
	for i, c := range f.chunks {
		msgs[i] = schema.AssistantMessage(c, nil)
	}
	return schema.StreamReaderFromArray(msgs), nil
}

func TestEinoChatClient_Chat(t *testing.T) {
	fm := &fakeChatModel{chunks: []string{"Voici ", "la procédure."}}
	c := NewEinoChatClient("openai", "gpt-4o", fm)

	out, err := c.ChatWithContext(context.Background(), []Message{System("s"), User("u"), Assistant("a")}, GenerateOptions{Temperature: 0.2})
	require.NoError(t, err)
	assert.Equal(t, "Voici la procédure.", out)
	require.Len(t, fm.got, 3)
	assert.Equal(t, schema.System, fm.got[0].Role)
	assert.Equal(t, schema.User, fm.got[1].Role)
	assert.Equal(t, schema.Assistant, fm.got[2].Role)
}

func TestEinoChatClient_Stream(t *testing.T) {
	fm := &fakeChatModel{chunks: []string{"Voici ", "", "la procédure."}}
	c := NewEinoChatClient("openai", "gpt-4o", fm)

	var got []string
	out, err := Stream(context.Background(), c, []Message{User("u")}, GenerateOptions{}, func(s string) error {
		got = append(got, s)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Voici la procédure.", out)
	assert.Equal(t, []string{"Voici ", "la procédure."}, got)
}

func TestEinoChatClient_StreamAbort(t *testing.T) {
	fm := &fakeChatModel{chunks: []string{"a", "b", "c"}}
	c := NewEinoChatClient("openai", "gpt-4o", fm)
	stop := errors.New("stop")
	n := 0
	_, err := c.StreamWithContext(context.Background(), []Message{User("u")}, GenerateOptions{}, func(string) error {
		n++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, n)
}

func TestEinoChatClient_Error(t *testing.T) {
	c := NewEinoChatClient("openai", "gpt-4o", &fakeChatModel{err: errors.New("down")})
	_, err := c.Chat([]Message{User("u")}, GenerateOptions{})
	assert.Error(t, err)
	_, err = c.StreamWithContext(context.Background(), []Message{User("u")}, GenerateOptions{}, func(string) error { return nil })
	assert.Error(t, err)
}
