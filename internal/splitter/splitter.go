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

package splitter

import (
	"regexp"
	"strings"
)

const (
	DefaultMaxWords = 300
	DefaultOverlap  = 40
)

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// WordSplitter 按词数切分长文档：优先在段落边界断开，超长段落按窗口切分，相邻片段保留 overlap 个词
type WordSplitter struct {
	maxWords int
	overlap  int
}

// NewWordSplitter 创建切片器；maxWords <= 0 时使用默认值，overlap 须小于 maxWords
func NewWordSplitter(maxWords, overlap int) *WordSplitter {
	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}
	if overlap < 0 || overlap >= maxWords {
		overlap = maxWords / 4
	}
	return &WordSplitter{maxWords: maxWords, overlap: overlap}
}

// Split 返回切片文本；不超过上限的内容原样返回（保留换行）
func (s *WordSplitter) Split(content string) []string {
	content = strings.TrimSpace(strings.ReplaceAll(content, "\r\n", "\n"))
	if content == "" {
		return nil
	}
	if len(strings.Fields(content)) <= s.maxWords {
		return []string{content}
	}

	var (
		chunks []string
		cur    []string
		fresh  int // 上次断开后新加入的词数
	)
	flush := func() {
		chunks = append(chunks, strings.Join(cur, " "))
		keep := 0
		if len(cur) > s.overlap {
			keep = s.overlap
		}
		cur = append([]string(nil), cur[len(cur)-keep:]...)
		fresh = 0
	}
	for _, para := range paragraphBreak.Split(content, -1) {
		words := strings.Fields(para)
		// 当前块已有新内容且放不下整段时先断开
		if fresh > 0 && len(cur)+len(words) > s.maxWords {
			flush()
		}
		for _, w := range words {
			if len(cur) >= s.maxWords {
				flush()
			}
			cur = append(cur, w)
			fresh++
		}
	}
	if fresh > 0 {
		chunks = append(chunks, strings.Join(cur, " "))
	}
	return chunks
}
