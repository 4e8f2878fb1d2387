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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWordSplitter_ShortContentUnchanged(t *testing.T) {
	s := NewWordSplitter(10, 2)
	assert.Equal(t, []string{"Titre\n\nContenu court"}, s.Split("  Titre\r\n\r\nContenu court \n"))
}

func TestWordSplitter_EmptyContent(t *testing.T) {
	assert.Empty(t, NewWordSplitter(0, 0).Split("   \n"))
}

func TestWordSplitter_WindowWithOverlap(t *testing.T) {
	s := NewWordSplitter(4, 1)
	got := s.Split("a b c d e f g h i j")
	assert.Equal(t, []string{"a b c d", "d e f g", "g h i j"}, got)
}

func TestWordSplitter_PrefersParagraphBoundary(t *testing.T) {
	s := NewWordSplitter(4, 0)
	got := s.Split("p1 w w\n\np2 x x")
	assert.Equal(t, []string{"p1 w w", "p2 x x"}, got)
}

func TestWordSplitter_NoTrailingOverlapOnlyChunk(t *testing.T) {
	s := NewWordSplitter(3, 1)
	got := s.Split("a b c d e")
	assert.Equal(t, []string{"a b c", "c d e"}, got)
}

func TestWordSplitter_Defaults(t *testing.T) {
	s := NewWordSplitter(0, 500)
	assert.Equal(t, DefaultMaxWords, s.maxWords)
	assert.Equal(t, DefaultMaxWords/4, s.overlap)

	long := strings.Repeat("mot ", 2*DefaultMaxWords)
	chunks := NewWordSplitter(0, -1).Split(long)
	assert.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(strings.Fields(c)), DefaultMaxWords)
	}
}
