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

package query

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// tokenPattern 字母/数字连续串，覆盖带重音的拉丁字符
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

// frenchStopWords 知识库主语言（法语）的停用词
var frenchStopWords = map[string]struct{}{
	"le": {}, "la": {}, "les": {}, "de": {}, "du": {}, "des": {}, "un": {}, "une": {},
	"et": {}, "en": {}, "à": {}, "au": {}, "aux": {}, "est": {}, "pour": {}, "par": {},
	"sur": {}, "ce": {}, "je": {}, "il": {}, "elle": {}, "on": {}, "nous": {}, "vous": {},
	"ils": {}, "elles": {}, "que": {}, "qui": {}, "ou": {}, "si": {}, "ne": {}, "pas": {},
	"plus": {}, "avec": {}, "dans": {},
}

// Tokenize 小写化后抽取字母数字串，去掉单字符与停用词
func Tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if utf8.RuneCountInString(t) <= 1 {
			continue
		}
		if _, stop := frenchStopWords[t]; stop {
			continue
		}
		out = append(out, t)
	}
	return out
}
