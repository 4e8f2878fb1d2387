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

import "strings"

var disclaimers = map[string]string{
	"fr": "*Note : ces informations sont données à titre indicatif. Pour toute décision officielle, consultez service-public.fr ou contactez l'administration compétente.*",
	"en": "*Note: This information is for guidance only. For official decisions, please consult service-public.fr or contact the relevant authorities.*",
	"vi": "*Lưu ý: Thông tin này chỉ mang tính chất tham khảo. Để có quyết định chính thức, vui lòng truy cập service-public.fr hoặc liên hệ cơ quan có thẩm quyền.*",
}

// Disclaimer 按语言代码（fr/en/vi，或以其开头的名称）返回免责声明，未知时为法语
func Disclaimer(lang string) string {
	code := strings.ToLower(strings.TrimSpace(lang))
	if len(code) > 2 {
		code = code[:2]
	}
	if d, ok := disclaimers[code]; ok {
		return d
	}
	return disclaimers["fr"]
}

// AddDisclaimer 在回答末尾追加免责声明
func AddDisclaimer(answer, lang string) string {
	return answer + "\n\n" + Disclaimer(lang)
}
