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

import "admin-assistant/internal/agent/language"

type messageSet map[string]string

var (
	rejectionMessages = messageSet{
		"fr": "Désolé, je ne peux pas vous aider sur ce sujet. Je suis spécialisé dans les démarches administratives françaises.",
		"en": "Sorry, I can't help with that request. I specialise in French administrative procedures.",
		"vi": "Xin lỗi, tôi không thể hỗ trợ yêu cầu này. Tôi chuyên về các thủ tục hành chính của Pháp.",
	}
	timeoutMessages = messageSet{
		"fr": "Désolé, le traitement de votre demande a pris trop de temps. Veuillez réessayer.",
		"en": "Sorry, your request took too long to process. Please try again.",
		"vi": "Xin lỗi, yêu cầu của bạn mất quá nhiều thời gian để xử lý. Vui lòng thử lại.",
	}
	apologyMessages = messageSet{
		"fr": "Désolé, une erreur est survenue lors du traitement de votre demande. Veuillez réessayer plus tard.",
		"en": "Sorry, something went wrong while processing your request. Please try again later.",
		"vi": "Xin lỗi, đã xảy ra lỗi khi xử lý yêu cầu của bạn. Vui lòng thử lại sau.",
	}
	safeFallbackMessages = messageSet{
		"fr": "Désolé, je n'ai pas trouvé d'information suffisamment fiable dans les sources officielles pour répondre à cette question en toute sécurité.",
		"en": "Sorry, I could not find sufficiently reliable information in the official sources to answer this question safely.",
		"vi": "Xin lỗi, tôi không tìm thấy thông tin đủ tin cậy trong các nguồn chính thức để trả lời câu hỏi này một cách an toàn.",
	}
)

// in 按语言名或代码取文本，未知语言回退法语
func (m messageSet) in(lang string) string {
	return m[language.Code(lang)]
}

// RejectionMessage 话题拒绝文本
func RejectionMessage(lang string) string { return rejectionMessages.in(lang) }

// TimeoutMessage 超时文本
func TimeoutMessage(lang string) string { return timeoutMessages.in(lang) }

// ApologyMessage 内部错误文本
func ApologyMessage(lang string) string { return apologyMessages.in(lang) }

// SafeFallbackMessage 幻觉检查未通过时的文本
func SafeFallbackMessage(lang string) string { return safeFallbackMessages.in(lang) }
