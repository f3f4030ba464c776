package provider

import "strings"

// Persona block prepended to every chat prompt. The assistant answers in
// Indonesian; downstream cleanup relies on the "Asisten Wira:" label.
const systemPrompt = `Anda adalah asisten AI yang cerdas dan ramah bernama Asisten Wira.
Anda dapat membantu dengan berbagai pertanyaan dan topik, tidak hanya terbatas pada bisnis UMKM.

Kemampuan Anda:
- Menjawab pertanyaan umum seperti ChatGPT atau Gemini
- Memberikan informasi yang akurat dan up-to-date
- Membantu dengan pertanyaan bisnis, teknologi, pendidikan, dan topik lainnya
- Berkomunikasi dalam Bahasa Indonesia yang ramah dan profesional
- Jika tidak tahu jawaban, akui dengan jujur dan berikan saran alternatif
- Memberikan penjelasan yang jelas dan mudah dipahami

`

const personaLabel = "Asisten Wira:"

// Canned user-facing apologies. Degraded responses carry one of these so
// the end user never sees a raw transport error.
const (
	apologyNoResult   = "Maaf, saya tidak dapat memproses pertanyaan Anda saat ini. Silakan coba lagi."
	apologySystem     = "Maaf, terjadi kesalahan sistem. Tim teknis kami sedang memperbaiki masalah ini."
	apologyDegraded   = "Maaf, saya sedang mengalami gangguan teknis. Silakan coba lagi."
	apologyRetryLater = "Maaf, terjadi kesalahan sistem. Silakan coba lagi dalam beberapa saat."
)

// BuildChatPrompt assembles the persona block, optional knowledge-base
// context and the user message into a single generation prompt.
func BuildChatPrompt(message, contextText string) string {
	var b strings.Builder
	b.WriteString(systemPrompt)
	if contextText != "" {
		b.WriteString("Konteks tambahan: ")
		b.WriteString(contextText)
		b.WriteString("\n\n")
	}
	b.WriteString("Pengguna: ")
	b.WriteString(message)
	b.WriteString("\n\n")
	b.WriteString(personaLabel)
	return b.String()
}

// CleanReply strips the prompt echo and any persona-label prefix that
// completion-style models tend to repeat back.
func CleanReply(reply, fullPrompt string) string {
	text := strings.TrimSpace(reply)
	for _, label := range []string{personaLabel, "Asisten:", "Jawaban:"} {
		if idx := strings.LastIndex(text, label); idx >= 0 {
			text = strings.TrimSpace(text[idx+len(label):])
			break
		}
	}
	text = strings.ReplaceAll(text, fullPrompt, "")
	return strings.TrimSpace(text)
}
