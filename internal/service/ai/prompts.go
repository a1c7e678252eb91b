package ai

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/aituber/backend/internal/model/persona"
)

// PromptTemplate defines the persona specific parts of the reply instructions.
type PromptTemplate struct {
	SystemPrompt     string
	PersonalityHints []string
	ContextRules     []string
}

// PersonaPromptManager manages reply prompt templates for the built-in personas.
type PersonaPromptManager struct {
	templates map[string]*PromptTemplate
}

// NewPersonaPromptManager creates a new prompt manager with default templates.
func NewPersonaPromptManager() *PersonaPromptManager {
	manager := &PersonaPromptManager{
		templates: make(map[string]*PromptTemplate),
	}
	manager.loadDefaultTemplates()
	return manager
}

// GetPromptTemplate returns the prompt template for a given persona.
func (pm *PersonaPromptManager) GetPromptTemplate(personaID string) (*PromptTemplate, error) {
	template, exists := pm.templates[personaID]
	if !exists {
		return nil, fmt.Errorf("prompt template not found for persona: %s", personaID)
	}
	return template, nil
}

// BuildReplyInstructions creates the system prompt of the reply agent.
func (pm *PersonaPromptManager) BuildReplyInstructions(p *persona.Persona) string {
	template, err := pm.GetPromptTemplate(p.ID)
	if err != nil {
		template = &PromptTemplate{
			SystemPrompt: fmt.Sprintf("あなたは「%s」という名前の%sです。", p.Name, p.Title),
		}
	}

	var b strings.Builder
	b.WriteString(template.SystemPrompt)
	b.WriteString("\n\n## キャラクター設定\n")
	fmt.Fprintf(&b, "- 一人称: %s\n", p.FirstPerson)
	fmt.Fprintf(&b, "- 話し方: %s\n", p.Tone)
	if len(p.Traits) > 0 {
		fmt.Fprintf(&b, "- 性格: %s\n", strings.Join(p.Traits, "、"))
	}
	for _, hint := range template.PersonalityHints {
		fmt.Fprintf(&b, "- %s\n", hint)
	}

	b.WriteString("\n## 応答ルール\n")
	b.WriteString("- 視聴者の名前（読み仮名）を呼んで返答する\n")
	b.WriteString("- 2〜3文で簡潔に\n")
	b.WriteString("- 初見さんには「初めまして！」と歓迎\n")
	b.WriteString("- 疑問形で終わらない\n")
	if p.PromptHint != "" {
		fmt.Fprintf(&b, "- %s\n", p.PromptHint)
	}
	for _, rule := range template.ContextRules {
		fmt.Fprintf(&b, "- %s\n", rule)
	}

	b.WriteString("\n## 出力形式\n")
	b.WriteString("必ずJSON形式で出力してください：\n")
	b.WriteString(`{"segments": [{"text": "発話テキスト", "emotion": "neutral"}]}`)
	b.WriteString("\n\n- segments: 読み上げ単位に区切った返答。1〜3個\n")
	b.WriteString("- text: そのまま読み上げる文\n")
	fmt.Fprintf(&b, "- emotion: その文を話すときの感情。次から選択: %s\n", strings.Join(emotionsOf(p), ", "))
	return b.String()
}

func emotionsOf(p *persona.Persona) []string {
	if len(p.Emotions) == 0 {
		return []string{"neutral", "thinking"}
	}
	return p.Emotions
}

// loadDefaultTemplates loads the default prompt templates for built-in personas.
func (pm *PersonaPromptManager) loadDefaultTemplates() {
	pm.templates["nike"] = &PromptTemplate{
		SystemPrompt: "あなたは「ニケ」という名前の17歳の女子高生VTuberです。",
		PersonalityHints: []string{
			"明るく優しい、視聴者を大切にする",
			"丁寧な敬語だが、距離を感じさせない",
		},
		ContextRules: []string{
			"直近の会話の流れを踏まえ、同じ挨拶を繰り返さない",
			"配信タイトルに関係する話題なら積極的に触れる",
		},
	}

	pm.templates["kuro"] = &PromptTemplate{
		SystemPrompt: "あなたは「クロ」という名前の、深夜ラジオのような雑談配信をするVTuberです。",
		PersonalityHints: []string{
			"落ち着いた語り口で、リスナーの話をよく聞く",
			"ときどき軽い皮肉を言うが、決して相手を傷つけない",
		},
		ContextRules: []string{
			"テンションを上げすぎず、ゆったりと返す",
		},
	}
}

// ReadingInstructions asks for the katakana reading of a username and nothing else.
const ReadingInstructions = `ユーザー名の読み方をカタカナで答えてください。
- 漢字、英語、記号、当て字を自然な日本語の読みに変換
- カタカナ読みのみを出力（説明不要）`

// FilterInstructions classifies whether a comment deserves a reply.
const FilterInstructions = `コメントが返答に値するかを判定してください。

## 返答不要（shouldRespond: false）
- 意味のない単語: 「あ」「お」「ん」「w」「草」
- 相槌のみ: 「ふーん」「へー」「なるほど」
- 絵文字のみ: 😊🎉👍 など
- 記号のみ: 「...」「！！！」「？？？」
- 空白や改行のみ

## 返答必要（shouldRespond: true）
- 質問や挨拶
- 感想や意見
- 会話として成立するもの

JSON形式で出力: {"shouldRespond": true/false}`
