package ai

import "muhasibi/pkg/common"

// PurposePathPrompt derives the goal, extra constraints, plan, and
// difficulty. %s placeholders: question, entity names, keywords.
const PurposePathPrompt = `
# Task Context
You analyse an Arabic question addressed to a closed wellbeing knowledge framework (pillars, core values, sub-values). You do NOT answer the question.

# Question
%s

# Detected Entities
%s

# Keywords
%s

# Detailed Task Description & Rules
- State the ultimate goal of the question in one Arabic sentence (goal_ar).
- List any additional constraints the answer must respect, in Arabic. Do not restate the standing constraints (evidence_only, cite_every_claim, refuse_if_missing); they are always applied.
- Produce a short ordered plan (path_plan_ar) of at most 5 Arabic steps.
- Label the difficulty as easy, medium, or hard.
- Never answer the question itself.
`

// RewriteQueryPrompt produces search rewrites when vector retrieval is
// sparse. The model must not answer. %s placeholders: question, entity
// names, keywords.
const RewriteQueryPrompt = `
# Task Context
Vector search over the wellbeing corpus returned too few results for the question below. Produce alternative Arabic search phrasings.

# Question
%s

# Detected Entities
%s

# Keywords
%s

# Detailed Task Description & Rules
- Produce up to 5 Arabic rewrites (rewrites_ar) that preserve the question's meaning while varying vocabulary.
- If the question is ambiguous, set disambiguation_ar to a single Arabic clarifying question; otherwise leave it null.
- Do NOT answer the question. Output only rewrites and the optional clarification.
`

// ClassifyIntentPrompt classifies the question intent and scope. %s
// placeholders: question, entity names, keywords.
const ClassifyIntentPrompt = `
# Task Context
You classify Arabic questions addressed to a closed wellbeing knowledge framework. You do NOT answer.

# Question
%s

# Detected Entities
%s

# Keywords
%s

# Detailed Task Description & Rules
- Choose intent_type from: list_pillars, list_core_values_in_pillar, list_sub_values_in_core_value, definition, definition_with_evidence, comparison, connect_across_pillars, practical_guidance, fiqh_ruling, biography, general_knowledge, ambiguous.
- Set in_scope=false for fiqh rulings, biography, and general knowledge outside the framework.
- target_entity is the Arabic name of the single entity the question centres on, or empty.
- suggested_queries_ar may hold up to 3 in-scope Arabic reformulations for out-of-scope questions.
- clarification_ar is a single Arabic clarifying question for ambiguous input, else null.
`

// InterpretContract is the evidence-binding contract shared by every mode.
// %s placeholder: the serialized evidence packets.
const InterpretContract = `
# Background Data
Evidence packets (the ONLY admissible material):
%s

# Detailed Task Description & Rules
- Answer in Arabic using ONLY the evidence packets above.
- Every factual sentence must be supported by at least one cited packet; cite by chunk_id and source_anchor.
- If any needed claim is not present in the packets, set not_found=true and leave the answer empty. Never guess and never use outside knowledge.
- Do not issue legal or religious rulings.
- Set confidence to high only when every claim is directly quoted or closely paraphrased from the packets.
`

// Mode-specific interpreter voices. Each is prepended to InterpretContract.
var interpretVoices = map[common.Mode]string{
	common.ModeAnswer: `
# Voice
Answer directly: lead with the definition, then the supporting evidence.
`,
	common.ModeDebate: `
# Voice
Enumerate the evidence-supported perspectives on the question as separate numbered positions. Every position must cite its packets; omit any perspective the evidence does not support.
`,
	common.ModeSocratic: `
# Voice
Lead with one or two clarifying questions drawn from the evidence, then give brief anchored pointers rather than a full exposition.
`,
	common.ModeJudge: `
# Voice
Triage the question's claims into three Arabic sections: مدعوم (supported, with citations), غير مدعوم (contradicted by the evidence), and غير موجود (absent from the evidence).
`,
	common.ModeNaturalChat: `
# Voice
Respond in flowing conversational Arabic prose. Keep every citation; do not drop chunk references for the sake of style.
`,
}

// InterpretVoice returns the voice preamble for the given mode, defaulting
// to the plain answer voice.
func InterpretVoice(mode common.Mode) string {
	if v, ok := interpretVoices[mode]; ok {
		return v
	}
	return interpretVoices[common.ModeAnswer]
}

// ReflectPrompt appends an annotation restricted to existing vocabulary.
// %s placeholders: the answer, the allowed vocabulary.
const ReflectPrompt = `
# Task Context
You add one optional closing Arabic sentence to an already-finished answer.

# Answer
%s

# Allowed Vocabulary
%s

# Detailed Task Description & Rules
- The sentence may use ONLY words from the allowed vocabulary.
- It must not introduce any new factual claim.
- If no useful sentence can be formed, return an empty string.
`
