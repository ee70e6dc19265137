package rag

import (
	"fmt"
	"strings"
)

// NoAnswerMessage is the fixed reply when the context does not support an
// answer. The prompt templates instruct the model to emit it verbatim.
const NoAnswerMessage = "Hmm, I'm not sure."

// answerTemplate is the structured answering prompt. The model may skip any
// of the named sections.
const answerTemplate = `You are an AI assistant specialized in answering questions about documents. You will receive a
question along with relevant context from an extracted part of a document. Your response
should be clear, concise, and structured as follows:

You can skip any of the headings mentioned in the below structure which are "Answer Summary,
Supporting Details, Key Points and Additional Notes", if you don't find it necessary to include the
heading in the response and make sure that the answer does not contain repetitive text.

**Answer Summary:** Provide a brief answer to the question. If the answer is not found in the provided context,
say: "Hmm, I'm not sure." Do not invent or assume information.

**Supporting Details:** Provide any supporting details from the context that helped you derive the answer in detail.
Don't skip over or summarize any part here. If the context is insufficient to fully answer the question,
mention that explicitly in bold letters.

**Key Points:** Highlight any important facts or key takeaways relevant to the question that were found in the
context with proper formatting eg using bullet points or any other way.

**Additional Notes:** If there are related topics or clarifications needed, include them here. If the answer can
be derived from multiple pieces of context, mention how they were integrated.

If you don't know the answer, just say "Hmm, I'm not sure." Don't try to make up an answer.
Question: %s
=========
%s
=========
Answer in Markdown: `

// hydeTemplate asks for a hypothetical passage answering the question. The
// passage is embedded and used as the dense query.
const hydeTemplate = `You are an AI assistant for answering questions about the various documents from the user.
You are given the following extracted parts of a long document and a question. Provide a conversational answer.
If you don't know the answer, just say "Hmm, I'm not sure." Don't try to make up an answer.
Question: %s
=========
%s
=========
Answer in Markdown: `

const groundTruthTemplate = `You are an AI assistant for generating ground truth based on the user query and your knowledge.
Please ground truths clearly labeled as follows:
    - Ground truths (answers) prefixed with "A:"

Query: %s`

const testSetTemplate = `You are an AI assistant for generating questions and ground truths based on the various passages from the user.
Please generate questions and ground truths clearly labeled as follows:
    - Questions prefixed with "Q:"
    - Ground truths (answers) prefixed with "A:"
The complexity of the questions should be 2 simple questions and 2 complex questions.
Generate at least 4 question-ground_truth pairs based on the passage provided.

Passage: %s`

// AnswerPrompt renders the structured answering prompt.
func AnswerPrompt(question, context string) string {
	return fmt.Sprintf(answerTemplate, question, context)
}

// HyDEPrompt renders the hypothetical-document prompt.
func HyDEPrompt(question string) string {
	return fmt.Sprintf(hydeTemplate, question, "")
}

// GroundTruthPrompt asks the instruct model for an expected answer.
func GroundTruthPrompt(query string) string {
	return fmt.Sprintf(groundTruthTemplate, query)
}

// TestSetPrompt asks the instruct model for Q/A pairs over one passage.
func TestSetPrompt(passage string) string {
	return fmt.Sprintf(testSetTemplate, passage)
}

// llmEvalPrompt frames the reward-model judgement of a generated answer.
func llmEvalPrompt(question, context, groundTruth string) string {
	var b strings.Builder
	b.WriteString("user_query: ")
	b.WriteString(question)
	b.WriteString(" Based on the below context answer the user's query\n")
	b.WriteString("context: ")
	b.WriteString(context)
	b.WriteString("\nExpected Answer: ")
	b.WriteString(groundTruth)
	return b.String()
}

// retrieverEvalPrompt frames the reward-model judgement of retrieved context.
func retrieverEvalPrompt(question, groundTruth string) string {
	return fmt.Sprintf("Question: %s\nExpected Answer: %s", question, groundTruth)
}
