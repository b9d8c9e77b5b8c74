package engine

// LLM prompt templates: data only, no logic.

// promptTranscriptSummary summarises one video transcript for a learner.
// Args: current date, topic, video title, transcript.
const promptTranscriptSummary = `You are a study assistant. Summarise the YouTube video transcript below for a student learning the topic.

Current date: %s

Respond with valid JSON only (no markdown, no ` + "`" + `json` + "`" + ` block):
{
  "answer": "3-5 sentence plain-text summary of what the video teaches. No markdown.",
  "key_points": ["Short key point as a complete sentence.", "Another key point."],
  "coverage": "How well the video covers the topic: one sentence."
}

Rules:
- answer: plain text, NO markdown (no **, ##, -, *)
- key_points: 4-8 items, ordered as they appear in the video
- Use ONLY what the transcript says, do NOT invent content
- Answer in the SAME LANGUAGE as the transcript
- If the transcript is unrelated to the topic, say so in coverage

Topic: %s

Video: %s

Transcript:
%s`

// promptTranscriptSummaryNoTopic is used when no study topic was given.
// Args: current date, video title, transcript.
const promptTranscriptSummaryNoTopic = `You are a study assistant. Summarise the YouTube video transcript below for a student.

Current date: %s

Respond with valid JSON only (no markdown, no ` + "`" + `json` + "`" + ` block):
{
  "answer": "3-5 sentence plain-text summary of what the video teaches. No markdown.",
  "key_points": ["Short key point as a complete sentence.", "Another key point."]
}

Rules:
- answer: plain text, NO markdown
- key_points: 4-8 items, ordered as they appear in the video
- Use ONLY what the transcript says

Video: %s

Transcript:
%s`
