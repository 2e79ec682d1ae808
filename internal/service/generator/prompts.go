package generator

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are an expert vocabulary tutor helping users expand their English vocabulary. Maintain an encouraging and educational tone. Keep conversations focused on vocabulary learning.`

const generationPromptTemplate = `You are a vocabulary tutor helping a user learn new English words. Your task is to generate a **new** vocabulary word for the user to learn.

EXISTING WORDS (DO NOT REPEAT ANY OF THESE):
%s

WORDS THE USER ALREADY KNEW:
%s

WORDS THE USER HAD TO LEARN:
%s

DIFFICULTY GUIDANCE:
Generate words of the same difficulty level that the user had to learn. Should be above the level of words the user already knew.
%s
Generate a vocabulary word that:
1. Is NOT in the existing words list
2. Is appropriate for the user's current level
3. Is a real English word that would be useful to know
4. Is not overly obscure or archaic
5. Give meanings from trustable sources only

Respond ONLY with a JSON object in this exact format:
{
    "word": "the_vocabulary_word",
    "meanings": [
        "First or most common meaning/definition of the word",
        "Further meanings/definitions if applicable"
    ],
    "examples": [
        "An example sentence using the word in context.",
        "Another example sentence showing different usage.",
        "Another example sentence illustrating the word in a different context."
    ]
}

Strictly no markdown code block markers in JSON output.

Make sure the examples are clear and help illustrate the word's meaning.`

func generationPrompt(existing, known, learning []string, theme string) string {
	themeInstruction := ""
	if theme != "" {
		themeInstruction = fmt.Sprintf("\nThe word should be related to the theme: %s\n", theme)
	}

	return fmt.Sprintf(generationPromptTemplate,
		wordList(existing),
		wordList(known),
		wordList(learning),
		themeInstruction,
	)
}

func wordList(words []string) string {
	if len(words) == 0 {
		return "None"
	}
	return strings.Join(words, ", ")
}
