package processor

import (
	"strings"

	"github.com/MrWong99/ticketvox/internal/ticket"
)

const promptHeader = `You are now going to act as a project manager. I'm going to provide you the full conversation between a client and the PM.
Your task is to divide and process the whole conversation into individual issues consisting of a:
1. title, (The title should be a short summary of the task),
2. a description,
3. an expectation or prediction of working hours,
4. a level of seniority (junior, medior, senior),
5. a role (from the list below).

Only answer with the JSON response and nothing else. The JSON response should be an array of tickets. The ticket schema
is described below.

Be as precise as possible with the description and only use information from the conversation,
do not imagine or make anything up. The tickets should be very technical since it is intended for developers.
The language of the tickets should be generated in the same language which the transcription is in.
The expected work hours should be a number. The seniority should be one of the following: junior, medior, senior.
Each ticket should have a role assigned to it, pick the one that suits the most and return it.

Available roles:
`

const promptSchema = `
The response type of a single ticket: {
  title: string
  description: string
  expectedWorkHours: number
  seniority: "junior" | "medior" | "senior"
  role: string
}

The raw conversation:
`

// BuildPrompt renders the instruction block, the role names and the
// transcript into a single prompt.
func BuildPrompt(transcript string, roles []ticket.Role) string {
	var sb strings.Builder
	sb.WriteString(promptHeader)
	for _, r := range roles {
		sb.WriteString(" - ")
		sb.WriteString(r.Name)
		sb.WriteByte('\n')
	}
	sb.WriteString(promptSchema)
	sb.WriteString(transcript)
	sb.WriteByte('\n')
	return sb.String()
}
