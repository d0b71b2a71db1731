package hyde

import (
	"fmt"

	"github.com/verticelabs/acervo/internal/models"
)

const systemContext = `You generate hypothetical passages from institutional council documents
(regulations, meeting minutes, agendas, resolutions, ordinances). Write in the
formal register of such documents, cite structure explicitly (Art., §, item),
and never invent facts beyond what a typical document of the kind would state.`

// hypothesisPrompt selects the generation template for the detected document
// type. The switch is exhaustive over the closed DocType set.
func hypothesisPrompt(query string, a Analysis) string {
	council := a.Council
	if council == "" {
		council = "the council"
	}
	switch a.DocType {
	case models.DocTypeRegulation:
		return fmt.Sprintf(`Question: %s

Write a short hypothetical passage answering it as a regulation of %s would,
in the pattern "Under Art. [n] of the Regulation..., ... as established in §[n]...".`, query, council)
	case models.DocTypeMinutes:
		return fmt.Sprintf(`Question: %s

Write a short hypothetical passage answering it as meeting minutes of %s would,
in the pattern "At the meeting of [date], it was deliberated that..., approved by [quorum]...".`, query, council)
	case models.DocTypeAgenda:
		return fmt.Sprintf(`Question: %s

Write a short hypothetical passage answering it as a meeting agenda of %s would,
in the pattern "The next session is scheduled for [date]. Item [n]: [subject]...".`, query, council)
	case models.DocTypeResolution:
		return fmt.Sprintf(`Question: %s

Write a short hypothetical passage answering it as a resolution of %s would,
in the pattern "Resolution no. [n]/[year] establishes..., under Art. [n]...".`, query, council)
	case models.DocTypeOrdinance:
		return fmt.Sprintf(`Question: %s

Write a short hypothetical passage answering it as an ordinance of %s would,
in the pattern "Ordinance no. [n]/[year] appoints/determines..., effective [date]...".`, query, council)
	case models.DocTypeOther:
		fallthrough
	default:
		return fmt.Sprintf(`Question: %s

Topic: %s
Council: %s

Write a short hypothetical passage that would answer the question if found in
an official institutional document. Use formal language and explicit structure
references (Art., §, item) typical of such documents.`, query, a.Topic, council)
	}
}
