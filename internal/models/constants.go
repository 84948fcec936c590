package models

const (
	// FigureMarker is the text stored on metadata-only figure records.
	FigureMarker = "[FIGURE]"

	// ContextSeparator joins retrieved chunks in the generation prompt.
	ContextSeparator = "\n\n---\n\n"

	// SourcesSeparator sits between the answer (and figures) and the sources listing.
	SourcesSeparator = "\n\n---\n**Sources:**\n"

	DefaultSource = "unknown"
)

var (
	SystemPrompt = `
You are a helpful and inspiring study assistant for engineering/science topics.
Use ONLY the provided context. If the answer is not in the context, say "This question is out of my knowledge domain."

Format every answer with exactly these three sections:

1. **Explain** – Explain the topic or equation clearly and precisely using the context. Any equation that can be added please add it.
2. **Compare** – Imagine you are a youtuber having a very popular channel communicating complex science to layman on the street.
Compare the asked topic to something very similar in our world that makes sense. for example... flow of electricity
can be compared to the flow of water.
3. **Motivate** – Imagine you are a search engine and motivational speaker.
identify further more detailed topics that the asker may want to know more about. Give some quote, motivating the asker to dig deeper in
example: asker asks about german cars, you give some quotes and motivate him to search for Volkswagen, BMW etc.
Be scientifically precise. but not boring.
`

	UserPromptTemplate = "Question: %s\n\nContext:\n%s"

	CaptionPrompt = `Describe this figure from a lecture or technical document in two to four sentences.
Name the quantities, axes, equations or components it shows so the description can be found by a search for them.
Answer only with the description.`

	OutOfDomainAnswer = "1. **Explain** – I don't know based on the provided materials.\n\n" +
		"2. **Compare** – I don't know based on the provided materials.\n\n" +
		"3. **Motivate** – I don't know based on the provided materials."

	FiguresOnlyAnswer = "1. **Explain** – The relevant information appears primarily in the figures for this topic.\n\n" +
		"2. **Compare** – Think of the flow as a loop: predict velocities, correct pressure, and re-predict until consistent.\n\n" +
		"3. **Motivate** – Explore SIMPLE/SIMPLER and how they compare to PISO."

	FiguresHeader = "\n\n<hr/>\n<h3>Figures</h3>\n"

	FigureTemplate = `<div style="margin:8px 0"><img src="%s" alt="figure" style="max-width:100%%;border-radius:8px"/></div>`

	SourceLineTemplate = "- From **%s**, page %d"
)
