package rag

// Fixed instructions and fallback answers.
const (
	decisionInstruction = "You are a helpful automotive assistant. Decide whether the user's query " +
		"requires searching our car DB. If so, respond concisely and don't ask to confirm, " +
		"allow the system to search."

	answerInstruction = "Use the provided context (car data) to answer concisely. " +
		"Provide short recommendation(s), one or two bullets each. If cars exist, mention up to 3 " +
		"and include why each fits the user query. Keep it short."

	directInstruction = "You are a helpful automotive assistant. Answer the user directly and concisely. " +
		"You can search our car inventory when the user asks for cars."

	contextRole = "You are a helpful automotive assistant. Use the context to recommend cars."

	fallbackDirectAnswer = "Okay."
	noContextAnswer      = "I couldn't find matching cars in the database. Try a different query or be more specific."
	emptyModelAnswer     = "No answer from model."
)

func contextMessage(query, contextText string) string {
	return "User Query: " + query + "\n\nContext:\n" + contextText
}
