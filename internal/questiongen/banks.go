// Package questiongen supplies interview questions for the local
// development server: canned per-track banks, optionally refreshed by an
// LLM when an API key is configured.
package questiongen

var banks = map[string][]string{
	"general": {
		"Tell me about yourself?",
		"What attracted you to this position?",
		"What do you consider your greatest professional strength?",
		"Describe a challenge you faced at work and how you handled it?",
		"Where do you see yourself in five years?",
	},
	"technical": {
		"Can you walk me through a recent technical project you led?",
		"How do you approach debugging a problem you have never seen before?",
		"What trade-offs do you weigh when designing a new system?",
		"How do you keep your technical skills current?",
		"Describe a time a technical decision of yours turned out to be wrong. What did you do?",
	},
	"sales": {
		"How do you build rapport with a new prospect?",
		"Tell me about the most difficult deal you ever closed?",
		"How do you handle repeated rejection?",
		"What does your qualification process look like?",
		"How do you decide when to walk away from an opportunity?",
	},
	"leadership": {
		"How would you describe your leadership style?",
		"Tell me about a time you had to deliver difficult feedback?",
		"How do you handle disagreement within your team?",
		"What is your approach to delegating work?",
		"Describe a time you led a team through a major change?",
	},
	"customer_service": {
		"How do you handle an angry customer?",
		"Tell me about a time you went above and beyond for a customer?",
		"How do you prioritize when several customers need help at once?",
		"What does good customer service mean to you?",
		"Describe a time you could not give a customer what they wanted?",
	},
	"coding": {
		"How would you reverse a linked list, and what is the complexity?",
		"When would you reach for a hash map over a sorted structure?",
		"How do you test code that depends on time or randomness?",
		"Explain a race condition you have actually debugged?",
		"What makes code readable to you?",
	},
	"home_care": {
		"What experience do you have caring for elderly or disabled clients?",
		"How do you handle a client who refuses care?",
		"Describe a medical emergency you responded to?",
		"How do you maintain a client's dignity during personal care?",
		"What would you do if you noticed signs of neglect or abuse?",
	},
}

// Bank returns the canned questions for an interview type, falling back to
// the general track for unknown types. The returned slice is a copy; callers
// may overwrite entries with generated follow-ups.
func Bank(interviewType string) []string {
	qs, ok := banks[interviewType]
	if !ok {
		qs = banks["general"]
	}
	out := make([]string, len(qs))
	copy(out, qs)
	return out
}
